// Copyright (c) 2024 AggDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package es 对外提供ES兼容的HTTP协议面
package es

import (
	"net/http"

	"github.com/lscgzwd/aggdb/aggregation"
	"github.com/lscgzwd/aggdb/protocols"
	"github.com/lscgzwd/aggdb/protocols/es/handler"
	"github.com/lscgzwd/aggdb/protocols/es/http/server"
	"github.com/lscgzwd/aggdb/protocols/es/index"
	"github.com/lscgzwd/aggdb/storage"
)

// Config ES协议面配置
type Config struct {
	Server *server.ServerConfig `yaml:"server"`
	// Index 新建索引的默认配置
	Index *storage.IndexConfig `yaml:"index"`
	// MetadataDir 索引目录的持久化路径，为空时索引集合只存在于内存
	MetadataDir string `yaml:"metadata_dir"`
	// PartialResults 允许部分分片失败时返回带标记的部分聚合结果
	PartialResults bool `yaml:"partial_results"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: server.DefaultServerConfig(),
		Index:  storage.DefaultIndexConfig(),
	}
}

// Server ES协议服务器：HTTP基础设施 + 各级处理器
type Server struct {
	httpServer *server.Server
	indexes    *index.Manager
	address    string
}

var _ protocols.ProtocolServer = (*Server)(nil)

// NewServer 装配ES协议服务器
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Server == nil {
		config.Server = server.DefaultServerConfig()
	}

	httpServer, err := server.NewServer(config.Server)
	if err != nil {
		return nil, err
	}

	var indexes *index.Manager
	if config.MetadataDir != "" {
		catalog, err := index.NewFileCatalog(config.MetadataDir)
		if err != nil {
			return nil, err
		}
		indexes, err = index.OpenManager(config.Index, catalog)
		if err != nil {
			return nil, err
		}
	} else {
		indexes = index.NewManager(config.Index)
	}

	var engineOpts []aggregation.EngineOption
	if config.PartialResults {
		engineOpts = append(engineOpts, aggregation.WithPartialResults())
	}
	engine := aggregation.NewEngine(engineOpts...)

	s := &Server{httpServer: httpServer, indexes: indexes, address: config.Server.Address()}
	s.registerRoutes(engine)
	return s, nil
}

// registerRoutes 注册全部路由
// 模板路由先注册、具体路由后注册：Router 反向构建，后注册者优先
func (s *Server) registerRoutes(engine *aggregation.Engine) {
	docs := handler.NewDocumentHandler(s.indexes)
	idxHandler := handler.NewIndexHandler(s.indexes)
	search := handler.NewSearchHandler(s.indexes, engine)
	cluster := handler.NewClusterHandler(s.indexes)

	s.httpServer.AddRoutes([]server.Route{
		// 索引级
		{Method: http.MethodPut, Path: "/{index}", Handler: idxHandler.CreateIndex},
		{Method: http.MethodDelete, Path: "/{index}", Handler: idxHandler.DeleteIndex},
		{Method: http.MethodGet, Path: "/{index}", Handler: idxHandler.GetIndex},
		{Method: http.MethodHead, Path: "/{index}", Handler: idxHandler.IndexExists},

		// 文档级
		{Method: http.MethodPut, Path: "/{index}/_doc/{id}", Handler: docs.IndexDocument},
		{Method: http.MethodPost, Path: "/{index}/_doc", Handler: docs.CreateDocument},
		{Method: http.MethodGet, Path: "/{index}/_doc/{id}", Handler: docs.GetDocument},
		{Method: http.MethodDelete, Path: "/{index}/_doc/{id}", Handler: docs.DeleteDocument},

		// 搜索与计数
		{Method: http.MethodPost, Path: "/{index}/_search", Handler: search.Search},
		{Method: http.MethodGet, Path: "/{index}/_search", Handler: search.Search},
		{Method: http.MethodPost, Path: "/{index}/_count", Handler: docs.CountDocuments},
		{Method: http.MethodGet, Path: "/{index}/_count", Handler: docs.CountDocuments},

		// 集群级（最后注册，优先级最高）
		{Method: http.MethodGet, Path: "/_cluster/health", Handler: cluster.Health},
		{Method: http.MethodGet, Path: "/", Handler: cluster.Root},
	})
}

// Name 实现 protocols.ProtocolServer
func (s *Server) Name() string {
	return "es"
}

// Address 实现 protocols.ProtocolServer
func (s *Server) Address() string {
	return s.address
}

// Indexes 索引管理器，测试和命令行工具直接灌数据用
func (s *Server) Indexes() *index.Manager {
	return s.indexes
}

// Handler 完整的HTTP处理器，测试时挂到httptest使用
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

// Start 启动并阻塞
func (s *Server) Start() error {
	return s.httpServer.Start()
}

// Stop 优雅关闭：先停HTTP面，再关全部索引
func (s *Server) Stop() error {
	if err := s.httpServer.Stop(); err != nil {
		return err
	}
	return s.indexes.Close()
}
