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

package server

import (
	"fmt"
	"time"
)

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host string `json:"host" yaml:"host"` // 监听主机，默认"0.0.0.0"
	Port int    `json:"port" yaml:"port"` // 监听端口，默认9200

	// 超时配置
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`               // 读取超时，默认30s
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout"`             // 写入超时，默认120s，允许慢查询
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`               // 空闲超时，默认300s
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"` // 读取头超时，默认10s
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`       // 优雅关闭超时，默认30s

	// 连接限制
	MaxHeaderBytes int   `json:"max_header_bytes" yaml:"max_header_bytes"` // 最大头字节数，默认1MB
	MaxRequestSize int64 `json:"max_request_size" yaml:"max_request_size"` // 最大请求体，默认100MB

	// CORS配置
	EnableCORS  bool     `json:"enable_cors" yaml:"enable_cors"`   // 是否启用CORS，默认true
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"` // CORS允许的源，默认["*"]
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:              "0.0.0.0",
		Port:              9200,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       300 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		MaxRequestSize:    100 << 20,
		EnableCORS:        true,
		CORSOrigins:       []string{"*"},
	}
}

// Validate 校验配置
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxHeaderBytes < 0 {
		return fmt.Errorf("max header bytes cannot be negative")
	}
	if c.MaxRequestSize < 0 {
		return fmt.Errorf("max request size cannot be negative")
	}
	return nil
}

// Address 返回监听地址
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
