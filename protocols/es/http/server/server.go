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

// Package server 提供ES协议专用的HTTP服务器基础设施
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lscgzwd/aggdb/logger"
)

// Server HTTP服务器
type Server struct {
	config     *ServerConfig
	router     *Router
	middleware Middleware
	httpServer *http.Server
	started    bool
	mu         sync.Mutex
}

// NewServer 创建新的HTTP服务器
func NewServer(config *ServerConfig) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	return &Server{
		config:     config,
		router:     NewRouter(),
		middleware: DefaultMiddlewareStack(config),
	}, nil
}

// GetRouter 获取路由管理器
func (s *Server) GetRouter() *Router {
	return s.router
}

// AddRoute 添加路由
func (s *Server) AddRoute(method, path string, handler http.HandlerFunc, middlewares ...Middleware) {
	s.router.AddRoute(method, path, handler, middlewares...)
}

// AddRoutes 批量添加路由
func (s *Server) AddRoutes(routes []Route) {
	s.router.AddRoutes(routes)
}

// Handler 返回装配好中间件的完整处理器，测试时可直接挂到httptest
func (s *Server) Handler() http.Handler {
	return s.middleware(s.router.Build().ServeHTTP)
}

// Start 启动服务器并阻塞直到其退出
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true

	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}
	s.mu.Unlock()

	logger.Info("HTTP server listening on %s", s.config.Address())
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 优雅关闭服务器，等待在途请求完成
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.httpServer == nil {
		return nil
	}
	s.started = false

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	logger.Info("HTTP server shutting down (timeout %v)", s.config.ShutdownTimeout)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed, closing: %v", err)
		return s.httpServer.Close()
	}
	return nil
}

// StopTimeout Stop的自定义超时版本
func (s *Server) StopTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.httpServer == nil {
		return nil
	}
	s.started = false

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
