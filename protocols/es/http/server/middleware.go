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
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/lscgzwd/aggdb/logger"
	"github.com/lscgzwd/aggdb/protocols/es/http/common"
)

// Middleware 中间件函数类型
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain 把多个中间件合成一个，第一个参数在最外层
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware 为每个请求分配唯一ID并回写到响应头
// 客户端自带 X-Request-Id 时沿用
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next(w, r)
	}
}

// LoggingMiddleware 请求日志中间件
// 仅在错误或慢请求时输出，减少日志量
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(rw, r)

		duration := time.Since(start)
		if rw.statusCode >= 400 || duration > time.Second {
			logger.Warn("[%s] %s %s %d %v",
				r.Method, r.RequestURI, r.RemoteAddr, rw.statusCode, duration)
		} else if logger.IsDebugEnabled() {
			logger.Debug("[%s] %s %d %v", r.Method, r.RequestURI, rw.statusCode, duration)
		}
	}
}

// RecoveryMiddleware panic恢复中间件
func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic handling [%s] %s: %v\n%s",
					r.Method, r.RequestURI, rec, debug.Stack())
				common.HandleError(w, common.NewInternalServerError("internal server error"))
			}
		}()
		next(w, r)
	}
}

// BodyLimitMiddleware 请求体大小限制中间件
func BodyLimitMiddleware(maxBytes int64) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next(w, r)
		}
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware(allowedOrigins []string) Middleware {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := allowAll
			if !allowed {
				for _, allowedOrigin := range allowedOrigins {
					if origin == allowedOrigin {
						allowed = true
						break
					}
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}
}

// DefaultMiddlewareStack 按配置装配标准中间件栈
func DefaultMiddlewareStack(config *ServerConfig) Middleware {
	middlewares := []Middleware{
		RecoveryMiddleware,
		RequestIDMiddleware,
		LoggingMiddleware,
		BodyLimitMiddleware(config.MaxRequestSize),
	}
	if config.EnableCORS {
		middlewares = append(middlewares, CORSMiddleware(config.CORSOrigins))
	}
	return Chain(middlewares...)
}
