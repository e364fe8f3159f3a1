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

	"github.com/gorilla/mux"
)

// Route 路由定义
type Route struct {
	Method      string
	Path        string
	Handler     http.HandlerFunc
	Middlewares []Middleware
}

// Router 路由管理器
type Router struct {
	routes []Route
}

// NewRouter 创建新的路由管理器
func NewRouter() *Router {
	return &Router{routes: make([]Route, 0)}
}

// AddRoute 添加路由
func (r *Router) AddRoute(method, path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.routes = append(r.routes, Route{
		Method:      method,
		Path:        path,
		Handler:     handler,
		Middlewares: middlewares,
	})
}

// AddRoutes 批量添加路由
func (r *Router) AddRoutes(routes []Route) {
	r.routes = append(r.routes, routes...)
}

// Build 构建底层mux路由器
// 按相反顺序注册，后注册的路由覆盖先注册的：
// 这样全局路由（如 /_cluster/health）不会被 /{index} 模板吞掉
func (r *Router) Build() *mux.Router {
	muxRouter := mux.NewRouter().StrictSlash(true)

	for i := len(r.routes) - 1; i >= 0; i-- {
		route := r.routes[i]
		handler := route.Handler
		for j := len(route.Middlewares) - 1; j >= 0; j-- {
			handler = route.Middlewares[j](handler)
		}
		muxRouter.HandleFunc(route.Path, handler).Methods(route.Method)
	}
	return muxRouter
}
