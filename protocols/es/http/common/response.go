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

// Package common 提供ES协议专用的HTTP响应和错误处理
package common

import (
	"encoding/json"
	"net/http"
)

// Response ES兼容的统一响应格式
type Response struct {
	Took     int64       `json:"took,omitempty"`      // 执行时间(毫秒)
	TimedOut *bool       `json:"timed_out,omitempty"` // 是否超时
	Shards   *ShardsInfo `json:"_shards,omitempty"`   // 分片信息

	// 索引操作响应
	Acknowledged bool   `json:"acknowledged,omitempty"` // 是否确认
	Index        string `json:"_index,omitempty"`       // 索引名
	Id           string `json:"_id,omitempty"`          // 文档ID
	Result       string `json:"result,omitempty"`       // 操作结果

	// 文档读取响应
	Found  *bool       `json:"found,omitempty"`   // 文档是否存在
	Source interface{} `json:"_source,omitempty"` // 文档内容

	// 计数响应
	Count *uint64 `json:"count,omitempty"` // 文档计数

	// 搜索响应
	Hits         *HitsInfo              `json:"hits,omitempty"`         // 命中结果
	Aggregations map[string]interface{} `json:"aggregations,omitempty"` // 聚合结果

	// 错误响应
	Error  *ErrorInfo `json:"error,omitempty"`  // 错误信息
	Status int        `json:"status,omitempty"` // 错误时的HTTP状态码
}

// ShardsInfo 分片信息
type ShardsInfo struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// HitsInfo 搜索命中信息
type HitsInfo struct {
	Total *TotalInfo    `json:"total"`
	Hits  []interface{} `json:"hits"`
}

// TotalInfo 总数信息
type TotalInfo struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// ErrorInfo 错误信息
type ErrorInfo struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Index  string `json:"index,omitempty"`
}

// ErrorResponse 创建错误响应
func ErrorResponse(errType, reason string) *Response {
	return &Response{
		Error: &ErrorInfo{Type: errType, Reason: reason},
	}
}

// WriteJSON 把响应按指定状态码写出
func (r *Response) WriteJSON(w http.ResponseWriter, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(r)
}

// WriteRawJSON 直接写出任意JSON负载
func WriteRawJSON(w http.ResponseWriter, statusCode int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(payload)
}

// BoolPtr bool 指针辅助函数，omitempty 下 false 也要输出时使用
func BoolPtr(v bool) *bool {
	return &v
}

// Uint64Ptr uint64 指针辅助函数
func Uint64Ptr(v uint64) *uint64 {
	return &v
}
