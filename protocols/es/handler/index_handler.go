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

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lscgzwd/aggdb/protocols/es/http/common"
	"github.com/lscgzwd/aggdb/protocols/es/index"
)

// IndexHandler 处理索引级管理请求
type IndexHandler struct {
	indexes *index.Manager
}

// NewIndexHandler 创建索引处理器
func NewIndexHandler(indexes *index.Manager) *IndexHandler {
	return &IndexHandler{indexes: indexes}
}

// createIndexRequest 建索引请求体
type createIndexRequest struct {
	Settings struct {
		NumberOfShards int `json:"number_of_shards"`
	} `json:"settings"`
}

// CreateIndex 创建索引
// PUT /{index}，settings.number_of_shards 可选
func (h *IndexHandler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]

	req := &createIndexRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && err != io.EOF {
		common.HandleError(w, common.NewParseError("invalid index settings: "+err.Error()))
		return
	}

	if _, err := h.indexes.Create(indexName, req.Settings.NumberOfShards); err != nil {
		var dup *index.AlreadyExistsError
		var badName *index.InvalidNameError
		if errors.As(err, &dup) || errors.As(err, &badName) {
			common.HandleError(w, common.NewBadRequestError(err.Error()))
			return
		}
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{Acknowledged: true, Index: indexName}
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}

// DeleteIndex 删除索引
// DELETE /{index}
func (h *IndexHandler) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]

	if err := h.indexes.Delete(indexName); err != nil {
		var notFound *index.NotFoundError
		if errors.As(err, &notFound) {
			common.HandleError(w, common.NewIndexNotFoundError(indexName))
			return
		}
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{Acknowledged: true}
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}

// GetIndex 查看索引概况
// GET /{index}
func (h *IndexHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]

	idx, err := h.indexes.Get(indexName)
	if err != nil {
		common.HandleError(w, common.NewIndexNotFoundError(indexName))
		return
	}

	payload := map[string]interface{}{
		indexName: map[string]interface{}{
			"settings": map[string]interface{}{
				"index": map[string]interface{}{
					"number_of_shards": idx.NumShards(),
				},
			},
			"docs": map[string]interface{}{
				"count": idx.DocCount(),
			},
		},
	}
	if err := common.WriteRawJSON(w, http.StatusOK, payload); err != nil {
		common.HandleError(w, err)
	}
}

// IndexExists 检查索引是否存在
// HEAD /{index}
func (h *IndexHandler) IndexExists(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]
	if _, err := h.indexes.Get(indexName); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
