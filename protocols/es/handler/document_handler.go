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
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lscgzwd/aggdb/aggregation"
	"github.com/lscgzwd/aggdb/protocols/es/http/common"
	"github.com/lscgzwd/aggdb/protocols/es/index"
	"github.com/lscgzwd/aggdb/storage"
)

// DocumentHandler 处理文档级读写请求
type DocumentHandler struct {
	indexes *index.Manager
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(indexes *index.Manager) *DocumentHandler {
	return &DocumentHandler{indexes: indexes}
}

// IndexDocument 写入文档
// PUT /{index}/_doc/{id}；索引不存在时自动创建
func (h *DocumentHandler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	indexName, docID := vars["index"], vars["id"]

	var doc aggregation.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		common.HandleError(w, common.NewParseError("invalid document body: "+err.Error()))
		return
	}

	idx, err := h.indexes.GetOrCreate(indexName)
	if err != nil {
		common.HandleError(w, err)
		return
	}

	_, getErr := idx.Get(docID)
	created := getErr != nil

	if err := idx.Put(docID, doc); err != nil {
		common.HandleError(w, err)
		return
	}

	result, status := "updated", http.StatusOK
	if created {
		result, status = "created", http.StatusCreated
	}
	resp := &common.Response{Index: indexName, Id: docID, Result: result}
	if err := resp.WriteJSON(w, status); err != nil {
		common.HandleError(w, err)
	}
}

// CreateDocument 写入自动分配ID的文档
// POST /{index}/_doc
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]

	var doc aggregation.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		common.HandleError(w, common.NewParseError("invalid document body: "+err.Error()))
		return
	}

	idx, err := h.indexes.GetOrCreate(indexName)
	if err != nil {
		common.HandleError(w, err)
		return
	}

	docID := uuid.NewString()
	if err := idx.Put(docID, doc); err != nil {
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{Index: indexName, Id: docID, Result: "created"}
	if err := resp.WriteJSON(w, http.StatusCreated); err != nil {
		common.HandleError(w, err)
	}
}

// GetDocument 读取文档
// GET /{index}/_doc/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	indexName, docID := vars["index"], vars["id"]

	idx, err := h.indexes.Get(indexName)
	if err != nil {
		common.HandleError(w, common.NewIndexNotFoundError(indexName))
		return
	}

	doc, err := idx.Get(docID)
	if err != nil {
		var notFound *storage.DocNotFoundError
		if errors.As(err, &notFound) {
			resp := &common.Response{Index: indexName, Id: docID, Found: common.BoolPtr(false)}
			resp.WriteJSON(w, http.StatusNotFound)
			return
		}
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{
		Index:  indexName,
		Id:     docID,
		Found:  common.BoolPtr(true),
		Source: doc,
	}
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}

// DeleteDocument 删除文档
// DELETE /{index}/_doc/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	indexName, docID := vars["index"], vars["id"]

	idx, err := h.indexes.Get(indexName)
	if err != nil {
		common.HandleError(w, common.NewIndexNotFoundError(indexName))
		return
	}

	if err := idx.Delete(docID); err != nil {
		var notFound *storage.DocNotFoundError
		if errors.As(err, &notFound) {
			resp := &common.Response{Index: indexName, Id: docID, Result: "not_found"}
			resp.WriteJSON(w, http.StatusNotFound)
			return
		}
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{Index: indexName, Id: docID, Result: "deleted"}
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}

// CountDocuments 统计匹配查询的文档数
// GET/POST /{index}/_count
func (h *DocumentHandler) CountDocuments(w http.ResponseWriter, r *http.Request) {
	indexName := mux.Vars(r)["index"]

	idx, err := h.indexes.Get(indexName)
	if err != nil {
		common.HandleError(w, common.NewIndexNotFoundError(indexName))
		return
	}

	req, err := decodeSearchRequest(r.Body)
	if err != nil {
		common.HandleError(w, common.NewParseError(err.Error()))
		return
	}
	query, err := parseQuery(req.Query)
	if err != nil {
		common.HandleError(w, common.NewParseError(err.Error()))
		return
	}

	count, err := idx.Count(query)
	if err != nil {
		common.HandleError(w, err)
		return
	}

	resp := &common.Response{
		Count: common.Uint64Ptr(count),
		Shards: &common.ShardsInfo{
			Total:      idx.NumShards(),
			Successful: idx.NumShards(),
		},
	}
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}
