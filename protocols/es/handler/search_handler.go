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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lscgzwd/aggdb/aggregation"
	"github.com/lscgzwd/aggdb/protocols/es/http/common"
	"github.com/lscgzwd/aggdb/protocols/es/index"
	"github.com/lscgzwd/aggdb/storage"
)

// SearchHandler 处理 _search 请求
type SearchHandler struct {
	indexes *index.Manager
	engine  *aggregation.Engine
}

// NewSearchHandler 创建搜索处理器
func NewSearchHandler(indexes *index.Manager, engine *aggregation.Engine) *SearchHandler {
	return &SearchHandler{indexes: indexes, engine: engine}
}

// searchRequest 搜索请求体
type searchRequest struct {
	Query map[string]interface{} `json:"query"`
	Aggs  map[string]interface{} `json:"aggs"`
	// aggregations 是 aggs 的完整写法，二者等价
	Aggregations map[string]interface{} `json:"aggregations"`
}

// Search 执行搜索与聚合
// POST/GET /{index}/_search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
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

	total, err := idx.Count(query)
	if err != nil {
		common.HandleError(w, err)
		return
	}

	aggs := req.Aggs
	if aggs == nil {
		aggs = req.Aggregations
	}
	parsed, err := parseAggregations(aggs)
	if err != nil {
		common.HandleError(w, common.NewParseError(err.Error()))
		return
	}

	resp := &common.Response{
		TimedOut: common.BoolPtr(false),
		Hits: &common.HitsInfo{
			Total: &common.TotalInfo{Value: int64(total), Relation: "eq"},
			Hits:  []interface{}{},
		},
		Shards: &common.ShardsInfo{
			Total:      idx.NumShards(),
			Successful: idx.NumShards(),
		},
	}

	if len(parsed) > 0 {
		resp.Aggregations = make(map[string]interface{}, len(parsed))
		sources := idx.Sources(query)
		for _, agg := range parsed {
			result, err := h.engine.Run(r.Context(), agg.Request, sources)
			if err != nil {
				h.writeAggregationError(w, agg.Request.Name, err)
				return
			}
			resp.Aggregations[agg.Request.Name] = formatAggregation(agg.Kind, result)
			if result.Partial {
				resp.Shards.Failed += result.FailedShards
				resp.Shards.Successful -= result.FailedShards
			}
		}
	}

	resp.Took = time.Since(start).Milliseconds()
	if err := resp.WriteJSON(w, http.StatusOK); err != nil {
		common.HandleError(w, err)
	}
}

// writeAggregationError 把聚合错误映射到合适的状态码
func (h *SearchHandler) writeAggregationError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, aggregation.ErrInvalidSize),
		errors.Is(err, aggregation.ErrInvalidShardSize),
		errors.Is(err, aggregation.ErrShardSizeTooSmall),
		errors.Is(err, aggregation.ErrNoKeySource),
		errors.Is(err, aggregation.ErrIncludeOnNonString):
		common.HandleError(w, common.NewBadRequestError(
			fmt.Sprintf("aggregation [%s]: %v", name, err)))
	default:
		common.HandleError(w, common.NewInternalServerError(
			fmt.Sprintf("aggregation [%s] failed: %v", name, err)))
	}
}

// decodeSearchRequest 解析请求体，空请求体按 match_all 处理
func decodeSearchRequest(body io.Reader) (*searchRequest, error) {
	req := &searchRequest{}
	err := json.NewDecoder(body).Decode(req)
	if err == io.EOF {
		return req, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid search body: %w", err)
	}
	return req, nil
}

// parseQuery 解析查询子句为存储层谓词
// 支持 match_all 和单字段 term，缺省为 match_all
func parseQuery(raw map[string]interface{}) (storage.Query, error) {
	if len(raw) == 0 {
		return storage.NewMatchAllQuery(), nil
	}
	if len(raw) > 1 {
		return nil, fmt.Errorf("query must contain a single clause")
	}

	if _, ok := raw["match_all"]; ok {
		return storage.NewMatchAllQuery(), nil
	}

	if rawTerm, ok := raw["term"]; ok {
		termMap, ok := rawTerm.(map[string]interface{})
		if !ok || len(termMap) != 1 {
			return nil, fmt.Errorf("term query must name exactly one field")
		}
		for field, rawValue := range termMap {
			// 支持 {"field": v} 和 {"field": {"value": v}} 两种形式
			if valueMap, ok := rawValue.(map[string]interface{}); ok {
				inner, exists := valueMap["value"]
				if !exists {
					return nil, fmt.Errorf("term query for field [%s] requires a value", field)
				}
				rawValue = inner
			}
			return storage.NewTermQuery(field, rawValue), nil
		}
	}

	for clause := range raw {
		return nil, fmt.Errorf("unsupported query clause [%s]", clause)
	}
	return storage.NewMatchAllQuery(), nil
}

// formatAggregation 把聚合结果转成ES响应形状
// terms 带精度元数据，直方图只有桶列表；日期桶额外带 key_as_string
func formatAggregation(kind string, result *aggregation.Result) map[string]interface{} {
	buckets := make([]map[string]interface{}, 0, len(result.Buckets))
	for _, b := range result.Buckets {
		bucket := map[string]interface{}{
			"key":       b.Key.Value(),
			"doc_count": b.DocCount,
		}
		if b.Key.Type == aggregation.KeyTypeDate {
			bucket["key_as_string"] = b.Key.String()
		}
		buckets = append(buckets, bucket)
	}

	formatted := map[string]interface{}{"buckets": buckets}
	if kind == aggTypeTerms {
		formatted["doc_count_error_upper_bound"] = result.DocCountErrorUpperBound
		formatted["sum_other_doc_count"] = result.SumOtherDocCount
	}
	return formatted
}
