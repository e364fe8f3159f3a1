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
	"fmt"

	"github.com/lscgzwd/aggdb/aggregation"
)

// 聚合类型常量
const (
	aggTypeTerms         = "terms"
	aggTypeHistogram     = "histogram"
	aggTypeDateHistogram = "date_histogram"
)

// ParsedAggregation 解析后的单个聚合
// Kind 决定响应格式：terms 带精度元数据，直方图不带
type ParsedAggregation struct {
	Kind    string
	Request *aggregation.Request
}

// parseAggregations 解析请求中的 aggs/aggregations 块
// 每个条目形如 {"聚合名": {"terms": {...}}}
func parseAggregations(aggs map[string]interface{}) ([]*ParsedAggregation, error) {
	parsed := make([]*ParsedAggregation, 0, len(aggs))
	for name, rawSpec := range aggs {
		spec, ok := rawSpec.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("aggregation [%s] must be an object", name)
		}

		var agg *ParsedAggregation
		var err error
		switch {
		case spec[aggTypeTerms] != nil:
			agg, err = parseTermsAggregation(name, spec[aggTypeTerms])
		case spec[aggTypeHistogram] != nil:
			agg, err = parseHistogramAggregation(name, spec[aggTypeHistogram])
		case spec[aggTypeDateHistogram] != nil:
			agg, err = parseDateHistogramAggregation(name, spec[aggTypeDateHistogram])
		default:
			err = fmt.Errorf("aggregation [%s] has no supported type", name)
		}
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, agg)
	}
	return parsed, nil
}

// parseTermsAggregation 解析 terms 聚合
// 支持 field/script、value_type、size、shard_size、min_doc_count、order、include
func parseTermsAggregation(name string, rawConfig interface{}) (*ParsedAggregation, error) {
	config, ok := rawConfig.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("terms aggregation [%s] must be an object", name)
	}

	req := &aggregation.Request{
		Name:    name,
		KeyType: aggregation.KeyTypeString,
		Order:   aggregation.OrderCountDesc,
		Size:    10,
	}

	if err := parseKeySource(name, config, req); err != nil {
		return nil, err
	}
	if vt, ok := config["value_type"].(string); ok {
		keyType, err := aggregation.ParseKeyType(vt)
		if err != nil {
			return nil, fmt.Errorf("terms aggregation [%s]: %w", name, err)
		}
		req.KeyType = keyType
	}
	if err := parseBucketLimits(name, config, req); err != nil {
		return nil, err
	}
	if include, ok := config["include"].(string); ok {
		req.Include = include
	}
	if rawOrder, exists := config["order"]; exists {
		order, err := parseOrderSpec(name, rawOrder)
		if err != nil {
			return nil, err
		}
		req.Order = order
	}

	return &ParsedAggregation{Kind: aggTypeTerms, Request: req}, nil
}

// parseHistogramAggregation 解析数值直方图聚合
func parseHistogramAggregation(name string, rawConfig interface{}) (*ParsedAggregation, error) {
	config, ok := rawConfig.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("histogram aggregation [%s] must be an object", name)
	}

	width, ok := config["interval"].(float64)
	if !ok {
		return nil, fmt.Errorf("histogram aggregation [%s] requires a numeric interval", name)
	}
	interval, err := aggregation.NewNumericInterval(width)
	if err != nil {
		return nil, fmt.Errorf("histogram aggregation [%s]: %w", name, err)
	}

	req := &aggregation.Request{
		Name:     name,
		KeyType:  aggregation.KeyTypeDouble,
		Order:    aggregation.OrderTermAsc,
		Size:     10000,
		Interval: interval,
	}
	if err := parseKeySource(name, config, req); err != nil {
		return nil, err
	}
	if err := parseBucketLimits(name, config, req); err != nil {
		return nil, err
	}

	return &ParsedAggregation{Kind: aggTypeHistogram, Request: req}, nil
}

// parseDateHistogramAggregation 解析日历直方图聚合
func parseDateHistogramAggregation(name string, rawConfig interface{}) (*ParsedAggregation, error) {
	config, ok := rawConfig.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("date_histogram aggregation [%s] must be an object", name)
	}

	unit, ok := config["calendar_interval"].(string)
	if !ok {
		// 兼容旧版请求里的 interval 字段
		unit, ok = config["interval"].(string)
	}
	if !ok {
		return nil, fmt.Errorf("date_histogram aggregation [%s] requires a calendar_interval", name)
	}
	interval, err := aggregation.NewCalendarInterval(unit)
	if err != nil {
		return nil, fmt.Errorf("date_histogram aggregation [%s]: %w", name, err)
	}

	req := &aggregation.Request{
		Name:     name,
		KeyType:  aggregation.KeyTypeDate,
		Order:    aggregation.OrderTermAsc,
		Size:     10000,
		Interval: interval,
	}
	if err := parseKeySource(name, config, req); err != nil {
		return nil, err
	}
	if err := parseBucketLimits(name, config, req); err != nil {
		return nil, err
	}

	return &ParsedAggregation{Kind: aggTypeDateHistogram, Request: req}, nil
}

// parseKeySource 解析 field/script 取键来源
func parseKeySource(name string, config map[string]interface{}, req *aggregation.Request) error {
	if field, ok := config["field"].(string); ok {
		req.Field = field
	}
	if rawScript, exists := config["script"]; exists {
		switch script := rawScript.(type) {
		case string:
			req.Script = script
		case map[string]interface{}:
			source, ok := script["source"].(string)
			if !ok {
				source, ok = script["inline"].(string)
			}
			if !ok {
				return fmt.Errorf("aggregation [%s] script requires a source", name)
			}
			req.Script = source
			if params, ok := script["params"].(map[string]interface{}); ok {
				req.ScriptParams = params
			}
		default:
			return fmt.Errorf("aggregation [%s] has an invalid script", name)
		}
	}
	if req.Field == "" && req.Script == "" {
		return fmt.Errorf("aggregation [%s] requires a field or a script", name)
	}
	return nil
}

// parseBucketLimits 解析 size/shard_size/min_doc_count
func parseBucketLimits(name string, config map[string]interface{}, req *aggregation.Request) error {
	if size, ok := config["size"].(float64); ok {
		req.Size = int(size)
	}
	if shardSize, ok := config["shard_size"].(float64); ok {
		req.ShardSize = int(shardSize)
	}
	if minDocCount, ok := config["min_doc_count"].(float64); ok {
		if minDocCount < 0 {
			return fmt.Errorf("aggregation [%s] min_doc_count cannot be negative", name)
		}
		req.MinDocCount = uint64(minDocCount)
	}
	return nil
}

// parseOrderSpec 解析 order 子句：{"_count": "desc"} 或 {"_key": "asc"}
func parseOrderSpec(name string, rawOrder interface{}) (aggregation.Order, error) {
	orderMap, ok := rawOrder.(map[string]interface{})
	if !ok || len(orderMap) != 1 {
		return 0, fmt.Errorf("aggregation [%s] order must be an object with one entry", name)
	}
	for target, rawDirection := range orderMap {
		direction, ok := rawDirection.(string)
		if !ok {
			return 0, fmt.Errorf("aggregation [%s] order direction must be a string", name)
		}
		order, err := aggregation.ParseOrder(target, direction)
		if err != nil {
			return 0, fmt.Errorf("aggregation [%s]: %w", name, err)
		}
		return order, nil
	}
	return 0, fmt.Errorf("aggregation [%s] order must not be empty", name)
}
