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

package aggregation

import (
	"fmt"
	"sort"
)

// Bucket 聚合桶：键 + 文档计数
// 同一桶列表内键唯一
type Bucket struct {
	Key      Key
	DocCount uint64
}

// Order 桶排序策略
// 分片阶段和 reduce 阶段必须使用同一个 Order，
// 否则分片内截断与全局截断会互相矛盾
type Order int

const (
	// OrderTermAsc 按键升序
	OrderTermAsc Order = iota
	// OrderTermDesc 按键降序
	OrderTermDesc
	// OrderCountAsc 按计数升序，计数相同时按键升序
	OrderCountAsc
	// OrderCountDesc 按计数降序，计数相同时按键升序
	OrderCountDesc
)

// String 返回排序策略的字符串表示
func (o Order) String() string {
	switch o {
	case OrderTermAsc:
		return "_key:asc"
	case OrderTermDesc:
		return "_key:desc"
	case OrderCountAsc:
		return "_count:asc"
	case OrderCountDesc:
		return "_count:desc"
	default:
		return "unknown"
	}
}

// ParseOrder 解析 ES 风格的排序说明
// target 为 "_key"、"_term" 或 "_count"，direction 为 "asc" 或 "desc"
func ParseOrder(target, direction string) (Order, error) {
	asc := true
	switch direction {
	case "asc", "ASC", "":
		asc = true
	case "desc", "DESC":
		asc = false
	default:
		return 0, fmt.Errorf("unsupported order direction [%s]", direction)
	}

	switch target {
	case "_key", "_term":
		if asc {
			return OrderTermAsc, nil
		}
		return OrderTermDesc, nil
	case "_count":
		if asc {
			return OrderCountAsc, nil
		}
		return OrderCountDesc, nil
	default:
		return 0, fmt.Errorf("unsupported order target [%s]", target)
	}
}

// Less 判断 a 是否排在 b 之前
// 计数排序以键升序作为确定性 tie-break，
// 保证相同输入产生相同输出
func (o Order) Less(a, b Bucket) bool {
	switch o {
	case OrderTermAsc:
		return a.Key.Compare(b.Key) < 0
	case OrderTermDesc:
		return a.Key.Compare(b.Key) > 0
	case OrderCountAsc:
		if a.DocCount != b.DocCount {
			return a.DocCount < b.DocCount
		}
		return a.Key.Compare(b.Key) < 0
	case OrderCountDesc:
		if a.DocCount != b.DocCount {
			return a.DocCount > b.DocCount
		}
		return a.Key.Compare(b.Key) < 0
	default:
		return false
	}
}

// sortBuckets 按排序策略对桶列表原地排序
func sortBuckets(buckets []Bucket, order Order) {
	sort.Slice(buckets, func(i, j int) bool {
		return order.Less(buckets[i], buckets[j])
	})
}
