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

import "math"

// ReduceOptions reduce 阶段参数
type ReduceOptions struct {
	Order       Order
	MinDocCount uint64
	Size        int
	// Interval 非空时按直方图语义补零桶（仅当 MinDocCount == 0）
	Interval *Interval
}

// GlobalResult 合并所有分片后的全局桶列表
type GlobalResult struct {
	Buckets []Bucket
	// DocCountErrorUpperBound 计数误差上界
	// 某个键可能没有进入部分分片的 top-shardSize，其全局计数最多被低估
	// 各截断分片末位桶计数之和；这是 shardSize 控制的文档化精度边界，不是错误
	DocCountErrorUpperBound uint64
	// SumOtherDocCount 未返回桶的计数之和（分片截断 + 全局截断）
	SumOtherDocCount uint64
}

// Reduce 合并分片结果：按键求和、排序、minDocCount 过滤、截断到 size
// 键未出现在某分片结果中时按 0 参与求和——该分片可能只是没让它进入
// shardSize 截断线，因此全局计数是近似值（见 DocCountErrorUpperBound）。
// 缺失的 ShardResult 绝不允许当作全零传入：部分失败由协调层决定整体
// 失败还是带标记返回，这里只处理确实到达的结果
func Reduce(results []*ShardResult, opts ReduceOptions) (*GlobalResult, error) {
	if opts.Size < 1 {
		return nil, ErrInvalidSize
	}

	global := &GlobalResult{}
	merged := make(map[Key]uint64)
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, b := range r.Buckets {
			merged[b.Key] += b.DocCount
		}
		global.SumOtherDocCount += r.OtherDocCount
		// 末位桶计数只在按计数降序时构成误差上界：截断线以下的键
		// 不会比末位桶计数更多。按键排序时截断不按计数发生，上界不成立
		if opts.Order == OrderCountDesc && r.Truncated && len(r.Buckets) > 0 {
			global.DocCountErrorUpperBound += r.Buckets[len(r.Buckets)-1].DocCount
		}
	}

	if opts.Interval != nil && opts.MinDocCount == 0 {
		fillGaps(merged, opts.Interval)
	}

	buckets := make([]Bucket, 0, len(merged))
	for k, c := range merged {
		if c < opts.MinDocCount {
			continue
		}
		buckets = append(buckets, Bucket{Key: k, DocCount: c})
	}
	sortBuckets(buckets, opts.Order)

	if len(buckets) > opts.Size {
		for _, b := range buckets[opts.Size:] {
			global.SumOtherDocCount += b.DocCount
		}
		buckets = buckets[:opts.Size]
	}
	global.Buckets = buckets
	return global, nil
}

// fillGaps 为观测范围 [min, max] 内缺失的区间补零计数桶
// 只在 minDocCount == 0 时调用；不会产生超出最大键的桶
func fillGaps(merged map[Key]uint64, interval *Interval) {
	if len(merged) == 0 {
		return
	}

	var minKey, maxKey Key
	first := true
	for k := range merged {
		if first {
			minKey, maxKey = k, k
			first = false
			continue
		}
		if k.Compare(minKey) < 0 {
			minKey = k
		}
		if k.Compare(maxKey) > 0 {
			maxKey = k
		}
	}

	if interval.Calendar != "" {
		for k := minKey; k.Compare(maxKey) < 0; k = interval.Next(k) {
			if _, ok := merged[k]; !ok {
				merged[k] = 0
			}
		}
		return
	}

	// 数值区间按整数下标迭代，避免浮点累加误差导致桶键对不上
	start := math.Round(minKey.Dbl / interval.Width)
	end := math.Round(maxKey.Dbl / interval.Width)
	for i := start; i < end; i++ {
		k := DoubleKey(i * interval.Width)
		if _, ok := merged[k]; !ok {
			merged[k] = 0
		}
	}
}
