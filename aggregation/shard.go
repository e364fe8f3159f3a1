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
	"container/heap"
	"context"
	"regexp"
)

// ShardResult 单个分片的有界聚合结果
// Buckets 已按请求的排序策略排好序，长度不超过 shardSize，
// 且一定是该分片在该排序下的真实 top-shardSize
type ShardResult struct {
	Buckets       []Bucket
	DocCount      uint64 // 消费的文档总数
	Failures      int    // 取键失败（被跳过）的文档数
	Truncated     bool   // 是否发生 shardSize 截断
	OtherDocCount uint64 // 被截断桶的计数之和
}

// ShardOptions 分片聚合参数
type ShardOptions struct {
	Order     Order
	ShardSize int
	// Include 只保留键匹配该模式的桶（仅字符串键）
	// 在计数完成后、截断之前应用，不影响逐文档计数
	Include *regexp.Regexp
}

// AggregateShard 消费一个分片的文档流，产出有界的桶列表
// 累加器归本次调用独占，分片之间无共享可变状态；
// ctx 取消时立即停止消费并丢弃已累积的状态
func AggregateShard(ctx context.Context, docs DocumentStream, extractor KeyExtractor, opts ShardOptions) (*ShardResult, error) {
	if opts.ShardSize < 1 {
		return nil, ErrInvalidShardSize
	}
	defer docs.Close()

	counts := make(map[Key]uint64)
	result := &ShardResult{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := docs.Next()
		if !ok {
			break
		}
		result.DocCount++

		keys, err := extractor.Extract(doc)
		if err != nil {
			// 单文档取键失败不中止请求
			result.Failures++
			continue
		}
		for _, k := range keys {
			counts[k]++
		}
	}

	result.Buckets = selectTop(counts, opts, result)
	return result, nil
}

// selectTop 从计数表中选出排序下的前 shardSize 个桶
// 基数超过 shardSize 时用有界堆做部分选择，
// 避免在基数无界时完整物化并全量排序
func selectTop(counts map[Key]uint64, opts ShardOptions, result *ShardResult) []Bucket {
	h := &bucketHeap{order: opts.Order}
	for k, c := range counts {
		if opts.Include != nil && !opts.Include.MatchString(k.Str) {
			continue
		}
		b := Bucket{Key: k, DocCount: c}
		if h.Len() < opts.ShardSize {
			heap.Push(h, b)
			continue
		}
		// 堆顶是当前保留集里排名最低的桶
		if opts.Order.Less(b, h.items[0]) {
			evicted := h.items[0]
			h.items[0] = b
			heap.Fix(h, 0)
			result.Truncated = true
			result.OtherDocCount += evicted.DocCount
		} else {
			result.Truncated = true
			result.OtherDocCount += b.DocCount
		}
	}

	buckets := make([]Bucket, h.Len())
	// 依次弹出排名最低的桶，得到正序结果
	for i := h.Len() - 1; i >= 0; i-- {
		buckets[i] = heap.Pop(h).(Bucket)
	}
	return buckets
}

// bucketHeap 有界选择用的小顶堆：堆顶是排序下排名最低的桶
type bucketHeap struct {
	items []Bucket
	order Order
}

func (h *bucketHeap) Len() int { return len(h.items) }

func (h *bucketHeap) Less(i, j int) bool {
	// 反转排序，让最差的桶浮到堆顶
	return h.order.Less(h.items[j], h.items[i])
}

func (h *bucketHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *bucketHeap) Push(x interface{}) {
	h.items = append(h.items, x.(Bucket))
}

func (h *bucketHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
