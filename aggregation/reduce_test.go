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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceMergeSum(t *testing.T) {
	shard1 := &ShardResult{Buckets: []Bucket{
		{Key: StringKey("a"), DocCount: 3},
		{Key: StringKey("b"), DocCount: 2},
	}}
	shard2 := &ShardResult{Buckets: []Bucket{
		{Key: StringKey("b"), DocCount: 5},
		{Key: StringKey("c"), DocCount: 1},
	}}

	global, err := Reduce([]*ShardResult{shard1, shard2}, ReduceOptions{
		Order: OrderCountDesc,
		Size:  10,
	})
	require.NoError(t, err)

	assert.Equal(t, []Bucket{
		{Key: StringKey("b"), DocCount: 7},
		{Key: StringKey("a"), DocCount: 3},
		{Key: StringKey("c"), DocCount: 1},
	}, global.Buckets)
	assert.Zero(t, global.DocCountErrorUpperBound)
	assert.Zero(t, global.SumOtherDocCount)
}

func TestReduceTermsSizeAndMinDocCount(t *testing.T) {
	// 词频 a:4 b:3 c:2 d:1，按计数降序取前 3
	shard := &ShardResult{Buckets: []Bucket{
		{Key: StringKey("a"), DocCount: 4},
		{Key: StringKey("b"), DocCount: 3},
		{Key: StringKey("c"), DocCount: 2},
		{Key: StringKey("d"), DocCount: 1},
	}}

	global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
		Order: OrderCountDesc,
		Size:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, []Bucket{
		{Key: StringKey("a"), DocCount: 4},
		{Key: StringKey("b"), DocCount: 3},
		{Key: StringKey("c"), DocCount: 2},
	}, global.Buckets)
	assert.Equal(t, uint64(1), global.SumOtherDocCount)

	// minDocCount=3 过滤掉计数不足的桶，结果可以短于 size
	global, err = Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:       OrderCountDesc,
		MinDocCount: 3,
		Size:        3,
	})
	require.NoError(t, err)
	assert.Equal(t, []Bucket{
		{Key: StringKey("a"), DocCount: 4},
		{Key: StringKey("b"), DocCount: 3},
	}, global.Buckets)
}

func TestReduceHistogramEndToEnd(t *testing.T) {
	// 值 {2, 2, 7, 13}，interval=5，minDocCount=0
	iv, err := NewNumericInterval(5)
	require.NoError(t, err)

	ext, err := NewFieldExtractor("v", KeyTypeDouble, iv)
	require.NoError(t, err)

	docs := []Document{{"v": 2.0}, {"v": 2.0}, {"v": 7.0}, {"v": 13.0}}
	shard, err := AggregateShard(context.Background(), newSliceStream(docs), ext,
		ShardOptions{Order: OrderTermAsc, ShardSize: 100})
	require.NoError(t, err)

	global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:    OrderTermAsc,
		Size:     100,
		Interval: iv,
	})
	require.NoError(t, err)

	assert.Equal(t, []Bucket{
		{Key: DoubleKey(0), DocCount: 2},
		{Key: DoubleKey(5), DocCount: 1},
		{Key: DoubleKey(10), DocCount: 1},
	}, global.Buckets)
}

func TestReduceHistogramGapFill(t *testing.T) {
	iv, err := NewNumericInterval(5)
	require.NoError(t, err)

	shard := &ShardResult{Buckets: []Bucket{
		{Key: DoubleKey(0), DocCount: 1},
		{Key: DoubleKey(15), DocCount: 2},
	}}

	global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:    OrderTermAsc,
		Size:     100,
		Interval: iv,
	})
	require.NoError(t, err)

	// 观测范围内的空区间补零桶，不生成范围之外的桶
	assert.Equal(t, []Bucket{
		{Key: DoubleKey(0), DocCount: 1},
		{Key: DoubleKey(5), DocCount: 0},
		{Key: DoubleKey(10), DocCount: 0},
		{Key: DoubleKey(15), DocCount: 2},
	}, global.Buckets)

	// minDocCount >= 1 时不补零
	global, err = Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:       OrderTermAsc,
		MinDocCount: 1,
		Size:        100,
		Interval:    iv,
	})
	require.NoError(t, err)
	assert.Equal(t, []Bucket{
		{Key: DoubleKey(0), DocCount: 1},
		{Key: DoubleKey(15), DocCount: 2},
	}, global.Buckets)
}

func TestReduceFractionalIntervalGapFill(t *testing.T) {
	// 非整数宽度下补出的桶键必须与分桶时的键逐位一致
	iv, err := NewNumericInterval(0.1)
	require.NoError(t, err)

	ext, err := NewFieldExtractor("v", KeyTypeDouble, iv)
	require.NoError(t, err)

	docs := []Document{{"v": 0.05}, {"v": 0.75}}
	shard, err := AggregateShard(context.Background(), newSliceStream(docs), ext,
		ShardOptions{Order: OrderTermAsc, ShardSize: 100})
	require.NoError(t, err)

	global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:    OrderTermAsc,
		Size:     100,
		Interval: iv,
	})
	require.NoError(t, err)

	require.Len(t, global.Buckets, 8)
	assert.Equal(t, uint64(1), global.Buckets[0].DocCount)
	assert.Equal(t, uint64(1), global.Buckets[7].DocCount)
	for _, b := range global.Buckets[1:7] {
		assert.Zero(t, b.DocCount)
	}
}

func TestReduceCalendarGapFill(t *testing.T) {
	iv, err := NewCalendarInterval("day")
	require.NoError(t, err)

	day := func(d int) Key {
		return DateKey(time.Date(2014, 1, d, 0, 0, 0, 0, time.UTC).UnixMilli())
	}
	shard := &ShardResult{Buckets: []Bucket{
		{Key: day(1), DocCount: 2},
		{Key: day(4), DocCount: 1},
	}}

	global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
		Order:    OrderTermAsc,
		Size:     100,
		Interval: iv,
	})
	require.NoError(t, err)

	assert.Equal(t, []Bucket{
		{Key: day(1), DocCount: 2},
		{Key: day(2), DocCount: 0},
		{Key: day(3), DocCount: 0},
		{Key: day(4), DocCount: 1},
	}, global.Buckets)
}

func TestReduceErrorBound(t *testing.T) {
	// 分片 1 截断，末位桶计数 3：任何未返回的键在该分片最多被低估 3
	shard1 := &ShardResult{
		Buckets: []Bucket{
			{Key: StringKey("a"), DocCount: 10},
			{Key: StringKey("b"), DocCount: 3},
		},
		Truncated:     true,
		OtherDocCount: 4,
	}
	shard2 := &ShardResult{Buckets: []Bucket{
		{Key: StringKey("a"), DocCount: 1},
	}}

	global, err := Reduce([]*ShardResult{shard1, shard2}, ReduceOptions{
		Order: OrderCountDesc,
		Size:  10,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), global.DocCountErrorUpperBound)
	assert.Equal(t, uint64(4), global.SumOtherDocCount)
	assert.Equal(t, uint64(11), global.Buckets[0].DocCount)
}

func TestReduceErrorBoundOnlyForCountDesc(t *testing.T) {
	// 按键排序时截断与计数无关，末位桶计数不是低估上界
	shard := &ShardResult{
		Buckets: []Bucket{
			{Key: StringKey("a"), DocCount: 10},
			{Key: StringKey("b"), DocCount: 3},
		},
		Truncated:     true,
		OtherDocCount: 4,
	}

	for _, order := range []Order{OrderTermAsc, OrderTermDesc, OrderCountAsc} {
		global, err := Reduce([]*ShardResult{shard}, ReduceOptions{
			Order: order,
			Size:  10,
		})
		require.NoError(t, err)
		assert.Zero(t, global.DocCountErrorUpperBound)
		assert.Equal(t, uint64(4), global.SumOtherDocCount)
	}
}

func TestReduceSkipsNilResults(t *testing.T) {
	shard := &ShardResult{Buckets: []Bucket{{Key: StringKey("a"), DocCount: 2}}}
	global, err := Reduce([]*ShardResult{nil, shard, nil}, ReduceOptions{
		Order: OrderCountDesc,
		Size:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, []Bucket{{Key: StringKey("a"), DocCount: 2}}, global.Buckets)
}

func TestReduceInvalidSize(t *testing.T) {
	_, err := Reduce(nil, ReduceOptions{Order: OrderCountDesc, Size: 0})
	assert.ErrorIs(t, err, ErrInvalidSize)
}
