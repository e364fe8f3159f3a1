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

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lscgzwd/aggdb/aggregation"
)

func TestIndexRouting(t *testing.T) {
	idx, err := NewIndex("products", &IndexConfig{Shards: 4, Store: DefaultStoreConfig()})
	require.NoError(t, err)
	defer idx.Close()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc%03d", i)
		require.NoError(t, idx.Put(id, aggregation.Document{"n": float64(i)}))
	}
	assert.Equal(t, uint64(100), idx.DocCount())

	// 同一 ID 始终路由到同一分片：覆盖写不产生重复文档
	require.NoError(t, idx.Put("doc000", aggregation.Document{"n": -1.0}))
	assert.Equal(t, uint64(100), idx.DocCount())

	doc, err := idx.Get("doc000")
	require.NoError(t, err)
	assert.Equal(t, -1.0, doc["n"])

	require.NoError(t, idx.Delete("doc001"))
	assert.Equal(t, uint64(99), idx.DocCount())
}

func TestIndexInvalidShards(t *testing.T) {
	_, err := NewIndex("bad", &IndexConfig{Shards: 0})
	assert.Error(t, err)
}

func TestIndexAggregationEndToEnd(t *testing.T) {
	idx, err := NewIndex("sales", &IndexConfig{Shards: 3, Store: DefaultStoreConfig()})
	require.NoError(t, err)
	defer idx.Close()

	freqs := map[string]int{"a": 4, "b": 3, "c": 2, "d": 1}
	n := 0
	for term, freq := range freqs {
		for i := 0; i < freq; i++ {
			id := fmt.Sprintf("doc%03d", n)
			n++
			require.NoError(t, idx.Put(id, aggregation.Document{"category": term, "region": "east"}))
		}
	}
	// 不同 region 的文档不应进入过滤后的聚合
	require.NoError(t, idx.Put("west1", aggregation.Document{"category": "a", "region": "west"}))

	engine := aggregation.NewEngine()
	result, err := engine.Run(context.Background(), &aggregation.Request{
		Name:    "categories",
		Field:   "category",
		KeyType: aggregation.KeyTypeString,
		Order:   aggregation.OrderCountDesc,
		Size:    3,
	}, idx.Sources(NewTermQuery("region", "east")))
	require.NoError(t, err)

	assert.Equal(t, []aggregation.Bucket{
		{Key: aggregation.StringKey("a"), DocCount: 4},
		{Key: aggregation.StringKey("b"), DocCount: 3},
		{Key: aggregation.StringKey("c"), DocCount: 2},
	}, result.Buckets)
	assert.Equal(t, uint64(1), result.SumOtherDocCount)
}
