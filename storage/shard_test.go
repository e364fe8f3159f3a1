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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lscgzwd/aggdb/aggregation"
)

// newTestShard 为每种存储引擎创建分片
func newTestShard(t *testing.T, engine string) *Shard {
	t.Helper()
	cfg := &StoreConfig{Engine: engine}
	if engine == "bolt" {
		cfg.Path = filepath.Join(t.TempDir(), "shard.bolt")
	}
	store, err := OpenStore(cfg)
	require.NoError(t, err)
	shard, err := NewShard(store)
	require.NoError(t, err)
	t.Cleanup(func() { shard.Close() })
	return shard
}

func TestShardPutGetDelete(t *testing.T) {
	for _, engine := range []string{"memory", "bolt"} {
		t.Run(engine, func(t *testing.T) {
			shard := newTestShard(t, engine)

			require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "a"}))
			require.NoError(t, shard.Put("doc2", aggregation.Document{"category": "b"}))
			assert.Equal(t, uint64(2), shard.DocCount())

			doc, err := shard.Get("doc1")
			require.NoError(t, err)
			assert.Equal(t, "a", doc["category"])

			require.NoError(t, shard.Delete("doc1"))
			assert.Equal(t, uint64(1), shard.DocCount())
			_, err = shard.Get("doc1")
			var notFound *DocNotFoundError
			assert.ErrorAs(t, err, &notFound)

			// 删除不存在的文档报错
			assert.Error(t, shard.Delete("doc1"))
		})
	}
}

func TestShardOverwriteUpdatesPostings(t *testing.T) {
	shard := newTestShard(t, "memory")

	require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "a"}))
	require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "b"}))
	assert.Equal(t, uint64(1), shard.DocCount())

	// 旧值的倒排项必须被摘除
	matched, err := shard.Search(NewTermQuery("category", "a"))
	require.NoError(t, err)
	assert.True(t, matched.IsEmpty())

	matched, err = shard.Search(NewTermQuery("category", "b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), matched.GetCardinality())
}

func TestShardTermQuery(t *testing.T) {
	shard := newTestShard(t, "memory")

	require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "a", "n": 5.0}))
	require.NoError(t, shard.Put("doc2", aggregation.Document{"category": "a", "n": 7.0}))
	require.NoError(t, shard.Put("doc3", aggregation.Document{"category": "b", "tags": []interface{}{"x", "y"}}))

	matched, err := shard.Search(NewTermQuery("category", "a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), matched.GetCardinality())

	// 数值按字面形式匹配
	matched, err = shard.Search(NewTermQuery("n", 5.0))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), matched.GetCardinality())

	// 多值字段任一值命中即可
	matched, err = shard.Search(NewTermQuery("tags", "y"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), matched.GetCardinality())

	// 未知词项得到空位图而不是错误
	matched, err = shard.Search(NewTermQuery("category", "missing"))
	require.NoError(t, err)
	assert.True(t, matched.IsEmpty())
}

func TestShardStream(t *testing.T) {
	shard := newTestShard(t, "memory")
	require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "a"}))
	require.NoError(t, shard.Put("doc2", aggregation.Document{"category": "b"}))

	stream, err := shard.Stream(context.Background(), NewMatchAllQuery())
	require.NoError(t, err)
	defer stream.Close()

	var seen []string
	for {
		doc, ok := stream.Next()
		if !ok {
			break
		}
		seen = append(seen, doc["category"].(string))
	}
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestBoltShardRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.bolt")

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	shard, err := NewShard(store)
	require.NoError(t, err)

	require.NoError(t, shard.Put("doc1", aggregation.Document{"category": "a"}))
	require.NoError(t, shard.Put("doc2", aggregation.Document{"category": "b"}))
	require.NoError(t, shard.Delete("doc2"))
	require.NoError(t, shard.Close())

	// 重新打开后倒排表和存活位图从存储重建
	store, err = NewBoltStore(path)
	require.NoError(t, err)
	reopened, err := NewShard(store)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(1), reopened.DocCount())
	doc, err := reopened.Get("doc1")
	require.NoError(t, err)
	assert.Equal(t, "a", doc["category"])

	matched, err := reopened.Search(NewTermQuery("category", "a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), matched.GetCardinality())

	// 新写入分到未占用的序号
	require.NoError(t, reopened.Put("doc3", aggregation.Document{"category": "c"}))
	assert.Equal(t, uint64(2), reopened.DocCount())
}

func TestOpenStoreUnsupportedEngine(t *testing.T) {
	_, err := OpenStore(&StoreConfig{Engine: "levelfs"})
	var unsupported *UnsupportedEngineError
	assert.ErrorAs(t, err, &unsupported)
}
