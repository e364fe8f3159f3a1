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
	"hash/fnv"
	"path/filepath"

	"github.com/lscgzwd/aggdb/aggregation"
)

// IndexConfig 索引配置
type IndexConfig struct {
	// Shards 分片数，文档按 ID 哈希路由
	Shards int `yaml:"shards"`
	// Store 各分片的文档存储配置；bolt 引擎下 Path 作为目录，
	// 每个分片一个数据文件
	Store *StoreConfig `yaml:"store"`
}

// DefaultIndexConfig 默认单分片内存索引
func DefaultIndexConfig() *IndexConfig {
	return &IndexConfig{Shards: 1, Store: DefaultStoreConfig()}
}

// Index 多分片文档索引
// 文档按 ID 哈希固定路由到一个分片，分片之间互不共享状态
type Index struct {
	name   string
	shards []*Shard
}

// NewIndex 按配置打开索引
func NewIndex(name string, config *IndexConfig) (*Index, error) {
	if config == nil {
		config = DefaultIndexConfig()
	}
	if config.Shards < 1 {
		return nil, fmt.Errorf("index [%s] needs at least one shard, got %d", name, config.Shards)
	}

	storeCfg := config.Store
	if storeCfg == nil {
		storeCfg = DefaultStoreConfig()
	}

	idx := &Index{name: name}
	for i := 0; i < config.Shards; i++ {
		shardCfg := *storeCfg
		if shardCfg.Engine == "bolt" {
			shardCfg.Path = filepath.Join(storeCfg.Path, name, fmt.Sprintf("shard-%d.bolt", i))
		}
		store, err := OpenStore(&shardCfg)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to open shard %d of index [%s]: %w", i, name, err)
		}
		shard, err := NewShard(store)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to load shard %d of index [%s]: %w", i, name, err)
		}
		idx.shards = append(idx.shards, shard)
	}
	return idx, nil
}

// Name 索引名称
func (idx *Index) Name() string {
	return idx.name
}

// NumShards 分片数
func (idx *Index) NumShards() int {
	return len(idx.shards)
}

// route 文档 ID 到分片的固定路由
func (idx *Index) route(id string) *Shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return idx.shards[h.Sum32()%uint32(len(idx.shards))]
}

// Put 写入文档
func (idx *Index) Put(id string, doc aggregation.Document) error {
	return idx.route(id).Put(id, doc)
}

// Delete 删除文档
func (idx *Index) Delete(id string) error {
	return idx.route(id).Delete(id)
}

// Get 按 ID 读取文档
func (idx *Index) Get(id string) (aggregation.Document, error) {
	return idx.route(id).Get(id)
}

// DocCount 全索引存活文档数
func (idx *Index) DocCount() uint64 {
	var total uint64
	for _, s := range idx.shards {
		total += s.DocCount()
	}
	return total
}

// Count 全索引匹配查询的文档数
func (idx *Index) Count(q Query) (uint64, error) {
	var total uint64
	for _, s := range idx.shards {
		matched, err := s.Search(q)
		if err != nil {
			return 0, err
		}
		total += matched.GetCardinality()
	}
	return total, nil
}

// Sources 把各分片包装为聚合引擎的文档来源
// 查询谓词在流创建时逐分片求值
func (idx *Index) Sources(q Query) []aggregation.ShardSource {
	sources := make([]aggregation.ShardSource, len(idx.shards))
	for i, s := range idx.shards {
		sources[i] = &shardSource{shard: s, query: q}
	}
	return sources
}

// Close 关闭全部分片
func (idx *Index) Close() error {
	var firstErr error
	for _, s := range idx.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// shardSource 绑定查询的分片流适配器
type shardSource struct {
	shard *Shard
	query Query
}

// Stream 实现 aggregation.ShardSource
func (ss *shardSource) Stream(ctx context.Context) (aggregation.DocumentStream, error) {
	return ss.shard.Stream(ctx, ss.query)
}
