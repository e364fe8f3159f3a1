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
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/lscgzwd/aggdb/aggregation"
)

// Shard 索引的一个分片：文档存储 + 内存倒排表 + 存活位图
// 倒排表和存活位图在打开时从存储重建，与写入同锁更新
type Shard struct {
	mu       sync.RWMutex
	store    DocStore
	postings *postings
	live     *bitset.BitSet
	byID     map[string]uint64 // 文档 ID -> 当前序号
	nextSeq  uint64
}

// NewShard 打开分片并从存储重建内存结构
func NewShard(store DocStore) (*Shard, error) {
	s := &Shard{
		store:    store,
		postings: newPostings(),
		live:     bitset.New(1024),
		byID:     make(map[string]uint64),
		nextSeq:  1,
	}

	err := store.Each(func(rec *Record) error {
		s.byID[rec.ID] = rec.Seq
		s.live.Set(uint(rec.Seq))
		s.postings.add(uint32(rec.Seq), rec.Doc)
		if rec.Seq >= s.nextSeq {
			s.nextSeq = rec.Seq + 1
		}
		return nil
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to rebuild shard state: %w", err)
	}
	return s, nil
}

// Put 写入文档，已存在的 ID 覆盖旧版本
func (s *Shard) Put(id string, doc aggregation.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldSeq, ok := s.byID[id]; ok {
		if err := s.dropLocked(oldSeq); err != nil {
			return err
		}
	}

	seq := s.nextSeq
	s.nextSeq++
	rec := &Record{Seq: seq, ID: id, Doc: doc}
	if err := s.store.Put(rec); err != nil {
		return err
	}

	s.byID[id] = seq
	s.live.Set(uint(seq))
	s.postings.add(uint32(seq), doc)
	return nil
}

// Delete 删除文档
func (s *Shard) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.byID[id]
	if !ok {
		return &DocNotFoundError{ID: id}
	}
	if err := s.dropLocked(seq); err != nil {
		return err
	}
	delete(s.byID, id)
	return nil
}

// dropLocked 摘除一个序号对应的记录，须持写锁调用
func (s *Shard) dropLocked(seq uint64) error {
	rec, err := s.store.GetBySeq(seq)
	if err != nil {
		return err
	}
	if err := s.store.Delete(seq); err != nil {
		return err
	}
	s.live.Clear(uint(seq))
	s.postings.remove(uint32(seq), rec.Doc)
	return nil
}

// Get 按 ID 读取文档
func (s *Shard) Get(id string) (aggregation.Document, error) {
	s.mu.RLock()
	seq, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &DocNotFoundError{ID: id}
	}
	rec, err := s.store.GetBySeq(seq)
	if err != nil {
		return nil, err
	}
	return rec.Doc, nil
}

// DocCount 存活文档数
func (s *Shard) DocCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.live.Count())
}

// liveBitmap 存活序号的 roaring 位图快照，须持读锁调用
func (s *Shard) liveBitmapLocked() *roaring.Bitmap {
	bm := roaring.New()
	for i, ok := s.live.NextSet(0); ok; i, ok = s.live.NextSet(i + 1) {
		bm.Add(uint32(i))
	}
	return bm
}

// Search 按查询计算匹配的序号位图
func (s *Shard) Search(q Query) (*roaring.Bitmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return q.match(s)
}

// Stream 返回匹配文档的流，供聚合消费
// 位图在创建时定格，之后的写入不影响本次流
func (s *Shard) Stream(ctx context.Context, q Query) (aggregation.DocumentStream, error) {
	matched, err := s.Search(q)
	if err != nil {
		return nil, err
	}
	return &bitmapStream{store: s.store, it: matched.Iterator()}, nil
}

// Close 关闭分片
func (s *Shard) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Close()
}

// bitmapStream 按位图逐条读取记录的文档流
type bitmapStream struct {
	store DocStore
	it    roaring.IntPeekable
}

// Next 实现 aggregation.DocumentStream
// 位图定格后被并发删除的记录直接跳过
func (b *bitmapStream) Next() (aggregation.Document, bool) {
	for b.it.HasNext() {
		seq := uint64(b.it.Next())
		rec, err := b.store.GetBySeq(seq)
		if err != nil {
			continue
		}
		return rec.Doc, true
	}
	return nil, false
}

// Close 实现 aggregation.DocumentStream
func (b *bitmapStream) Close() error {
	return nil
}
