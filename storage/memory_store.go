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
	"sync"

	"github.com/blevesearch/gtreap"
)

// MemoryStore 基于不可变 treap 的内存文档存储
// 写操作在锁内换根，读和遍历拿到根后无锁进行
type MemoryStore struct {
	mu   sync.Mutex
	root *gtreap.Treap
}

// recordCompare 按序号排序记录
func recordCompare(a, b interface{}) int {
	sa, sb := a.(*Record).Seq, b.(*Record).Seq
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// NewMemoryStore 创建内存文档存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{root: gtreap.NewTreap(recordCompare)}
}

// Put 写入或覆盖一条记录
func (ms *MemoryStore) Put(rec *Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	// treap 的优先级用序号打散即可，存储本身不依赖平衡度
	ms.root = ms.root.Upsert(rec, int(rec.Seq*2654435761))
	return nil
}

// GetBySeq 按序号读取记录
func (ms *MemoryStore) GetBySeq(seq uint64) (*Record, error) {
	ms.mu.Lock()
	root := ms.root
	ms.mu.Unlock()

	item := root.Get(&Record{Seq: seq})
	if item == nil {
		return nil, &RecordNotFoundError{Seq: seq}
	}
	return item.(*Record), nil
}

// Delete 按序号删除记录
func (ms *MemoryStore) Delete(seq uint64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.root = ms.root.Delete(&Record{Seq: seq})
	return nil
}

// Each 按序号升序遍历全部记录
func (ms *MemoryStore) Each(fn func(rec *Record) error) error {
	ms.mu.Lock()
	root := ms.root
	ms.mu.Unlock()

	var walkErr error
	root.VisitAscend(&Record{Seq: 0}, func(item gtreap.Item) bool {
		if err := fn(item.(*Record)); err != nil {
			walkErr = err
			return false
		}
		return true
	})
	return walkErr
}

// Close 实现 DocStore，内存存储无资源可释放
func (ms *MemoryStore) Close() error {
	return nil
}
