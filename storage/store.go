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
	"fmt"

	"github.com/lscgzwd/aggdb/aggregation"
)

// Record 分片内的一条文档记录
// Seq 是分片内单调递增的序号，倒排表和存活位图都以它为下标
type Record struct {
	Seq uint64               `json:"seq"`
	ID  string               `json:"id"`
	Doc aggregation.Document `json:"doc"`
}

// DocStore 单分片的文档持久化接口
// 只负责按序号存取记录，倒排表和存活位图由上层在内存中维护
type DocStore interface {
	// Put 写入或覆盖一条记录
	Put(rec *Record) error
	// GetBySeq 按序号读取记录
	GetBySeq(seq uint64) (*Record, error)
	// Delete 按序号删除记录
	Delete(seq uint64) error
	// Each 按序号升序遍历全部记录，fn 返回错误时中止
	Each(fn func(rec *Record) error) error
	// Close 关闭存储
	Close() error
}

// 可用的存储引擎
const (
	// EngineBolt 基于bbolt的落盘存储
	EngineBolt = "bolt"
	// EngineMemory 基于gtreap的纯内存存储
	EngineMemory = "memory"
)

// StoreConfig 文档存储配置
type StoreConfig struct {
	// Engine 存储引擎："bolt" 落盘，"memory" 纯内存
	Engine string `yaml:"engine"`
	// Path bolt 引擎的数据文件路径
	Path string `yaml:"path"`
}

// DefaultStoreConfig 默认使用内存引擎
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{Engine: EngineMemory}
}

// UnsupportedEngineError 不支持的存储引擎
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported storage engine: %s", e.Engine)
}

// RecordNotFoundError 记录不存在
type RecordNotFoundError struct {
	Seq uint64
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record with seq %d not found", e.Seq)
}

// DocNotFoundError 文档不存在
type DocNotFoundError struct {
	ID string
}

func (e *DocNotFoundError) Error() string {
	return fmt.Sprintf("document [%s] not found", e.ID)
}

// OpenStore 按配置打开文档存储
func OpenStore(config *StoreConfig) (DocStore, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}
	switch config.Engine {
	case EngineBolt:
		return NewBoltStore(config.Path)
	case EngineMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, &UnsupportedEngineError{Engine: config.Engine}
	}
}
