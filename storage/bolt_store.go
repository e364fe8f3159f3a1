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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// docsBucket 文档记录桶：8 字节大端序号 -> 记录 JSON
var docsBucket = []byte("docs")

// BoltStore 基于 bbolt 的落盘文档存储
// 序号编码为大端字节序，游标遍历天然按序号升序
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore 打开（或创建）bolt 数据文件
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store requires a data file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(docsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create docs bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// seqKey 序号的存储键
func seqKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

// Put 写入或覆盖一条记录
func (bs *BoltStore) Put(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", rec.Seq, err)
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).Put(seqKey(rec.Seq), data)
	})
}

// GetBySeq 按序号读取记录
func (bs *BoltStore) GetBySeq(seq uint64) (*Record, error) {
	var rec *Record
	err := bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(docsBucket).Get(seqKey(seq))
		if data == nil {
			return &RecordNotFoundError{Seq: seq}
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete 按序号删除记录
func (bs *BoltStore) Delete(seq uint64) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).Delete(seqKey(seq))
	})
}

// Each 按序号升序遍历全部记录
func (bs *BoltStore) Each(fn func(rec *Record) error) error {
	return bs.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(docsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec := &Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("corrupt record at seq %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据文件
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
