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

	"github.com/RoaringBitmap/roaring/v2"
)

// Query 分片上的查询谓词，产出匹配的序号位图
// match 在分片读锁内执行，返回的位图归调用方所有
type Query interface {
	match(s *Shard) (*roaring.Bitmap, error)
}

// MatchAllQuery 匹配全部存活文档
type MatchAllQuery struct{}

// NewMatchAllQuery 创建全匹配查询
func NewMatchAllQuery() *MatchAllQuery {
	return &MatchAllQuery{}
}

func (q *MatchAllQuery) match(s *Shard) (*roaring.Bitmap, error) {
	return s.liveBitmapLocked(), nil
}

// TermQuery 字段值精确匹配
type TermQuery struct {
	Field string
	Value interface{}
}

// NewTermQuery 创建词项查询
func NewTermQuery(field string, value interface{}) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

func (q *TermQuery) match(s *Shard) (*roaring.Bitmap, error) {
	terms := fieldTerms(q.Value)
	if len(terms) != 1 {
		return nil, fmt.Errorf("term query value for field [%s] must be a single scalar", q.Field)
	}
	bm := s.postings.get(q.Field, terms[0])
	if bm == nil {
		return roaring.New(), nil
	}
	// 倒排表只含存活序号，克隆即可定格快照
	return bm.Clone(), nil
}
