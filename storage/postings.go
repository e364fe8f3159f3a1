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
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

// postings 分片内的倒排表：字段 -> 词项 -> 序号位图
// 与文档写入同锁更新（见 Shard），自身不加锁
type postings struct {
	fields map[string]map[string]*roaring.Bitmap
}

func newPostings() *postings {
	return &postings{fields: make(map[string]map[string]*roaring.Bitmap)}
}

// add 把文档的全部字段值登记到倒排表
func (p *postings) add(seq uint32, doc map[string]interface{}) {
	for field, val := range doc {
		for _, term := range fieldTerms(val) {
			terms := p.fields[field]
			if terms == nil {
				terms = make(map[string]*roaring.Bitmap)
				p.fields[field] = terms
			}
			bm := terms[term]
			if bm == nil {
				bm = roaring.New()
				terms[term] = bm
			}
			bm.Add(seq)
		}
	}
}

// remove 把文档从倒排表中摘除
func (p *postings) remove(seq uint32, doc map[string]interface{}) {
	for field, val := range doc {
		terms := p.fields[field]
		if terms == nil {
			continue
		}
		for _, term := range fieldTerms(val) {
			if bm := terms[term]; bm != nil {
				bm.Remove(seq)
				if bm.IsEmpty() {
					delete(terms, term)
				}
			}
		}
	}
}

// get 返回词项的序号位图，调用方不得修改
func (p *postings) get(field, term string) *roaring.Bitmap {
	terms := p.fields[field]
	if terms == nil {
		return nil
	}
	return terms[term]
}

// fieldTerms 把字段值规整为倒排词项
// 多值字段展开，数值按字面形式编码，复合值不参与倒排
func fieldTerms(val interface{}) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case bool:
		return []string{strconv.FormatBool(v)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case []interface{}:
		var terms []string
		for _, item := range v {
			terms = append(terms, fieldTerms(item)...)
		}
		return terms
	default:
		return nil
	}
}
