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
	"errors"
	"fmt"
	"regexp"
)

// 配置错误：在任何分片开始工作之前同步拒绝，不可重试
var (
	// ErrInvalidSize size 必须 ≥ 1
	ErrInvalidSize = errors.New("size must be at least 1")
	// ErrInvalidShardSize shardSize 必须 ≥ 1
	ErrInvalidShardSize = errors.New("shard size must be at least 1")
	// ErrShardSizeTooSmall shardSize 不能小于 size
	ErrShardSizeTooSmall = errors.New("shard size must not be smaller than size")
	// ErrNoKeySource 必须指定 field 或 script 之一
	ErrNoKeySource = errors.New("aggregation requires a field or a script")
	// ErrIncludeOnNonString include 模式只支持字符串键
	ErrIncludeOnNonString = errors.New("include pattern is only supported for string keys")
	// ErrIntervalOnNonDouble 数值区间只支持 double 键
	ErrIntervalOnNonDouble = errors.New("numeric histogram interval requires a double key type")
)

// Request 一次桶聚合请求
// 生命周期为单次请求，不跨请求保留任何状态
type Request struct {
	Name string // 聚合名称（响应中回显）

	// 取键来源：Field 与 Script 二选一
	Field        string
	Script       string
	ScriptParams map[string]interface{}

	KeyType     KeyType
	Order       Order
	Size        int
	ShardSize   int // 0 表示按分片数推导默认值
	MinDocCount uint64
	Include     string    // 可选的键匹配模式（正则，仅字符串键）
	Interval    *Interval // 直方图专用

	includeRe *regexp.Regexp
}

// Validate 校验请求配置
func (r *Request) Validate() error {
	if r.Size < 1 {
		return ErrInvalidSize
	}
	if r.ShardSize != 0 && r.ShardSize < r.Size {
		return ErrShardSizeTooSmall
	}
	if r.Field == "" && r.Script == "" {
		return ErrNoKeySource
	}
	if r.Field != "" && r.Script != "" {
		return fmt.Errorf("field and script are mutually exclusive")
	}
	if r.Include != "" {
		if r.KeyType != KeyTypeString {
			return ErrIncludeOnNonString
		}
		re, err := regexp.Compile("^(?:" + r.Include + ")$")
		if err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", r.Include, err)
		}
		r.includeRe = re
	}
	if r.Interval != nil {
		if r.Interval.Width <= 0 && r.Interval.Calendar == "" {
			return fmt.Errorf("histogram interval must be positive")
		}
		if r.Interval.Calendar != "" && r.KeyType != KeyTypeDate {
			return fmt.Errorf("calendar interval requires a date key type")
		}
		// 数值分桶读取 double 键；其他键类型会让所有文档坍缩进 0 号桶
		if r.Interval.Width > 0 && r.KeyType != KeyTypeDouble {
			return ErrIntervalOnNonDouble
		}
	}
	return nil
}

// effectiveShardSize 计算实际使用的 shardSize
// 未显式指定时沿用原系统的启发式：单分片取 size，
// 多分片取 size*1.5+10 以降低近似误差
func (r *Request) effectiveShardSize(numShards int) int {
	if r.ShardSize > 0 {
		return r.ShardSize
	}
	if numShards <= 1 {
		return r.Size
	}
	return r.Size + r.Size/2 + 10
}
