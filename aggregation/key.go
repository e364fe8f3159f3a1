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

// Package aggregation 实现分布式桶聚合引擎的核心逻辑
// 两阶段协议：每个分片独立聚合出有界的桶列表（shard 阶段），
// 协调节点合并所有分片结果、按序截断（reduce 阶段）
package aggregation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyType 桶键类型
// 一次聚合请求内的所有键类型一致，不允许混合
type KeyType int

const (
	// KeyTypeString UTF-8 字符串键
	KeyTypeString KeyType = iota
	// KeyTypeLong 有符号64位整数键
	KeyTypeLong
	// KeyTypeDouble IEEE-754 双精度浮点键
	KeyTypeDouble
	// KeyTypeDate 日期键（epoch 毫秒）
	KeyTypeDate
)

// String 返回键类型的字符串表示
func (t KeyType) String() string {
	switch t {
	case KeyTypeString:
		return "string"
	case KeyTypeLong:
		return "long"
	case KeyTypeDouble:
		return "double"
	case KeyTypeDate:
		return "date"
	default:
		return "unknown"
	}
}

// ParseKeyType 解析键类型名称（ES value_type 兼容）
func ParseKeyType(s string) (KeyType, error) {
	switch s {
	case "string", "keyword":
		return KeyTypeString, nil
	case "long", "integer":
		return KeyTypeLong, nil
	case "double", "float":
		return KeyTypeDouble, nil
	case "date":
		return KeyTypeDate, nil
	default:
		return 0, fmt.Errorf("unsupported key type [%s]", s)
	}
}

// Key 不可变的桶键
// 所有字段均可比较，因此 Key 可直接作为 map 键使用
type Key struct {
	Type KeyType
	Str  string  // Type == KeyTypeString 时有效
	Num  int64   // Type == KeyTypeLong 或 KeyTypeDate（epoch 毫秒）时有效
	Dbl  float64 // Type == KeyTypeDouble 时有效
}

// StringKey 构造字符串键
func StringKey(s string) Key {
	return Key{Type: KeyTypeString, Str: s}
}

// LongKey 构造整数键
func LongKey(v int64) Key {
	return Key{Type: KeyTypeLong, Num: v}
}

// DoubleKey 构造浮点键
func DoubleKey(v float64) Key {
	return Key{Type: KeyTypeDouble, Dbl: v}
}

// DateKey 构造日期键（epoch 毫秒）
func DateKey(epochMillis int64) Key {
	return Key{Type: KeyTypeDate, Num: epochMillis}
}

// Compare 比较两个同类型的键
// 返回负数、0、正数分别表示 k 小于、等于、大于 other
func (k Key) Compare(other Key) int {
	switch k.Type {
	case KeyTypeString:
		return strings.Compare(k.Str, other.Str)
	case KeyTypeLong, KeyTypeDate:
		switch {
		case k.Num < other.Num:
			return -1
		case k.Num > other.Num:
			return 1
		default:
			return 0
		}
	case KeyTypeDouble:
		switch {
		case k.Dbl < other.Dbl:
			return -1
		case k.Dbl > other.Dbl:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Value 返回键的原始值（用于响应序列化）
func (k Key) Value() interface{} {
	switch k.Type {
	case KeyTypeString:
		return k.Str
	case KeyTypeLong:
		return k.Num
	case KeyTypeDouble:
		return k.Dbl
	case KeyTypeDate:
		return k.Num
	default:
		return nil
	}
}

// Time 返回日期键对应的 UTC 时间
func (k Key) Time() time.Time {
	return time.UnixMilli(k.Num).UTC()
}

// String 返回键的可读表示
// 日期键渲染为 ES 风格的 ISO8601 毫秒格式
func (k Key) String() string {
	switch k.Type {
	case KeyTypeString:
		return k.Str
	case KeyTypeLong:
		return strconv.FormatInt(k.Num, 10)
	case KeyTypeDouble:
		return strconv.FormatFloat(k.Dbl, 'f', -1, 64)
	case KeyTypeDate:
		return k.Time().Format("2006-01-02T15:04:05.000Z")
	default:
		return ""
	}
}
