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
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/lscgzwd/aggdb/script"
)

// Document 参与聚合的文档（字段名 -> 字段值）
type Document map[string]interface{}

// DocumentStream 单分片的文档流
// 已经过查询谓词过滤，只能消费一次
type DocumentStream interface {
	// Next 返回下一个文档，流耗尽时 ok 为 false
	Next() (doc Document, ok bool)
	// Close 释放流持有的资源
	Close() error
}

// KeyExtractor 从文档提取零个、一个或多个桶键
// 提取策略（直接读字段/脚本求值）在构造时确定一次，热路径无分支切换
type KeyExtractor interface {
	Extract(doc Document) ([]Key, error)
}

// Interval 直方图区间说明
// Width 与 Calendar 二选一：数值直方图按 floor(v/width)*width 分桶，
// 日历直方图按日历单位起点分桶（UTC）
type Interval struct {
	Width    float64
	Calendar string
}

// calendarUnits 支持的日历单位（含 ES 简写别名）
var calendarUnits = map[string]string{
	"year":    "year",
	"1y":      "year",
	"quarter": "quarter",
	"1q":      "quarter",
	"month":   "month",
	"1M":      "month",
	"week":    "week",
	"1w":      "week",
	"day":     "day",
	"1d":      "day",
	"hour":    "hour",
	"1h":      "hour",
	"minute":  "minute",
	"1m":      "minute",
}

// NewNumericInterval 构造数值区间
func NewNumericInterval(width float64) (*Interval, error) {
	if width <= 0 {
		return nil, fmt.Errorf("histogram interval must be positive, got %v", width)
	}
	return &Interval{Width: width}, nil
}

// NewCalendarInterval 构造日历区间
func NewCalendarInterval(unit string) (*Interval, error) {
	canonical, ok := calendarUnits[unit]
	if !ok {
		return nil, fmt.Errorf("unsupported calendar interval [%s]", unit)
	}
	return &Interval{Calendar: canonical}, nil
}

// Round 将键映射到所属区间的起点
func (iv *Interval) Round(k Key) Key {
	if iv.Calendar != "" {
		return DateKey(truncateCalendar(time.UnixMilli(k.Num).UTC(), iv.Calendar).UnixMilli())
	}
	return DoubleKey(math.Floor(k.Dbl/iv.Width) * iv.Width)
}

// Next 返回紧随 k 的下一个区间起点（用于补零桶）
func (iv *Interval) Next(k Key) Key {
	if iv.Calendar != "" {
		return DateKey(addCalendar(time.UnixMilli(k.Num).UTC(), iv.Calendar).UnixMilli())
	}
	return DoubleKey(k.Dbl + iv.Width)
}

// truncateCalendar 将时间截断到所在日历单位的起点（UTC，周从周一开始）
func truncateCalendar(t time.Time, unit string) time.Time {
	y, m, d := t.Date()
	switch unit {
	case "year":
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	case "quarter":
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case "week":
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "day":
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case "hour":
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	case "minute":
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// addCalendar 时间前进一个日历单位
func addCalendar(t time.Time, unit string) time.Time {
	switch unit {
	case "year":
		return t.AddDate(1, 0, 0)
	case "quarter":
		return t.AddDate(0, 3, 0)
	case "month":
		return t.AddDate(0, 1, 0)
	case "week":
		return t.AddDate(0, 0, 7)
	case "day":
		return t.AddDate(0, 0, 1)
	case "hour":
		return t.Add(time.Hour)
	case "minute":
		return t.Add(time.Minute)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// FieldExtractor 直接读取文档字段的提取器
// 缺失的字段不产生键，也不算错误
type FieldExtractor struct {
	field    string
	keyType  KeyType
	interval *Interval
}

// NewFieldExtractor 创建字段提取器
func NewFieldExtractor(field string, keyType KeyType, interval *Interval) (*FieldExtractor, error) {
	if field == "" {
		return nil, fmt.Errorf("field extractor requires a field name")
	}
	return &FieldExtractor{field: field, keyType: keyType, interval: interval}, nil
}

// Extract 实现 KeyExtractor
func (f *FieldExtractor) Extract(doc Document) ([]Key, error) {
	val, ok := doc[f.field]
	if !ok || val == nil {
		return nil, nil
	}
	return coerceKeys(val, f.keyType, f.interval)
}

// ScriptExtractor 对文档执行表达式并将结果转换为键的提取器
type ScriptExtractor struct {
	engine   *script.Engine
	compiled *script.Script
	keyType  KeyType
	interval *Interval
}

// NewScriptExtractor 创建脚本提取器
// 表达式在构造时解析一次，逐文档求值
func NewScriptExtractor(engine *script.Engine, source string, params map[string]interface{}, keyType KeyType, interval *Interval) (*ScriptExtractor, error) {
	if source == "" {
		return nil, fmt.Errorf("script extractor requires a script source")
	}
	compiled := script.NewScript(source, params)
	engine.Register(compiled)
	return &ScriptExtractor{
		engine:   engine,
		compiled: compiled,
		keyType:  keyType,
		interval: interval,
	}, nil
}

// Extract 实现 KeyExtractor
// 单个文档的求值失败向上返回，由分片聚合器计入失败统计后跳过
func (s *ScriptExtractor) Extract(doc Document) ([]Key, error) {
	result, err := s.engine.Execute(s.compiled, script.NewContext(doc, nil))
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	return coerceKeys(result, s.keyType, s.interval)
}

// coerceKeys 将字段值/脚本结果转换为目标类型的键序列
// 多值字段产生多个键；区间说明在此处应用
func coerceKeys(val interface{}, keyType KeyType, interval *Interval) ([]Key, error) {
	values, ok := val.([]interface{})
	if !ok {
		values = []interface{}{val}
	}
	if len(values) == 0 {
		return nil, nil
	}

	keys := make([]Key, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		k, err := coerceKey(v, keyType)
		if err != nil {
			return nil, err
		}
		if interval != nil {
			k = interval.Round(k)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// coerceKey 将单个值转换为目标类型的键
func coerceKey(v interface{}, keyType KeyType) (Key, error) {
	switch keyType {
	case KeyTypeString:
		switch val := v.(type) {
		case string:
			return StringKey(val), nil
		case float64:
			return StringKey(strconv.FormatFloat(val, 'f', -1, 64)), nil
		case int64:
			return StringKey(strconv.FormatInt(val, 10)), nil
		case int:
			return StringKey(strconv.Itoa(val)), nil
		case bool:
			return StringKey(strconv.FormatBool(val)), nil
		default:
			return Key{}, fmt.Errorf("cannot coerce %T to string key", v)
		}

	case KeyTypeLong:
		switch val := v.(type) {
		case float64:
			return LongKey(int64(val)), nil
		case int64:
			return LongKey(val), nil
		case int:
			return LongKey(int64(val)), nil
		case string:
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Key{}, fmt.Errorf("cannot coerce %q to long key: %w", val, err)
			}
			return LongKey(n), nil
		default:
			return Key{}, fmt.Errorf("cannot coerce %T to long key", v)
		}

	case KeyTypeDouble:
		switch val := v.(type) {
		case float64:
			return DoubleKey(val), nil
		case int64:
			return DoubleKey(float64(val)), nil
		case int:
			return DoubleKey(float64(val)), nil
		case string:
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Key{}, fmt.Errorf("cannot coerce %q to double key: %w", val, err)
			}
			return DoubleKey(n), nil
		default:
			return Key{}, fmt.Errorf("cannot coerce %T to double key", v)
		}

	case KeyTypeDate:
		switch val := v.(type) {
		case time.Time:
			return DateKey(val.UTC().UnixMilli()), nil
		case float64:
			return DateKey(int64(val)), nil
		case int64:
			return DateKey(val), nil
		case string:
			t, err := parseDateString(val)
			if err != nil {
				return Key{}, err
			}
			return DateKey(t.UnixMilli()), nil
		default:
			return Key{}, fmt.Errorf("cannot coerce %T to date key", v)
		}

	default:
		return Key{}, fmt.Errorf("unsupported key type %v", keyType)
	}
}

// dateFormats 接受的日期格式，按顺序尝试
var dateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDateString 解析日期字符串（UTC）
func parseDateString(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	// epoch 毫秒字符串
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse date value %q", s)
}
