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
	"testing"
	"time"

	"github.com/lscgzwd/aggdb/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldExtractor(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		keyType KeyType
		doc     Document
		want    []Key
		wantErr bool
	}{
		{
			name: "string field", field: "category", keyType: KeyTypeString,
			doc:  Document{"category": "electronics"},
			want: []Key{StringKey("electronics")},
		},
		{
			name: "missing field yields no key", field: "category", keyType: KeyTypeString,
			doc:  Document{"other": "x"},
			want: nil,
		},
		{
			name: "nil value yields no key", field: "category", keyType: KeyTypeString,
			doc:  Document{"category": nil},
			want: nil,
		},
		{
			name: "multi value field", field: "tags", keyType: KeyTypeString,
			doc:  Document{"tags": []interface{}{"a", "b"}},
			want: []Key{StringKey("a"), StringKey("b")},
		},
		{
			name: "long from json number", field: "n", keyType: KeyTypeLong,
			doc:  Document{"n": 42.0},
			want: []Key{LongKey(42)},
		},
		{
			name: "double", field: "price", keyType: KeyTypeDouble,
			doc:  Document{"price": 9.5},
			want: []Key{DoubleKey(9.5)},
		},
		{
			name: "date from string", field: "ts", keyType: KeyTypeDate,
			doc:  Document{"ts": "2014-01-05"},
			want: []Key{DateKey(time.Date(2014, 1, 5, 0, 0, 0, 0, time.UTC).UnixMilli())},
		},
		{
			name: "coercion failure", field: "n", keyType: KeyTypeLong,
			doc:     Document{"n": map[string]interface{}{"nested": 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := NewFieldExtractor(tt.field, tt.keyType, nil)
			require.NoError(t, err)
			keys, err := ext.Extract(tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestFieldExtractorRequiresField(t *testing.T) {
	_, err := NewFieldExtractor("", KeyTypeString, nil)
	assert.Error(t, err)
}

func TestScriptExtractor(t *testing.T) {
	engine := script.NewEngine()

	ext, err := NewScriptExtractor(engine, "doc['s'].values", nil, KeyTypeString, nil)
	require.NoError(t, err)

	keys, err := ext.Extract(Document{"s": []interface{}{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, []Key{StringKey("x"), StringKey("y")}, keys)

	// 缺失字段的 values 为空，不产生键
	keys, err = ext.Extract(Document{})
	require.NoError(t, err)
	assert.Empty(t, keys)

	// 派生值表达式
	derived, err := NewScriptExtractor(engine, "doc['n'].value * 2", nil, KeyTypeLong, nil)
	require.NoError(t, err)
	keys, err = derived.Extract(Document{"n": 21.0})
	require.NoError(t, err)
	assert.Equal(t, []Key{LongKey(42)}, keys)

	// 表达式求值失败向上返回，由分片聚合器计入失败数
	bad, err := NewScriptExtractor(engine, "doc['n'].value / 0", nil, KeyTypeLong, nil)
	require.NoError(t, err)
	_, err = bad.Extract(Document{"n": 1.0})
	assert.Error(t, err)
}

func TestNumericIntervalRounding(t *testing.T) {
	iv, err := NewNumericInterval(5)
	require.NoError(t, err)

	tests := []struct {
		value float64
		want  float64
	}{
		{value: 0, want: 0},
		{value: 2, want: 0},
		{value: 5, want: 5},
		{value: 7, want: 5},
		{value: 13, want: 10},
		{value: -1, want: -5},
		{value: -5, want: -5},
		{value: -6, want: -10},
	}
	for _, tt := range tests {
		got := iv.Round(DoubleKey(tt.value))
		assert.Equal(t, DoubleKey(tt.want), got, "value %v", tt.value)
	}

	_, err = NewNumericInterval(0)
	assert.Error(t, err)
	_, err = NewNumericInterval(-1)
	assert.Error(t, err)
}

func TestCalendarIntervalRounding(t *testing.T) {
	day, err := NewCalendarInterval("day")
	require.NoError(t, err)

	in := time.Date(2014, 1, 5, 13, 45, 12, 0, time.UTC)
	got := day.Round(DateKey(in.UnixMilli()))
	assert.Equal(t, DateKey(time.Date(2014, 1, 5, 0, 0, 0, 0, time.UTC).UnixMilli()), got)

	month, err := NewCalendarInterval("month")
	require.NoError(t, err)
	got = month.Round(DateKey(in.UnixMilli()))
	assert.Equal(t, DateKey(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), got)

	// 周从周一开始：2014-01-05 是周日，归到 2013-12-30
	week, err := NewCalendarInterval("week")
	require.NoError(t, err)
	got = week.Round(DateKey(in.UnixMilli()))
	assert.Equal(t, DateKey(time.Date(2013, 12, 30, 0, 0, 0, 0, time.UTC).UnixMilli()), got)

	// ES 简写别名
	_, err = NewCalendarInterval("1d")
	assert.NoError(t, err)
	_, err = NewCalendarInterval("fortnight")
	assert.Error(t, err)
}

func TestExtractorAppliesInterval(t *testing.T) {
	iv, err := NewNumericInterval(5)
	require.NoError(t, err)

	ext, err := NewFieldExtractor("v", KeyTypeDouble, iv)
	require.NoError(t, err)

	keys, err := ext.Extract(Document{"v": 13.0})
	require.NoError(t, err)
	assert.Equal(t, []Key{DoubleKey(10)}, keys)
}
