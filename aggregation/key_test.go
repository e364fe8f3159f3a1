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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want int
	}{
		{name: "string less", a: StringKey("a"), b: StringKey("b"), want: -1},
		{name: "string equal", a: StringKey("x"), b: StringKey("x"), want: 0},
		{name: "string greater", a: StringKey("z"), b: StringKey("y"), want: 1},
		{name: "long less", a: LongKey(-5), b: LongKey(3), want: -1},
		{name: "long equal", a: LongKey(7), b: LongKey(7), want: 0},
		{name: "double less", a: DoubleKey(1.5), b: DoubleKey(2.5), want: -1},
		{name: "double greater", a: DoubleKey(-1.0), b: DoubleKey(-2.0), want: 1},
		{name: "date less", a: DateKey(1000), b: DateKey(2000), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			// 反对称性
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestKeyAsMapKey(t *testing.T) {
	// Key 的所有字段均可比较，可直接作为 map 键
	counts := map[Key]uint64{}
	counts[StringKey("a")]++
	counts[StringKey("a")]++
	counts[LongKey(1)]++
	assert.Equal(t, uint64(2), counts[StringKey("a")])
	assert.Equal(t, uint64(1), counts[LongKey(1)])
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "hello", StringKey("hello").String())
	assert.Equal(t, "-42", LongKey(-42).String())
	assert.Equal(t, "2.5", DoubleKey(2.5).String())

	ts := time.Date(2014, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2014-01-05T00:00:00.000Z", DateKey(ts.UnixMilli()).String())
}

func TestParseKeyType(t *testing.T) {
	for input, want := range map[string]KeyType{
		"string":  KeyTypeString,
		"keyword": KeyTypeString,
		"long":    KeyTypeLong,
		"double":  KeyTypeDouble,
		"date":    KeyTypeDate,
	} {
		got, err := ParseKeyType(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKeyType("geo_point")
	assert.Error(t, err)
}
