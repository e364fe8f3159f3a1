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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	tests := []struct {
		target    string
		direction string
		want      Order
		wantErr   bool
	}{
		{target: "_key", direction: "asc", want: OrderTermAsc},
		{target: "_key", direction: "desc", want: OrderTermDesc},
		{target: "_term", direction: "asc", want: OrderTermAsc},
		{target: "_count", direction: "asc", want: OrderCountAsc},
		{target: "_count", direction: "desc", want: OrderCountDesc},
		{target: "_count", direction: "", want: OrderCountAsc},
		{target: "_score", direction: "asc", wantErr: true},
		{target: "_key", direction: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target+"/"+tt.direction, func(t *testing.T) {
			got, err := ParseOrder(tt.target, tt.direction)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderLess(t *testing.T) {
	a2 := Bucket{Key: StringKey("a"), DocCount: 2}
	b2 := Bucket{Key: StringKey("b"), DocCount: 2}
	c5 := Bucket{Key: StringKey("c"), DocCount: 5}

	tests := []struct {
		name  string
		order Order
		x, y  Bucket
		want  bool
	}{
		{name: "term asc", order: OrderTermAsc, x: a2, y: b2, want: true},
		{name: "term desc", order: OrderTermDesc, x: a2, y: b2, want: false},
		{name: "count asc by count", order: OrderCountAsc, x: a2, y: c5, want: true},
		{name: "count desc by count", order: OrderCountDesc, x: c5, y: a2, want: true},
		// 计数相同时按键升序 tie-break
		{name: "count asc tie", order: OrderCountAsc, x: a2, y: b2, want: true},
		{name: "count desc tie", order: OrderCountDesc, x: a2, y: b2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.Less(tt.x, tt.y))
		})
	}
}

func TestOrderStrictWeakOrdering(t *testing.T) {
	buckets := []Bucket{
		{Key: StringKey("a"), DocCount: 2},
		{Key: StringKey("b"), DocCount: 2},
		{Key: StringKey("c"), DocCount: 5},
		{Key: StringKey("d"), DocCount: 1},
	}

	for _, order := range []Order{OrderTermAsc, OrderTermDesc, OrderCountAsc, OrderCountDesc} {
		for _, x := range buckets {
			// 非自反
			assert.False(t, order.Less(x, x), "%v must not be less than itself under %v", x, order)
			for _, y := range buckets {
				if x == y {
					continue
				}
				// 反对称：不同桶必有确定的先后
				assert.NotEqual(t, order.Less(x, y), order.Less(y, x),
					"order %v must totally order %v and %v", order, x, y)
			}
		}
	}
}
