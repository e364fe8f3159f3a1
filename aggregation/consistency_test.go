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
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testCorpus 随机生成的多字段文档集
// 同一份文档同时带字符串、数值和日期字段，供各类聚合复用
type testCorpus struct {
	docs        []Document
	cardinality int
}

// buildCorpus 生成 8~30 个去重词项、每个词项 1~20 个文档的语料
// 一半词项包含字母 a，供 include 模式筛选
func buildCorpus(rng *rand.Rand) *testCorpus {
	cardinality := 8 + rng.Intn(23)
	base := time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)

	var docs []Document
	for i := 0; i < cardinality; i++ {
		suffix := "z"
		if rng.Intn(2) == 0 {
			suffix = "a"
		}
		term := fmt.Sprintf("v%02d%s", i, suffix)
		freq := 1 + rng.Intn(20)
		for j := 0; j < freq; j++ {
			docs = append(docs, Document{
				"s":    term,
				"l":    float64(i),
				"d":    float64(i) + 0.5,
				"date": base.AddDate(0, 0, i).Format("2006-01-02"),
			})
		}
	}
	rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
	return &testCorpus{docs: docs, cardinality: cardinality}
}

// filterBuckets 参照过滤：按最终顺序保留计数达标的桶，截到 size
func filterBuckets(buckets []Bucket, minDocCount uint64, size int) []Bucket {
	out := make([]Bucket, 0, size)
	for _, b := range buckets {
		if b.DocCount < minDocCount {
			continue
		}
		out = append(out, b)
		if len(out) == size {
			break
		}
	}
	return out
}

// TestTermsMinDocCountConsistency 提高 minDocCount 只能从结果序列中
// 删除计数不足的桶，不得改变保留桶的相对顺序或计数
func TestTermsMinDocCountConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	corpus := buildCorpus(rng)
	shards := splitShards(corpus.docs, 3)
	engine := NewEngine()

	orders := []Order{OrderTermAsc, OrderTermDesc, OrderCountAsc, OrderCountDesc}
	sources := []struct {
		name   string
		field  string
		script string
	}{
		{name: "field", field: "s"},
		{name: "script", script: "doc['s'].value"},
	}
	includes := []string{"", ".*a.*"}

	bigSize := corpus.cardinality + 10
	for _, order := range orders {
		for _, src := range sources {
			for _, include := range includes {
				name := fmt.Sprintf("%s/%s/include=%q", order, src.name, include)
				t.Run(name, func(t *testing.T) {
					superset, err := engine.Run(context.Background(), &Request{
						Name:      "terms",
						Field:     src.field,
						Script:    src.script,
						KeyType:   KeyTypeString,
						Order:     order,
						Size:      bigSize,
						ShardSize: bigSize,
						Include:   include,
					}, shards)
					require.NoError(t, err)
					if include == "" {
						require.Len(t, superset.Buckets, corpus.cardinality)
					}

					for m := uint64(0); m <= 20; m++ {
						size := 1 + rng.Intn(corpus.cardinality+2)
						subset, err := engine.Run(context.Background(), &Request{
							Name:        "terms",
							Field:       src.field,
							Script:      src.script,
							KeyType:     KeyTypeString,
							Order:       order,
							Size:        size,
							ShardSize:   bigSize,
							MinDocCount: m,
							Include:     include,
						}, shards)
						require.NoError(t, err)
						require.Equal(t, filterBuckets(superset.Buckets, m, size), subset.Buckets,
							"minDocCount=%d size=%d", m, size)
					}
				})
			}
		}
	}
}

// TestHistogramMinDocCountConsistency 直方图版本：minDocCount 从 0 升到
// 正数时补零桶消失，其余桶序列保持一致
func TestHistogramMinDocCountConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	corpus := buildCorpus(rng)
	shards := splitShards(corpus.docs, 3)
	engine := NewEngine()

	iv, err := NewNumericInterval(float64(1 + rng.Intn(3)))
	require.NoError(t, err)

	bigSize := corpus.cardinality + 10
	superset, err := engine.Run(context.Background(), &Request{
		Name:      "histo",
		Field:     "d",
		KeyType:   KeyTypeDouble,
		Order:     OrderTermAsc,
		Size:      bigSize,
		ShardSize: bigSize,
		Interval:  iv,
	}, shards)
	require.NoError(t, err)

	for m := uint64(0); m <= 50; m++ {
		subset, err := engine.Run(context.Background(), &Request{
			Name:        "histo",
			Field:       "d",
			KeyType:     KeyTypeDouble,
			Order:       OrderTermAsc,
			Size:        bigSize,
			ShardSize:   bigSize,
			MinDocCount: m,
			Interval:    iv,
		}, shards)
		require.NoError(t, err)
		require.Equal(t, filterBuckets(superset.Buckets, m, bigSize), subset.Buckets,
			"minDocCount=%d", m)
	}
}

// TestDateHistogramMinDocCountConsistency 日历直方图版本
func TestDateHistogramMinDocCountConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	corpus := buildCorpus(rng)
	shards := splitShards(corpus.docs, 3)
	engine := NewEngine()

	iv, err := NewCalendarInterval("day")
	require.NoError(t, err)

	bigSize := corpus.cardinality + 10
	superset, err := engine.Run(context.Background(), &Request{
		Name:      "by_day",
		Field:     "date",
		KeyType:   KeyTypeDate,
		Order:     OrderTermAsc,
		Size:      bigSize,
		ShardSize: bigSize,
		Interval:  iv,
	}, shards)
	require.NoError(t, err)
	// 日期逐日递增且无空洞，桶数等于词项基数
	require.Len(t, superset.Buckets, corpus.cardinality)

	for m := uint64(0); m <= 50; m++ {
		subset, err := engine.Run(context.Background(), &Request{
			Name:        "by_day",
			Field:       "date",
			KeyType:     KeyTypeDate,
			Order:       OrderTermAsc,
			Size:        bigSize,
			ShardSize:   bigSize,
			MinDocCount: m,
			Interval:    iv,
		}, shards)
		require.NoError(t, err)
		require.Equal(t, filterBuckets(superset.Buckets, m, bigSize), subset.Buckets,
			"minDocCount=%d", m)
	}
}

// TestShardSizeApproximationBound 多分片 + 小 shardSize 下，
// 返回的计数不超过真实计数，低估量不超过误差上界
func TestShardSizeApproximationBound(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	corpus := buildCorpus(rng)
	shards := splitShards(corpus.docs, 3)
	engine := NewEngine()

	// 真实计数
	exact := make(map[Key]uint64)
	for _, doc := range corpus.docs {
		exact[StringKey(doc["s"].(string))]++
	}

	approx, err := engine.Run(context.Background(), &Request{
		Name:      "approx",
		Field:     "s",
		KeyType:   KeyTypeString,
		Order:     OrderCountDesc,
		Size:      3,
		ShardSize: 3,
	}, shards)
	require.NoError(t, err)

	for _, b := range approx.Buckets {
		truth := exact[b.Key]
		require.LessOrEqual(t, b.DocCount, truth, "returned count must never overcount")
		require.LessOrEqual(t, truth-b.DocCount, approx.DocCountErrorUpperBound,
			"undercount must stay within the reported bound")
	}
}
