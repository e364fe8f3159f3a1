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

// Result 对外暴露的聚合结果：名称 + 最终顺序的桶列表
// 纯展示层，不做任何计算
type Result struct {
	Name    string
	Buckets []Bucket
	// 精度元数据，见 GlobalResult
	DocCountErrorUpperBound uint64
	SumOtherDocCount        uint64
	// Partial 为 true 表示部分分片失败，结果只覆盖了成功的分片
	Partial      bool
	FailedShards int
	// DocFailures 各分片取键失败（被跳过）的文档总数
	DocFailures int
}

// AssembleResult 将全局结果包装为响应契约
func AssembleResult(name string, g *GlobalResult, shardResults []*ShardResult, failedShards int) *Result {
	r := &Result{
		Name:                    name,
		Buckets:                 g.Buckets,
		DocCountErrorUpperBound: g.DocCountErrorUpperBound,
		SumOtherDocCount:        g.SumOtherDocCount,
		Partial:                 failedShards > 0,
		FailedShards:            failedShards,
	}
	for _, sr := range shardResults {
		if sr != nil {
			r.DocFailures += sr.Failures
		}
	}
	return r
}
