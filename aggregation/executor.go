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
	"sync"

	"github.com/lscgzwd/aggdb/logger"
	"github.com/lscgzwd/aggdb/script"
)

// ShardSource 提供一个分片的文档流
// 流由实现方创建，聚合器消费后负责关闭
type ShardSource interface {
	Stream(ctx context.Context) (DocumentStream, error)
}

// Engine 聚合协调器
// scatter 阶段每个分片一个 goroutine 独立聚合，
// gather 阶段等全部分片到达后统一 reduce（同步屏障）
type Engine struct {
	scripts *script.Engine
	// partialResults 为 true 时分片失败不中止请求，
	// 结果带 Partial 标记只覆盖成功分片
	partialResults bool
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithPartialResults 允许部分分片失败时返回带标记的部分结果
func WithPartialResults() EngineOption {
	return func(e *Engine) {
		e.partialResults = true
	}
}

// WithScriptEngine 使用指定的脚本引擎
func WithScriptEngine(se *script.Engine) EngineOption {
	return func(e *Engine) {
		e.scripts = se
	}
}

// NewEngine 创建聚合协调器
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{scripts: script.NewEngine()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// buildExtractor 按请求构造取键策略（每次请求构造一次，不逐文档分派）
func (e *Engine) buildExtractor(req *Request) (KeyExtractor, error) {
	if req.Script != "" {
		return NewScriptExtractor(e.scripts, req.Script, req.ScriptParams, req.KeyType, req.Interval)
	}
	return NewFieldExtractor(req.Field, req.KeyType, req.Interval)
}

// Run 执行一次完整的两阶段聚合
// 配置错误在任何分片开始工作之前同步返回
func (e *Engine) Run(ctx context.Context, req *Request, shards []ShardSource) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("aggregation [%s] has no shards to run on", req.Name)
	}

	extractor, err := e.buildExtractor(req)
	if err != nil {
		return nil, err
	}

	shardOpts := ShardOptions{
		Order:     req.Order,
		ShardSize: req.effectiveShardSize(len(shards)),
		Include:   req.includeRe,
	}

	// 请求被取消时让所有在途分片尽快停止消费
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*ShardResult, len(shards))
	errs := make([]error, len(shards))
	var wg sync.WaitGroup
	for i, src := range shards {
		wg.Add(1)
		go func(i int, src ShardSource) {
			defer wg.Done()
			stream, err := src.Stream(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = AggregateShard(ctx, stream, extractor, shardOpts)
		}(i, src)
	}
	wg.Wait()

	// 已取消的请求丢弃全部分片状态
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	var firstErr error
	for i, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("shard %d: %w", i, err)
			}
			logger.Warn("aggregation [%s] shard %d failed: %v", req.Name, i, err)
		}
	}
	if failed > 0 && !e.partialResults {
		return nil, firstErr
	}

	// 失败分片的结果缺席，不会被当作全零参与合并
	arrived := make([]*ShardResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			arrived = append(arrived, r)
		}
	}
	if len(arrived) == 0 {
		return nil, firstErr
	}

	global, err := Reduce(arrived, ReduceOptions{
		Order:       req.Order,
		MinDocCount: req.MinDocCount,
		Size:        req.Size,
		Interval:    req.Interval,
	})
	if err != nil {
		return nil, err
	}

	return AssembleResult(req.Name, global, arrived, failed), nil
}
