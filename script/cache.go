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

package script

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry 缓存中的脚本条目
type Entry struct {
	Source   string                 // 脚本源码
	Hash     string                 // 源码哈希（缓存键）
	Params   map[string]interface{} // 默认参数
	LastUsed time.Time              // 最后使用时间
	UseCount int64                  // 使用次数
}

// Cache 脚本缓存
// 按源码哈希去重并记录使用统计，超出容量按 LRU 淘汰，
// 后台定期清理超过 TTL 的条目
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	stop    chan struct{}
	once    sync.Once
}

// 全局缓存实例
var globalCache = NewCache(1000, 30*time.Minute)

// NewCache 创建脚本缓存并启动后台清理
func NewCache(maxSize int, ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// hashSource 计算脚本源码哈希
func hashSource(source string) string {
	h := sha256.Sum256([]byte(source))
	return hex.EncodeToString(h[:])[:16]
}

// Touch 记录一次脚本使用，首次出现时登记新条目
func (c *Cache) Touch(source string, params map[string]interface{}) *Entry {
	hash := hashSource(source)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[hash]; ok {
		entry.LastUsed = now
		entry.UseCount++
		c.hits++
		return entry
	}

	c.misses++
	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	entry := &Entry{
		Source:   source,
		Hash:     hash,
		Params:   params,
		LastUsed: now,
		UseCount: 1,
	}
	c.entries[hash] = entry
	return entry
}

// evictOldestLocked 淘汰最久未使用的条目（调用方持锁）
func (c *Cache) evictOldestLocked() {
	var oldestHash string
	var oldest time.Time
	for hash, entry := range c.entries {
		if oldestHash == "" || entry.LastUsed.Before(oldest) {
			oldestHash = hash
			oldest = entry.LastUsed
		}
	}
	if oldestHash != "" {
		delete(c.entries, oldestHash)
	}
}

// Stats 返回缓存统计信息
func (c *Cache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := 0.0
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"size":     len(c.entries),
		"max_size": c.maxSize,
		"hits":     c.hits,
		"misses":   c.misses,
		"hit_rate": hitRate,
	}
}

// Size 返回当前缓存条目数
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空缓存和统计
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.hits = 0
	c.misses = 0
}

// Close 停止后台清理
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}

// cleanupLoop 后台定期清理过期条目
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for hash, entry := range c.entries {
				if entry.LastUsed.Before(cutoff) {
					delete(c.entries, hash)
				}
			}
			c.mu.Unlock()
		}
	}
}
