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

// Package index 管理按名称寻址的文档索引集合
package index

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lscgzwd/aggdb/logger"
	"github.com/lscgzwd/aggdb/storage"
)

// Manager 索引管理器
// 线程安全；索引的创建/删除与读取可以并发
type Manager struct {
	mu       sync.RWMutex
	indexes  map[string]*storage.Index
	defaults *storage.IndexConfig
	catalog  Catalog
}

// AlreadyExistsError 索引已存在
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("index [%s] already exists", e.Name)
}

// NotFoundError 索引不存在
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such index [%s]", e.Name)
}

// NewManager 创建索引管理器
// defaults 是未显式指定分片数/存储引擎时新索引的配置模板
func NewManager(defaults *storage.IndexConfig) *Manager {
	if defaults == nil {
		defaults = storage.DefaultIndexConfig()
	}
	return &Manager{
		indexes:  make(map[string]*storage.Index),
		defaults: defaults,
	}
}

// OpenManager 创建带持久化目录的索引管理器
// 目录中记录的索引会被重新打开，落盘引擎下即实现重启恢复
func OpenManager(defaults *storage.IndexConfig, catalog Catalog) (*Manager, error) {
	m := NewManager(defaults)
	m.catalog = catalog

	entries, err := catalog.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load index catalog: %w", err)
	}
	for _, entry := range entries {
		cfg := &storage.IndexConfig{Shards: entry.Shards, Store: m.defaults.Store}
		idx, err := storage.NewIndex(entry.Name, cfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to reopen index [%s]: %w", entry.Name, err)
		}
		m.indexes[entry.Name] = idx
		logger.Info("reopened index [%s] with %d shards", entry.Name, idx.NumShards())
	}
	return m, nil
}

// Create 创建索引，shards 为 0 时用默认分片数
func (m *Manager) Create(name string, shards int) (*storage.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.indexes[name]; exists {
		return nil, &AlreadyExistsError{Name: name}
	}
	if err := validateIndexName(name); err != nil {
		return nil, err
	}

	cfg := &storage.IndexConfig{Shards: m.defaults.Shards, Store: m.defaults.Store}
	if shards > 0 {
		cfg.Shards = shards
	}
	idx, err := storage.NewIndex(name, cfg)
	if err != nil {
		return nil, err
	}
	if m.catalog != nil {
		entry := &Entry{Name: name, Shards: cfg.Shards, CreatedAt: time.Now().UTC()}
		if err := m.catalog.Save(entry); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to persist index [%s]: %w", name, err)
		}
	}
	m.indexes[name] = idx
	logger.Info("created index [%s] with %d shards", name, idx.NumShards())
	return idx, nil
}

// Get 获取索引
func (m *Manager) Get(name string) (*storage.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, exists := m.indexes[name]
	if !exists {
		return nil, &NotFoundError{Name: name}
	}
	return idx, nil
}

// GetOrCreate 获取索引，不存在时按默认配置自动创建
// 与ES一致：首次写入时自动建索引
func (m *Manager) GetOrCreate(name string) (*storage.Index, error) {
	m.mu.RLock()
	idx, exists := m.indexes[name]
	m.mu.RUnlock()
	if exists {
		return idx, nil
	}

	idx, err := m.Create(name, 0)
	if err != nil {
		var dup *AlreadyExistsError
		if errors.As(err, &dup) {
			return m.Get(name)
		}
		return nil, err
	}
	return idx, nil
}

// Delete 删除并关闭索引
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.indexes[name]
	if !exists {
		return &NotFoundError{Name: name}
	}
	if m.catalog != nil {
		if err := m.catalog.Remove(name); err != nil {
			return fmt.Errorf("failed to remove index [%s] from catalog: %w", name, err)
		}
	}
	delete(m.indexes, name)
	if err := idx.Close(); err != nil {
		logger.Warn("failed to close index [%s]: %v", name, err)
	}
	logger.Info("deleted index [%s]", name)
	return nil
}

// List 列出全部索引名
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	return names
}

// Close 关闭全部索引
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, idx := range m.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.indexes, name)
	}
	if m.catalog != nil {
		if err := m.catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
