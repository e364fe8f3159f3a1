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

package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry 持久化的索引元数据
type Entry struct {
	Name      string    `json:"name"`
	Shards    int       `json:"shards"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog 索引元数据目录：记录已创建的索引，进程重启后据此恢复
type Catalog interface {
	// Save 保存或覆盖一条索引元数据
	Save(entry *Entry) error
	// Remove 删除一条索引元数据，不存在时不报错
	Remove(name string) error
	// List 列出全部索引元数据
	List() ([]*Entry, error)
	// Close 关闭目录
	Close() error
}

// FileCatalog 基于文件的索引目录，每个索引一个JSON文件
type FileCatalog struct {
	baseDir string
}

// NewFileCatalog 打开指定目录下的索引目录，目录不存在时创建
func NewFileCatalog(baseDir string) (*FileCatalog, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("catalog directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	return &FileCatalog{baseDir: baseDir}, nil
}

// Save 原子写入：先写临时文件再改名
func (fc *FileCatalog) Save(entry *Entry) error {
	if err := validateIndexName(entry.Name); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry: %w", err)
	}

	path := fc.entryPath(entry.Name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit catalog entry: %w", err)
	}
	return nil
}

func (fc *FileCatalog) Remove(name string) error {
	if err := validateIndexName(name); err != nil {
		return err
	}
	if err := os.Remove(fc.entryPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove catalog entry: %w", err)
	}
	return nil
}

func (fc *FileCatalog) List() ([]*Entry, error) {
	files, err := os.ReadDir(fc.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var entries []*Entry
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fc.baseDir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog entry %s: %w", file.Name(), err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse catalog entry %s: %w", file.Name(), err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (fc *FileCatalog) Close() error {
	return nil
}

func (fc *FileCatalog) entryPath(name string) string {
	return filepath.Join(fc.baseDir, name+".json")
}

// InvalidNameError 非法索引名
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid index name [%s]: %s", e.Name, e.Reason)
}

// validateIndexName 索引名不能为空、以点开头或包含路径分隔符
// 落盘引擎下索引名会成为目录名
func validateIndexName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Reason: "cannot be empty"}
	}
	if strings.HasPrefix(name, ".") {
		return &InvalidNameError{Name: name, Reason: "cannot start with '.'"}
	}
	if strings.ContainsAny(name, `/\`) {
		return &InvalidNameError{Name: name, Reason: "cannot contain path separators"}
	}
	return nil
}
