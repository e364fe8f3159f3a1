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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lscgzwd/aggdb/logger"
	"github.com/lscgzwd/aggdb/protocols/es"
	"github.com/lscgzwd/aggdb/protocols/es/http/server"
	"github.com/lscgzwd/aggdb/storage"
)

// GlobalConfig 全局配置结构
// 包含所有协议共享的配置和各个协议的特定配置
type GlobalConfig struct {
	// 核心配置（所有协议共享）
	DataDir string `yaml:"data_dir" json:"data_dir"` // 数据目录，所有协议共享

	// 协议配置
	ES *es.Config `yaml:"es,omitempty" json:"es,omitempty"` // Elasticsearch 协议配置

	// 日志配置（全局）
	Log *LogConfig `yaml:"log,omitempty" json:"log,omitempty"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`             // 日志级别：debug, info, warn, error, silent
	Output     string `yaml:"output" json:"output"`           // 输出目标：stdout, stderr, 或文件路径
	Format     string `yaml:"format" json:"format"`           // 日志格式：text, json
	MaxSize    int    `yaml:"max_size" json:"max_size"`       // 单个日志文件的最大大小（MB）
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `yaml:"max_age" json:"max_age"`         // 保留旧日志文件的最大天数
	Compress   bool   `yaml:"compress" json:"compress"`       // 是否压缩旧日志文件
}

// DefaultGlobalConfig 返回默认全局配置
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DataDir: "./data",
		ES:      es.DefaultConfig(),
		Log: &LogConfig{
			Level:      "info",
			Output:     "stdout",
			Format:     "text",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 从 YAML 文件加载配置，文件中未出现的字段保留默认值
func Load(path string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 验证配置并规范化数据目录路径
func (c *GlobalConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	// 相对路径转换为绝对路径
	if !filepath.IsAbs(c.DataDir) {
		absPath, err := filepath.Abs(c.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data_dir path: %w", err)
		}
		c.DataDir = absPath
	}

	if c.ES != nil && c.ES.Server != nil {
		if err := c.ES.Server.Validate(); err != nil {
			return fmt.Errorf("invalid ES config: %w", err)
		}
	}

	if c.ES != nil && c.ES.Index != nil {
		if c.ES.Index.Shards < 1 {
			return fmt.Errorf("invalid shard count: %d", c.ES.Index.Shards)
		}
		if c.ES.Index.Store != nil {
			switch c.ES.Index.Store.Engine {
			case "", storage.EngineMemory, storage.EngineBolt:
			default:
				return fmt.Errorf("unknown store engine: %s", c.ES.Index.Store.Engine)
			}
		}
	}

	if c.Log != nil {
		switch c.Log.Format {
		case "", "text", "json":
		default:
			return fmt.Errorf("unknown log format: %s", c.Log.Format)
		}
	}

	return nil
}

// ApplyEnvOverrides 应用环境变量覆盖
func (c *GlobalConfig) ApplyEnvOverrides() {
	if dataDir := os.Getenv("AGGDB_DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}

	if c.ES == nil {
		c.ES = es.DefaultConfig()
	}
	if c.ES.Server == nil {
		c.ES.Server = server.DefaultServerConfig()
	}
	if host := os.Getenv("AGGDB_ES_HOST"); host != "" {
		c.ES.Server.Host = host
	}
	if portStr := os.Getenv("AGGDB_ES_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			c.ES.Server.Port = port
		}
	}
	if shardsStr := os.Getenv("AGGDB_ES_SHARDS"); shardsStr != "" {
		if shards, err := strconv.Atoi(shardsStr); err == nil {
			if c.ES.Index == nil {
				c.ES.Index = storage.DefaultIndexConfig()
			}
			c.ES.Index.Shards = shards
		}
	}

	if c.Log == nil {
		c.Log = DefaultGlobalConfig().Log
	}
	if level := os.Getenv("AGGDB_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if output := os.Getenv("AGGDB_LOG_OUTPUT"); output != "" {
		c.Log.Output = output
	}
}

// Finalize 在 Validate 之后调用：把数据目录落到存储配置上
// 并确保 bolt 引擎拥有可写的根路径
func (c *GlobalConfig) Finalize() {
	if c.ES == nil {
		return
	}
	if c.ES.Index == nil {
		c.ES.Index = storage.DefaultIndexConfig()
	}
	if c.ES.Index.Store == nil {
		c.ES.Index.Store = storage.DefaultStoreConfig()
	}
	if c.ES.Index.Store.Engine == storage.EngineBolt {
		if c.ES.Index.Store.Path == "" {
			c.ES.Index.Store.Path = filepath.Join(c.DataDir, "indexes")
		}
		if c.ES.MetadataDir == "" {
			c.ES.MetadataDir = filepath.Join(c.DataDir, "metadata")
		}
	}
}

// LoggerConfig 把全局日志配置转换为 logger 包的配置
func (c *GlobalConfig) LoggerConfig() *logger.Config {
	if c.Log == nil {
		return logger.DefaultConfig()
	}
	return &logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		Output:     c.Log.Output,
		Format:     c.Log.Format,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}
