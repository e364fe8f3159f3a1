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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lscgzwd/aggdb/config"
)

const (
	// Version AggDB版本
	Version = "1.0.0"
	// Name 应用名称
	Name = "AggDB"
)

var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "aggdb",
	Short:         "AggDB - Elasticsearch compatible aggregation engine",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", Name, Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error, silent")
	rootCmd.AddCommand(versionCmd)
}

// loadGlobalConfig 按优先级装配配置：命令行参数 > 环境变量 > 配置文件 > 默认值
func loadGlobalConfig() (*config.GlobalConfig, error) {
	cfg, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		if cfg.Log == nil {
			cfg.Log = config.DefaultGlobalConfig().Log
		}
		cfg.Log.Level = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Finalize()
	return cfg, nil
}

// resolveConfigFile 加载指定或自动检测到的配置文件，没有则使用默认配置
func resolveConfigFile() (*config.GlobalConfig, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	if path := autoDetectConfig(); path != "" {
		return config.Load(path)
	}
	return config.DefaultGlobalConfig(), nil
}

// autoDetectConfig 自动检测配置文件
func autoDetectConfig() string {
	homeDir, _ := os.UserHomeDir()
	paths := []string{
		"config.yaml",
		"config.yml",
		"aggdb.yaml",
		"aggdb.yml",
		filepath.Join(homeDir, ".aggdb", "config.yaml"),
		filepath.Join("/etc", "aggdb", "config.yaml"),
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
