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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lscgzwd/aggdb/logger"
	"github.com/lscgzwd/aggdb/protocols/es"
)

var (
	flagHost string
	flagPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AggDB server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagHost, "host", "", "ES protocol server host")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "ES protocol server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return err
	}

	if flagHost != "" {
		cfg.ES.Server.Host = flagHost
	}
	if flagPort > 0 {
		cfg.ES.Server.Port = flagPort
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting %s v%s", Name, Version)
	logger.Debug("Configuration loaded: datadir=%s", cfg.DataDir)

	esServer, err := es.NewServer(cfg.ES)
	if err != nil {
		return fmt.Errorf("failed to create ES server: %w", err)
	}

	fmt.Printf("%s %s starting\n", Name, Version)
	fmt.Printf("Data Directory: %s\n", cfg.DataDir)
	fmt.Printf("ES Protocol: http://%s\n", esServer.Address())
	fmt.Printf("Health check: http://%s/_cluster/health\n", esServer.Address())

	return runWithGracefulShutdown(esServer)
}

// runWithGracefulShutdown 启动服务器并在收到中断信号后优雅关闭
func runWithGracefulShutdown(esServer *es.Server) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- esServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server startup failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down ES server...")
	if err := esServer.Stop(); err != nil {
		logger.Error("ES server forced to shutdown: %v", err)
		return err
	}

	logger.Info("ES server exited")
	return nil
}
