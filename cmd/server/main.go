/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mining-ledger-go/internal/common"
	"mining-ledger-go/internal/config"
	"mining-ledger-go/internal/httpapi"
	"mining-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if err := start(); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		loggerCleanup()
		os.Exit(1)
	}

	zap.L().Info("Server stopped gracefully")
}

func start() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return run(cfg)
}

func run(cfg *models.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting mining ledger server", zap.String("addr", cfg.Server.ListenAddr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			zap.L().Error("Failed to close services", zap.Error(err))
		}
	}()

	app := httpapi.NewApp(cfg.Server, httpapi.NewHandler(services.Ledger))

	services.Dispatcher.Start(ctx)
	defer services.Dispatcher.Stop()

	if services.PriceFeed != nil {
		if err := services.PriceFeed.Start(); err != nil {
			return fmt.Errorf("failed to start price feed: %w", err)
		}
		defer services.PriceFeed.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(cfg.Server.ListenAddr)
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, draining HTTP server",
			zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		return app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)
	})

	return g.Wait()
}
