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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tron-custody-go/internal/api"
	"tron-custody-go/internal/common"
	"tron-custody-go/internal/config"
	"tron-custody-go/internal/watcher"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting Tron custody server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(services.Withdrawals, services.Wallets, services.Store).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Background workers stop themselves on gctx; stoppers wait for them.
	var stoppers []func()

	if cfg.Sweep.Enabled {
		scheduler, err := services.NewScheduler(cfg.Sweep)
		if err != nil {
			zap.L().Fatal("Failed to create sweep scheduler", zap.Error(err))
		}
		scheduler.Start(gctx)
		stoppers = append(stoppers, scheduler.Stop)
	} else {
		zap.L().Info("Sweep scheduler disabled")
	}

	if cfg.Watcher.Enabled {
		w := watcher.NewWatcher(watcher.WatcherConfig{
			Ledger:          services.Ledger,
			Store:           services.Store,
			PollingInterval: cfg.Watcher.PollingInterval,
			TokensFile:      cfg.Watcher.TokensFile,
			TokenDecimals:   services.TokenDecimals(),
		})
		if err := w.Start(gctx); err != nil {
			zap.L().Fatal("Failed to start transaction watcher", zap.Error(err))
		}
		stoppers = append(stoppers, w.Stop)
	} else {
		zap.L().Info("Transaction watcher disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			var wg sync.WaitGroup
			for _, stop := range stoppers {
				wg.Add(1)
				go func(stop func()) {
					defer wg.Done()
					stop()
				}(stop)
			}
			wg.Wait()
			close(stopped)
		}()

		err := server.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			err = multierr.Append(err, errors.New("timed out waiting for background workers"))
		}
		return err
	})

	zap.L().Info("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		zap.L().Error("Server stopped with errors", zap.Errors("errors", multierr.Errors(err)))
		return
	}
	zap.L().Info("Server stopped gracefully")
}
