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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"tron-custody-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultTokenFeeLimit = 100_000_000 // 100 TRX in sun
	defaultMongoDatabase = "tron_custody"
)

var (
	defaultReserveThreshold = decimal.NewFromInt(10)
	defaultFeeReserve       = decimal.RequireFromString("0.2681")
)

func Load() (*models.Config, error) {
	fullHost := os.Getenv("TRON_FULLHOST")
	if fullHost == "" {
		return nil, fmt.Errorf("TRON_FULLHOST is required")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		shutdownTimeout, connMaxLifetime, connMaxIdleTime, pingTimeout time.Duration
		requestTimeout, sweepInterval, pollingInterval                 time.Duration
		err                                                            error
	)
	if shutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if connMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if connMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second); err != nil {
		return nil, err
	}
	if pingTimeout, err = getEnvDuration("DB_PING_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if requestTimeout, err = getEnvDuration("TRON_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if sweepInterval, err = getEnvDuration("SWEEP_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if pollingInterval, err = getEnvDuration("WATCHER_POLLING_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}

	reserveThreshold, err := getEnvDecimal("SWEEP_RESERVE_THRESHOLD", defaultReserveThreshold)
	if err != nil {
		return nil, err
	}
	feeReserve, err := getEnvDecimal("SWEEP_FEE_RESERVE", defaultFeeReserve)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Server: models.ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ShutdownTimeout: shutdownTimeout,
		},
		Database: models.DatabaseConfig{
			URL:             databaseURL,
			MongoDatabase:   getEnvString("MONGO_DATABASE", defaultMongoDatabase),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Tron: models.TronConfig{
			FullHost:       fullHost,
			ApiKey:         os.Getenv("TRON_API_KEY"),
			RequestTimeout: requestTimeout,
			TokenFeeLimit:  int64(getEnvInt("TRON_TOKEN_FEE_LIMIT", defaultTokenFeeLimit)),
			TokenDecimals:  int32(getEnvInt("TRON_TOKEN_DECIMALS", 6)),
		},
		Sweep: models.SweepConfig{
			Enabled:          getEnvBool("SWEEP_ENABLED", true),
			ReserveThreshold: reserveThreshold,
			FeeReserve:       feeReserve,
			Interval:         sweepInterval,
		},
		Watcher: models.WatcherConfig{
			Enabled:         getEnvBool("WATCHER_ENABLED", true),
			PollingInterval: pollingInterval,
			TokensFile:      os.Getenv("WATCHER_TOKENS_FILE"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "tron-custody"),
		},
		Vault: models.VaultConfig{
			Secret: os.Getenv("VAULT_SECRET"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *models.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", cfg.Server.Port)
	}
	positive := map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":         cfg.Server.ShutdownTimeout,
		"DB_PING_TIMEOUT":          cfg.Database.PingTimeout,
		"TRON_REQUEST_TIMEOUT":     cfg.Tron.RequestTimeout,
		"SWEEP_INTERVAL":           cfg.Sweep.Interval,
		"WATCHER_POLLING_INTERVAL": cfg.Watcher.PollingInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if cfg.Sweep.ReserveThreshold.IsNegative() {
		return fmt.Errorf("SWEEP_RESERVE_THRESHOLD cannot be negative, got %s", cfg.Sweep.ReserveThreshold)
	}
	if cfg.Sweep.FeeReserve.IsNegative() {
		return fmt.Errorf("SWEEP_FEE_RESERVE cannot be negative, got %s", cfg.Sweep.FeeReserve)
	}
	if cfg.Tron.TokenDecimals < 0 || cfg.Tron.TokenDecimals > 36 {
		return fmt.Errorf("TRON_TOKEN_DECIMALS out of range: %d", cfg.Tron.TokenDecimals)
	}
	if cfg.Tron.TokenFeeLimit <= 0 {
		return fmt.Errorf("TRON_TOKEN_FEE_LIMIT must be positive, got %d", cfg.Tron.TokenFeeLimit)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
