package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"tron-custody-go/internal/database"
	"tron-custody-go/internal/formance"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/mongostore"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/sweep"
	"tron-custody-go/internal/tron"
	"tron-custody-go/internal/vault"
	"tron-custody-go/internal/wallets"
	"tron-custody-go/internal/withdrawal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store       store.Store
	Ledger      *tron.Client
	Mirror      *formance.Service
	Withdrawals *withdrawal.Service
	Wallets     *wallets.Service

	tokenDecimals int32
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	st, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ledger, err := tron.NewClient(cfg.Tron)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("unable to create tron client: %w", err)
	}

	services := &Services{
		Store:         st,
		Ledger:        ledger,
		tokenDecimals: cfg.Tron.TokenDecimals,
	}

	var recorder withdrawal.Recorder
	if cfg.Formance.Enabled() {
		symbols, err := tokenSymbols(cfg.Watcher.TokensFile)
		if err != nil {
			st.Close()
			return nil, err
		}
		mirror, err := formance.NewService(ctx, cfg.Formance, cfg.Tron.TokenDecimals, symbols)
		if err != nil {
			st.Close()
			return nil, err
		}
		services.Mirror = mirror
		recorder = mirror
	} else {
		zap.L().Info("Formance mirror disabled")
	}

	services.Withdrawals = withdrawal.NewService(ledger, st, recorder, cfg.Tron.TokenDecimals)
	services.Wallets = wallets.NewService(ledger, st, cfg.Tron.TokenDecimals)

	return services, nil
}

// InitializeStore opens the backend selected by DATABASE_URL: MongoDB for
// mongodb:// URLs, SQLite otherwise. Key material is sealed when VAULT_SECRET is set.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.Store, error) {
	v, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize vault: %w", err)
	}
	if v == nil {
		zap.L().Warn("VAULT_SECRET not set, key material is stored unencrypted")
	}

	if cfg.Database.IsMongo() {
		return mongostore.NewService(ctx, cfg.Database, v)
	}
	return database.NewService(ctx, cfg.Database, v)
}

// NewScheduler builds the sweep scheduler over the initialized services.
func (cs *Services) NewScheduler(cfg models.SweepConfig) (*sweep.Scheduler, error) {
	schedulerCfg := sweep.SchedulerConfig{
		Ledger:           cs.Ledger,
		Store:            cs.Store,
		ReserveThreshold: cfg.ReserveThreshold,
		FeeReserve:       cfg.FeeReserve,
		Interval:         cfg.Interval,
	}
	if cs.Mirror != nil {
		schedulerCfg.Recorder = cs.Mirror
	}
	return sweep.NewScheduler(schedulerCfg)
}

// TokenDecimals is the decimal count applied to every token amount.
func (cs *Services) TokenDecimals() int32 {
	return cs.tokenDecimals
}

func (cs *Services) Close() {
	if cs.Mirror != nil {
		cs.Mirror.Close()
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func tokenSymbols(tokensFile string) (map[string]string, error) {
	symbols := make(map[string]string)
	if tokensFile == "" {
		return symbols, nil
	}
	tokens, err := LoadTokenConfig(tokensFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens file: %w", err)
	}
	for _, token := range tokens {
		symbols[token.Contract] = token.Symbol
	}
	return symbols, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
