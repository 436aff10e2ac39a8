package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Tron     TronConfig
	Sweep    SweepConfig
	Watcher  WatcherConfig
	Formance FormanceConfig
	Vault    VaultConfig
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds store connection settings. URL selects the backend:
// mongodb:// and mongodb+srv:// use MongoDB, anything else is a SQLite path.
type DatabaseConfig struct {
	URL             string
	MongoDatabase   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// IsMongo reports whether the configured URL points at MongoDB.
func (c DatabaseConfig) IsMongo() bool {
	return strings.HasPrefix(c.URL, "mongodb://") || strings.HasPrefix(c.URL, "mongodb+srv://")
}

// TronConfig holds ledger client settings
type TronConfig struct {
	FullHost       string
	ApiKey         string
	RequestTimeout time.Duration
	TokenFeeLimit  int64
	TokenDecimals  int32
}

// SweepConfig holds sweep scheduler settings
type SweepConfig struct {
	Enabled          bool
	ReserveThreshold decimal.Decimal
	FeeReserve       decimal.Decimal
	Interval         time.Duration
}

// WatcherConfig holds incoming transaction watcher settings
type WatcherConfig struct {
	Enabled         bool
	PollingInterval time.Duration
	TokensFile      string
}

// FormanceConfig holds the optional audit ledger mirror settings.
// The mirror is disabled when StackURL is empty.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether the Formance mirror is configured.
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}

// VaultConfig holds the secret used to encrypt key material at rest.
// Key material is stored in plaintext when Secret is empty.
type VaultConfig struct {
	Secret string
}
