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

package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tron-custody-go/internal/common"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	processedTTL     = 24 * time.Hour
)

// Ledger lists transfers received by an address.
type Ledger interface {
	ListIncomingTRX(ctx context.Context, address string, limit int) ([]tron.IncomingTransfer, error)
	ListIncomingTRC20(ctx context.Context, address, contract string, limit int) ([]tron.IncomingTransfer, error)
}

// Store is the persistence the watcher needs.
type Store interface {
	ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error)
	ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error)
	DistinctTokenContracts(ctx context.Context) ([]string, error)
	RecordTransactionLog(ctx context.Context, entry *models.TransactionLogEntry) error
}

// WatcherConfig contains configuration for Watcher
type WatcherConfig struct {
	Ledger          Ledger
	Store           Store
	PollingInterval time.Duration
	TokensFile      string
	TokenDecimals   int32
	PageLimit       int
}

// Watcher records incoming TRX and TRC20 transfers of every custodied wallet
// into the transaction log.
type Watcher struct {
	ledger Ledger
	store  Store

	pollingInterval time.Duration
	tokensFile      string
	tokenDecimals   int32
	pageLimit       int

	// Tokens listed in the tokens file; approval contracts are added per poll.
	configuredTokens []string

	// State management for processed transactions
	processed map[string]time.Time
	mutex     sync.RWMutex

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a new transaction watcher
func NewWatcher(cfg WatcherConfig) *Watcher {
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &Watcher{
		ledger:          cfg.Ledger,
		store:           cfg.Store,
		pollingInterval: cfg.PollingInterval,
		tokensFile:      cfg.TokensFile,
		tokenDecimals:   cfg.TokenDecimals,
		pageLimit:       pageLimit,
		processed:       make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start loads the token watchlist and begins polling
func (w *Watcher) Start(ctx context.Context) error {
	zap.L().Info("Starting transaction watcher")

	if w.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %s", w.pollingInterval)
	}

	if w.tokensFile != "" {
		tokens, err := common.LoadTokenContracts(w.tokensFile)
		if err != nil {
			return fmt.Errorf("failed to load tokens file: %w", err)
		}
		w.configuredTokens = tokens
	}

	go w.pollLoop(ctx)

	zap.L().Info("Transaction watcher started",
		zap.Duration("polling_interval", w.pollingInterval),
		zap.Int("configured_tokens", len(w.configuredTokens)))

	return nil
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() {
	zap.L().Info("Stopping transaction watcher")
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	zap.L().Info("Transaction watcher stopped")
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.pollingInterval)
	defer ticker.Stop()

	w.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			w.Poll(ctx)
			w.cleanupProcessed()
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Poll checks every custodied address once and returns the number of new
// transfers recorded.
func (w *Watcher) Poll(ctx context.Context) int {
	addresses, err := w.watchedAddresses(ctx)
	if err != nil {
		zap.L().Error("Failed to load watched addresses", zap.Error(err))
		return 0
	}
	tokens, err := w.watchedTokens(ctx)
	if err != nil {
		zap.L().Error("Failed to load token contracts", zap.Error(err))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		recorded int
	)

	for _, address := range addresses {
		wg.Add(1)

		go func(address string) {
			defer wg.Done()

			n, err := w.pollAddress(ctx, address, tokens)
			if err != nil {
				zap.L().Error("Failed to poll address",
					zap.String("address", address),
					zap.Errors("errors", multierr.Errors(err)))
			}
			mu.Lock()
			recorded += n
			mu.Unlock()
		}(address)
	}

	wg.Wait()

	if recorded > 0 {
		zap.L().Info("Recorded incoming transfers", zap.Int("count", recorded))
	}
	return recorded
}

// pollAddress records the transfers it can and reports the errors it hit.
func (w *Watcher) pollAddress(ctx context.Context, address string, tokens []string) (int, error) {
	var errs error
	recorded := 0

	transfers, err := w.ledger.ListIncomingTRX(ctx, address, w.pageLimit)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("TRX history: %w", err))
	} else {
		recorded += w.recordTransfers(ctx, models.TransferTypeTRX, transfers)
	}

	for _, contract := range tokens {
		transfers, err := w.ledger.ListIncomingTRC20(ctx, address, contract, w.pageLimit)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("TRC20 %s history: %w", contract, err))
			continue
		}
		recorded += w.recordTransfers(ctx, models.TransferTypeTRC20, transfers)
	}

	return recorded, errs
}

func (w *Watcher) watchedAddresses(ctx context.Context) ([]string, error) {
	multisig, err := w.store.ListMultisigWallets(ctx)
	if err != nil {
		return nil, err
	}
	collections, err := w.store.ListCollectionWallets(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	addresses := make([]string, 0, len(multisig)+len(collections))
	add := func(address string) {
		if address != "" && !seen[address] {
			seen[address] = true
			addresses = append(addresses, address)
		}
	}
	for _, wallet := range multisig {
		add(wallet.Address)
	}
	for _, wallet := range collections {
		add(wallet.Address)
	}
	return addresses, nil
}

// watchedTokens is the tokens file plus every contract an approval used.
func (w *Watcher) watchedTokens(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	tokens := make([]string, 0, len(w.configuredTokens))
	for _, contract := range w.configuredTokens {
		if !seen[contract] {
			seen[contract] = true
			tokens = append(tokens, contract)
		}
	}

	fromApprovals, err := w.store.DistinctTokenContracts(ctx)
	if err != nil {
		return tokens, err
	}
	for _, contract := range fromApprovals {
		if contract != "" && !seen[contract] {
			seen[contract] = true
			tokens = append(tokens, contract)
		}
	}
	return tokens, nil
}
