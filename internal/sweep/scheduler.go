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

package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the chain capability a sweep needs.
type Ledger interface {
	GetBalance(ctx context.Context, address string) (int64, error)
	BuildNativeTransfer(ctx context.Context, from, to string, amountSun int64, permissionId int32) (*models.RawTransaction, error)
	Sign(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error)
	CombineSignatures(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error)
	Broadcast(ctx context.Context, raw *models.RawTransaction) (string, error)
}

// Store is the persistence a sweep needs.
type Store interface {
	ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error)
	ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error)
	AppendSweepLog(ctx context.Context, entry *models.SweepLogEntry) error
}

// Recorder mirrors successful sweeps into an external ledger.
type Recorder interface {
	RecordSweep(ctx context.Context, entry *models.SweepLogEntry) error
}

// SchedulerConfig contains configuration for Scheduler
type SchedulerConfig struct {
	Ledger   Ledger
	Store    Store
	Recorder Recorder

	ReserveThreshold decimal.Decimal
	FeeReserve       decimal.Decimal
	Interval         time.Duration

	// Chooser picks an index in [0, n). Defaults to a uniform random choice.
	Chooser func(n int) int
}

// Scheduler drains excess TRX from multisig wallets into a randomly chosen
// collection wallet, one cycle at a time.
type Scheduler struct {
	ledger   Ledger
	store    Store
	recorder Recorder

	thresholdSun  int64
	feeReserveSun int64
	interval      time.Duration
	chooser       func(n int) int

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// CycleSummary counts the outcomes of one sweep cycle.
type CycleSummary struct {
	Destination string
	Wallets     int
	Swept       int
	Failed      int
	Skipped     int
}

func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Ledger == nil || cfg.Store == nil {
		return nil, errors.New("sweep scheduler requires a ledger and a store")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", cfg.Interval)
	}
	thresholdSun, err := tron.TRXToSun(cfg.ReserveThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve threshold: %w", err)
	}
	feeReserveSun, err := tron.TRXToSun(cfg.FeeReserve)
	if err != nil {
		return nil, fmt.Errorf("invalid fee reserve: %w", err)
	}
	if thresholdSun < 0 || feeReserveSun < 0 {
		return nil, errors.New("reserve threshold and fee reserve cannot be negative")
	}

	chooser := cfg.Chooser
	if chooser == nil {
		chooser = rand.Intn
	}

	return &Scheduler{
		ledger:        cfg.Ledger,
		store:         cfg.Store,
		recorder:      cfg.Recorder,
		thresholdSun:  thresholdSun,
		feeReserveSun: feeReserveSun,
		interval:      cfg.Interval,
		chooser:       chooser,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}, nil
}

// Start runs the first cycle immediately and each following cycle one
// interval after the previous one completes.
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("Starting sweep scheduler",
		zap.Duration("interval", s.interval),
		zap.String("reserve_threshold", tron.SunToTRX(s.thresholdSun).String()),
		zap.String("fee_reserve", tron.SunToTRX(s.feeReserveSun).String()))

	go s.loop(ctx)
}

// Stop waits for an in-flight cycle to finish and stops scheduling.
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping sweep scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
	zap.L().Info("Sweep scheduler stopped")
}

// Done is closed once the scheduler loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneChan
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runCycleSafe(ctx)
			timer.Reset(s.interval)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycleSafe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Sweep cycle panicked", zap.Any("panic", r))
		}
	}()
	s.RunCycle(ctx)
}

// RunCycle sweeps every multisig wallet once. A failure on one wallet never
// stops the others.
func (s *Scheduler) RunCycle(ctx context.Context) CycleSummary {
	var summary CycleSummary

	wallets, err := s.store.ListMultisigWallets(ctx)
	if err != nil {
		zap.L().Error("Sweep cycle aborted: unable to load multisig wallets", zap.Error(err))
		return summary
	}
	collections, err := s.store.ListCollectionWallets(ctx)
	if err != nil {
		zap.L().Error("Sweep cycle aborted: unable to load collection wallets", zap.Error(err))
		return summary
	}
	summary.Wallets = len(wallets)

	if len(collections) == 0 {
		zap.L().Warn("No collection wallets configured, skipping sweep cycle")
		summary.Skipped = len(wallets)
		return summary
	}
	destination := collections[s.chooser(len(collections))].Address
	summary.Destination = destination

	for i := range wallets {
		if ctx.Err() != nil {
			zap.L().Info("Sweep cycle interrupted", zap.Error(ctx.Err()))
			break
		}
		switch s.processWalletSafe(ctx, &wallets[i], destination) {
		case outcomeSwept:
			summary.Swept++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	zap.L().Info("Sweep cycle completed",
		zap.String("destination", destination),
		zap.Int("wallets", summary.Wallets),
		zap.Int("swept", summary.Swept),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary
}
