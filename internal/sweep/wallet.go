package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSwept
	outcomeFailed
)

func (s *Scheduler) processWalletSafe(ctx context.Context, wallet *models.MultisigWallet, destination string) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Sweep of wallet panicked",
				zap.String("wallet_id", wallet.Id),
				zap.Any("panic", r))
			result = outcomeFailed
		}
	}()
	return s.processWallet(ctx, wallet, destination)
}

func (s *Scheduler) processWallet(ctx context.Context, wallet *models.MultisigWallet, destination string) outcome {
	logger := zap.L().With(
		zap.String("wallet_id", wallet.Id),
		zap.String("address", wallet.Address))

	balance, err := s.ledger.GetBalance(ctx, wallet.Address)
	if err != nil {
		logger.Error("Unable to query wallet balance", zap.Error(err))
		return outcomeFailed
	}

	if balance <= s.thresholdSun {
		logger.Debug("Balance below sweep threshold", zap.String("balance", tron.SunToTRX(balance).String()))
		return outcomeSkipped
	}
	if destination == wallet.Address {
		logger.Debug("Collection wallet is the wallet itself, skipping")
		return outcomeSkipped
	}

	amountSun := balance - s.feeReserveSun
	if amountSun <= 0 {
		logger.Warn("Balance does not cover the fee reserve", zap.String("balance", tron.SunToTRX(balance).String()))
		return outcomeSkipped
	}

	entry := &models.SweepLogEntry{
		Id:     uuid.New().String(),
		From:   wallet.Address,
		To:     destination,
		Amount: tron.SunToTRX(amountSun).String(),
	}

	txId, err := s.transfer(ctx, wallet, destination, amountSun)
	entry.CreatedAt = time.Now().UTC()
	if err != nil {
		entry.Status = models.SweepStatusFailed
		entry.Error = err.Error()
		logger.Error("Sweep failed",
			zap.String("to", destination),
			zap.String("amount", entry.Amount),
			zap.Error(err))
	} else {
		entry.Status = models.SweepStatusSuccess
		entry.TxId = txId
		logger.Info("Sweep succeeded",
			zap.String("to", destination),
			zap.String("amount", entry.Amount),
			zap.String("txid", txId))
	}

	if err := s.store.AppendSweepLog(ctx, entry); err != nil {
		logger.Error("Failed to record sweep log", zap.String("status", string(entry.Status)), zap.Error(err))
	}

	if entry.Status != models.SweepStatusSuccess {
		return outcomeFailed
	}

	if s.recorder != nil {
		if err := s.recorder.RecordSweep(ctx, entry); err != nil {
			logger.Warn("Failed to mirror sweep to ledger", zap.String("txid", txId), zap.Error(err))
		}
	}
	return outcomeSwept
}

// transfer signs with whatever the wallet's on-chain permissions accept: both
// signers under the active permission once the multisig update is in place,
// otherwise the wallet's own owner key.
func (s *Scheduler) transfer(ctx context.Context, wallet *models.MultisigWallet, destination string, amountSun int64) (string, error) {
	if wallet.PermissionUpdated() {
		if len(wallet.Signers) < 2 {
			return "", errors.New("multisig wallet has fewer than two signers")
		}
		unsigned, err := s.ledger.BuildNativeTransfer(ctx, wallet.Address, destination, amountSun, tron.ActivePermissionId)
		if err != nil {
			return "", fmt.Errorf("build: %w", err)
		}
		partial, _, err := s.ledger.Sign(unsigned, wallet.Signers[0].PrivateKey, wallet.Signers[0].Address)
		if err != nil {
			return "", fmt.Errorf("sign: %w", err)
		}
		signed, _, err := s.ledger.CombineSignatures(partial, wallet.Signers[1].PrivateKey, wallet.Signers[1].Address)
		if err != nil {
			return "", fmt.Errorf("combine signatures: %w", err)
		}
		return s.broadcast(ctx, signed)
	}

	unsigned, err := s.ledger.BuildNativeTransfer(ctx, wallet.Address, destination, amountSun, tron.OwnerPermissionId)
	if err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	signed, _, err := s.ledger.Sign(unsigned, wallet.PrivateKey, wallet.Address)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return s.broadcast(ctx, signed)
}

func (s *Scheduler) broadcast(ctx context.Context, signed *models.RawTransaction) (string, error) {
	txId, err := s.ledger.Broadcast(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	return txId, nil
}
