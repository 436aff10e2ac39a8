package watcher

import (
	"context"
	"errors"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (w *Watcher) recordTransfers(ctx context.Context, transferType string, transfers []tron.IncomingTransfer) int {
	recorded := 0
	for _, t := range transfers {
		if w.isProcessed(t.Hash) {
			continue
		}

		entry := &models.TransactionLogEntry{
			Id:            uuid.New().String(),
			Address:       t.To,
			Type:          transferType,
			Hash:          t.Hash,
			From:          t.From,
			To:            t.To,
			TokenContract: t.TokenContract,
			Timestamp:     t.Timestamp,
		}
		if transferType == models.TransferTypeTRC20 {
			entry.Amount = tron.FromBaseUnits(t.Amount, w.tokenDecimals).String()
		} else {
			entry.Amount = tron.SunToTRX(t.Amount.Int64()).String()
		}

		err := w.store.RecordTransactionLog(ctx, entry)
		if errors.Is(err, store.ErrDuplicateTransaction) {
			w.markProcessed(t.Hash)
			continue
		}
		if err != nil {
			zap.L().Error("Failed to record transaction log",
				zap.String("hash", t.Hash),
				zap.String("address", t.To),
				zap.Error(err))
			continue
		}

		w.markProcessed(t.Hash)
		recorded++
		zap.L().Info("Incoming transfer recorded",
			zap.String("type", transferType),
			zap.String("hash", t.Hash),
			zap.String("from", t.From),
			zap.String("to", t.To),
			zap.String("amount", entry.Amount),
			zap.String("token_contract", t.TokenContract))
	}
	return recorded
}

func (w *Watcher) isProcessed(hash string) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	_, ok := w.processed[hash]
	return ok
}

func (w *Watcher) markProcessed(hash string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.processed[hash] = time.Now()
}

// cleanupProcessed forgets hashes older than processedTTL. The store still
// rejects them as duplicates if they reappear.
func (w *Watcher) cleanupProcessed() {
	cutoff := time.Now().Add(-processedTTL)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	for hash, at := range w.processed {
		if at.Before(cutoff) {
			delete(w.processed, hash)
		}
	}
}
