package watcher

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tron-custody-go/internal/database"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdt   = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	other  = "TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8"
	wallet = "TWalletAddress"
)

type fakeLedger struct {
	mu     sync.Mutex
	trx    map[string][]tron.IncomingTransfer
	trc20  map[string][]tron.IncomingTransfer
	trxErr error
	tokens []string
}

func (f *fakeLedger) ListIncomingTRX(_ context.Context, address string, _ int) ([]tron.IncomingTransfer, error) {
	if f.trxErr != nil {
		return nil, f.trxErr
	}
	return f.trx[address], nil
}

func (f *fakeLedger) ListIncomingTRC20(_ context.Context, address, contract string, _ int) ([]tron.IncomingTransfer, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, contract)
	f.mu.Unlock()
	return f.trc20[address+"/"+contract], nil
}

func setupStore(t *testing.T) *database.Service {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st, err := database.NewServiceFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	require.NoError(t, st.CreateMultisigWallet(context.Background(), &models.MultisigWallet{
		Id: "w1", Address: wallet, CreatedAt: time.Now().UTC(),
	}))
	return st
}

func TestPollRecordsIncomingTransfersOnce(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	// An approval that used a token contract puts it on the watchlist.
	require.NoError(t, st.CreateApproval(ctx, &models.ApprovalRequest{
		Id: "a1", IntentKey: "k1", WalletId: "w1", AssetType: models.AssetToken,
		DestinationAddress: other, Amount: "1", TokenContractAddress: usdt,
		ApproverSet: []string{"s"}, CollectedSignatures: []string{"sig"},
		RawTransaction: &models.RawTransaction{Format: "fake", Version: 1, TxId: "t"},
		CreatedAt:      time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))

	at := time.Unix(1_700_000_000, 0).UTC()
	ledger := &fakeLedger{
		trx: map[string][]tron.IncomingTransfer{
			wallet: {{Hash: "h1", From: other, To: wallet, Amount: big.NewInt(2_500_000), Timestamp: at}},
		},
		trc20: map[string][]tron.IncomingTransfer{
			wallet + "/" + usdt: {{Hash: "h2", From: other, To: wallet, Amount: big.NewInt(5_500_000), TokenContract: usdt, Timestamp: at}},
		},
	}
	w := NewWatcher(WatcherConfig{Ledger: ledger, Store: st, PollingInterval: time.Minute, TokenDecimals: 6})

	assert.Equal(t, 2, w.Poll(ctx))
	assert.Equal(t, []string{usdt}, ledger.tokens)

	logs, err := st.ListTransactionLogs(ctx, wallet, store.ListParams{})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	byHash := map[string]models.TransactionLogEntry{}
	for _, l := range logs {
		byHash[l.Hash] = l
	}
	assert.Equal(t, models.TransferTypeTRX, byHash["h1"].Type)
	assert.Equal(t, "2.5", byHash["h1"].Amount)
	assert.Equal(t, models.TransferTypeTRC20, byHash["h2"].Type)
	assert.Equal(t, "5.5", byHash["h2"].Amount)
	assert.Equal(t, usdt, byHash["h2"].TokenContract)

	// Second poll sees the same history and records nothing.
	assert.Zero(t, w.Poll(ctx))

	// A fresh watcher without the in-memory cache relies on the store.
	fresh := NewWatcher(WatcherConfig{Ledger: ledger, Store: st, PollingInterval: time.Minute, TokenDecimals: 6})
	assert.Zero(t, fresh.Poll(ctx))
	assert.True(t, fresh.isProcessed("h1"))
}

func TestPollContinuesAfterLedgerErrors(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	ledger := &fakeLedger{
		trxErr: errors.New("rate limited"),
		trc20: map[string][]tron.IncomingTransfer{
			wallet + "/" + usdt: {{Hash: "h3", From: other, To: wallet, Amount: big.NewInt(1), TokenContract: usdt}},
		},
	}
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens:\n  - symbol: USDT\n    contract: "+usdt+"\n"), 0o600))

	w := NewWatcher(WatcherConfig{Ledger: ledger, Store: st, PollingInterval: time.Hour, TokensFile: path, TokenDecimals: 6})
	require.NoError(t, w.Start(ctx))
	w.Stop()

	assert.Equal(t, []string{usdt}, w.configuredTokens)
	logs, err := st.ListTransactionLogs(ctx, wallet, store.ListParams{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0.000001", logs[0].Amount)
}

func TestStartRejectsBadConfig(t *testing.T) {
	st := setupStore(t)

	w := NewWatcher(WatcherConfig{Ledger: &fakeLedger{}, Store: st})
	assert.Error(t, w.Start(context.Background()))

	w = NewWatcher(WatcherConfig{Ledger: &fakeLedger{}, Store: st, PollingInterval: time.Second, TokensFile: "does-not-exist.yaml"})
	assert.Error(t, w.Start(context.Background()))
}

func TestCleanupProcessed(t *testing.T) {
	w := NewWatcher(WatcherConfig{PollingInterval: time.Second})
	w.processed["old"] = time.Now().Add(-2 * processedTTL)
	w.markProcessed("new")

	w.cleanupProcessed()
	assert.False(t, w.isProcessed("old"))
	assert.True(t, w.isProcessed("new"))
}
