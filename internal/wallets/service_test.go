package wallets

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"sync"
	"testing"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/database"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdt = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

type signCall struct {
	key    string
	signer string
}

type fakeLedger struct {
	mu sync.Mutex

	balance      int64
	tokenBalance *big.Int
	broadcastErr error

	permissionOwner     string
	permissionSigners   []string
	permissionThreshold int64
	lastPermissionId    int32
	lastSun             int64
	lastUnits           *big.Int
	signs               []signCall
	broadcasts          int
}

func (f *fakeLedger) BuildNativeTransfer(_ context.Context, _, _ string, amountSun int64, permissionId int32) (*models.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSun = amountSun
	f.lastPermissionId = permissionId
	return &models.RawTransaction{Format: "fake", Version: 1, TxId: "native"}, nil
}

func (f *fakeLedger) BuildTokenTransfer(_ context.Context, _, _, _ string, amount *big.Int, permissionId int32) (*models.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUnits = amount
	f.lastPermissionId = permissionId
	return &models.RawTransaction{Format: "fake", Version: 1, TxId: "token"}, nil
}

func (f *fakeLedger) BuildPermissionUpdate(_ context.Context, owner string, signers []string, threshold int64) (*models.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionOwner = owner
	f.permissionSigners = signers
	f.permissionThreshold = threshold
	return &models.RawTransaction{Format: "fake", Version: 1, TxId: "permission"}, nil
}

func (f *fakeLedger) Sign(raw *models.RawTransaction, key, signer string) (*models.RawTransaction, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signs = append(f.signs, signCall{key: key, signer: signer})
	return raw, "sig", nil
}

func (f *fakeLedger) Broadcast(_ context.Context, raw *models.RawTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	f.broadcasts++
	return raw.TxId, nil
}

func (f *fakeLedger) GetBalance(context.Context, string) (int64, error) {
	return f.balance, nil
}

func (f *fakeLedger) GetTokenBalance(context.Context, string, string) (*big.Int, error) {
	return f.tokenBalance, nil
}

func setupService(t *testing.T) (*Service, *fakeLedger, *database.Service) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st, err := database.NewServiceFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	ledger := &fakeLedger{}
	return NewService(ledger, st, 6), ledger, st
}

func TestGenerateMultisigWalletReturnsPassphrasesOnce(t *testing.T) {
	svc, _, st := setupService(t)
	ctx := context.Background()

	generated, err := svc.GenerateMultisigWallet(ctx)
	require.NoError(t, err)
	require.Len(t, generated.Signers, 2)
	assert.NotEqual(t, generated.Signers[0].Passphrase, generated.Signers[1].Passphrase)

	stored, err := st.GetMultisigWallet(ctx, generated.Id)
	require.NoError(t, err)
	assert.Equal(t, generated.Address, stored.Address)
	assert.Equal(t, generated.Signers[0].Passphrase, stored.Signers[0].Passphrase)

	listed, err := svc.ListMultisigWallets(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestUpdatePermission(t *testing.T) {
	svc, ledger, _ := setupService(t)
	ctx := context.Background()

	generated, err := svc.GenerateMultisigWallet(ctx)
	require.NoError(t, err)

	result, err := svc.UpdatePermission(ctx, generated.Id)
	require.NoError(t, err)
	assert.Equal(t, "permission", result.TxId)

	assert.Equal(t, generated.Address, ledger.permissionOwner)
	assert.Equal(t, []string{generated.Signers[0].Address, generated.Signers[1].Address}, ledger.permissionSigners)
	assert.Equal(t, int64(2), ledger.permissionThreshold)
	require.Len(t, ledger.signs, 1)
	assert.Equal(t, generated.Address, ledger.signs[0].signer)

	wallet, err := svc.GetMultisigWallet(ctx, generated.Id)
	require.NoError(t, err)
	assert.True(t, wallet.PermissionUpdated())

	_, err = svc.UpdatePermission(ctx, generated.Id)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 1, ledger.broadcasts)
}

func TestUpdatePermissionBroadcastFailureIsNotRecorded(t *testing.T) {
	svc, ledger, _ := setupService(t)
	ctx := context.Background()

	generated, err := svc.GenerateMultisigWallet(ctx)
	require.NoError(t, err)

	ledger.broadcastErr = errors.New("node down")
	_, err = svc.UpdatePermission(ctx, generated.Id)
	assert.ErrorIs(t, err, apperrors.ErrLedger)

	wallet, err := svc.GetMultisigWallet(ctx, generated.Id)
	require.NoError(t, err)
	assert.False(t, wallet.PermissionUpdated())

	_, err = svc.UpdatePermission(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteMultisigWalletRequiresEmptyBalance(t *testing.T) {
	svc, ledger, _ := setupService(t)
	ctx := context.Background()

	generated, err := svc.GenerateMultisigWallet(ctx)
	require.NoError(t, err)

	ledger.balance = 1
	err = svc.DeleteMultisigWallet(ctx, generated.Id)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	ledger.balance = 0
	require.NoError(t, svc.DeleteMultisigWallet(ctx, generated.Id))

	_, err = svc.GetMultisigWallet(ctx, generated.Id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCollectionWalletSends(t *testing.T) {
	svc, ledger, _ := setupService(t)
	ctx := context.Background()

	generated, err := svc.GenerateCollectionWallet(ctx)
	require.NoError(t, err)

	result, err := svc.SendTRX(ctx, models.SendTRXRequest{WalletId: generated.Id, ToAddress: usdt, Amount: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, "native", result.TxId)
	assert.Equal(t, int64(1_500_000), ledger.lastSun)
	assert.Equal(t, tron.OwnerPermissionId, ledger.lastPermissionId)
	assert.Equal(t, generated.Address, ledger.signs[0].signer)

	result, err = svc.SendTRC20(ctx, models.SendTRC20Request{
		WalletId: generated.Id, ToAddress: usdt, Amount: "2", TokenContractAddress: usdt,
	})
	require.NoError(t, err)
	assert.Equal(t, "token", result.TxId)
	assert.Equal(t, big.NewInt(2_000_000), ledger.lastUnits)

	_, err = svc.SendTRX(ctx, models.SendTRXRequest{WalletId: generated.Id, ToAddress: "bad", Amount: "1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.SendTRX(ctx, models.SendTRXRequest{WalletId: generated.Id, ToAddress: usdt, Amount: "0"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.SendTRX(ctx, models.SendTRXRequest{WalletId: "missing", ToAddress: usdt, Amount: "1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteCollectionWallet(ctx, generated.Id))
	assert.ErrorIs(t, svc.DeleteCollectionWallet(ctx, generated.Id), apperrors.ErrNotFound)
}

func TestBalances(t *testing.T) {
	svc, ledger, _ := setupService(t)
	ctx := context.Background()

	ledger.balance = 15_268_100
	bal, err := svc.TRXBalance(ctx, usdt)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("15.2681")))

	ledger.tokenBalance = big.NewInt(5_500_000)
	tokens, err := svc.TokenBalance(ctx, usdt, usdt)
	require.NoError(t, err)
	assert.Equal(t, "5.5", tokens.Balance.String())
	assert.Equal(t, usdt, tokens.TokenContract)

	_, err = svc.TRXBalance(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
