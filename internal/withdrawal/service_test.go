package withdrawal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/database"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	destination = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	usdt        = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	passA       = "alpha bravo charlie"
	passB       = "delta echo foxtrot"
)

// fakeLedger records calls. Payload holds the comma-separated signer list.
type fakeLedger struct {
	mu sync.Mutex

	builds     int
	broadcasts int
	lastSun    int64
	lastUnits  *big.Int
	lastPerm   int32

	buildErr     error
	signErr      error
	combineErr   error
	broadcastErr error
}

func (f *fakeLedger) build(permissionId int32) (*models.RawTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.builds++
	f.lastPerm = permissionId
	return &models.RawTransaction{Format: "fake", Version: 1, TxId: fmt.Sprintf("tx-%d", f.builds)}, nil
}

func (f *fakeLedger) BuildNativeTransfer(_ context.Context, _, _ string, amountSun int64, permissionId int32) (*models.RawTransaction, error) {
	f.mu.Lock()
	f.lastSun = amountSun
	f.mu.Unlock()
	return f.build(permissionId)
}

func (f *fakeLedger) BuildTokenTransfer(_ context.Context, _, _, _ string, amount *big.Int, permissionId int32) (*models.RawTransaction, error) {
	f.mu.Lock()
	f.lastUnits = amount
	f.mu.Unlock()
	return f.build(permissionId)
}

func (f *fakeLedger) Sign(raw *models.RawTransaction, _, signer string) (*models.RawTransaction, string, error) {
	if f.signErr != nil {
		return nil, "", f.signErr
	}
	if len(raw.Payload) > 0 {
		return nil, "", errors.New("already signed")
	}
	out := *raw
	out.Payload = []byte(signer)
	return &out, "sig-" + signer, nil
}

func (f *fakeLedger) CombineSignatures(raw *models.RawTransaction, _, signer string) (*models.RawTransaction, string, error) {
	if f.combineErr != nil {
		return nil, "", f.combineErr
	}
	signers := strings.Split(string(raw.Payload), ",")
	for _, s := range signers {
		if s == signer {
			return nil, "", tron.ErrAlreadySigned
		}
	}
	out := *raw
	out.Payload = []byte(strings.Join(append(signers, signer), ","))
	return &out, "sig-" + signer, nil
}

func (f *fakeLedger) Broadcast(_ context.Context, raw *models.RawTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	if len(strings.Split(string(raw.Payload), ",")) < RequiredSignatures {
		return "", errors.New("not enough signatures")
	}
	f.broadcasts++
	return raw.TxId, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []string
}

func (r *fakeRecorder) RecordWithdrawal(_ context.Context, _ *models.MultisigWallet, approval *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, approval.TxId)
	return nil
}

func setupService(t *testing.T) (*Service, *fakeLedger, *fakeRecorder, *database.Service, *models.MultisigWallet) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st, err := database.NewServiceFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	wallet := &models.MultisigWallet{
		Id:         "wallet-1",
		Address:    "TWalletAddress",
		PublicKey:  "04aa",
		PrivateKey: "wallet-key",
		Mnemonic:   "wallet mnemonic",
		Signers: []models.Signer{
			{Address: "TSignerA", PublicKey: "04a1", PrivateKey: "key-a", Passphrase: passA},
			{Address: "TSignerB", PublicKey: "04b1", PrivateKey: "key-b", Passphrase: passB},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateMultisigWallet(context.Background(), wallet))

	ledger := &fakeLedger{}
	recorder := &fakeRecorder{}
	return NewService(ledger, st, recorder, 6), ledger, recorder, st, wallet
}

func tokenRequest(amount, passphrase string) models.WithdrawalRequest {
	return models.WithdrawalRequest{
		WithdrawalIntent: models.WithdrawalIntent{
			WalletId:             "wallet-1",
			AssetType:            models.AssetToken,
			DestinationAddress:   destination,
			Amount:               amount,
			TokenContractAddress: usdt,
		},
		SignerPassphrase: passphrase,
	}
}

func nativeRequest(amount, passphrase string) models.WithdrawalRequest {
	return models.WithdrawalRequest{
		WithdrawalIntent: models.WithdrawalIntent{
			WalletId:           "wallet-1",
			AssetType:          models.AssetNative,
			DestinationAddress: destination,
			Amount:             amount,
		},
		SignerPassphrase: passphrase,
	}
}

func TestTokenWithdrawalTwoSigners(t *testing.T) {
	svc, ledger, recorder, st, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, tokenRequest("5.5", passA))
	require.NoError(t, err)
	assert.Equal(t, models.StageAwaitingSecondSignature, first.Stage)
	assert.Empty(t, first.TxId)
	assert.Equal(t, big.NewInt(5_500_000), ledger.lastUnits)
	assert.Equal(t, tron.ActivePermissionId, ledger.lastPerm)

	second, err := svc.RequestWithdrawal(ctx, tokenRequest("5.50", passB))
	require.NoError(t, err)
	assert.Equal(t, models.StageExecuted, second.Stage)
	assert.Equal(t, first.ApprovalId, second.ApprovalId)
	assert.Equal(t, "tx-1", second.TxId)
	assert.Equal(t, 1, ledger.builds)
	assert.Equal(t, 1, ledger.broadcasts)
	assert.Equal(t, []string{"tx-1"}, recorder.recorded)

	stored, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)
	assert.True(t, stored.Executed)
	assert.Equal(t, []string{"TSignerA", "TSignerB"}, stored.ApproverSet)
	assert.Equal(t, []string{"sig-TSignerA", "sig-TSignerB"}, stored.CollectedSignatures)
	assert.Equal(t, "5.5", stored.Amount)
	require.NotNil(t, stored.ExecutedAt)

	_, err = svc.RequestWithdrawal(ctx, tokenRequest("5.5", "no such signer"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSigner)
	assert.Equal(t, 1, ledger.broadcasts)
}

func TestDuplicateApprovalChangesNothing(t *testing.T) {
	svc, ledger, _, st, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, nativeRequest("15", passA))
	require.NoError(t, err)
	assert.Equal(t, int64(15_000_000), ledger.lastSun)

	before, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, nativeRequest("15", passA))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateApproval)

	after, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.ApproverSet, after.ApproverSet)
	assert.Equal(t, 1, ledger.builds)
	assert.Zero(t, ledger.broadcasts)
}

func TestExecutedApprovalIsNeverMutated(t *testing.T) {
	svc, ledger, _, st, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, nativeRequest("1", passA))
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(ctx, nativeRequest("1", passB))
	require.NoError(t, err)

	executed, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)

	// The same tuple after execution opens a new withdrawal.
	next, err := svc.RequestWithdrawal(ctx, nativeRequest("1", passA))
	require.NoError(t, err)
	assert.NotEqual(t, first.ApprovalId, next.ApprovalId)
	assert.Equal(t, models.StageAwaitingSecondSignature, next.Stage)

	again, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)
	assert.Equal(t, executed.Version, again.Version)
	assert.Equal(t, executed.ApproverSet, again.ApproverSet)
	assert.True(t, again.Executed)
	assert.Equal(t, 1, ledger.broadcasts)

	// The store itself refuses to rewrite an executed record.
	again.Executed = false
	assert.ErrorIs(t, st.UpdateApproval(ctx, again), store.ErrConcurrentModification)
}

func TestConcurrentFirstApprovalsCreateOneRecord(t *testing.T) {
	svc, _, _, st, _ := setupService(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RequestWithdrawal(ctx, nativeRequest("2", passA))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrDuplicateApproval)
	}
	assert.Equal(t, 1, succeeded)

	approvals, err := st.ListApprovals(ctx, store.ListParams{})
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestConcurrentDistinctSignersBroadcastOnce(t *testing.T) {
	svc, ledger, _, st, _ := setupService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*models.WithdrawalResult, 2)
	errs := make([]error, 2)
	for i, pass := range []string{passA, passB} {
		wg.Add(1)
		go func(i int, pass string) {
			defer wg.Done()
			results[i], errs[i] = svc.RequestWithdrawal(ctx, nativeRequest("3", pass))
		}(i, pass)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].ApprovalId, results[1].ApprovalId)
	assert.Equal(t, 1, ledger.broadcasts)

	approvals, err := st.ListApprovals(ctx, store.ListParams{})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.True(t, approvals[0].Executed)
}

func TestLedgerFailuresPersistNothing(t *testing.T) {
	svc, ledger, _, st, _ := setupService(t)
	ctx := context.Background()

	ledger.buildErr = errors.New("node unavailable")
	_, err := svc.RequestWithdrawal(ctx, nativeRequest("4", passA))
	assert.ErrorIs(t, err, apperrors.ErrLedger)

	ledger.buildErr = nil
	ledger.signErr = errors.New("bad key")
	_, err = svc.RequestWithdrawal(ctx, nativeRequest("4", passA))
	assert.ErrorIs(t, err, apperrors.ErrLedger)

	approvals, err := st.ListApprovals(ctx, store.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, approvals)

	ledger.signErr = nil
	first, err := svc.RequestWithdrawal(ctx, nativeRequest("4", passA))
	require.NoError(t, err)

	ledger.combineErr = errors.New("combine failed")
	_, err = svc.RequestWithdrawal(ctx, nativeRequest("4", passB))
	assert.ErrorIs(t, err, apperrors.ErrLedger)

	stored, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)
	assert.Equal(t, []string{"TSignerA"}, stored.ApproverSet)
}

func TestFailedBroadcastCanBeResubmitted(t *testing.T) {
	svc, ledger, recorder, st, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, nativeRequest("6", passA))
	require.NoError(t, err)

	ledger.broadcastErr = &tron.BroadcastError{Code: "SERVER_BUSY"}
	_, err = svc.RequestWithdrawal(ctx, nativeRequest("6", passB))
	assert.ErrorIs(t, err, apperrors.ErrLedger)

	stored, err := st.GetApproval(ctx, first.ApprovalId)
	require.NoError(t, err)
	assert.False(t, stored.Executed)
	assert.Len(t, stored.ApproverSet, 2)
	assert.Empty(t, recorder.recorded)

	ledger.broadcastErr = nil
	result, err := svc.RequestWithdrawal(ctx, nativeRequest("6", passB))
	require.NoError(t, err)
	assert.Equal(t, models.StageExecuted, result.Stage)
	assert.Equal(t, first.ApprovalId, result.ApprovalId)
	assert.Equal(t, 1, ledger.builds)
	assert.Equal(t, 1, ledger.broadcasts)
}

func TestRequestWithdrawalValidation(t *testing.T) {
	svc, ledger, _, _, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.WithdrawalRequest
		want error
	}{
		{"missing amount", nativeRequest("", passA), apperrors.ErrValidation},
		{"negative amount", nativeRequest("-1", passA), apperrors.ErrValidation},
		{"garbage amount", nativeRequest("abc", passA), apperrors.ErrValidation},
		{"sub-sun amount", nativeRequest("0.0000001", passA), apperrors.ErrValidation},
		{"missing passphrase", nativeRequest("1", ""), apperrors.ErrValidation},
		{"token without contract", func() models.WithdrawalRequest {
			r := tokenRequest("1", passA)
			r.TokenContractAddress = ""
			return r
		}(), apperrors.ErrValidation},
		{"native with contract", func() models.WithdrawalRequest {
			r := nativeRequest("1", passA)
			r.TokenContractAddress = usdt
			return r
		}(), apperrors.ErrValidation},
		{"bad destination", func() models.WithdrawalRequest {
			r := nativeRequest("1", passA)
			r.DestinationAddress = "not-an-address"
			return r
		}(), apperrors.ErrValidation},
		{"unknown asset", func() models.WithdrawalRequest {
			r := nativeRequest("1", passA)
			r.AssetType = "NFT"
			return r
		}(), apperrors.ErrValidation},
		{"unknown wallet", func() models.WithdrawalRequest {
			r := nativeRequest("1", passA)
			r.WalletId = "missing"
			return r
		}(), apperrors.ErrNotFound},
		{"wrong passphrase", nativeRequest("1", "guess"), apperrors.ErrInvalidSigner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestWithdrawal(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, ledger.builds)
}

func TestMatchSigner(t *testing.T) {
	wallet := &models.MultisigWallet{Signers: []models.Signer{
		{Address: "A", Passphrase: passA},
		{Address: "B", Passphrase: passB},
	}}
	assert.Equal(t, "A", matchSigner(wallet, passA).Address)
	assert.Equal(t, "B", matchSigner(wallet, passB).Address)
	assert.Nil(t, matchSigner(wallet, "alpha"))
	assert.Nil(t, matchSigner(&models.MultisigWallet{Signers: []models.Signer{{Address: "C"}}}, ""))
}
