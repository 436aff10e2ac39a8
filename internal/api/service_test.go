package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/database"
	"tron-custody-go/internal/models"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWithdrawals struct {
	got    []models.WithdrawalRequest
	result *models.WithdrawalResult
	err    error
}

func (f *fakeWithdrawals) RequestWithdrawal(_ context.Context, req models.WithdrawalRequest) (*models.WithdrawalResult, error) {
	f.got = append(f.got, req)
	return f.result, f.err
}

type fakeWallets struct {
	Wallets
	wallet  *models.MultisigWallet
	deleted []string
	err     error
}

func (f *fakeWallets) GetMultisigWallet(_ context.Context, walletId string) (*models.MultisigWallet, error) {
	if f.wallet == nil || f.wallet.Id != walletId {
		return nil, apperrors.New(apperrors.CodeNotFound, "test", "wallet not found")
	}
	return f.wallet, nil
}

func (f *fakeWallets) DeleteMultisigWallet(_ context.Context, walletId string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, walletId)
	return nil
}

func (f *fakeWallets) TRXBalance(_ context.Context, address string) (*models.BalanceResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.BalanceResponse{Address: address, Asset: models.TransferTypeTRX}, nil
}

type testServer struct {
	router      http.Handler
	withdrawals *fakeWithdrawals
	wallets     *fakeWallets
	store       *database.Service
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st, err := database.NewServiceFromDB(context.Background(), db, nil)
	require.NoError(t, err)

	ts := &testServer{
		withdrawals: &fakeWithdrawals{},
		wallets:     &fakeWallets{},
		store:       st,
	}
	ts.router = NewServer(ts.withdrawals, ts.wallets, st).Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestWithdrawTRX(t *testing.T) {
	ts := setup(t)
	ts.withdrawals.result = &models.WithdrawalResult{
		ApprovalId: "a1",
		Stage:      models.StageAwaitingSecondSignature,
		Message:    "First signature collected, awaiting second signature",
	}

	rec, body := ts.do(t, http.MethodPost, "/api/withdraw/trx", map[string]string{
		"walletId":         "w1",
		"toAddress":        "TDest",
		"amount":           "5.5",
		"signerPassphrase": "secret",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AWAITING_SECOND_SIGNATURE", body["stage"])
	assert.NotEmpty(t, rec.Header().Get(requestIdHeader))

	require.Len(t, ts.withdrawals.got, 1)
	got := ts.withdrawals.got[0]
	assert.Equal(t, models.AssetNative, got.AssetType)
	assert.Equal(t, "w1", got.WalletId)
	assert.Empty(t, got.TokenContractAddress)
	assert.Equal(t, "secret", got.SignerPassphrase)
}

func TestWithdrawTRC20(t *testing.T) {
	ts := setup(t)
	ts.withdrawals.result = &models.WithdrawalResult{Stage: models.StageExecuted, TxId: "abc"}

	rec, body := ts.do(t, http.MethodPost, "/api/withdraw/trc20", map[string]string{
		"walletId":             "w1",
		"toAddress":            "TDest",
		"amount":               "5.50",
		"tokenContractAddress": "TToken",
		"signerPassphrase":     "secret",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", body["txid"])
	require.Len(t, ts.withdrawals.got, 1)
	assert.Equal(t, models.AssetToken, ts.withdrawals.got[0].AssetType)
	assert.Equal(t, "TToken", ts.withdrawals.got[0].TokenContractAddress)
}

func TestWithdrawMissingFields(t *testing.T) {
	ts := setup(t)

	rec, body := ts.do(t, http.MethodPost, "/api/withdraw/trx", map[string]string{"walletId": "w1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", body["msg"])
	assert.Empty(t, ts.withdrawals.got)
}

func TestWithdrawErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid signer", apperrors.New(apperrors.CodeInvalidSigner, "op", "passphrase does not match a wallet signer"), http.StatusForbidden, "passphrase does not match a wallet signer"},
		{"duplicate", apperrors.New(apperrors.CodeDuplicateApproval, "op", "signer has already approved this withdrawal"), http.StatusConflict, "signer has already approved this withdrawal"},
		{"not found", apperrors.New(apperrors.CodeNotFound, "op", "wallet not found"), http.StatusNotFound, "wallet not found"},
		{"ledger", apperrors.WrapWithCode(apperrors.CodeLedger, "op", errors.New("node said raw tx deadbeef")), http.StatusBadGateway, "ledger operation failed"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setup(t)
			ts.withdrawals.err = tt.err

			rec, body := ts.do(t, http.MethodPost, "/api/withdraw/trx", map[string]string{
				"walletId": "w1", "toAddress": "T", "amount": "1", "signerPassphrase": "p",
			})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, body["msg"])
		})
	}
}

func TestWalletRoutes(t *testing.T) {
	ts := setup(t)
	ts.wallets.wallet = &models.MultisigWallet{Id: "w1", Address: "TWallet", PrivateKey: "hidden"}

	rec, body := ts.do(t, http.MethodGet, "/api/wallets/w1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TWallet", body["address"])
	assert.NotContains(t, rec.Body.String(), "hidden")

	rec, body = ts.do(t, http.MethodGet, "/api/wallets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "wallet not found", body["msg"])

	rec, body = ts.do(t, http.MethodGet, "/api/wallets/balance/trx/TWallet", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TWallet", body["address"])

	rec, _ = ts.do(t, http.MethodDelete, "/api/wallets/w1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"w1"}, ts.wallets.deleted)

	ts.wallets.err = apperrors.New(apperrors.CodeValidation, "op", "wallet still holds 3 TRX")
	rec, body = ts.do(t, http.MethodDelete, "/api/wallets/w1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wallet still holds 3 TRX", body["msg"])
}

func TestUpdatePermissionMissingWallet(t *testing.T) {
	ts := setup(t)

	rec, body := ts.do(t, http.MethodPost, "/api/wallets/update-permission", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", body["msg"])
}

func TestAuditRoutes(t *testing.T) {
	ts := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, ts.store.CreateApproval(ctx, &models.ApprovalRequest{
		Id: "a1", IntentKey: "k1", WalletId: "w1", AssetType: models.AssetNative,
		DestinationAddress: "TDest", Amount: "1", ApproverSet: []string{"TSigner"},
		CollectedSignatures: []string{"sig"},
		RawTransaction:      &models.RawTransaction{Format: "fake", Version: 1, TxId: "t"},
		CreatedAt:           now, UpdatedAt: now,
	}))
	require.NoError(t, ts.store.AppendSweepLog(ctx, &models.SweepLogEntry{
		Id: "s1", From: "TWallet", To: "TCollection", Amount: "14", TxId: "tx1",
		Status: models.SweepStatusSuccess, CreatedAt: now,
	}))
	require.NoError(t, ts.store.RecordTransactionLog(ctx, &models.TransactionLogEntry{
		Id: "l1", Address: "TWallet", Type: models.TransferTypeTRX, Hash: "h1",
		From: "TOther", To: "TWallet", Amount: "2", Timestamp: now,
	}))

	rec, body := ts.do(t, http.MethodGet, "/api/approvals/a1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "w1", body["walletId"])
	assert.NotContains(t, body, "intentKey")

	rec, _ = ts.do(t, http.MethodGet, "/api/approvals?limit=10", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/approvals?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid limit", body["msg"])

	rec, body = ts.do(t, http.MethodGet, "/api/sweeps/s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SUCCESS", body["status"])

	rec, _ = ts.do(t, http.MethodGet, "/api/sweeps/none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/transactions/l1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h1", body["hash"])

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?address=TWallet", nil)
	listRec := httptest.NewRecorder()
	ts.router.ServeHTTP(listRec, req)
	var logs []models.TransactionLogEntry
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)

	rec, _ = ts.do(t, http.MethodDelete, "/api/approvals/a1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodDelete, "/api/approvals/a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := setup(t)

	rec, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
