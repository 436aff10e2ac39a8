package formance

import (
	"context"
	"errors"
	"testing"
	"time"

	"tron-custody-go/internal/models"
)

const usdtContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func testService() *Service {
	return newService(nil, "test", 6, map[string]string{
		usdtContract:                         "usdt",
		"TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8": "not a symbol",
	})
}

func TestAssets(t *testing.T) {
	s := testService()

	if got := nativeAsset(); got != "TRX/6" {
		t.Errorf("nativeAsset() = %q, want TRX/6", got)
	}
	tests := []struct {
		contract string
		want     string
	}{
		{usdtContract, "USDT/6"},
		{"TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8", "TRC20/6"},
		{"TUnknown", "TRC20/6"},
	}
	for _, tt := range tests {
		if got := s.tokenAsset(tt.contract); got != tt.want {
			t.Errorf("tokenAsset(%q) = %q, want %q", tt.contract, got, tt.want)
		}
	}
}

func TestWithdrawalTransaction(t *testing.T) {
	s := testService()
	executedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	wallet := &models.MultisigWallet{Id: "w1", Address: "TWallet"}

	approval := &models.ApprovalRequest{
		Id:                   "a1",
		WalletId:             "w1",
		AssetType:            models.AssetToken,
		DestinationAddress:   "TDest",
		Amount:               "5.5",
		TokenContractAddress: usdtContract,
		ApproverSet:          []string{"TSigner1", "TSigner2"},
		TxId:                 "abc123",
		ExecutedAt:           &executedAt,
	}

	postTx, err := s.withdrawalTransaction(wallet, approval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *postTx.Reference != "abc123" {
		t.Errorf("reference = %q, want txid", *postTx.Reference)
	}
	if !postTx.Timestamp.Equal(executedAt) {
		t.Errorf("timestamp = %v, want %v", postTx.Timestamp, executedAt)
	}

	vars := postTx.Script.Vars
	want := map[string]string{
		"asset":       "USDT/6",
		"amount":      "5500000",
		"wallet":      "custody:multisig:TWallet",
		"destination": "external:TDest",
		"asset_type":  "TOKEN",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("var %s = %q, want %q", k, vars[k], v)
		}
	}

	approval.AssetType = models.AssetNative
	approval.TokenContractAddress = ""
	postTx, err = s.withdrawalTransaction(wallet, approval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if postTx.Script.Vars["asset"] != "TRX/6" || postTx.Script.Vars["amount"] != "5500000" {
		t.Errorf("unexpected native vars: %v", postTx.Script.Vars)
	}
}

func TestWithdrawalTransactionRejectsIncompleteApproval(t *testing.T) {
	s := testService()
	wallet := &models.MultisigWallet{Id: "w1", Address: "TWallet"}

	if _, err := s.withdrawalTransaction(wallet, &models.ApprovalRequest{Id: "a1", Amount: "1", AssetType: models.AssetNative}); err == nil {
		t.Error("expected error for approval without txid")
	}
	if _, err := s.withdrawalTransaction(wallet, &models.ApprovalRequest{Id: "a1", Amount: "x", AssetType: models.AssetNative, TxId: "t"}); err == nil {
		t.Error("expected error for bad amount")
	}
	if _, err := s.withdrawalTransaction(wallet, &models.ApprovalRequest{Id: "a1", Amount: "1", AssetType: "BOGUS", TxId: "t"}); err == nil {
		t.Error("expected error for unknown asset type")
	}
}

func TestSweepTransaction(t *testing.T) {
	s := testService()

	postTx, err := s.sweepTransaction(&models.SweepLogEntry{
		Id:     "s1",
		From:   "TWallet",
		To:     "TCollection",
		Amount: "11.7319",
		TxId:   "deadbeef",
		Status: models.SweepStatusSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *postTx.Reference != "deadbeef" {
		t.Errorf("reference = %q, want txid", *postTx.Reference)
	}
	if postTx.Timestamp != nil {
		t.Error("expected no timestamp for zero CreatedAt")
	}
	vars := postTx.Script.Vars
	if vars["amount"] != "11731900" {
		t.Errorf("amount = %q, want 11731900", vars["amount"])
	}
	if vars["collection"] != "custody:collection:TCollection" {
		t.Errorf("collection = %q", vars["collection"])
	}

	if _, err := s.sweepTransaction(&models.SweepLogEntry{Id: "s2", Amount: "1"}); err == nil {
		t.Error("expected error for sweep without txid")
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isConflictError(errors.New("boom")) {
		t.Error("plain error should not be a conflict error")
	}
}

func TestNewServiceRequiresCredentials(t *testing.T) {
	_, err := NewService(context.Background(), models.FormanceConfig{StackURL: "http://localhost"}, 6, nil)
	if err == nil {
		t.Fatal("expected error when client credentials are missing")
	}
}
