package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
)

func TestSweepLogs(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC()
	entries := []models.SweepLogEntry{
		{Id: "s1", From: "TA", To: "TC", Amount: "14.7319", TxId: "tx1", Status: models.SweepStatusSuccess, CreatedAt: base},
		{Id: "s2", From: "TB", To: "TC", Amount: "20", Status: models.SweepStatusFailed, Error: "bandwidth", CreatedAt: base.Add(time.Second)},
	}
	for i := range entries {
		if err := service.AppendSweepLog(ctx, &entries[i]); err != nil {
			t.Fatalf("AppendSweepLog failed: %v", err)
		}
	}

	list, err := service.ListSweepLogs(ctx, store.ListParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListSweepLogs failed: %v", err)
	}
	if len(list) != 2 || list[0].Id != "s2" {
		t.Fatalf("Expected newest first, got %+v", list)
	}
	if list[0].Status != models.SweepStatusFailed || list[0].Error != "bandwidth" {
		t.Errorf("Failed entry not round-tripped: %+v", list[0])
	}

	got, err := service.GetSweepLog(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSweepLog failed: %v", err)
	}
	if got.TxId != "tx1" || got.Amount != "14.7319" {
		t.Errorf("Unexpected entry: %+v", got)
	}

	if _, err := service.GetSweepLog(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTransactionLogsDeduplicateByHash(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	entry := &models.TransactionLogEntry{
		Id: "t1", Address: "TA", Type: models.TransferTypeTRX, Hash: "h1",
		From: "TX", To: "TA", Amount: "5", Timestamp: time.Now().UTC(),
	}
	if err := service.RecordTransactionLog(ctx, entry); err != nil {
		t.Fatalf("RecordTransactionLog failed: %v", err)
	}

	dup := *entry
	dup.Id = "t2"
	if err := service.RecordTransactionLog(ctx, &dup); !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("Expected ErrDuplicateTransaction, got %v", err)
	}

	other := &models.TransactionLogEntry{
		Id: "t3", Address: "TB", Type: models.TransferTypeTRC20, Hash: "h2",
		From: "TX", To: "TB", Amount: "1.5", TokenContract: "TUSDT", Timestamp: time.Now().UTC(),
	}
	if err := service.RecordTransactionLog(ctx, other); err != nil {
		t.Fatalf("RecordTransactionLog failed: %v", err)
	}

	forA, err := service.ListTransactionLogs(ctx, "TA", store.ListParams{})
	if err != nil {
		t.Fatalf("ListTransactionLogs failed: %v", err)
	}
	if len(forA) != 1 || forA[0].Hash != "h1" {
		t.Errorf("Expected only TA entries, got %+v", forA)
	}

	all, err := service.ListTransactionLogs(ctx, "", store.ListParams{})
	if err != nil {
		t.Fatalf("ListTransactionLogs failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(all))
	}

	got, err := service.GetTransactionLog(ctx, "t3")
	if err != nil {
		t.Fatalf("GetTransactionLog failed: %v", err)
	}
	if got.TokenContract != "TUSDT" {
		t.Errorf("Unexpected entry: %+v", got)
	}
}
