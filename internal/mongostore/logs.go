package mongostore

import (
	"context"
	"fmt"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (s *Service) AppendSweepLog(ctx context.Context, entry *models.SweepLogEntry) error {
	if _, err := s.sweepLogs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("unable to insert sweep log: %w", err)
	}
	return nil
}

func (s *Service) GetSweepLog(ctx context.Context, id string) (*models.SweepLogEntry, error) {
	var e models.SweepLogEntry
	if err := s.sweepLogs.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, notFound(err, "sweep log", id)
	}
	return &e, nil
}

func (s *Service) ListSweepLogs(ctx context.Context, params store.ListParams) ([]models.SweepLogEntry, error) {
	cursor, err := s.sweepLogs.Find(ctx, bson.M{}, findOptions(params, "createdAt"))
	if err != nil {
		return nil, fmt.Errorf("unable to query sweep logs: %w", err)
	}
	var entries []models.SweepLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("unable to decode sweep logs: %w", err)
	}
	return entries, nil
}

func (s *Service) RecordTransactionLog(ctx context.Context, entry *models.TransactionLogEntry) error {
	if _, err := s.txLogs.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: hash %s already recorded", store.ErrDuplicateTransaction, entry.Hash)
		}
		return fmt.Errorf("unable to insert transaction log: %w", err)
	}
	return nil
}

func (s *Service) GetTransactionLog(ctx context.Context, id string) (*models.TransactionLogEntry, error) {
	var e models.TransactionLogEntry
	if err := s.txLogs.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, notFound(err, "transaction log", id)
	}
	return &e, nil
}

func transactionLogFilter(address string) bson.M {
	if address == "" {
		return bson.M{}
	}
	return bson.M{"address": address}
}

func (s *Service) ListTransactionLogs(ctx context.Context, address string, params store.ListParams) ([]models.TransactionLogEntry, error) {
	cursor, err := s.txLogs.Find(ctx, transactionLogFilter(address), findOptions(params, "timestamp"))
	if err != nil {
		return nil, fmt.Errorf("unable to query transaction logs: %w", err)
	}
	var entries []models.TransactionLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("unable to decode transaction logs: %w", err)
	}
	return entries, nil
}
