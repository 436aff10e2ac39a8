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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) AppendSweepLog(ctx context.Context, entry *models.SweepLogEntry) error {
	_, err := s.db.ExecContext(ctx, queryInsertSweepLog,
		entry.Id, entry.From, entry.To, entry.Amount, entry.TxId,
		string(entry.Status), entry.Error, entry.CreatedAt)
	if err != nil {
		zap.L().Error("Failed to insert sweep log", zap.String("from", entry.From), zap.Error(err))
		return fmt.Errorf("unable to insert sweep log: %w", err)
	}
	return nil
}

func (s *Service) GetSweepLog(ctx context.Context, id string) (*models.SweepLogEntry, error) {
	entry, err := scanSweepLog(s.db.QueryRowContext(ctx, queryGetSweepLog, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sweep log %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query sweep log: %w", err)
	}
	return entry, nil
}

func (s *Service) ListSweepLogs(ctx context.Context, params store.ListParams) ([]models.SweepLogEntry, error) {
	params = params.Normalize()
	rows, err := s.db.QueryContext(ctx, queryListSweepLogs, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query sweep logs: %w", err)
	}
	defer closeRows(rows)

	var entries []models.SweepLogEntry
	for rows.Next() {
		entry, err := scanSweepLog(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan sweep log row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep log rows: %w", err)
	}
	return entries, nil
}

func (s *Service) RecordTransactionLog(ctx context.Context, entry *models.TransactionLogEntry) error {
	_, err := s.db.ExecContext(ctx, queryInsertTransactionLog,
		entry.Id, entry.Address, entry.Type, entry.Hash, entry.From, entry.To,
		entry.Amount, entry.TokenContract, entry.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hash %s already recorded", store.ErrDuplicateTransaction, entry.Hash)
		}
		return fmt.Errorf("unable to insert transaction log: %w", err)
	}
	return nil
}

func (s *Service) GetTransactionLog(ctx context.Context, id string) (*models.TransactionLogEntry, error) {
	entry, err := scanTransactionLog(s.db.QueryRowContext(ctx, queryGetTransactionLog, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction log %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query transaction log: %w", err)
	}
	return entry, nil
}

func (s *Service) ListTransactionLogs(ctx context.Context, address string, params store.ListParams) ([]models.TransactionLogEntry, error) {
	params = params.Normalize()
	rows, err := s.db.QueryContext(ctx, queryListTransactionLogs, address, address, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query transaction logs: %w", err)
	}
	defer closeRows(rows)

	var entries []models.TransactionLogEntry
	for rows.Next() {
		entry, err := scanTransactionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan transaction log row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction log rows: %w", err)
	}
	return entries, nil
}

func scanSweepLog(row rowScanner) (*models.SweepLogEntry, error) {
	var e models.SweepLogEntry
	var status string
	if err := row.Scan(&e.Id, &e.From, &e.To, &e.Amount, &e.TxId, &status, &e.Error, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Status = models.SweepStatus(status)
	return &e, nil
}

func scanTransactionLog(row rowScanner) (*models.TransactionLogEntry, error) {
	var e models.TransactionLogEntry
	if err := row.Scan(&e.Id, &e.Address, &e.Type, &e.Hash, &e.From, &e.To,
		&e.Amount, &e.TokenContract, &e.Timestamp); err != nil {
		return nil, err
	}
	return &e, nil
}
