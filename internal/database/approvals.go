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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) CreateApproval(ctx context.Context, approval *models.ApprovalRequest) error {
	approverSet, signatures, err := encodeLists(approval)
	if err != nil {
		return err
	}
	raw := rawColumns(approval.RawTransaction)

	_, err = s.db.ExecContext(ctx, queryInsertApproval,
		approval.Id, approval.IntentKey, approval.WalletId, string(approval.AssetType),
		approval.DestinationAddress, approval.Amount, approval.TokenContractAddress,
		approverSet, signatures, raw.format, raw.version, raw.txId, raw.payload,
		approval.Executed, approval.TxId, approval.Version,
		approval.CreatedAt, approval.UpdatedAt, nullTime(approval.ExecutedAt))
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Info("Live approval already exists for intent",
				zap.String("wallet_id", approval.WalletId),
				zap.String("intent_key", approval.IntentKey))
			return store.ErrApprovalExists
		}
		zap.L().Error("Failed to insert approval", zap.String("id", approval.Id), zap.Error(err))
		return fmt.Errorf("unable to insert approval: %w", err)
	}
	return nil
}

func (s *Service) FindLiveApproval(ctx context.Context, intentKey string) (*models.ApprovalRequest, error) {
	approval, err := scanApproval(s.db.QueryRowContext(ctx, queryFindLiveApproval, intentKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("unable to query live approval: %w", err)
	}
	return approval, nil
}

func (s *Service) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	approval, err := scanApproval(s.db.QueryRowContext(ctx, queryGetApproval, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approval %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query approval: %w", err)
	}
	return approval, nil
}

func (s *Service) UpdateApproval(ctx context.Context, approval *models.ApprovalRequest) error {
	approverSet, signatures, err := encodeLists(approval)
	if err != nil {
		return err
	}
	raw := rawColumns(approval.RawTransaction)
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, queryUpdateApproval,
		approverSet, signatures, raw.format, raw.version, raw.txId, raw.payload,
		approval.Executed, approval.TxId, now, nullTime(approval.ExecutedAt),
		approval.Id, approval.Version)
	if err != nil {
		return fmt.Errorf("unable to update approval: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("approval update failed - %w", store.ErrConcurrentModification)
	}

	approval.Version++
	approval.UpdatedAt = now
	return nil
}

func (s *Service) ListApprovals(ctx context.Context, params store.ListParams) ([]models.ApprovalRequest, error) {
	params = params.Normalize()
	rows, err := s.db.QueryContext(ctx, queryListApprovals, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query approvals: %w", err)
	}
	defer closeRows(rows)

	var approvals []models.ApprovalRequest
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan approval row: %w", err)
		}
		approvals = append(approvals, *approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rows: %w", err)
	}
	return approvals, nil
}

func (s *Service) DeleteApproval(ctx context.Context, id string) error {
	if err := expectOneRow(s.db.ExecContext(ctx, queryDeleteApproval, id)); err != nil {
		return fmt.Errorf("approval %s: %w", id, err)
	}
	return nil
}

func (s *Service) DistinctTokenContracts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryDistinctTokenContracts)
	if err != nil {
		return nil, fmt.Errorf("unable to query token contracts: %w", err)
	}
	defer closeRows(rows)

	var contracts []string
	for rows.Next() {
		var contract string
		if err := rows.Scan(&contract); err != nil {
			return nil, fmt.Errorf("unable to scan token contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

type rawTxColumns struct {
	format  string
	version int
	txId    string
	payload []byte
}

func rawColumns(raw *models.RawTransaction) rawTxColumns {
	if raw == nil {
		return rawTxColumns{}
	}
	return rawTxColumns{format: raw.Format, version: raw.Version, txId: raw.TxId, payload: raw.Payload}
}

func encodeLists(approval *models.ApprovalRequest) (string, string, error) {
	approverSet, err := json.Marshal(nonNil(approval.ApproverSet))
	if err != nil {
		return "", "", fmt.Errorf("unable to encode approver set: %w", err)
	}
	signatures, err := json.Marshal(nonNil(approval.CollectedSignatures))
	if err != nil {
		return "", "", fmt.Errorf("unable to encode signatures: %w", err)
	}
	return string(approverSet), string(signatures), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanApproval(row rowScanner) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	var assetType, approverSet, signatures string
	var raw rawTxColumns
	var executedAt sql.NullTime

	if err := row.Scan(&a.Id, &a.IntentKey, &a.WalletId, &assetType, &a.DestinationAddress,
		&a.Amount, &a.TokenContractAddress, &approverSet, &signatures,
		&raw.format, &raw.version, &raw.txId, &raw.payload,
		&a.Executed, &a.TxId, &a.Version, &a.CreatedAt, &a.UpdatedAt, &executedAt); err != nil {
		return nil, err
	}

	a.AssetType = models.AssetType(assetType)
	if err := json.Unmarshal([]byte(approverSet), &a.ApproverSet); err != nil {
		return nil, fmt.Errorf("unable to decode approver set: %w", err)
	}
	if err := json.Unmarshal([]byte(signatures), &a.CollectedSignatures); err != nil {
		return nil, fmt.Errorf("unable to decode signatures: %w", err)
	}
	if raw.format != "" {
		a.RawTransaction = &models.RawTransaction{
			Format:  raw.format,
			Version: raw.version,
			TxId:    raw.txId,
			Payload: raw.payload,
		}
	}
	if executedAt.Valid {
		t := executedAt.Time
		a.ExecutedAt = &t
	}
	return &a, nil
}
