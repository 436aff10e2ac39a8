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
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) CreateMultisigWallet(ctx context.Context, wallet *models.MultisigWallet) error {
	zap.L().Info("Creating multisig wallet", zap.String("id", wallet.Id), zap.String("address", wallet.Address))

	sealed, err := s.vault.SealMultisig(wallet)
	if err != nil {
		return fmt.Errorf("unable to seal wallet secrets: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, queryInsertMultisigWallet,
		sealed.Id, sealed.Address, sealed.PublicKey, sealed.PrivateKey, sealed.Mnemonic, sealed.CreatedAt); err != nil {
		return fmt.Errorf("unable to insert multisig wallet: %w", err)
	}

	for i, signer := range sealed.Signers {
		if _, err := tx.ExecContext(ctx, queryInsertSigner,
			sealed.Id, i, signer.Address, signer.PublicKey, signer.PrivateKey, signer.Passphrase); err != nil {
			return fmt.Errorf("unable to insert signer %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) GetMultisigWallet(ctx context.Context, id string) (*models.MultisigWallet, error) {
	wallet, err := scanMultisigWallet(s.db.QueryRowContext(ctx, queryGetMultisigWallet, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("multisig wallet %s: %w", id, store.ErrNotFound)
		}
		zap.L().Error("Failed to query multisig wallet", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to query multisig wallet: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryGetSigners, id)
	if err != nil {
		return nil, fmt.Errorf("unable to query signers: %w", err)
	}
	defer closeRows(rows)

	signers, err := scanSigners(rows)
	if err != nil {
		return nil, err
	}
	wallet.Signers = signers[id]

	if err := s.vault.OpenMultisig(wallet); err != nil {
		return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
	}
	return wallet, nil
}

func (s *Service) ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListMultisigWallets)
	if err != nil {
		zap.L().Error("Failed to query multisig wallets", zap.Error(err))
		return nil, fmt.Errorf("unable to query multisig wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.MultisigWallet
	for rows.Next() {
		wallet, err := scanMultisigWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan multisig wallet row: %w", err)
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating multisig wallet rows: %w", err)
	}

	signerRows, err := s.db.QueryContext(ctx, queryListSigners)
	if err != nil {
		return nil, fmt.Errorf("unable to query signers: %w", err)
	}
	defer closeRows(signerRows)

	signers, err := scanSigners(signerRows)
	if err != nil {
		return nil, err
	}

	for i := range wallets {
		wallets[i].Signers = signers[wallets[i].Id]
		if err := s.vault.OpenMultisig(&wallets[i]); err != nil {
			return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
		}
	}

	zap.L().Debug("Retrieved multisig wallets", zap.Int("count", len(wallets)))
	return wallets, nil
}

func (s *Service) MarkPermissionUpdated(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryMarkPermissionUpdated, at, id)
	if err != nil {
		return fmt.Errorf("unable to mark permission updated: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx, queryMultisigWalletExists, id).Scan(&count); err != nil {
			return fmt.Errorf("unable to check wallet existence: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("multisig wallet %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("permission already updated - %w", store.ErrConcurrentModification)
	}
	return nil
}

func (s *Service) DeleteMultisigWallet(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, queryDeleteSigners, id); err != nil {
		return fmt.Errorf("unable to delete signers: %w", err)
	}
	if err := expectOneRow(tx.ExecContext(ctx, queryDeleteMultisigWallet, id)); err != nil {
		return fmt.Errorf("multisig wallet %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Service) CreateCollectionWallet(ctx context.Context, wallet *models.CollectionWallet) error {
	zap.L().Info("Creating collection wallet", zap.String("id", wallet.Id), zap.String("address", wallet.Address))

	sealed, err := s.vault.SealCollection(wallet)
	if err != nil {
		return fmt.Errorf("unable to seal wallet secrets: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryInsertCollectionWallet,
		sealed.Id, sealed.Address, sealed.PublicKey, sealed.PrivateKey, sealed.Mnemonic, sealed.CreatedAt); err != nil {
		return fmt.Errorf("unable to insert collection wallet: %w", err)
	}
	return nil
}

func (s *Service) GetCollectionWallet(ctx context.Context, id string) (*models.CollectionWallet, error) {
	var w models.CollectionWallet
	err := s.db.QueryRowContext(ctx, queryGetCollectionWallet, id).Scan(
		&w.Id, &w.Address, &w.PublicKey, &w.PrivateKey, &w.Mnemonic, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection wallet %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query collection wallet: %w", err)
	}
	if err := s.vault.OpenCollection(&w); err != nil {
		return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
	}
	return &w, nil
}

func (s *Service) ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListCollectionWallets)
	if err != nil {
		zap.L().Error("Failed to query collection wallets", zap.Error(err))
		return nil, fmt.Errorf("unable to query collection wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.CollectionWallet
	for rows.Next() {
		var w models.CollectionWallet
		if err := rows.Scan(&w.Id, &w.Address, &w.PublicKey, &w.PrivateKey, &w.Mnemonic, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan collection wallet row: %w", err)
		}
		if err := s.vault.OpenCollection(&w); err != nil {
			return nil, fmt.Errorf("unable to open wallet secrets: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection wallet rows: %w", err)
	}
	return wallets, nil
}

func (s *Service) DeleteCollectionWallet(ctx context.Context, id string) error {
	if err := expectOneRow(s.db.ExecContext(ctx, queryDeleteCollectionWallet, id)); err != nil {
		return fmt.Errorf("collection wallet %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMultisigWallet(row rowScanner) (*models.MultisigWallet, error) {
	var w models.MultisigWallet
	var permissionUpdatedAt sql.NullTime
	if err := row.Scan(&w.Id, &w.Address, &w.PublicKey, &w.PrivateKey, &w.Mnemonic,
		&w.CreatedAt, &permissionUpdatedAt); err != nil {
		return nil, err
	}
	if permissionUpdatedAt.Valid {
		t := permissionUpdatedAt.Time
		w.PermissionUpdatedAt = &t
	}
	return &w, nil
}

func scanSigners(rows *sql.Rows) (map[string][]models.Signer, error) {
	signers := make(map[string][]models.Signer)
	for rows.Next() {
		var walletId string
		var signer models.Signer
		if err := rows.Scan(&walletId, &signer.Address, &signer.PublicKey, &signer.PrivateKey, &signer.Passphrase); err != nil {
			return nil, fmt.Errorf("unable to scan signer row: %w", err)
		}
		signers[walletId] = append(signers[walletId], signer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signer rows: %w", err)
	}
	return signers, nil
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
