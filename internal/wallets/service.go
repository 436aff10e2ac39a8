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

package wallets

import (
	"context"
	"errors"
	"math/big"
	"time"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/keys"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"
	"tron-custody-go/internal/withdrawal"

	"go.uber.org/zap"
)

// Ledger is the chain capability wallet management needs.
type Ledger interface {
	BuildNativeTransfer(ctx context.Context, from, to string, amountSun int64, permissionId int32) (*models.RawTransaction, error)
	BuildTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int, permissionId int32) (*models.RawTransaction, error)
	BuildPermissionUpdate(ctx context.Context, owner string, signers []string, threshold int64) (*models.RawTransaction, error)
	Sign(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error)
	Broadcast(ctx context.Context, raw *models.RawTransaction) (string, error)
	GetBalance(ctx context.Context, address string) (int64, error)
	GetTokenBalance(ctx context.Context, contract, owner string) (*big.Int, error)
}

type Service struct {
	ledger        Ledger
	store         store.WalletStore
	tokenDecimals int32
}

func NewService(ledger Ledger, st store.WalletStore, tokenDecimals int32) *Service {
	return &Service{
		ledger:        ledger,
		store:         st,
		tokenDecimals: tokenDecimals,
	}
}

// GenerateMultisigWallet creates and stores a new wallet. The response is the
// only place signer passphrases are returned.
func (s *Service) GenerateMultisigWallet(ctx context.Context) (*models.GeneratedMultisigWallet, error) {
	const op = "wallets.GenerateMultisigWallet"

	wallet, err := keys.NewMultisigWallet()
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeInternal, op, err)
	}
	if err := s.store.CreateMultisigWallet(ctx, wallet); err != nil {
		zap.L().Error("Failed to store multisig wallet", zap.String("address", wallet.Address), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	zap.L().Info("Multisig wallet generated",
		zap.String("wallet_id", wallet.Id),
		zap.String("address", wallet.Address))

	signers := make([]models.GeneratedSigner, len(wallet.Signers))
	for i, signer := range wallet.Signers {
		signers[i] = models.GeneratedSigner{
			Address:    signer.Address,
			PublicKey:  signer.PublicKey,
			Passphrase: signer.Passphrase,
		}
	}
	return &models.GeneratedMultisigWallet{
		Id:        wallet.Id,
		Address:   wallet.Address,
		PublicKey: wallet.PublicKey,
		Mnemonic:  wallet.Mnemonic,
		Signers:   signers,
		CreatedAt: wallet.CreatedAt,
	}, nil
}

// UpdatePermission hands the wallet's owner and active permissions to its two
// signers with threshold 2. After it succeeds the wallet key alone can no
// longer move funds.
func (s *Service) UpdatePermission(ctx context.Context, walletId string) (*models.TransferResult, error) {
	const op = "wallets.UpdatePermission"

	wallet, err := s.GetMultisigWallet(ctx, walletId)
	if err != nil {
		return nil, err
	}
	if wallet.PermissionUpdated() {
		return nil, apperrors.New(apperrors.CodeValidation, op, "wallet permission already updated")
	}

	signers := make([]string, len(wallet.Signers))
	for i, signer := range wallet.Signers {
		signers[i] = signer.Address
	}

	unsigned, err := s.ledger.BuildPermissionUpdate(ctx, wallet.Address, signers, withdrawal.RequiredSignatures)
	if err != nil {
		zap.L().Error("Unable to build permission update", zap.String("wallet_id", wallet.Id), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	signed, _, err := s.ledger.Sign(unsigned, wallet.PrivateKey, wallet.Address)
	if err != nil {
		zap.L().Error("Unable to sign permission update", zap.String("wallet_id", wallet.Id), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	txId, err := s.ledger.Broadcast(ctx, signed)
	if err != nil {
		zap.L().Error("Permission update broadcast failed", zap.String("wallet_id", wallet.Id), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	if err := s.store.MarkPermissionUpdated(ctx, wallet.Id, time.Now().UTC()); err != nil {
		zap.L().Error("Permission updated on chain but not recorded",
			zap.String("wallet_id", wallet.Id),
			zap.String("txid", txId),
			zap.Error(err))
		if errors.Is(err, store.ErrConcurrentModification) {
			return nil, apperrors.WrapWithCode(apperrors.CodeConcurrencyConflict, op, err)
		}
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	zap.L().Info("Wallet permission updated",
		zap.String("wallet_id", wallet.Id),
		zap.String("address", wallet.Address),
		zap.String("txid", txId))

	return &models.TransferResult{TxId: txId, Message: "Multisig permission updated"}, nil
}

func (s *Service) GetMultisigWallet(ctx context.Context, walletId string) (*models.MultisigWallet, error) {
	const op = "wallets.GetMultisigWallet"

	wallet, err := s.store.GetMultisigWallet(ctx, walletId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, op, "wallet not found")
		}
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}
	return wallet, nil
}

func (s *Service) ListMultisigWallets(ctx context.Context) ([]models.MultisigWallet, error) {
	wallets, err := s.store.ListMultisigWallets(ctx)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, "wallets.ListMultisigWallets", err)
	}
	return wallets, nil
}

// DeleteMultisigWallet removes a wallet that holds no TRX.
func (s *Service) DeleteMultisigWallet(ctx context.Context, walletId string) error {
	const op = "wallets.DeleteMultisigWallet"

	wallet, err := s.GetMultisigWallet(ctx, walletId)
	if err != nil {
		return err
	}

	balance, err := s.ledger.GetBalance(ctx, wallet.Address)
	if err != nil {
		return apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	if balance > 0 {
		return apperrors.New(apperrors.CodeValidation, op, "wallet still holds "+tron.SunToTRX(balance).String()+" TRX")
	}

	if err := s.store.DeleteMultisigWallet(ctx, wallet.Id); err != nil {
		return apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}
	zap.L().Info("Multisig wallet deleted", zap.String("wallet_id", wallet.Id), zap.String("address", wallet.Address))
	return nil
}

// TRXBalance returns the TRX balance of any address.
func (s *Service) TRXBalance(ctx context.Context, address string) (*models.BalanceResponse, error) {
	const op = "wallets.TRXBalance"

	if !tron.IsValidAddress(address) {
		return nil, apperrors.New(apperrors.CodeValidation, op, "invalid address")
	}
	sun, err := s.ledger.GetBalance(ctx, address)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	return &models.BalanceResponse{
		Address: address,
		Asset:   models.TransferTypeTRX,
		Balance: tron.SunToTRX(sun),
	}, nil
}

// TokenBalance returns the balance of a TRC20 contract held by address.
func (s *Service) TokenBalance(ctx context.Context, address, contract string) (*models.BalanceResponse, error) {
	const op = "wallets.TokenBalance"

	if !tron.IsValidAddress(address) || !tron.IsValidAddress(contract) {
		return nil, apperrors.New(apperrors.CodeValidation, op, "invalid address")
	}
	units, err := s.ledger.GetTokenBalance(ctx, contract, address)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	return &models.BalanceResponse{
		Address:       address,
		Asset:         models.TransferTypeTRC20,
		TokenContract: contract,
		Balance:       tron.FromBaseUnits(units, s.tokenDecimals),
	}, nil
}
