package wallets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/keys"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GenerateCollectionWallet(ctx context.Context) (*models.GeneratedCollectionWallet, error) {
	const op = "wallets.GenerateCollectionWallet"

	wallet, err := keys.NewCollectionWallet()
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeInternal, op, err)
	}
	if err := s.store.CreateCollectionWallet(ctx, wallet); err != nil {
		zap.L().Error("Failed to store collection wallet", zap.String("address", wallet.Address), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	zap.L().Info("Collection wallet generated",
		zap.String("wallet_id", wallet.Id),
		zap.String("address", wallet.Address))

	return &models.GeneratedCollectionWallet{
		Id:        wallet.Id,
		Address:   wallet.Address,
		PublicKey: wallet.PublicKey,
		Mnemonic:  wallet.Mnemonic,
		CreatedAt: wallet.CreatedAt,
	}, nil
}

func (s *Service) ListCollectionWallets(ctx context.Context) ([]models.CollectionWallet, error) {
	wallets, err := s.store.ListCollectionWallets(ctx)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, "wallets.ListCollectionWallets", err)
	}
	return wallets, nil
}

func (s *Service) DeleteCollectionWallet(ctx context.Context, walletId string) error {
	const op = "wallets.DeleteCollectionWallet"

	if err := s.store.DeleteCollectionWallet(ctx, walletId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, op, "wallet not found")
		}
		return apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}
	zap.L().Info("Collection wallet deleted", zap.String("wallet_id", walletId))
	return nil
}

// SendTRX transfers TRX from a collection wallet with its own key.
func (s *Service) SendTRX(ctx context.Context, req models.SendTRXRequest) (*models.TransferResult, error) {
	const op = "wallets.SendTRX"

	wallet, amount, err := s.prepareSend(ctx, op, req.WalletId, req.ToAddress, req.Amount)
	if err != nil {
		return nil, err
	}
	sun, err := tron.TRXToSun(amount)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeValidation, op, err)
	}

	unsigned, err := s.ledger.BuildNativeTransfer(ctx, wallet.Address, req.ToAddress, sun, tron.OwnerPermissionId)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	txId, err := s.signAndBroadcast(ctx, wallet, unsigned)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	zap.L().Info("TRX sent from collection wallet",
		zap.String("wallet_id", wallet.Id),
		zap.String("to", req.ToAddress),
		zap.String("amount", amount.String()),
		zap.String("txid", txId))
	return &models.TransferResult{TxId: txId, Message: "TRX sent"}, nil
}

// SendTRC20 transfers a token from a collection wallet with its own key.
func (s *Service) SendTRC20(ctx context.Context, req models.SendTRC20Request) (*models.TransferResult, error) {
	const op = "wallets.SendTRC20"

	if !tron.IsValidAddress(req.TokenContractAddress) {
		return nil, apperrors.New(apperrors.CodeValidation, op, "invalid token contract address")
	}
	wallet, amount, err := s.prepareSend(ctx, op, req.WalletId, req.ToAddress, req.Amount)
	if err != nil {
		return nil, err
	}
	units, err := tron.ToBaseUnits(amount, s.tokenDecimals)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeValidation, op, err)
	}

	unsigned, err := s.ledger.BuildTokenTransfer(ctx, wallet.Address, req.TokenContractAddress, req.ToAddress, units, tron.OwnerPermissionId)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}
	txId, err := s.signAndBroadcast(ctx, wallet, unsigned)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	zap.L().Info("TRC20 sent from collection wallet",
		zap.String("wallet_id", wallet.Id),
		zap.String("contract", req.TokenContractAddress),
		zap.String("to", req.ToAddress),
		zap.String("amount", amount.String()),
		zap.String("txid", txId))
	return &models.TransferResult{TxId: txId, Message: "TRC20 sent"}, nil
}

func (s *Service) prepareSend(ctx context.Context, op, walletId, to, rawAmount string) (*models.CollectionWallet, decimal.Decimal, error) {
	if !tron.IsValidAddress(to) {
		return nil, decimal.Zero, apperrors.New(apperrors.CodeValidation, op, "invalid destination address")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil || !amount.IsPositive() {
		return nil, decimal.Zero, apperrors.New(apperrors.CodeValidation, op, fmt.Sprintf("invalid amount %q", rawAmount))
	}

	wallet, err := s.store.GetCollectionWallet(ctx, walletId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, decimal.Zero, apperrors.New(apperrors.CodeNotFound, op, "wallet not found")
		}
		return nil, decimal.Zero, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}
	return wallet, amount, nil
}

func (s *Service) signAndBroadcast(ctx context.Context, wallet *models.CollectionWallet, unsigned *models.RawTransaction) (string, error) {
	signed, _, err := s.ledger.Sign(unsigned, wallet.PrivateKey, wallet.Address)
	if err != nil {
		return "", err
	}
	return s.ledger.Broadcast(ctx, signed)
}
