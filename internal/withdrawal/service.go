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

package withdrawal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"tron-custody-go/internal/apperrors"
	"tron-custody-go/internal/models"
	"tron-custody-go/internal/store"
	"tron-custody-go/internal/tron"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequiredSignatures is the number of distinct signer approvals that make a
// withdrawal broadcastable.
const RequiredSignatures = 2

// Ledger is the chain capability the orchestrator drives.
type Ledger interface {
	BuildNativeTransfer(ctx context.Context, from, to string, amountSun int64, permissionId int32) (*models.RawTransaction, error)
	BuildTokenTransfer(ctx context.Context, from, contract, to string, amount *big.Int, permissionId int32) (*models.RawTransaction, error)
	Sign(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error)
	CombineSignatures(raw *models.RawTransaction, privateKeyHex, signerAddress string) (*models.RawTransaction, string, error)
	Broadcast(ctx context.Context, raw *models.RawTransaction) (string, error)
}

// Recorder mirrors executed withdrawals into an external ledger.
type Recorder interface {
	RecordWithdrawal(ctx context.Context, wallet *models.MultisigWallet, approval *models.ApprovalRequest) error
}

// Store is the persistence the orchestrator needs.
type Store interface {
	store.WalletStore
	store.ApprovalStore
}

type Service struct {
	ledger        Ledger
	store         Store
	recorder      Recorder
	tokenDecimals int32
}

// NewService wires the orchestrator. recorder may be nil.
func NewService(ledger Ledger, st Store, recorder Recorder, tokenDecimals int32) *Service {
	return &Service{
		ledger:        ledger,
		store:         st,
		recorder:      recorder,
		tokenDecimals: tokenDecimals,
	}
}

// RequestWithdrawal records one signer's approval of a withdrawal intent. The
// first approval builds and signs the transfer; the approval completing the
// signer set combines signatures and broadcasts.
func (s *Service) RequestWithdrawal(ctx context.Context, req models.WithdrawalRequest) (*models.WithdrawalResult, error) {
	const op = "withdrawal.RequestWithdrawal"

	intent, err := s.normalize(req.WithdrawalIntent)
	if err != nil {
		return nil, apperrors.WrapWithCode(apperrors.CodeValidation, op, err)
	}
	if req.SignerPassphrase == "" {
		return nil, apperrors.New(apperrors.CodeValidation, op, "signerPassphrase is required")
	}

	wallet, err := s.store.GetMultisigWallet(ctx, intent.WalletId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, op, "wallet not found")
		}
		zap.L().Error("Wallet lookup failed", zap.String("wallet_id", intent.WalletId), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	signer := matchSigner(wallet, req.SignerPassphrase)
	if signer == nil {
		zap.L().Warn("Withdrawal rejected: passphrase matches no signer",
			zap.String("wallet_id", wallet.Id))
		return nil, apperrors.New(apperrors.CodeInvalidSigner, op, "passphrase does not match a wallet signer")
	}

	logger := zap.L().With(
		zap.String("wallet_id", wallet.Id),
		zap.String("asset_type", string(intent.AssetType)),
		zap.String("destination", intent.DestinationAddress),
		zap.String("amount", intent.Amount),
		zap.String("token_contract", intent.TokenContractAddress),
		zap.String("signer", signer.Address))

	// A lost create race or CAS collision is retried once against fresh state.
	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.approve(ctx, logger, wallet, signer, intent)
		if errors.Is(err, store.ErrApprovalExists) || errors.Is(err, store.ErrConcurrentModification) {
			logger.Info("Approval raced with a concurrent request, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		return result, err
	}
	return nil, apperrors.New(apperrors.CodeConcurrencyConflict, op, "approval was modified concurrently")
}

func (s *Service) approve(ctx context.Context, logger *zap.Logger, wallet *models.MultisigWallet, signer *models.Signer, intent models.WithdrawalIntent) (*models.WithdrawalResult, error) {
	const op = "withdrawal.approve"

	live, err := s.store.FindLiveApproval(ctx, intent.Key())
	if errors.Is(err, store.ErrNotFound) {
		return s.firstApproval(ctx, logger, wallet, signer, intent)
	}
	if err != nil {
		logger.Error("Approval lookup failed", zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	if len(live.ApproverSet) >= RequiredSignatures {
		// Fully signed but not executed: an earlier broadcast failed.
		if !live.HasApprover(signer.Address) {
			return nil, apperrors.New(apperrors.CodeDuplicateApproval, op, "withdrawal already has every required signature")
		}
		logger.Info("Retrying broadcast of fully signed withdrawal", zap.String("approval_id", live.Id))
		return s.broadcast(ctx, logger, wallet, live)
	}

	if live.HasApprover(signer.Address) {
		logger.Info("Duplicate approval rejected", zap.String("approval_id", live.Id))
		return nil, apperrors.New(apperrors.CodeDuplicateApproval, op, "signer has already approved this withdrawal")
	}

	return s.addApproval(ctx, logger, wallet, signer, live)
}

func (s *Service) firstApproval(ctx context.Context, logger *zap.Logger, wallet *models.MultisigWallet, signer *models.Signer, intent models.WithdrawalIntent) (*models.WithdrawalResult, error) {
	const op = "withdrawal.firstApproval"

	unsigned, err := s.buildTransfer(ctx, wallet, intent)
	if err != nil {
		logger.Error("Unable to build withdrawal transaction", zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	signed, signature, err := s.ledger.Sign(unsigned, signer.PrivateKey, signer.Address)
	if err != nil {
		logger.Error("Unable to sign withdrawal transaction", zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	now := time.Now().UTC()
	approval := &models.ApprovalRequest{
		Id:                   uuid.New().String(),
		IntentKey:            intent.Key(),
		WalletId:             intent.WalletId,
		AssetType:            intent.AssetType,
		DestinationAddress:   intent.DestinationAddress,
		Amount:               intent.Amount,
		TokenContractAddress: intent.TokenContractAddress,
		ApproverSet:          []string{signer.Address},
		CollectedSignatures:  []string{signature},
		RawTransaction:       signed,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreateApproval(ctx, approval); err != nil {
		if errors.Is(err, store.ErrApprovalExists) {
			return nil, err
		}
		logger.Error("Unable to persist approval", zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	logger.Info("First signature collected",
		zap.String("approval_id", approval.Id),
		zap.String("txid", signed.TxId))

	return stageResult(approval), nil
}

func (s *Service) addApproval(ctx context.Context, logger *zap.Logger, wallet *models.MultisigWallet, signer *models.Signer, live *models.ApprovalRequest) (*models.WithdrawalResult, error) {
	const op = "withdrawal.addApproval"

	combined, signature, err := s.ledger.CombineSignatures(live.RawTransaction, signer.PrivateKey, signer.Address)
	if err != nil {
		logger.Error("Unable to combine signatures",
			zap.String("approval_id", live.Id),
			zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	updated := *live
	updated.ApproverSet = append(append([]string(nil), live.ApproverSet...), signer.Address)
	updated.CollectedSignatures = append(append([]string(nil), live.CollectedSignatures...), signature)
	updated.RawTransaction = combined
	updated.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateApproval(ctx, &updated); err != nil {
		if errors.Is(err, store.ErrConcurrentModification) {
			return nil, err
		}
		logger.Error("Unable to persist signature", zap.String("approval_id", live.Id), zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
	}

	logger.Info("Signature collected",
		zap.String("approval_id", updated.Id),
		zap.Int("signatures", len(updated.ApproverSet)))

	if len(updated.ApproverSet) < RequiredSignatures {
		return stageResult(&updated), nil
	}
	return s.broadcast(ctx, logger, wallet, &updated)
}

// broadcast submits a fully signed approval and marks it executed. A failed
// broadcast leaves the approval unexecuted so a signer can resubmit.
func (s *Service) broadcast(ctx context.Context, logger *zap.Logger, wallet *models.MultisigWallet, approval *models.ApprovalRequest) (*models.WithdrawalResult, error) {
	const op = "withdrawal.broadcast"

	txId, err := s.ledger.Broadcast(ctx, approval.RawTransaction)
	if err != nil {
		logger.Error("Withdrawal broadcast failed",
			zap.String("approval_id", approval.Id),
			zap.Error(err))
		return nil, apperrors.WrapWithCode(apperrors.CodeLedger, op, err)
	}

	executedAt := time.Now().UTC()
	executed := *approval
	executed.Executed = true
	executed.TxId = txId
	executed.ExecutedAt = &executedAt
	executed.UpdatedAt = executedAt

	if err := s.store.UpdateApproval(ctx, &executed); err != nil {
		if !errors.Is(err, store.ErrConcurrentModification) {
			logger.Error("Broadcast succeeded but approval update failed",
				zap.String("approval_id", approval.Id),
				zap.String("txid", txId),
				zap.Error(err))
			return nil, apperrors.WrapWithCode(apperrors.CodeStore, op, err)
		}
		current, getErr := s.store.GetApproval(ctx, approval.Id)
		if getErr != nil || !current.Executed {
			logger.Error("Broadcast succeeded but approval changed concurrently",
				zap.String("approval_id", approval.Id),
				zap.String("txid", txId),
				zap.Error(err))
			return nil, apperrors.WrapWithCode(apperrors.CodeConcurrencyConflict, op, err)
		}
		return stageResult(current), nil
	}

	logger.Info("Withdrawal executed",
		zap.String("approval_id", executed.Id),
		zap.String("txid", txId))

	if s.recorder != nil {
		if err := s.recorder.RecordWithdrawal(ctx, wallet, &executed); err != nil {
			logger.Warn("Failed to mirror withdrawal to ledger", zap.String("txid", txId), zap.Error(err))
		}
	}

	return stageResult(&executed), nil
}

func (s *Service) buildTransfer(ctx context.Context, wallet *models.MultisigWallet, intent models.WithdrawalIntent) (*models.RawTransaction, error) {
	amount, err := parseAmount(intent.Amount)
	if err != nil {
		return nil, err
	}

	switch intent.AssetType {
	case models.AssetNative:
		sun, err := tron.TRXToSun(amount)
		if err != nil {
			return nil, err
		}
		return s.ledger.BuildNativeTransfer(ctx, wallet.Address, intent.DestinationAddress, sun, tron.ActivePermissionId)
	case models.AssetToken:
		units, err := tron.ToBaseUnits(amount, s.tokenDecimals)
		if err != nil {
			return nil, err
		}
		return s.ledger.BuildTokenTransfer(ctx, wallet.Address, intent.TokenContractAddress, intent.DestinationAddress, units, tron.ActivePermissionId)
	default:
		return nil, fmt.Errorf("unsupported asset type %q", intent.AssetType)
	}
}

// matchSigner returns the signer whose passphrase equals passphrase.
func matchSigner(wallet *models.MultisigWallet, passphrase string) *models.Signer {
	var match *models.Signer
	for i := range wallet.Signers {
		s := &wallet.Signers[i]
		if s.Passphrase == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(s.Passphrase), []byte(passphrase)) == 1 {
			match = s
		}
	}
	return match
}

func stageResult(approval *models.ApprovalRequest) *models.WithdrawalResult {
	result := &models.WithdrawalResult{
		ApprovalId: approval.Id,
		TxId:       approval.TxId,
	}
	switch {
	case approval.Executed:
		result.Stage = models.StageExecuted
		result.Message = "Withdrawal broadcast"
	case len(approval.ApproverSet) >= RequiredSignatures:
		result.Stage = models.StageAwaitingBroadcast
		result.Message = "Second signature collected, awaiting broadcast"
	default:
		result.Stage = models.StageAwaitingSecondSignature
		result.Message = "First signature collected, awaiting second signature"
	}
	return result
}
