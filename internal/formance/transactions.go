package formance

import (
	"context"
	"fmt"
	"time"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptWithdrawal = `vars {
  asset $asset
  number $amount
  account $wallet
  account $destination
  string $wallet_id
  string $approval_id
  string $asset_type
  string $token_contract
  string $approvers
  string $amount_human
}

send [$asset $amount] (
  source = $wallet allowing unbounded overdraft
  destination = $destination
)

set_tx_meta("event_type", "withdrawal_executed")
set_tx_meta("wallet_id", $wallet_id)
set_tx_meta("approval_id", $approval_id)
set_tx_meta("asset_type", $asset_type)
set_tx_meta("token_contract", $token_contract)
set_tx_meta("approvers", $approvers)
set_tx_meta("amount_human", $amount_human)
`

const numscriptSweep = `vars {
  asset $asset
  number $amount
  account $wallet
  account $collection
  string $sweep_id
  string $amount_human
}

send [$asset $amount] (
  source = $wallet allowing unbounded overdraft
  destination = $collection
)

set_tx_meta("event_type", "sweep")
set_tx_meta("sweep_id", $sweep_id)
set_tx_meta("amount_human", $amount_human)
`

func multisigAccount(address string) string   { return "custody:multisig:" + address }
func collectionAccount(address string) string { return "custody:collection:" + address }
func externalAccount(address string) string   { return "external:" + address }

// RecordWithdrawal books an executed withdrawal from the multisig wallet to
// its destination. The txid is the reference, so replays are no-ops.
func (s *Service) RecordWithdrawal(ctx context.Context, wallet *models.MultisigWallet, approval *models.ApprovalRequest) error {
	postTx, err := s.withdrawalTransaction(wallet, approval)
	if err != nil {
		return err
	}
	if err := s.post(ctx, postTx); err != nil {
		return fmt.Errorf("error recording withdrawal: %w", err)
	}

	zap.L().Info("Withdrawal recorded in Formance",
		zap.String("wallet_id", wallet.Id),
		zap.String("txid", approval.TxId),
		zap.String("amount", approval.Amount))
	return nil
}

// RecordSweep books a successful sweep from a multisig wallet to a
// collection wallet.
func (s *Service) RecordSweep(ctx context.Context, entry *models.SweepLogEntry) error {
	postTx, err := s.sweepTransaction(entry)
	if err != nil {
		return err
	}
	if err := s.post(ctx, postTx); err != nil {
		return fmt.Errorf("error recording sweep: %w", err)
	}

	zap.L().Info("Sweep recorded in Formance",
		zap.String("from", entry.From),
		zap.String("to", entry.To),
		zap.String("txid", entry.TxId),
		zap.String("amount", entry.Amount))
	return nil
}

func (s *Service) post(ctx context.Context, postTx shared.V2PostTransaction) error {
	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Transaction already recorded in Formance", zap.String("reference", *postTx.Reference))
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) withdrawalTransaction(wallet *models.MultisigWallet, approval *models.ApprovalRequest) (shared.V2PostTransaction, error) {
	if approval.TxId == "" {
		return shared.V2PostTransaction{}, fmt.Errorf("approval %s has no txid", approval.Id)
	}

	amount, err := decimal.NewFromString(approval.Amount)
	if err != nil {
		return shared.V2PostTransaction{}, fmt.Errorf("invalid withdrawal amount %q: %w", approval.Amount, err)
	}

	var (
		asset string
		units string
	)
	switch approval.AssetType {
	case models.AssetNative:
		sun, err := tron.TRXToSun(amount)
		if err != nil {
			return shared.V2PostTransaction{}, err
		}
		asset, units = nativeAsset(), fmt.Sprint(sun)
	case models.AssetToken:
		raw, err := tron.ToBaseUnits(amount, s.tokenDecimals)
		if err != nil {
			return shared.V2PostTransaction{}, err
		}
		asset, units = s.tokenAsset(approval.TokenContractAddress), raw.String()
	default:
		return shared.V2PostTransaction{}, fmt.Errorf("unknown asset type %q", approval.AssetType)
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(approval.TxId),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptWithdrawal,
			Vars: map[string]string{
				"asset":          asset,
				"amount":         units,
				"wallet":         multisigAccount(wallet.Address),
				"destination":    externalAccount(approval.DestinationAddress),
				"wallet_id":      wallet.Id,
				"approval_id":    approval.Id,
				"asset_type":     string(approval.AssetType),
				"token_contract": approval.TokenContractAddress,
				"approvers":      fmt.Sprint(approval.ApproverSet),
				"amount_human":   approval.Amount,
			},
		},
	}
	if approval.ExecutedAt != nil {
		postTx.Timestamp = timePtr(*approval.ExecutedAt)
	}
	return postTx, nil
}

func (s *Service) sweepTransaction(entry *models.SweepLogEntry) (shared.V2PostTransaction, error) {
	if entry.TxId == "" {
		return shared.V2PostTransaction{}, fmt.Errorf("sweep %s has no txid", entry.Id)
	}

	amount, err := decimal.NewFromString(entry.Amount)
	if err != nil {
		return shared.V2PostTransaction{}, fmt.Errorf("invalid sweep amount %q: %w", entry.Amount, err)
	}
	sun, err := tron.TRXToSun(amount)
	if err != nil {
		return shared.V2PostTransaction{}, err
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(entry.TxId),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptSweep,
			Vars: map[string]string{
				"asset":        nativeAsset(),
				"amount":       fmt.Sprint(sun),
				"wallet":       multisigAccount(entry.From),
				"collection":   collectionAccount(entry.To),
				"sweep_id":     entry.Id,
				"amount_human": entry.Amount,
			},
		},
	}
	if !entry.CreatedAt.IsZero() {
		postTx.Timestamp = timePtr(entry.CreatedAt)
	}
	return postTx, nil
}

func timePtr(t time.Time) *time.Time { return &t }
