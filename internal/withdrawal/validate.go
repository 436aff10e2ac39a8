package withdrawal

import (
	"errors"
	"fmt"
	"strings"

	"tron-custody-go/internal/models"
	"tron-custody-go/internal/tron"

	"github.com/shopspring/decimal"
)

// normalize checks an intent and returns it with a canonical amount, so that
// "5.50" and "5.5" name the same withdrawal.
func (s *Service) normalize(intent models.WithdrawalIntent) (models.WithdrawalIntent, error) {
	intent.WalletId = strings.TrimSpace(intent.WalletId)
	intent.DestinationAddress = strings.TrimSpace(intent.DestinationAddress)
	intent.TokenContractAddress = strings.TrimSpace(intent.TokenContractAddress)

	if intent.WalletId == "" {
		return intent, errors.New("walletId is required")
	}
	if intent.DestinationAddress == "" {
		return intent, errors.New("destination address is required")
	}
	if !tron.IsValidAddress(intent.DestinationAddress) {
		return intent, fmt.Errorf("invalid destination address %q", intent.DestinationAddress)
	}

	amount, err := parseAmount(intent.Amount)
	if err != nil {
		return intent, err
	}
	intent.Amount = amount.String()

	switch intent.AssetType {
	case models.AssetNative:
		if intent.TokenContractAddress != "" {
			return intent, errors.New("tokenContractAddress is only valid for token withdrawals")
		}
		if _, err := tron.TRXToSun(amount); err != nil {
			return intent, err
		}
	case models.AssetToken:
		if intent.TokenContractAddress == "" {
			return intent, errors.New("tokenContractAddress is required for token withdrawals")
		}
		if !tron.IsValidAddress(intent.TokenContractAddress) {
			return intent, fmt.Errorf("invalid token contract address %q", intent.TokenContractAddress)
		}
		if _, err := tron.ToBaseUnits(amount, s.tokenDecimals); err != nil {
			return intent, err
		}
	default:
		return intent, fmt.Errorf("unsupported asset type %q", intent.AssetType)
	}

	return intent, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return amount, nil
}
