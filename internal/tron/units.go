package tron

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// SunPerTRX is the number of base units in one TRX.
const SunPerTRX = 1_000_000

const trxDecimals = 6

// SunToTRX converts base units to a TRX amount.
func SunToTRX(sun int64) decimal.Decimal {
	return decimal.New(sun, -trxDecimals)
}

// TRXToSun converts a TRX amount to base units. Amounts finer than one sun
// are rejected rather than rounded.
func TRXToSun(trx decimal.Decimal) (int64, error) {
	sun := trx.Shift(trxDecimals)
	if !sun.Equal(sun.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", trx.String(), trxDecimals)
	}
	if !sun.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", trx.String())
	}
	return sun.IntPart(), nil
}

// ToBaseUnits converts a token amount to its integer representation.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount.String(), decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts a token's integer representation to a display amount.
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
