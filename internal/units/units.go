// Package units converts between on-chain fixed-point integers and decimal
// display values. Conversions happen at the boundary only.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal scales a fixed-point integer down by decimals.
func ToDecimal(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatAmount renders a fixed-point integer as a decimal string without
// trailing zeros.
func FormatAmount(value *big.Int, decimals uint8) string {
	return ToDecimal(value, decimals).String()
}

// ParseAmount parses a decimal display string into a fixed-point integer.
// Amounts with more fractional digits than decimals are rejected.
func ParseAmount(input string, decimals uint8) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", input)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimals", input, decimals)
	}
	return scaled.BigInt(), nil
}

// FromDecimal scales a decimal value up to a fixed-point integer, truncating
// precision beyond decimals.
func FromDecimal(value decimal.Decimal, decimals uint8) *big.Int {
	return value.Shift(int32(decimals)).Truncate(0).BigInt()
}
