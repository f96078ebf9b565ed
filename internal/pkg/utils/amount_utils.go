package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit names accepted for human-readable amounts.
const (
	UnitWei   = "wei"
	UnitGwei  = "gwei"
	UnitEther = "ether"
)

var unitDecimals = map[string]int32{
	UnitWei:   0,
	UnitGwei:  9,
	UnitEther: 18,
}

// ParseBaseUnits parses a base-10 integer amount. Only strictly positive values
// are accepted.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be greater than zero", s)
	}
	return v, nil
}

// ToBaseUnits converts a human amount like "1.5" in the given unit to base units.
// An empty unit means the amount is already in base units.
func ToBaseUnits(amount, unit string) (*big.Int, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" || unit == UnitWei {
		return ParseBaseUnits(amount)
	}
	decimals, ok := unitDecimals[unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("amount %q is not a decimal number: %w", amount, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", amount, decimals)
	}
	v := scaled.BigInt()
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be greater than zero", amount)
	}
	return v, nil
}

// FormatBaseUnits renders a base-unit integer string with the given decimals,
// trimming trailing zeros: "1234500000000000000", 18 => "1.2345".
func FormatBaseUnits(raw string, decimals uint8) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0", nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "", fmt.Errorf("balance %q is not a base-10 integer", raw)
	}
	if decimals == 0 {
		return v.String(), nil
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String(), nil
}
