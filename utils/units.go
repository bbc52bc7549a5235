package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrInvalidDecimal = errors.New("invalid decimal string")

// ParseUnits converts a human-readable decimal string into its raw fixed-point integer form.
// Fraction digits beyond the given precision are rounded half up.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")
	integer, fraction, _ := strings.Cut(value, ".")
	if integer == "" {
		integer = "0"
	}
	if !isDigits(integer) || !isDigits(fraction) || (integer == "0" && fraction == "" && value == "") {
		return nil, fmt.Errorf("can't parse %q: %w", value, ErrInvalidDecimal)
	}

	roundUp := false
	if len(fraction) > int(decimals) {
		roundUp = fraction[decimals] >= '5'
		fraction = fraction[:decimals]
	}
	fraction += strings.Repeat("0", int(decimals)-len(fraction))

	raw, ok := new(big.Int).SetString(integer+fraction, 10)
	if !ok {
		return nil, fmt.Errorf("can't parse %q: %w", value, ErrInvalidDecimal)
	}
	if roundUp {
		raw.Add(raw, big.NewInt(1))
	}
	if negative {
		raw.Neg(raw)
	}
	return raw, nil
}

// FormatUnits converts a raw fixed-point integer into a float64 display value.
func FormatUnits(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	res, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), scale).Float64()
	return res
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
