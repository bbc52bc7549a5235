package bridge

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/apollos-finance/bridge-tracker/utils"
)

const UnsupportedRouteWarning = "source router does not support this lane/asset"

// ParseAmount parses a user entered amount. Anything but a finite number above zero is rejected.
func ParseAmount(input string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// ToRaw converts a display amount into raw units. Invalid amounts convert to zero.
func ToRaw(amount float64, decimals uint8) *big.Int {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return new(big.Int)
	}
	raw, err := utils.ParseUnits(strconv.FormatFloat(amount, 'f', -1, 64), decimals)
	if err != nil {
		return new(big.Int)
	}
	return raw
}

// ValidateAmount reports whether amount is positive and covered by balance.
// An amount equal to the balance is accepted.
func ValidateAmount(amount, balance float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && amount <= balance
}

// NeedsApproval reports whether allowance does not cover the raw amount.
func NeedsApproval(amountRaw, allowance *big.Int) bool {
	if amountRaw == nil || amountRaw.Sign() <= 0 {
		return false
	}
	if allowance == nil {
		return true
	}
	return allowance.Cmp(amountRaw) < 0
}

// RouteWarning returns the warning shown while the router rejects the lane or the asset.
func RouteWarning(chainSupported, assetSupported bool) string {
	if chainSupported && assetSupported {
		return ""
	}
	return UnsupportedRouteWarning
}
