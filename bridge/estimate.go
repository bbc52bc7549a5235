package bridge

import (
	"math"
	"strconv"
	"strings"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/utils"
)

const (
	nativeDecimals     = 18
	priceOracleDecimal = 8
)

// Estimate holds display-only figures of a bridge quote.
type Estimate struct {
	BridgeFeeNative float64 `json:"bridgeFeeNative"`
	NativePriceUSD  float64 `json:"nativePriceUsd"`
	BridgeFeeUSD    float64 `json:"bridgeFeeUsd"`
	USDCEquivalent  float64 `json:"usdcEquivalent"`
	EstimatedShares float64 `json:"estimatedShares"`
}

func NewEstimate(amount float64, reads *Reads, vault *config.VaultMarketConfig, cfg *config.BridgeConfig) Estimate {
	if reads == nil {
		reads = emptyReads()
	}
	var est Estimate
	est.BridgeFeeNative = utils.FormatUnits(reads.BridgeFee, nativeDecimals)
	est.NativePriceUSD = utils.FormatUnits(reads.WETHPrice, priceOracleDecimal)
	if math.IsNaN(est.NativePriceUSD) || math.IsInf(est.NativePriceUSD, 0) || est.NativePriceUSD <= 0 {
		est.NativePriceUSD = cfg.FallbackNativePriceUSD
	}
	est.BridgeFeeUSD = est.BridgeFeeNative * est.NativePriceUSD

	if amount > 0 {
		est.USDCEquivalent = amount * cfg.USDCPerSourceUnit
	}
	if vault != nil && vault.EstimatePriceUSD > 0 {
		est.EstimatedShares = est.USDCEquivalent / vault.EstimatePriceUSD
	}
	return est
}

// FormatUSD renders value as US dollars with two fraction digits.
func FormatUSD(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return sign + "$" + groupThousands(strconv.FormatFloat(value, 'f', 2, 64))
}

// FormatToken renders a token amount with at most six fraction digits.
func FormatToken(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return "0"
	}
	s := strconv.FormatFloat(value, 'f', 6, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return groupThousands(s)
}

func groupThousands(s string) string {
	integer, fraction, hasFraction := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFraction {
		b.WriteByte('.')
		b.WriteString(fraction)
	}
	return b.String()
}
