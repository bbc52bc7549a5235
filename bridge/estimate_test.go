package bridge_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/config"
)

func TestNewEstimate(t *testing.T) {
	t.Parallel()
	cfg := &config.BridgeConfig{USDCPerSourceUnit: 10, FallbackNativePriceUSD: 2600}
	vault := &config.VaultMarketConfig{Key: "afWETH", EstimatePriceUSD: 2660}

	reads := &bridge.Reads{
		Balance:   new(big.Int),
		Allowance: new(big.Int),
		BridgeFee: big.NewInt(1_000_000_000_000_000),
		WETHPrice: big.NewInt(3000_00000000),
	}
	est := bridge.NewEstimate(2, reads, vault, cfg)
	require.InDelta(t, 0.001, est.BridgeFeeNative, 1e-12)
	require.InDelta(t, 3000, est.NativePriceUSD, 1e-9)
	require.InDelta(t, 3, est.BridgeFeeUSD, 1e-9)
	require.InDelta(t, 20, est.USDCEquivalent, 1e-9)
	require.InDelta(t, 20.0/2660, est.EstimatedShares, 1e-12)

	reads.WETHPrice = new(big.Int)
	est = bridge.NewEstimate(2, reads, vault, cfg)
	require.InDelta(t, 2600, est.NativePriceUSD, 1e-9)
	require.InDelta(t, 2.6, est.BridgeFeeUSD, 1e-9)

	est = bridge.NewEstimate(0, nil, nil, cfg)
	require.Zero(t, est.BridgeFeeNative)
	require.Zero(t, est.USDCEquivalent)
	require.Zero(t, est.EstimatedShares)
}

func TestFormatUSD(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		Value    float64
		Expected string
	}{
		{0, "$0.00"},
		{3, "$3.00"},
		{1234.567, "$1,234.57"},
		{1234567.891, "$1,234,567.89"},
		{-12.5, "-$12.50"},
		{math.NaN(), "$0.00"},
	} {
		require.Equal(t, tc.Expected, bridge.FormatUSD(tc.Value), tc.Value)
	}
}

func TestFormatToken(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		Value    float64
		Expected string
	}{
		{0, "0"},
		{-1, "0"},
		{math.Inf(1), "0"},
		{1, "1"},
		{0.0075187969, "0.007519"},
		{1234.56789012, "1,234.56789"},
		{1000000, "1,000,000"},
	} {
		require.Equal(t, tc.Expected, bridge.FormatToken(tc.Value), tc.Value)
	}
}
