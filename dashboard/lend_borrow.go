// Package dashboard aggregates the lending positions of the vault markets.
package dashboard

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract"
	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/utils"
)

const (
	usdcDecimals   = 6
	priceDecimals  = 8
	healthDecimals = 18

	// MaxHealthFactor is reported for a health factor that does not fit a float.
	MaxHealthFactor = 9.99
)

var defaultUSDCPrice = big.NewInt(100_000_000)

type Risk string

const (
	RiskNoDebt      Risk = "No active debt (Unlimited)"
	RiskLiquidation Risk = "Liquidation danger"
	RiskMonitor     Risk = "Monitor closely"
	RiskHealthy     Risk = "Healthy"
)

type MarketPosition struct {
	Vault           string   `json:"vault"`
	DebtUSDC        float64  `json:"debtUsdc"`
	CreditLimitUSDC float64  `json:"creditLimitUsdc"`
	CollateralUSD   float64  `json:"collateralUsd"`
	DebtUSD         float64  `json:"debtUsd"`
	HealthFactor    *float64 `json:"healthFactor"`
}

type CreditLine struct {
	Used      float64 `json:"used"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Symbol    string  `json:"symbol"`
}

// LendBorrow is the aggregated lend/borrow view over all vault markets.
// HealthFactor is the lowest health factor of the markets that carry debt, nil without debt.
type LendBorrow struct {
	Markets []*MarketPosition `json:"markets"`

	USDCPrice              float64 `json:"usdcPrice"`
	AvailableLiquidityUSDC float64 `json:"availableLiquidityUsdc"`
	TotalLiquidityUSDC     float64 `json:"totalLiquidityUsdc"`
	ReserveSizeUSD         float64 `json:"reserveSizeUsd"`
	AvailableLiquidityUSD  float64 `json:"availableLiquidityUsd"`
	UtilizationRate        float64 `json:"utilizationRate"`
	BorrowCapUSDC          float64 `json:"borrowCapUsdc"`
	BorrowUtilization      float64 `json:"borrowUtilization"`
	VariableAPY            float64 `json:"variableApy"`
	SupplyAPY              float64 `json:"supplyApy"`

	DebtUSDC        float64    `json:"debtUsdc"`
	CreditLimitUSDC float64    `json:"creditLimitUsdc"`
	CollateralUSD   float64    `json:"collateralUsd"`
	DebtUSD         float64    `json:"debtUsd"`
	HealthFactor    *float64   `json:"healthFactor"`
	Risk            Risk       `json:"risk"`
	CreditLine      CreditLine `json:"creditLine"`

	Failed []string `json:"failed,omitempty"`
}

type Monitor struct {
	pool    *contract.AavePoolContract
	usdc    *contract.ERC20Contract
	markets []*config.VaultMarketConfig
	logger  logging.Logger
}

func NewMonitor(cfg *config.Config, client ethclient.Client, logger logging.Logger) *Monitor {
	return &Monitor{
		pool:    contract.NewAavePoolContract(client, cfg.Addresses.AavePool),
		usdc:    contract.NewERC20Contract(client, cfg.Addresses.USDC),
		markets: cfg.VaultMarkets(),
		logger:  logger,
	}
}

type marketRaw struct {
	debt    *big.Int
	credit  *big.Int
	account *contract.UserAccountData
}

// ParseHealthFactor converts a raw 18 decimals health factor. Without debt there is no health factor.
func ParseHealthFactor(raw *big.Int, hasDebt bool) *float64 {
	if !hasDebt {
		return nil
	}
	v := utils.FormatUnits(raw, healthDecimals)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		v = MaxHealthFactor
	}
	v = math.Max(0, v)
	return &v
}

func RiskOf(healthFactor *float64) Risk {
	switch {
	case healthFactor == nil:
		return RiskNoDebt
	case *healthFactor < 1.1:
		return RiskLiquidation
	case *healthFactor < 1.5:
		return RiskMonitor
	default:
		return RiskHealthy
	}
}

// Read loads every market position in one batch. Failed reads count as zero.
func (m *Monitor) Read(ctx context.Context) *LendBorrow {
	usdcAddr := m.usdc.Address()
	type call struct {
		name     string
		contract *contract.Contract
		method   string
		args     []interface{}
	}
	calls := []call{
		{"usdc_price", m.pool.Contract, "assetPrices", []interface{}{usdcAddr}},
		{"pool_liquidity", m.usdc.Contract, "balanceOf", []interface{}{m.pool.Address()}},
	}
	for _, market := range m.markets {
		calls = append(calls,
			call{market.Key + ".debt", m.pool.Contract, "getUserDebt", []interface{}{market.VaultAddress, usdcAddr}},
			call{market.Key + ".credit_limit", m.pool.Contract, "getCreditLimit", []interface{}{market.VaultAddress, usdcAddr}},
			call{market.Key + ".account_data", m.pool.Contract, "getUserAccountData", []interface{}{market.VaultAddress}},
		)
	}

	msgs := make([]ethereum.CallMsg, len(calls))
	for i, c := range calls {
		msg, err := c.contract.CallMsg(c.method, c.args...)
		if err != nil {
			m.logger.WithError(err).WithField("read", c.name).Error("can't encode read")
		}
		msgs[i] = msg
	}

	var failed []string
	values := make([][]interface{}, len(calls))
	results, err := m.pool.Client().BatchCallContract(ctx, msgs)
	if err != nil {
		m.logger.WithError(err).Warn("lend/borrow batch read failed")
		for _, c := range calls {
			failed = append(failed, c.name)
		}
	} else {
		for i, c := range calls {
			if results[i].Err == nil {
				values[i], err = c.contract.Unpack(c.method, results[i].Data)
			} else {
				err = results[i].Err
			}
			if err != nil {
				m.logger.WithError(err).WithField("read", c.name).Debug("lend/borrow read failed")
				values[i] = nil
				failed = append(failed, c.name)
			}
		}
	}

	uint256 := func(i int, fallback *big.Int) *big.Int {
		if values[i] == nil {
			return fallback
		}
		v, err2 := contract.DecodeUint256(values[i])
		if err2 != nil {
			return fallback
		}
		return v
	}
	raws := make([]marketRaw, len(m.markets))
	for i := range m.markets {
		offset := 2 + i*3
		raws[i].debt = uint256(offset, new(big.Int))
		raws[i].credit = uint256(offset+1, new(big.Int))
		if values[offset+2] != nil {
			raws[i].account, _ = contract.DecodeUserAccountData(values[offset+2])
		}
	}

	res := m.aggregate(uint256(0, defaultUSDCPrice), uint256(1, new(big.Int)), raws)
	res.Failed = failed
	observe(res)
	if len(failed) > 0 {
		m.logger.WithFields(logrus.Fields{
			"failed_reads": failed,
			"pool":         m.pool.Address().Hex(),
		}).Warn("some lend/borrow reads failed")
	}
	return res
}

func (m *Monitor) aggregate(usdcPriceRaw, liquidityRaw *big.Int, raws []marketRaw) *LendBorrow {
	res := &LendBorrow{
		USDCPrice:              utils.FormatUnits(usdcPriceRaw, priceDecimals),
		AvailableLiquidityUSDC: utils.FormatUnits(liquidityRaw, usdcDecimals),
	}
	for i, market := range m.markets {
		raw := raws[i]
		account := raw.account
		if account == nil {
			account = &contract.UserAccountData{TotalCollateralBase: new(big.Int), TotalDebtBase: new(big.Int), HealthFactor: new(big.Int)}
		}
		pos := &MarketPosition{
			Vault:           market.Key,
			DebtUSDC:        utils.FormatUnits(raw.debt, usdcDecimals),
			CreditLimitUSDC: utils.FormatUnits(raw.credit, usdcDecimals),
			CollateralUSD:   utils.FormatUnits(account.TotalCollateralBase, priceDecimals),
			DebtUSD:         utils.FormatUnits(account.TotalDebtBase, priceDecimals),
			HealthFactor:    ParseHealthFactor(account.HealthFactor, account.TotalDebtBase.Sign() > 0),
		}
		res.Markets = append(res.Markets, pos)
		res.DebtUSDC += pos.DebtUSDC
		res.CreditLimitUSDC += pos.CreditLimitUSDC
		res.CollateralUSD += pos.CollateralUSD
		res.DebtUSD += pos.DebtUSD
		if pos.HealthFactor != nil && (res.HealthFactor == nil || *pos.HealthFactor < *res.HealthFactor) {
			hf := *pos.HealthFactor
			res.HealthFactor = &hf
		}
	}

	res.TotalLiquidityUSDC = res.AvailableLiquidityUSDC + res.DebtUSDC
	res.ReserveSizeUSD = res.TotalLiquidityUSDC * res.USDCPrice
	res.AvailableLiquidityUSD = res.AvailableLiquidityUSDC * res.USDCPrice
	if res.TotalLiquidityUSDC > 0 {
		res.UtilizationRate = res.DebtUSDC / res.TotalLiquidityUSDC * 100
	}
	res.BorrowCapUSDC = math.Max(res.CreditLimitUSDC, res.TotalLiquidityUSDC)
	if res.BorrowCapUSDC > 0 {
		res.BorrowUtilization = res.DebtUSDC / res.BorrowCapUSDC * 100
	}
	res.VariableAPY = 2.8 + res.UtilizationRate*0.04
	res.SupplyAPY = 2.1 + res.UtilizationRate*0.025
	res.Risk = RiskOf(res.HealthFactor)
	res.CreditLine = CreditLine{
		Used:      math.Max(0, res.DebtUSDC),
		Total:     math.Max(0, res.BorrowCapUSDC),
		Available: math.Max(0, res.BorrowCapUSDC-res.DebtUSDC),
		Symbol:    "USDC",
	}
	return res
}

func (m *Monitor) PoolAddress() common.Address {
	return m.pool.Address()
}
