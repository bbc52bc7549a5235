package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultRPCTimeout = 30 * time.Second
	defaultStorageDir = "./data"
)

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Addresses holds every on-chain address the tracker talks to.
type Addresses struct {
	WETH         common.Address `yaml:"weth"`
	WBTC         common.Address `yaml:"wbtc"`
	LINK         common.Address `yaml:"link"`
	USDC         common.Address `yaml:"usdc"`
	Factory      common.Address `yaml:"factory"`
	VaultWETH    common.Address `yaml:"vault_weth"`
	VaultWBTC    common.Address `yaml:"vault_wbtc"`
	VaultLINK    common.Address `yaml:"vault_link"`
	Router       common.Address `yaml:"router"`
	CCIPReceiver common.Address `yaml:"ccip_receiver"`
	UniswapPool  common.Address `yaml:"uniswap_pool"`
	AavePool     common.Address `yaml:"aave_pool"`
	LVRHook      common.Address `yaml:"lvr_hook"`
	BaseCCIPBnM  common.Address `yaml:"base_ccip_bnm"`
	SourceRouter common.Address `yaml:"source_router"`
}

type addressesEnv struct {
	WETH         string `envconfig:"WETH_ADDRESS"`
	WBTC         string `envconfig:"WBTC_ADDRESS"`
	LINK         string `envconfig:"LINK_ADDRESS"`
	USDC         string `envconfig:"USDC_ADDRESS"`
	Factory      string `envconfig:"FACTORY_ADDRESS"`
	VaultWETH    string `envconfig:"VAULT_WETH_ADDRESS"`
	VaultWBTC    string `envconfig:"VAULT_WBTC_ADDRESS"`
	VaultLINK    string `envconfig:"VAULT_LINK_ADDRESS"`
	Router       string `envconfig:"ROUTER_ADDRESS"`
	CCIPReceiver string `envconfig:"CCIP_RECEIVER_ADDRESS"`
	UniswapPool  string `envconfig:"UNISWAP_POOL_ADDRESS"`
	AavePool     string `envconfig:"AAVE_POOL_ADDRESS"`
	LVRHook      string `envconfig:"LVR_HOOK_ADDRESS"`
	BaseCCIPBnM  string `envconfig:"BASE_CCIP_BNM_ADDRESS"`
	SourceRouter string `envconfig:"SOURCE_ROUTER_ADDRESS"`
}

const envPrefix = "APOLLOS"

func DefaultAddresses() *Addresses {
	return &Addresses{
		WETH:         common.HexToAddress("0x0b7F7B47284cF10fB829A94605B6EEeE9a77b651"),
		WBTC:         common.HexToAddress("0xA1Fc6bdFcF5aBD5c1DF873351f466AC467575Dce"),
		LINK:         common.HexToAddress("0x35d970Ea6C6C81a3DB28C4FBef87dC4eED9422D2"),
		USDC:         common.HexToAddress("0xD3aE3c10084aF1195845Fd0BCCa5beccBB28753d"),
		Factory:      common.HexToAddress("0x26fF6038f2f4e39dF3d12Bd0b20D86d60c11378b"),
		VaultWETH:    common.HexToAddress("0x578c1b767729D7da8366fbA579e1Cb1Ee3D14E70"),
		VaultWBTC:    common.HexToAddress("0x6E3B9C1DDD94811C7cA5b7DaA2C6d7B6c20AaA38"),
		VaultLINK:    common.HexToAddress("0xf1C471C25120AF71f6F5f962f143D841AA25C4eC"),
		Router:       common.HexToAddress("0x106987ae77c0bC127e8168a4a4859d1bFB37D422"),
		CCIPReceiver: common.HexToAddress("0x951Fa17e3588C963f1584472AB3e0d059d5d3683"),
		UniswapPool:  common.HexToAddress("0x83E7627A3B1363d73E269847e15b1aE1f29c9705"),
		AavePool:     common.HexToAddress("0x4715383F64a391AA1e29672D510f9e1b928af59E"),
		LVRHook:      common.HexToAddress("0x166Cd2bf0c8715478ce96D492E47ef030A881a9A"),
		BaseCCIPBnM:  common.HexToAddress("0x88A2d74F47a237a62e7A51cdDa67270CE381555e"),
		SourceRouter: common.HexToAddress("0xd4AAA8333B6A5408b12510b68bE78bB41edb628E"),
	}
}

func (a *Addresses) pairs(b *Addresses) [][2]*common.Address {
	return [][2]*common.Address{
		{&a.WETH, &b.WETH},
		{&a.WBTC, &b.WBTC},
		{&a.LINK, &b.LINK},
		{&a.USDC, &b.USDC},
		{&a.Factory, &b.Factory},
		{&a.VaultWETH, &b.VaultWETH},
		{&a.VaultWBTC, &b.VaultWBTC},
		{&a.VaultLINK, &b.VaultLINK},
		{&a.Router, &b.Router},
		{&a.CCIPReceiver, &b.CCIPReceiver},
		{&a.UniswapPool, &b.UniswapPool},
		{&a.AavePool, &b.AavePool},
		{&a.LVRHook, &b.LVRHook},
		{&a.BaseCCIPBnM, &b.BaseCCIPBnM},
		{&a.SourceRouter, &b.SourceRouter},
	}
}

func (a *Addresses) fillMissing(defaults *Addresses) {
	for _, p := range a.pairs(defaults) {
		if *p[0] == (common.Address{}) {
			*p[0] = *p[1]
		}
	}
}

func (a *Addresses) applyEnv() error {
	var env addressesEnv
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("can't process address overrides: %w", err)
	}
	overrides := []string{
		env.WETH, env.WBTC, env.LINK, env.USDC, env.Factory,
		env.VaultWETH, env.VaultWBTC, env.VaultLINK, env.Router, env.CCIPReceiver,
		env.UniswapPool, env.AavePool, env.LVRHook, env.BaseCCIPBnM, env.SourceRouter,
	}
	for i, p := range a.pairs(a) {
		if overrides[i] != "" {
			*p[0] = ResolveAddress(overrides[i], *p[0])
		}
	}
	return nil
}

// IsValidAddress reports whether value is a 0x-prefixed 20-byte hex string
// with a correct checksum when written in mixed case.
func IsValidAddress(value string) bool {
	if !addressRegexp.MatchString(value) {
		return false
	}
	body := value[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ethav.Validate(value) == nil
}

// ResolveAddress parses value, falling back when it is not a well-formed address.
func ResolveAddress(value string, fallback common.Address) common.Address {
	if !IsValidAddress(value) {
		return fallback
	}
	return common.HexToAddress(value)
}

// DefaultVaultMarkets builds the afToken vault markets bridged deposits can be zapped into.
func DefaultVaultMarkets(addrs *Addresses) (map[string]*VaultMarketConfig, []string) {
	vaults := map[string]*VaultMarketConfig{
		"afWETH": {
			Symbol:            "WETH",
			Decimals:          18,
			Subtitle:          "Linearized WETH yield",
			ExpectedAPY:       "27.12%",
			EstimatePriceUSD:  2660,
			VaultAddress:      addrs.VaultWETH,
			TokenAddress:      addrs.WETH,
			TargetBaseAddress: addrs.WETH,
		},
		"afWBTC": {
			Symbol:            "WBTC",
			Decimals:          8,
			Subtitle:          "Linearized WBTC yield",
			ExpectedAPY:       "36.30%",
			EstimatePriceUSD:  67414,
			VaultAddress:      addrs.VaultWBTC,
			TokenAddress:      addrs.WBTC,
			TargetBaseAddress: addrs.WBTC,
		},
		"afLINK": {
			Symbol:            "LINK",
			Decimals:          18,
			Subtitle:          "Linearized LINK yield",
			ExpectedAPY:       "27.12%",
			EstimatePriceUSD:  23.4,
			VaultAddress:      addrs.VaultLINK,
			TokenAddress:      addrs.LINK,
			TargetBaseAddress: addrs.LINK,
		},
	}
	for key, v := range vaults {
		v.Key = key
	}
	return vaults, []string{"afWETH", "afWBTC", "afLINK"}
}
