package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type ChainConfig struct {
	Name         string     `yaml:"-"`
	RPC          *RPCConfig `yaml:"rpc"`
	ChainID      uint64     `yaml:"chain_id"`
	CCIPSelector uint64     `yaml:"ccip_selector"`
	DisplayName  string     `yaml:"display_name"`
}

type BridgeConfig struct {
	SourceChainName      string       `yaml:"source_chain"`
	SourceChain          *ChainConfig `yaml:"-"`
	DestinationChainName string       `yaml:"destination_chain"`
	DestinationChain     *ChainConfig `yaml:"-"`

	SourceAssetSymbol      string  `yaml:"source_asset_symbol"`
	SourceAssetDecimals    uint8   `yaml:"source_asset_decimals"`
	USDCPerSourceUnit      float64 `yaml:"usdc_per_source_unit"`
	FallbackNativePriceUSD float64 `yaml:"fallback_native_price_usd"`

	PollInterval      time.Duration `yaml:"poll_interval"`
	FailedAfter       time.Duration `yaml:"failed_after"`
	StepInterval      time.Duration `yaml:"step_interval"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	RefetchInterval   time.Duration `yaml:"refetch_interval"`
	ReceiptTimeout    time.Duration `yaml:"receipt_timeout"`
	CompleteOnReceipt bool          `yaml:"complete_on_receipt"`
}

type VaultMarketConfig struct {
	Key               string         `yaml:"-"`
	Symbol            string         `yaml:"symbol"`
	Decimals          uint8          `yaml:"decimals"`
	Subtitle          string         `yaml:"subtitle"`
	ExpectedAPY       string         `yaml:"expected_apy"`
	EstimatePriceUSD  float64        `yaml:"estimate_price_usd"`
	VaultAddress      common.Address `yaml:"vault_address"`
	TokenAddress      common.Address `yaml:"token_address"`
	TargetBaseAddress common.Address `yaml:"target_base_asset"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Backend string       `yaml:"backend"`
	Dir     string       `yaml:"dir"`
	Redis   *RedisConfig `yaml:"redis"`
}

type WalletConfig struct {
	PrivateKey string `yaml:"private_key"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type AlertConfig struct {
	MinAge time.Duration `yaml:"min_age"`
}

type Config struct {
	Chains     map[string]*ChainConfig       `yaml:"chains"`
	Bridge     *BridgeConfig                 `yaml:"bridge"`
	Addresses  *Addresses                    `yaml:"addresses"`
	Vaults     map[string]*VaultMarketConfig `yaml:"vaults"`
	VaultOrder []string                      `yaml:"vault_order"`
	Storage    *StorageConfig                `yaml:"storage"`
	Wallet     *WalletConfig                 `yaml:"wallet"`
	DBConfig   *DBConfig                     `yaml:"postgres"`
	LogLevel   logrus.Level                  `yaml:"log_level"`
	Presenter  *PresenterConfig              `yaml:"presenter"`
	Alerts     map[string]*AlertConfig       `yaml:"alerts"`
}

const (
	StorageBackendPebble = "pebble"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"
)

var ErrUnknownChain = errors.New("unknown chain")

func readYamlConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) init() error {
	for name, chain := range cfg.Chains {
		chain.Name = name
		if chain.DisplayName == "" {
			chain.DisplayName = name
		}
		if chain.RPC != nil && chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = defaultRPCTimeout
		}
	}

	if cfg.Bridge == nil {
		cfg.Bridge = new(BridgeConfig)
	}
	cfg.Bridge.setDefaults()
	var ok bool
	if cfg.Bridge.SourceChain, ok = cfg.Chains[cfg.Bridge.SourceChainName]; !ok {
		return fmt.Errorf("%w: source chain %q", ErrUnknownChain, cfg.Bridge.SourceChainName)
	}
	if cfg.Bridge.DestinationChain, ok = cfg.Chains[cfg.Bridge.DestinationChainName]; !ok {
		return fmt.Errorf("%w: destination chain %q", ErrUnknownChain, cfg.Bridge.DestinationChainName)
	}

	if cfg.Addresses == nil {
		cfg.Addresses = DefaultAddresses()
	}
	cfg.Addresses.fillMissing(DefaultAddresses())

	if len(cfg.Vaults) == 0 {
		vaults, order := DefaultVaultMarkets(cfg.Addresses)
		cfg.Vaults = vaults
		if len(cfg.VaultOrder) == 0 {
			cfg.VaultOrder = order
		}
	}
	for key, vault := range cfg.Vaults {
		vault.Key = key
	}
	if len(cfg.VaultOrder) == 0 {
		for key := range cfg.Vaults {
			cfg.VaultOrder = append(cfg.VaultOrder, key)
		}
		sort.Strings(cfg.VaultOrder)
	}
	for _, key := range cfg.VaultOrder {
		if _, ok := cfg.Vaults[key]; !ok {
			return fmt.Errorf("vault_order references unknown vault %q", key)
		}
	}

	if cfg.Storage == nil {
		cfg.Storage = new(StorageConfig)
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendPebble
	}
	switch cfg.Storage.Backend {
	case StorageBackendPebble:
		if cfg.Storage.Dir == "" {
			cfg.Storage.Dir = defaultStorageDir
		}
	case StorageBackendRedis:
		if cfg.Storage.Redis == nil {
			return errors.New("redis storage backend requires storage.redis section")
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (cfg *BridgeConfig) setDefaults() {
	if cfg.SourceChainName == "" {
		cfg.SourceChainName = "base_sepolia"
	}
	if cfg.DestinationChainName == "" {
		cfg.DestinationChainName = "arbitrum_sepolia"
	}
	if cfg.SourceAssetSymbol == "" {
		cfg.SourceAssetSymbol = "CCIP-BnM"
	}
	if cfg.SourceAssetDecimals == 0 {
		cfg.SourceAssetDecimals = 18
	}
	if cfg.USDCPerSourceUnit == 0 {
		cfg.USDCPerSourceUnit = 10
	}
	if cfg.FallbackNativePriceUSD == 0 {
		cfg.FallbackNativePriceUSD = 2600
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.StepInterval == 0 {
		cfg.StepInterval = 900 * time.Millisecond
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 1200 * time.Millisecond
	}
	if cfg.RefetchInterval == 0 {
		cfg.RefetchInterval = 12 * time.Second
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = 10 * time.Minute
	}
	// negative value disables the timeout, zero means default
	if cfg.FailedAfter == 0 {
		cfg.FailedAfter = 30 * time.Minute
	} else if cfg.FailedAfter < 0 {
		cfg.FailedAfter = 0
	}
}

// GetChainConfig returns the chain config with the given EVM chain id.
func (cfg *Config) GetChainConfig(chainID uint64) *ChainConfig {
	for _, chain := range cfg.Chains {
		if chain.ChainID == chainID {
			return chain
		}
	}
	return nil
}

// VaultMarkets returns vault markets in display order.
func (cfg *Config) VaultMarkets() []*VaultMarketConfig {
	res := make([]*VaultMarketConfig, 0, len(cfg.VaultOrder))
	for _, key := range cfg.VaultOrder {
		res = append(res, cfg.Vaults[key])
	}
	return res
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg, err := readYamlConfig(blob)
	if err != nil {
		return nil, err
	}
	if err = cfg.init(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadConfigWithEnv expands ${VAR} references and applies APOLLOS_* address overrides.
func ReadConfigWithEnv(blob []byte) (*Config, error) {
	cfg, err := readYamlConfig([]byte(os.ExpandEnv(string(blob))))
	if err != nil {
		return nil, err
	}
	if cfg.Addresses == nil {
		cfg.Addresses = DefaultAddresses()
	}
	cfg.Addresses.fillMissing(DefaultAddresses())
	if err = cfg.Addresses.applyEnv(); err != nil {
		return nil, err
	}
	if err = cfg.init(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func ReadConfigFromFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("can't load .env file: %w", err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
