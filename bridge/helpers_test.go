package bridge_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/ccip"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract"
	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/ethclient/ethclienttest"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/storage"
	"github.com/apollos-finance/bridge-tracker/wallet"
)

const (
	baseChainID = 84532
	arbChainID  = 421614
	testConfig  = `
chains:
  base_sepolia:
    chain_id: 84532
    ccip_selector: 10344971235874465080
    display_name: Base
  arbitrum_sepolia:
    chain_id: 421614
    ccip_selector: 3478487238524512106
    display_name: Arbitrum
bridge:
  poll_interval: 10ms
  step_interval: 2ms
  settle_delay: 5ms
  receipt_timeout: 1s
  failed_after: -1s
storage:
  backend: memory
`
)

var (
	testMessageID = common.HexToHash("0x7d3b2ac4e1f0d9c8b7a6958473625140f0e1d2c3b4a5968778695a4b3c2d1e0f")
	bridgeFee     = big.NewInt(250_000_000_000_000)
)

// chains fakes the source router, the source asset, the lending pool and the
// CCIP receiver on two in-memory chains.
type chains struct {
	cfg  *config.Config
	base *ethclienttest.Client
	arb  *ethclienttest.Client

	mu             sync.Mutex
	chainSupported bool
	assetSupported bool
	balance        *big.Int
	allowance      *big.Int
	wethPrice      *big.Int
	depositAmount  *big.Int
	executed       bool
	revertBridge   bool
	bridgeValue    *big.Int
}

func newChains(t *testing.T, cfg *config.Config) *chains {
	t.Helper()
	c := &chains{
		cfg:            cfg,
		base:           ethclienttest.NewClient(baseChainID),
		arb:            ethclienttest.NewClient(arbChainID),
		chainSupported: true,
		assetSupported: true,
		balance:        new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		allowance:      new(big.Int),
		wethPrice:      big.NewInt(3000_00000000),
		depositAmount:  new(big.Int),
	}
	addrs := cfg.Addresses
	router := abi.SourceRouterABI.Methods
	erc20 := abi.ERC20ABI.Methods
	pool := abi.AavePoolABI.Methods
	receiver := abi.CCIPReceiverABI.Methods

	c.base.Handle(addrs.SourceRouter, router["supportedChains"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		args, err := router["supportedChains"].Inputs.Unpack(msg.Data[4:])
		require.NoError(t, err)
		require.Equal(t, cfg.Bridge.DestinationChain.CCIPSelector, args[0])
		c.mu.Lock()
		defer c.mu.Unlock()
		return router["supportedChains"].Outputs.Pack(c.chainSupported)
	})
	c.base.Handle(addrs.SourceRouter, router["supportedAssets"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return router["supportedAssets"].Outputs.Pack(c.assetSupported)
	})
	c.base.Handle(addrs.SourceRouter, router["getBridgeFee"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		return router["getBridgeFee"].Outputs.Pack(bridgeFee)
	})
	c.base.Handle(addrs.SourceRouter, router["bridgeToArbitrum"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if msg.Value == nil || msg.Value.Cmp(bridgeFee) != 0 || c.allowance.Sign() == 0 {
			return nil, ethclienttest.ErrExecutionReverted
		}
		return router["bridgeToArbitrum"].Outputs.Pack([32]byte(testMessageID))
	})
	c.base.Handle(addrs.BaseCCIPBnM, erc20["balanceOf"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return erc20["balanceOf"].Outputs.Pack(c.balance)
	})
	c.base.Handle(addrs.BaseCCIPBnM, erc20["allowance"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		args, err := erc20["allowance"].Inputs.Unpack(msg.Data[4:])
		require.NoError(t, err)
		require.Equal(t, addrs.SourceRouter, args[1])
		c.mu.Lock()
		defer c.mu.Unlock()
		return erc20["allowance"].Outputs.Pack(c.allowance)
	})
	c.arb.Handle(addrs.AavePool, pool["assetPrices"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return pool["assetPrices"].Outputs.Pack(c.wethPrice)
	})
	c.arb.Handle(addrs.CCIPReceiver, receiver["pendingDeposits"].ID, func(msg ethereum.CallMsg) ([]byte, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return receiver["pendingDeposits"].Outputs.Pack(
			[32]byte(testMessageID),
			cfg.Bridge.SourceChain.CCIPSelector,
			addrs.SourceRouter,
			common.Address{},
			c.depositAmount,
			addrs.BaseCCIPBnM,
			addrs.WBTC,
			new(big.Int),
			c.executed,
		)
	})

	c.base.OnSend = func(tx *types.Transaction) {
		status := types.ReceiptStatusSuccessful
		data := tx.Data()
		switch {
		case len(data) >= 4 && bytes.Equal(data[:4], erc20["approve"].ID):
			args, err := erc20["approve"].Inputs.Unpack(data[4:])
			require.NoError(t, err)
			c.mu.Lock()
			c.allowance = args[1].(*big.Int)
			c.mu.Unlock()
		case len(data) >= 4 && bytes.Equal(data[:4], router["bridgeToArbitrum"].ID):
			c.mu.Lock()
			c.bridgeValue = tx.Value()
			if c.revertBridge {
				status = types.ReceiptStatusFailed
			}
			c.mu.Unlock()
		}
		c.base.SetReceipt(tx.Hash(), &types.Receipt{
			Status:      status,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(1001),
		})
	}
	return c
}

func (c *chains) set(fn func(c *chains)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

type testEnv struct {
	cfg        *config.Config
	chains     *chains
	kv         storage.KV
	wallet     *wallet.KeyedWallet
	controller *bridge.Controller
}

func newTestConfig(t *testing.T, patch func(cfg *config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.ReadConfig([]byte(testConfig))
	require.NoError(t, err)
	if patch != nil {
		patch(cfg)
	}
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config, kv storage.KV) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = newTestConfig(t, nil)
	}
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	ch := newChains(t, cfg)
	logger := logging.NewNop()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	w, err := wallet.NewKeyedWallet(hex.EncodeToString(crypto.FromECDSA(key)), map[uint64]ethclient.Client{
		baseChainID: ch.base,
		arbChainID:  ch.arb,
	}, arbChainID, logger)
	require.NoError(t, err)
	w.SetReceiptPollInterval(5 * time.Millisecond)

	store := bridgestate.NewStore(kv, logger)
	poller := ccip.NewPoller(
		contract.NewCCIPReceiverContract(ch.arb, cfg.Addresses.CCIPReceiver),
		ccip.Options{Interval: cfg.Bridge.PollInterval, FailedAfter: cfg.Bridge.FailedAfter},
		logger,
	)
	tracker := monitor.NewTracker(store, poller, nil, logger)
	reader := bridge.NewReader(cfg, ch.base, ch.arb, logger)
	c := bridge.NewController(cfg, w, reader, tracker, logger)
	t.Cleanup(c.Close)

	return &testEnv{
		cfg:        cfg,
		chains:     ch,
		kv:         kv,
		wallet:     w,
		controller: c,
	}
}

// ready connects the wallet on the source chain.
func (e *testEnv) ready(ctx context.Context, t *testing.T) {
	t.Helper()
	require.NoError(t, e.wallet.Connect(ctx))
	require.NoError(t, e.wallet.SwitchChain(ctx, baseChainID))
}
