package monitor_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/ethclient/ethclienttest"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/storage"
)

const monitorConfig = `
chains:
  base_sepolia:
    chain_id: 84532
    ccip_selector: 10344971235874465080
  arbitrum_sepolia:
    chain_id: 421614
    ccip_selector: 3478487238524512106
bridge:
  poll_interval: 5ms
storage:
  backend: memory
`

func newMonitorConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.ReadConfig([]byte(monitorConfig))
	require.NoError(t, err)
	return cfg
}

func TestNewMonitor_RequiresRPC(t *testing.T) {
	t.Parallel()
	_, err := monitor.NewMonitor(logging.NewNop(), newMonitorConfig(t))
	require.ErrorContains(t, err, "has no rpc host configured")
}

func TestNewMonitorWithClients_MissingClient(t *testing.T) {
	t.Parallel()
	cfg := newMonitorConfig(t)
	_, err := monitor.NewMonitorWithClients(logging.NewNop(), cfg, map[uint64]ethclient.Client{
		84532: ethclienttest.NewClient(84532),
	}, storage.NewMemoryKV(), nil)
	require.ErrorContains(t, err, "destination chain arbitrum_sepolia")
}

func TestMonitor_StartResumesPersistedMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := newMonitorConfig(t)
	base := ethclienttest.NewClient(84532)
	arb := ethclienttest.NewClient(421614)
	receiver := abi.CCIPReceiverABI.Methods["pendingDeposits"]
	arb.Handle(cfg.Addresses.CCIPReceiver, receiver.ID, func(ethereum.CallMsg) ([]byte, error) {
		return receiver.Outputs.Pack(
			[32]byte(testMessageID),
			cfg.Bridge.SourceChain.CCIPSelector,
			cfg.Addresses.SourceRouter,
			common.Address{},
			big.NewInt(1500),
			cfg.Addresses.BaseCCIPBnM,
			cfg.Addresses.WETH,
			new(big.Int),
			true,
		)
	})

	kv := storage.NewMemoryKV()
	blob := `{"messageId":"` + testMessageID.Hex() + `","step":1,"timestamp":1}`
	require.NoError(t, kv.Set(ctx, bridgestate.StorageKey, []byte(blob)))

	m, err := monitor.NewMonitorWithClients(logging.NewNop(), cfg, map[uint64]ethclient.Client{
		84532:  base,
		421614: arb,
	}, kv, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	require.Nil(t, m.AlertManager())
	require.Same(t, base, m.Source())
	require.Same(t, arb, m.Destination())
	require.Len(t, m.Clients(), 2)

	require.True(t, m.Start(ctx))
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, m.Tracker().Wait(waitCtx))

	require.Equal(t, entity.CCIPStatusSuccess, m.Tracker().Status())
	require.Equal(t, entity.StepCount, m.Tracker().Store().State().Step)
	require.Equal(t, int64(1500), m.Tracker().Deposit().Amount.Int64())
}
