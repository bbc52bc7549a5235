package bridge_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/storage"
	"github.com/apollos-finance/bridge-tracker/wallet"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var oneAndHalf = new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))

func TestController_FullFlow(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, nil, nil)
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5", Vault: "afWBTC"}))

	snap := c.Refresh(ctx)
	require.Equal(t, bridge.Decision{Action: bridge.ActionConnect, Label: "Connect Wallet"}, snap.Decision)
	require.Zero(t, env.chains.base.Calls())

	d, err := c.Proceed(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.ActionConnect, d.Action)
	require.True(t, env.wallet.Connected())

	d, err = c.Proceed(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.Decision{Action: bridge.ActionSwitchChain, Label: "Switch to Base"}, d)
	require.Equal(t, uint64(baseChainID), env.wallet.ChainID())
	require.Equal(t, bridge.FlowIdle, c.Flow().State())

	d, err = c.Proceed(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.Decision{Action: bridge.ActionApprove, Label: "Approve CCIP-BnM"}, d)
	sent := env.chains.base.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, env.cfg.Addresses.BaseCCIPBnM, *sent[0].To())
	args, err := abi.ERC20ABI.Methods["approve"].Inputs.Unpack(sent[0].Data()[4:])
	require.NoError(t, err)
	require.Equal(t, env.cfg.Addresses.SourceRouter, args[0])
	require.Equal(t, oneAndHalf.String(), args[1].(*big.Int).String())
	require.Equal(t, entity.StepNotStarted, c.Progress().State().Index)

	snap = c.Refresh(ctx)
	require.Equal(t, bridge.Decision{Action: bridge.ActionBridge, Label: "Bridge CCIP-BnM and Zap to Earn"}, snap.Decision)
	require.True(t, snap.CanRoute)
	require.Empty(t, snap.Warning)
	require.InDelta(t, 15, snap.Estimate.USDCEquivalent, 1e-9)
	require.InDelta(t, 15.0/67414, snap.Estimate.EstimatedShares, 1e-12)
	require.InDelta(t, 0.75, snap.Estimate.BridgeFeeUSD, 1e-9)

	d, err = c.Proceed(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.ActionBridge, d.Action)
	sent = env.chains.base.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, env.cfg.Addresses.SourceRouter, *sent[1].To())
	require.Equal(t, bridgeFee.String(), sent[1].Value().String())
	bridgeArgs, err := abi.SourceRouterABI.Methods["bridgeToArbitrum"].Inputs.Unpack(sent[1].Data()[4:])
	require.NoError(t, err)
	require.Equal(t, env.cfg.Addresses.BaseCCIPBnM, bridgeArgs[0])
	require.Equal(t, oneAndHalf.String(), bridgeArgs[1].(*big.Int).String())
	require.Equal(t, env.cfg.Bridge.DestinationChain.CCIPSelector, bridgeArgs[2])
	require.Equal(t, env.wallet.Address(), bridgeArgs[3])
	require.Zero(t, bridgeArgs[4].(*big.Int).Sign())
	require.Equal(t, env.cfg.Addresses.WBTC, bridgeArgs[5])

	state := c.Tracker().Store().State()
	require.Equal(t, testMessageID, *state.MessageID)
	require.Equal(t, sent[1].Hash(), *state.TxHash)
	require.Equal(t, "1000", state.StartBlock.String())

	require.Eventually(t, func() bool {
		return c.Tracker().Status() == entity.CCIPStatusPending && c.Progress().State().Index == 1
	}, waitFor, tick)
	snap = c.Snapshot()
	require.Equal(t, bridge.FlowTrackingMessage, snap.Flow)
	require.Equal(t, "Routing via CCIP...", snap.Decision.Label)
	_, err = c.Proceed(ctx)
	require.ErrorIs(t, err, bridge.ErrBusy)

	env.chains.set(func(c *chains) { c.depositAmount = oneAndHalf })
	require.Eventually(t, func() bool {
		return c.Tracker().Status() == entity.CCIPStatusStored && c.Tracker().Store().State().Step == 2
	}, waitFor, tick)
	require.Equal(t, bridge.FlowTrackingMessage, c.Flow().State())

	env.chains.set(func(c *chains) { c.executed = true })
	waitCtx, waitCancel := context.WithTimeout(ctx, waitFor)
	defer waitCancel()
	require.NoError(t, c.Wait(waitCtx))
	require.Equal(t, bridge.FlowDelivered, c.Flow().State())
	require.Equal(t, entity.StepCount, c.Tracker().Store().State().Step)

	require.Eventually(t, func() bool {
		s := c.Progress().State()
		return s.Completed && !s.Busy
	}, waitFor, tick)
	require.Equal(t, "Bridge CCIP-BnM and Zap to Earn", c.Snapshot().Decision.Label)

	blob, err := env.kv.Get(ctx, bridgestate.StorageKey)
	require.NoError(t, err)
	require.Contains(t, string(blob), `"startBlock":"1000"`)
	require.Contains(t, string(blob), `"step":4`)
}

func TestController_NotReady(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)
	env.ready(ctx, t)
	c := env.controller

	for _, amount := range []string{"", "0", "-5", "abc", "10.000001"} {
		require.NoError(t, c.SetInput(bridge.Input{Amount: amount}))
		_, err := c.Proceed(ctx)
		require.ErrorIs(t, err, bridge.ErrNotReady, amount)
	}

	require.NoError(t, c.SetInput(bridge.Input{Amount: "10"}))
	require.True(t, c.Refresh(ctx).CanRoute)

	env.chains.set(func(c *chains) { c.assetSupported = false })
	snap := c.Refresh(ctx)
	require.False(t, snap.CanRoute)
	require.Equal(t, bridge.UnsupportedRouteWarning, snap.Warning)
	_, err := c.Proceed(ctx)
	require.ErrorIs(t, err, bridge.ErrNotReady)
	require.Empty(t, env.chains.base.Sent())

	require.ErrorIs(t, c.SetInput(bridge.Input{Amount: "1", Vault: "afDOGE"}), bridge.ErrUnknownVault)
}

func TestController_SubmissionErrorResetsFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)
	env.ready(ctx, t)
	env.chains.set(func(c *chains) { c.allowance = oneAndHalf })
	env.chains.base.SendErr = errors.New("user rejected the request")
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5"}))

	d, err := c.Proceed(ctx)
	require.Error(t, err)
	require.Equal(t, bridge.ActionBridge, d.Action)
	require.Equal(t, bridge.FlowIdle, c.Flow().State())
	require.Equal(t, bridge.ProgressState{Index: entity.StepNotStarted}, c.Progress().State())
	require.Equal(t, entity.InitialBridgeState().Step, c.Tracker().Store().State().Step)
	require.Nil(t, c.Tracker().Store().State().MessageID)
	require.Equal(t, "Bridge CCIP-BnM and Zap to Earn", c.Snapshot().Decision.Label)
}

func TestController_RevertedBridge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)
	env.ready(ctx, t)
	env.chains.set(func(c *chains) {
		c.allowance = oneAndHalf
		c.revertBridge = true
	})
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5"}))

	_, err := c.Proceed(ctx)
	require.ErrorIs(t, err, wallet.ErrTxReverted)
	require.Equal(t, bridge.FlowFailed, c.Flow().State())
	require.Equal(t, entity.StepNotStarted, c.Progress().State().Index)
	require.False(t, c.Tracker().Store().State().HasMessage())

	env.chains.set(func(c *chains) { c.revertBridge = false })
	_, err = c.Proceed(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.FlowTrackingMessage, c.Flow().State())
}

func TestController_Resume(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, bridgestate.StorageKey,
		[]byte(`{"messageId":"`+testMessageID.Hex()+`","step":1,"timestamp":1700000000000,"startBlock":"1000"}`)))

	env := newTestEnv(t, nil, kv)
	env.chains.set(func(c *chains) {
		c.depositAmount = oneAndHalf
		c.executed = true
	})
	c := env.controller
	require.True(t, c.Resume(ctx))

	waitCtx, waitCancel := context.WithTimeout(ctx, waitFor)
	defer waitCancel()
	require.NoError(t, c.Wait(waitCtx))
	require.Equal(t, bridge.FlowDelivered, c.Flow().State())
	require.Equal(t, entity.StepCount, c.Tracker().Store().State().Step)
	require.Eventually(t, func() bool { return c.Progress().State().Completed }, waitFor, tick)

	require.False(t, newTestEnv(t, nil, kv).controller.Resume(ctx))
}

func TestController_CompleteOnReceipt(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := newTestConfig(t, func(cfg *config.Config) {
		cfg.Bridge.CompleteOnReceipt = true
		cfg.Bridge.StepInterval = time.Hour
		cfg.Bridge.SettleDelay = time.Hour
	})
	env := newTestEnv(t, cfg, nil)
	env.ready(ctx, t)
	env.chains.set(func(c *chains) { c.allowance = oneAndHalf })
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5"}))

	_, err := c.Proceed(ctx)
	require.NoError(t, err)
	s := c.Progress().State()
	require.True(t, s.Completed)
	require.True(t, s.Busy)
	require.Equal(t, "Routing via CCIP...", c.Snapshot().Decision.Label)
}

func TestController_StopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv(t, nil, nil)
	env.ready(ctx, t)
	env.chains.set(func(c *chains) { c.allowance = oneAndHalf })
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5"}))

	_, err := c.Proceed(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Tracker().Status() == entity.CCIPStatusPending }, waitFor, tick)

	cancel()
	c.Close()
	calls := env.chains.arb.Calls()
	state := c.Tracker().Store().State()
	progress := c.Progress().State()

	env.chains.set(func(c *chains) {
		c.depositAmount = oneAndHalf
		c.executed = true
	})
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, calls, env.chains.arb.Calls())
	require.Equal(t, state, c.Tracker().Store().State())
	require.Equal(t, progress, c.Progress().State())
	require.Equal(t, bridge.FlowTrackingMessage, c.Flow().State())
}

func TestController_Clear(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, nil, nil)
	env.ready(ctx, t)
	env.chains.set(func(c *chains) {
		c.allowance = oneAndHalf
		c.depositAmount = oneAndHalf
	})
	c := env.controller
	require.NoError(t, c.SetInput(bridge.Input{Amount: "1.5"}))

	_, err := c.Proceed(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Tracker().Status() == entity.CCIPStatusStored }, waitFor, tick)

	c.Clear(ctx)
	require.Equal(t, entity.CCIPStatusIdle, c.Tracker().Status())
	require.Nil(t, c.Tracker().Store().State().MessageID)
	require.Equal(t, bridge.FlowIdle, c.Flow().State())
	require.Equal(t, entity.StepNotStarted, c.Progress().State().Index)
	_, err = env.kv.Get(ctx, bridgestate.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
