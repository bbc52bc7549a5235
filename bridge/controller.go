package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/ccip"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/utils"
	"github.com/apollos-finance/bridge-tracker/wallet"
)

var (
	ErrNotReady     = errors.New("bridge is not ready")
	ErrBusy         = errors.New("bridge flow is busy")
	ErrUnknownVault = errors.New("unknown vault")
)

type Input struct {
	Amount string `json:"amount"`
	Vault  string `json:"vault"`
}

// Snapshot is everything needed to render the bridge request at one moment.
type Snapshot struct {
	Input      Input                     `json:"input"`
	Amount     float64                   `json:"amount"`
	AmountRaw  *big.Int                  `json:"amountRaw"`
	Vault      *config.VaultMarketConfig `json:"-"`
	Reads      *Reads                    `json:"reads"`
	Balance    float64                   `json:"balance"`
	Estimate   Estimate                  `json:"estimate"`
	CanRoute   bool                      `json:"canRoute"`
	Warning    string                    `json:"warning,omitempty"`
	Conditions Conditions                `json:"conditions"`
	Decision   Decision                  `json:"decision"`
	Flow       FlowState                 `json:"flow"`
	Progress   ProgressState             `json:"progress"`
	Status     entity.CCIPStatus         `json:"status"`
	State      entity.BridgeState        `json:"state"`
}

type Controller struct {
	cfg      *config.Config
	wallet   wallet.Wallet
	reader   *Reader
	tracker  *monitor.Tracker
	flow     *Flow
	progress *Progress
	labels   Labels
	logger   logging.Logger

	mu    sync.Mutex
	input Input
	reads *Reads
}

func NewController(cfg *config.Config, w wallet.Wallet, reader *Reader, tracker *monitor.Tracker, logger logging.Logger) *Controller {
	c := &Controller{
		cfg:     cfg,
		wallet:  w,
		reader:  reader,
		tracker: tracker,
		flow:    NewFlow(logger),
		labels: Labels{
			AssetSymbol: cfg.Bridge.SourceAssetSymbol,
			SourceChain: cfg.Bridge.SourceChain.DisplayName,
		},
		logger: logger,
		reads:  emptyReads(),
	}
	if len(cfg.VaultOrder) > 0 {
		c.input.Vault = cfg.VaultOrder[0]
	}
	c.progress = NewProgress(cfg.Bridge.StepInterval, cfg.Bridge.SettleDelay, c.onProgress)
	c.flow.OnTransition(c.onFlowTransition)
	tracker.OnUpdate(c.onUpdate)
	return c
}

func (c *Controller) Flow() *Flow {
	return c.flow
}

func (c *Controller) Progress() *Progress {
	return c.progress
}

func (c *Controller) Tracker() *monitor.Tracker {
	return c.tracker
}

// SetInput changes the amount and the destination vault. An empty vault keeps the current one.
func (c *Controller) SetInput(in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if in.Vault == "" {
		in.Vault = c.input.Vault
	}
	if _, ok := c.cfg.Vaults[in.Vault]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVault, in.Vault)
	}
	c.input = in
	return nil
}

// Refresh reloads the contract reads and returns a new snapshot.
// Nothing is read while the wallet is not connected.
func (c *Controller) Refresh(ctx context.Context) *Snapshot {
	if store := c.tracker.Store(); !store.IsLoaded() {
		store.Load(ctx)
	}

	c.mu.Lock()
	input := c.input
	c.mu.Unlock()

	reads := emptyReads()
	if c.wallet.Connected() {
		amount, _ := ParseAmount(input.Amount)
		reads = c.reader.Read(ctx, ReadRequest{
			Account:         c.wallet.Address(),
			AmountRaw:       ToRaw(amount, c.cfg.Bridge.SourceAssetDecimals),
			TargetBaseAsset: c.cfg.Vaults[input.Vault].TargetBaseAddress,
		})
		if len(reads.Failed) > 0 {
			c.logger.WithField("failed_reads", reads.Failed).Warn("some bridge reads failed")
		}
	}

	c.mu.Lock()
	c.reads = reads
	c.mu.Unlock()
	return c.Snapshot()
}

// Snapshot computes the current view from the last reads.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	input, reads := c.input, c.reads
	c.mu.Unlock()

	bridgeCfg := c.cfg.Bridge
	amount, _ := ParseAmount(input.Amount)
	raw := ToRaw(amount, bridgeCfg.SourceAssetDecimals)
	vault := c.cfg.Vaults[input.Vault]
	balance := utils.FormatUnits(reads.Balance, bridgeCfg.SourceAssetDecimals)
	flowState := c.flow.State()

	s := &Snapshot{
		Input:     input,
		Amount:    amount,
		AmountRaw: raw,
		Vault:     vault,
		Reads:     reads,
		Balance:   balance,
		Estimate:  NewEstimate(amount, reads, vault, bridgeCfg),
		Warning:   RouteWarning(reads.ChainSupported, reads.AssetSupported),
		Conditions: Conditions{
			Connected:     c.wallet.Connected(),
			OnSourceChain: c.wallet.ChainID() == bridgeCfg.SourceChain.ChainID,
			NeedsApproval: NeedsApproval(raw, reads.Allowance),
			Busy:          flowState.Busy() || c.progress.State().Busy,
		},
		Flow:     flowState,
		Progress: c.progress.State(),
		Status:   c.tracker.Status(),
		State:    c.tracker.Store().State(),
	}
	s.CanRoute = ValidateAmount(amount, balance) && reads.ChainSupported && reads.AssetSupported
	s.Decision = DecideAction(s.Conditions, c.labels)
	return s
}

// Proceed refreshes the reads and performs the next required action.
// Approval and chain switch stop after one step. A bridge submission returns once
// the transaction is mined, message tracking then continues until ctx is done.
func (c *Controller) Proceed(ctx context.Context) (Decision, error) {
	snap := c.Refresh(ctx)
	d := snap.Decision
	logger := c.logger.WithField("action", d.Action)

	var err error
	switch {
	case d.Action == ActionConnect:
		err = c.wallet.Connect(ctx)
		if err != nil {
			err = fmt.Errorf("can't connect wallet: %w", err)
		}
	case snap.Flow.Busy() || snap.Progress.Busy:
		return d, ErrBusy
	case !snap.CanRoute:
		reason := snap.Warning
		if reason == "" {
			reason = "amount must be positive and not exceed the balance"
		}
		return d, fmt.Errorf("%w: %s", ErrNotReady, reason)
	case d.Action == ActionSwitchChain:
		err = c.switchChain(ctx)
	case d.Action == ActionApprove:
		err = c.approve(ctx, snap)
	default:
		err = c.bridge(ctx, snap)
	}

	if err != nil {
		ActionResults.WithLabelValues(string(d.Action), "error").Inc()
		logger.WithError(err).Warn("bridge action failed")
		return d, err
	}
	ActionResults.WithLabelValues(string(d.Action), "ok").Inc()
	logger.Info("bridge action completed")
	return d, nil
}

func (c *Controller) fail(what string, err error) error {
	if _, ferr := c.flow.Fire(EventError); ferr != nil {
		c.logger.WithError(ferr).Debug("can't apply flow error")
	}
	return fmt.Errorf("can't %s: %w", what, err)
}

// finish leaves a delivered or failed attempt so a new action can start.
func (c *Controller) finish() error {
	if s := c.flow.State(); s != FlowDelivered && s != FlowFailed {
		return nil
	}
	c.tracker.Stop()
	_, err := c.flow.Fire(EventReset)
	return err
}

func (c *Controller) switchChain(ctx context.Context) error {
	if err := c.finish(); err != nil {
		return err
	}
	if _, err := c.flow.Fire(EventSwitchRequested); err != nil {
		return err
	}
	if err := c.wallet.SwitchChain(ctx, c.cfg.Bridge.SourceChain.ChainID); err != nil {
		return c.fail("switch chain", err)
	}
	_, err := c.flow.Fire(EventSwitched)
	return err
}

func (c *Controller) approve(ctx context.Context, snap *Snapshot) error {
	if err := c.finish(); err != nil {
		return err
	}
	if _, err := c.flow.Fire(EventApproveRequested); err != nil {
		return err
	}
	asset := c.reader.Asset()
	data, err := asset.ApproveCalldata(c.reader.Router().Address(), snap.AmountRaw)
	if err != nil {
		return c.fail("encode approval", err)
	}
	hash, err := c.wallet.Transact(ctx, wallet.TxRequest{To: asset.Address(), Data: data})
	if err != nil {
		return c.fail("submit approval", err)
	}
	receiptCtx, cancel := context.WithTimeout(ctx, c.cfg.Bridge.ReceiptTimeout)
	defer cancel()
	_, err = c.wallet.WaitReceipt(receiptCtx, hash)
	if err != nil {
		return c.fail("confirm approval", err)
	}
	c.logger.WithFields(logrus.Fields{
		"tx_hash": hash.Hex(),
		"amount":  snap.AmountRaw.String(),
	}).Info("approved source asset")
	_, err = c.flow.Fire(EventApproved)
	return err
}

func (c *Controller) bridge(ctx context.Context, snap *Snapshot) error {
	c.tracker.Stop()
	if err := c.finish(); err != nil {
		return err
	}
	if _, err := c.flow.Fire(EventSubmitRequested); err != nil {
		return err
	}
	store := c.tracker.Store()
	store.Update(ctx, bridgestate.Patch{Reset: true, Step: bridgestate.Int(0)})
	limit := 0
	if c.cfg.Bridge.CompleteOnReceipt {
		limit = entity.StepCount
	}
	c.progress.Start(limit)

	router := c.reader.Router()
	req := c.reader.BridgeRequest(ReadRequest{
		Account:         c.wallet.Address(),
		AmountRaw:       snap.AmountRaw,
		TargetBaseAsset: snap.Vault.TargetBaseAddress,
	})
	data, err := router.BridgeCalldata(req)
	if err != nil {
		return c.abort(ctx, "encode bridge call", err)
	}
	txReq := wallet.TxRequest{To: router.Address(), Data: data, Value: snap.Reads.BridgeFee}

	ret, err := c.wallet.Call(ctx, txReq)
	if err != nil {
		return c.abort(ctx, "simulate bridge call", err)
	}
	messageID, err := router.DecodeMessageID(ret)
	if err != nil {
		return c.abort(ctx, "decode message id", err)
	}
	var startBlock *entity.BigInt
	if n, err2 := router.Client().BlockNumber(ctx); err2 != nil {
		c.logger.WithError(err2).Warn("can't get start block")
	} else {
		startBlock = entity.NewBigIntFromUint64(n)
	}

	hash, err := c.wallet.Transact(ctx, txReq)
	if err != nil {
		return c.abort(ctx, "submit bridge transaction", err)
	}
	logger := c.logger.WithFields(logrus.Fields{
		"tx_hash":    hash.Hex(),
		"message_id": messageID.Hex(),
	})
	logger.Info("submitted bridge transaction")
	if _, err = c.flow.Fire(EventSubmitted); err != nil {
		return err
	}
	store.Update(ctx, bridgestate.Patch{
		TxHash:     bridgestate.Hash(hash),
		MessageID:  bridgestate.Hash(messageID),
		StartBlock: startBlock,
	})

	receiptCtx, cancel := context.WithTimeout(ctx, c.cfg.Bridge.ReceiptTimeout)
	defer cancel()
	receipt, err := c.wallet.WaitReceipt(receiptCtx, hash)
	if err != nil {
		if errors.Is(err, wallet.ErrTxReverted) {
			if _, ferr := c.flow.Fire(EventReceiptReverted); ferr != nil {
				logger.WithError(ferr).Debug("can't apply flow event")
			}
			store.Update(ctx, bridgestate.Patch{Reset: true})
			return fmt.Errorf("bridge transaction failed: %w", err)
		}
		// the message id is persisted, tracking can be resumed later
		return c.fail("confirm bridge transaction", err)
	}
	if _, err = c.flow.Fire(EventReceiptSucceeded); err != nil {
		return err
	}
	if receipt != nil {
		if moved, ok := c.reader.Asset().FindTransfer(receipt, c.wallet.Address(), router.Address()); ok {
			logger = logger.WithField("transferred", moved.String())
		}
	}
	logger.Info("bridge transaction mined, tracking ccip message")
	if c.cfg.Bridge.CompleteOnReceipt {
		c.progress.Complete()
	}
	c.tracker.Start(ctx, messageID)
	return nil
}

// abort returns the flow to idle and drops the started attempt.
func (c *Controller) abort(ctx context.Context, what string, err error) error {
	c.tracker.Store().Update(ctx, bridgestate.Patch{Reset: true})
	return c.fail(what, err)
}

// Resume continues tracking a persisted bridge attempt.
func (c *Controller) Resume(ctx context.Context) bool {
	_, resumed := c.tracker.Resume(ctx)
	return resumed
}

// Wait blocks until message tracking ends.
func (c *Controller) Wait(ctx context.Context) error {
	return c.tracker.Wait(ctx)
}

// Clear stops tracking and forgets the persisted attempt.
func (c *Controller) Clear(ctx context.Context) {
	c.tracker.Clear(ctx)
	if _, err := c.flow.Fire(EventReset); err != nil {
		c.logger.WithError(err).Debug("can't reset flow")
	}
	c.progress.Reset()
}

// Close stops tracking and all timers. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.tracker.Stop()
	c.progress.Stop()
}

func (c *Controller) onUpdate(u ccip.Update) {
	var ev Event
	switch u.Status {
	case entity.CCIPStatusPending:
		ev = EventMessagePending
	case entity.CCIPStatusStored:
		ev = EventMessageStored
	case entity.CCIPStatusSuccess:
		ev = EventMessageExecuted
	case entity.CCIPStatusFailed:
		ev = EventMessageFailed
	default:
		return
	}
	if _, err := c.flow.Fire(ev); err != nil {
		c.logger.WithError(err).Debug("ignoring ccip update")
		return
	}
	if c.cfg.Bridge.CompleteOnReceipt {
		return
	}
	step := u.Status.Step()
	if step == entity.StepNotStarted {
		return
	}
	if c.progress.State().Index == entity.StepNotStarted {
		c.progress.Start(step)
	} else {
		c.progress.SetLimit(step)
	}
}

func (c *Controller) onFlowTransition(_, to FlowState) {
	switch to {
	case FlowIdle, FlowFailed:
		c.progress.Reset()
	case FlowDelivered:
		c.progress.SetLimit(entity.StepCount)
	}
}

func (c *Controller) onProgress(s ProgressState) {
	c.logger.WithFields(logrus.Fields{
		"step":      s.Index,
		"busy":      s.Busy,
		"step_name": s.Label,
	}).Debug("bridge progress changed")
}
