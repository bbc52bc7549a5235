package monitor

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/ccip"
	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
)

// Tracker follows one CCIP message at a time. It checkpoints the observed step
// into the bridge state, journals status changes and notifies listeners.
type Tracker struct {
	store  *bridgestate.Store
	poller *ccip.Poller
	repo   entity.StatusUpdatesRepo
	logger logging.Logger

	mu        sync.Mutex
	listeners []func(ccip.Update)
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTracker creates a tracker. repo may be nil when no journal is configured.
func NewTracker(store *bridgestate.Store, poller *ccip.Poller, repo entity.StatusUpdatesRepo, logger logging.Logger) *Tracker {
	return &Tracker{
		store:  store,
		poller: poller,
		repo:   repo,
		logger: logger,
	}
}

// OnUpdate registers fn to be called for every status update of the tracked message.
func (t *Tracker) OnUpdate(fn func(ccip.Update)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) Store() *bridgestate.Store {
	return t.store
}

func (t *Tracker) Status() entity.CCIPStatus {
	return t.poller.Status()
}

func (t *Tracker) Deposit() *entity.PendingDeposit {
	return t.poller.Deposit()
}

// Resume loads the persisted state and continues tracking its message unless
// the attempt is already completed. It reports whether tracking was resumed.
func (t *Tracker) Resume(ctx context.Context) (entity.BridgeState, bool) {
	state := t.store.Load(ctx)
	if !state.HasMessage() {
		t.logger.Info("no persisted bridge message to resume")
		return state, false
	}
	logger := t.logger.WithFields(logrus.Fields{
		"message_id": state.MessageID.Hex(),
		"step":       state.Step,
	})
	if state.Step >= entity.StepCount {
		logger.Info("persisted bridge message is already completed")
		return state, false
	}
	if t.repo != nil {
		latest, err := t.repo.GetLatest(ctx, *state.MessageID)
		if err = db.IgnoreErrNotFound(err); err != nil {
			logger.WithError(err).Warn("can't read latest journaled status")
		} else if latest != nil {
			logger = logger.WithField("journaled_status", latest.Status)
		}
	}
	logger.Info("resuming bridge message tracking")
	t.Start(ctx, *state.MessageID)
	return state, true
}

// Start tracks messageID in the background, stopping any previous tracking first.
func (t *Tracker) Start(ctx context.Context, messageID common.Hash) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	trackCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	go t.run(trackCtx, messageID, done)
}

// Stop cancels tracking and waits until no more updates can be delivered.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Clear stops tracking, resets the status to idle and forgets the persisted attempt.
func (t *Tracker) Clear(ctx context.Context) {
	t.Stop()
	t.poller.Reset()
	TrackedStep.Set(float64(entity.StepNotStarted))
	t.store.Clear(ctx)
}

// Wait blocks until the current tracking ends, i.e. the message is executed or tracking is stopped.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context, messageID common.Hash, done chan struct{}) {
	defer close(done)
	logger := t.logger.WithField("message_id", messageID.Hex())
	ActiveTrackers.Inc()
	defer ActiveTrackers.Dec()

	var last entity.CCIPStatus
	for update := range t.poller.Track(ctx, messageID) {
		if ctx.Err() != nil {
			return
		}
		if update.Status == last || update.Status == entity.CCIPStatusIdle {
			continue
		}
		last = update.Status
		t.handle(ctx, logger, update)
	}
}

func (t *Tracker) handle(ctx context.Context, logger logging.Logger, update ccip.Update) {
	logger = logger.WithField("status", update.Status)
	StatusChanges.WithLabelValues(string(update.Status)).Inc()

	if step := update.Status.Step(); step != entity.StepNotStarted {
		state := t.store.Update(ctx, bridgestate.Patch{
			MessageID: bridgestate.Hash(update.MessageID),
			Step:      bridgestate.Int(step),
		})
		TrackedStep.Set(float64(state.Step))
	}

	if t.repo != nil {
		if err := t.repo.Insert(ctx, t.statusUpdate(update)); err != nil {
			logger.WithError(err).Error("can't journal status update")
		}
	}
	logger.Info("bridge message status updated")

	t.mu.Lock()
	listeners := append(([]func(ccip.Update))(nil), t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(update)
	}
}

func (t *Tracker) statusUpdate(update ccip.Update) *entity.StatusUpdate {
	res := &entity.StatusUpdate{
		MessageID: update.MessageID,
		Status:    update.Status,
		Amount:    "0",
	}
	if state := t.store.State(); state.TxHash != nil && state.MessageID != nil && *state.MessageID == update.MessageID {
		res.TxHash = state.TxHash
	}
	if d := update.Deposit; d != nil {
		if d.Amount != nil {
			res.Amount = d.Amount.String()
		}
		res.Receiver = d.Receiver
		res.Executed = d.Executed
	}
	return res
}

// History returns the journaled status updates of messageID.
func (t *Tracker) History(ctx context.Context, messageID common.Hash) ([]*entity.StatusUpdate, error) {
	if t.repo == nil {
		return nil, ErrJournalDisabled
	}
	return t.repo.FindByMessageID(ctx, messageID)
}
