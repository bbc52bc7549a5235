package ccip

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/utils"
)

const DefaultInterval = 5 * time.Second

// DepositReader reads the pending deposit the destination receiver holds for a message.
type DepositReader interface {
	PendingDeposit(ctx context.Context, messageID common.Hash) (*entity.PendingDeposit, error)
}

// Update is one observation of the tracked message.
type Update struct {
	MessageID common.Hash
	Status    entity.CCIPStatus
	Deposit   *entity.PendingDeposit
}

type Options struct {
	Interval time.Duration
	// FailedAfter moves a message still pending after this long to failed. Zero disables it.
	FailedAfter time.Duration
}

type Poller struct {
	reader DepositReader
	opts   Options
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	gen       uint64
	messageID common.Hash
	status    entity.CCIPStatus
	deposit   *entity.PendingDeposit
}

func NewPoller(reader DepositReader, opts Options, logger logging.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Poller{
		reader: reader,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		status: entity.CCIPStatusIdle,
	}
}

// DeriveStatus maps a decoded pending deposit onto a status.
func DeriveStatus(deposit *entity.PendingDeposit) entity.CCIPStatus {
	switch {
	case !deposit.Recorded():
		return entity.CCIPStatusPending
	case deposit.Executed:
		return entity.CCIPStatusSuccess
	default:
		return entity.CCIPStatusStored
	}
}

// nextStatus never moves a delivered message back.
func nextStatus(current, observed entity.CCIPStatus) entity.CCIPStatus {
	switch current {
	case entity.CCIPStatusSuccess:
		return current
	case entity.CCIPStatusStored:
		if observed == entity.CCIPStatusSuccess {
			return observed
		}
		return current
	case entity.CCIPStatusFailed:
		if observed.Delivered() {
			return observed
		}
		return current
	default:
		return observed
	}
}

func (p *Poller) Status() entity.CCIPStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) Deposit() *entity.PendingDeposit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deposit
}

func (p *Poller) MessageID() common.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messageID
}

func (p *Poller) snapshot() Update {
	return Update{MessageID: p.messageID, Status: p.status, Deposit: p.deposit}
}

// Track polls the receiver for messageID until ctx is cancelled or the message is executed.
// A zero messageID resets the poller to idle. Tracking the message tracked last time keeps
// its status, tracking a different message starts from pending. Only the latest Track call
// may change the poller state, and nothing is sent after ctx is done.
func (p *Poller) Track(ctx context.Context, messageID common.Hash) <-chan Update {
	updates := make(chan Update, 1)

	if messageID == (common.Hash{}) {
		updates <- p.Reset()
		close(updates)
		return updates
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	if messageID != p.messageID {
		p.messageID = messageID
		p.status = entity.CCIPStatusIdle
		p.deposit = nil
	}
	if p.status == entity.CCIPStatusIdle {
		p.status = entity.CCIPStatusPending
	}
	observeStatus(p.status)
	first := p.snapshot()
	p.mu.Unlock()

	go p.run(ctx, gen, messageID, first, updates)
	return updates
}

// Reset forgets the tracked message and moves the poller back to idle.
// Polling started by earlier Track calls no longer changes the state.
func (p *Poller) Reset() Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.messageID = common.Hash{}
	p.status = entity.CCIPStatusIdle
	p.deposit = nil
	observeStatus(p.status)
	return p.snapshot()
}

func (p *Poller) run(ctx context.Context, gen uint64, messageID common.Hash, first Update, updates chan<- Update) {
	defer close(updates)
	logger := p.logger.WithField("message_id", messageID.Hex())

	select {
	case updates <- first:
	case <-ctx.Done():
		return
	}

	started := p.now()
	for {
		update, changed, ok := p.poll(ctx, gen, messageID, started, logger)
		if !ok {
			return
		}
		if changed {
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
		}
		if update.Status == entity.CCIPStatusSuccess {
			logger.Info("ccip message executed, stopping poller")
			return
		}
		if utils.ContextSleep(ctx, p.opts.Interval) != nil {
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context, gen uint64, messageID common.Hash, started time.Time, logger logging.Logger) (Update, bool, bool) {
	deposit, err := p.reader.PendingDeposit(ctx, messageID)
	if ctx.Err() != nil {
		return Update{}, false, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return Update{}, false, false
	}

	prev := p.status
	if err != nil {
		PollResults.WithLabelValues("error").Inc()
		logger.WithError(err).WithField("status", prev).Warn("failed to poll ccip status, keeping previous status")
	} else {
		PollResults.WithLabelValues("ok").Inc()
		observed := DeriveStatus(deposit)
		p.status = nextStatus(prev, observed)
		if observed.Delivered() {
			p.deposit = deposit
		}
	}

	if p.status == entity.CCIPStatusPending && p.opts.FailedAfter > 0 && p.now().Sub(started) >= p.opts.FailedAfter {
		logger.WithField("failed_after", p.opts.FailedAfter).Warn("ccip message was not recorded in time, marking as failed")
		p.status = entity.CCIPStatusFailed
	}

	changed := p.status != prev
	if changed {
		observeStatus(p.status)
		logger.WithFields(logrus.Fields{
			"from_status": prev,
			"to_status":   p.status,
		}).Info("ccip status changed")
	}
	return p.snapshot(), changed, true
}
