package bridge

import (
	"sync"
	"time"

	"github.com/apollos-finance/bridge-tracker/entity"
)

var Steps = [entity.StepCount]string{
	"Lock USDC on Base",
	"Transmit CCIP message to Arbitrum",
	"Execute Zap into selected Earn Vault",
	"Mint afToken to your wallet",
}

type ProgressState struct {
	Index     int    `json:"index"`
	Busy      bool   `json:"busy"`
	Completed bool   `json:"completed"`
	Label     string `json:"label,omitempty"`
}

// Progress steps through Steps on a timer while busy. The index never passes
// the limit set by the caller, and once it reaches len(Steps) the busy flag is
// dropped after the settle delay.
type Progress struct {
	interval time.Duration
	settle   time.Duration
	onChange func(ProgressState)

	mu      sync.Mutex
	index   int
	busy    bool
	limit   int
	gen     uint64
	timer   *time.Timer
	stopped bool
}

// NewProgress creates an idle progress. onChange, if set, is called with the lock
// held and must not call back into the Progress.
func NewProgress(interval, settle time.Duration, onChange func(ProgressState)) *Progress {
	return &Progress{
		interval: interval,
		settle:   settle,
		onChange: onChange,
		index:    entity.StepNotStarted,
		limit:    entity.StepCount,
	}
}

func (p *Progress) State() ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state()
}

func (p *Progress) state() ProgressState {
	s := ProgressState{
		Index:     p.index,
		Busy:      p.busy,
		Completed: p.index >= entity.StepCount,
	}
	if p.index >= 0 && p.index < entity.StepCount {
		s.Label = Steps[p.index]
	}
	return s
}

func (p *Progress) notify() {
	if p.onChange != nil {
		p.onChange(p.state())
	}
}

// Start restarts the animation from the first step. The index advances up to limit.
func (p *Progress) Start(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.index = 0
	p.busy = true
	p.limit = limit
	p.notify()
	p.schedule()
}

// SetLimit moves the highest index the animation may reach.
func (p *Progress) SetLimit(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || limit == p.limit {
		return
	}
	p.limit = limit
	if p.timer == nil {
		p.schedule()
	}
}

// Complete jumps to the terminal index and marks the flow busy until it settles.
func (p *Progress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.index = entity.StepCount
	p.limit = entity.StepCount
	p.busy = true
	p.notify()
	p.schedule()
}

// Reset returns to the not started index and cancels pending timers.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.cancel()
	p.index = entity.StepNotStarted
	p.busy = false
	p.limit = entity.StepCount
	p.notify()
}

// Stop cancels pending timers. No state changes are reported after Stop.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.cancel()
}

func (p *Progress) cancel() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Progress) schedule() {
	p.cancel()
	if !p.busy || p.stopped {
		return
	}
	gen := p.gen
	switch {
	case p.index >= entity.StepCount:
		p.timer = time.AfterFunc(p.settle, func() { p.fire(gen, p.settled) })
	case p.index < p.limit:
		p.timer = time.AfterFunc(p.interval, func() { p.fire(gen, p.advance) })
	}
}

func (p *Progress) fire(gen uint64, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || gen != p.gen {
		return
	}
	p.timer = nil
	fn()
}

func (p *Progress) advance() {
	if p.index >= p.limit {
		return
	}
	p.index++
	p.notify()
	p.schedule()
}

func (p *Progress) settled() {
	p.busy = false
	p.notify()
}
