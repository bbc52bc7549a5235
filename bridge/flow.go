package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/logging"
)

type FlowState string

const (
	FlowIdle            FlowState = "idle"
	FlowSwitching       FlowState = "switching"
	FlowApproving       FlowState = "approving"
	FlowSubmitting      FlowState = "submitting"
	FlowAwaitingReceipt FlowState = "awaiting-receipt"
	FlowTrackingMessage FlowState = "tracking-message"
	FlowDelivered       FlowState = "delivered"
	FlowFailed          FlowState = "failed"
)

var AllFlowStates = []FlowState{
	FlowIdle,
	FlowSwitching,
	FlowApproving,
	FlowSubmitting,
	FlowAwaitingReceipt,
	FlowTrackingMessage,
	FlowDelivered,
	FlowFailed,
}

// Busy reports whether the flow waits for the wallet or the chain.
func (s FlowState) Busy() bool {
	switch s {
	case FlowSwitching, FlowApproving, FlowSubmitting, FlowAwaitingReceipt, FlowTrackingMessage:
		return true
	default:
		return false
	}
}

type Event string

const (
	EventSwitchRequested  Event = "switch_requested"
	EventSwitched         Event = "switched"
	EventApproveRequested Event = "approve_requested"
	EventApproved         Event = "approved"
	EventSubmitRequested  Event = "submit_requested"
	EventSubmitted        Event = "submitted"
	EventReceiptSucceeded Event = "receipt_succeeded"
	EventReceiptReverted  Event = "receipt_reverted"
	EventMessagePending   Event = "message_pending"
	EventMessageStored    Event = "message_stored"
	EventMessageExecuted  Event = "message_executed"
	EventMessageFailed    Event = "message_failed"
	EventError            Event = "error"
	EventReset            Event = "reset"
)

var ErrInvalidTransition = errors.New("invalid flow transition")

var transitions = map[FlowState]map[Event]FlowState{
	FlowIdle: {
		EventSwitchRequested:  FlowSwitching,
		EventApproveRequested: FlowApproving,
		EventSubmitRequested:  FlowSubmitting,
		// resumed attempt with a persisted message id
		EventMessagePending:  FlowTrackingMessage,
		EventMessageStored:   FlowTrackingMessage,
		EventMessageExecuted: FlowDelivered,
		EventMessageFailed:   FlowFailed,
	},
	FlowSwitching: {
		EventSwitched: FlowIdle,
		EventError:    FlowIdle,
	},
	FlowApproving: {
		EventApproved: FlowIdle,
		EventError:    FlowIdle,
	},
	FlowSubmitting: {
		EventSubmitted: FlowAwaitingReceipt,
		EventError:     FlowIdle,
	},
	FlowAwaitingReceipt: {
		EventReceiptSucceeded: FlowTrackingMessage,
		EventReceiptReverted:  FlowFailed,
		EventError:            FlowFailed,
	},
	FlowTrackingMessage: {
		EventMessagePending:  FlowTrackingMessage,
		EventMessageStored:   FlowTrackingMessage,
		EventMessageExecuted: FlowDelivered,
		EventMessageFailed:   FlowFailed,
	},
	FlowFailed: {
		EventMessageStored:   FlowTrackingMessage,
		EventMessageExecuted: FlowDelivered,
	},
	FlowDelivered: {},
}

// Flow is the bridge attempt state machine. It only moves on events.
type Flow struct {
	logger logging.Logger

	mu        sync.Mutex
	state     FlowState
	listeners []func(from, to FlowState)
}

func NewFlow(logger logging.Logger) *Flow {
	observeFlowState(FlowIdle)
	return &Flow{
		logger: logger,
		state:  FlowIdle,
	}
}

func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnTransition registers fn to be called after every state change.
func (f *Flow) OnTransition(fn func(from, to FlowState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Fire applies ev. Reset is accepted in every state.
func (f *Flow) Fire(ev Event) (FlowState, error) {
	f.mu.Lock()
	from := f.state
	to, ok := transitions[from][ev]
	if ev == EventReset {
		to, ok = FlowIdle, true
	}
	if !ok {
		f.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	f.state = to
	listeners := append(([]func(from, to FlowState))(nil), f.listeners...)
	f.mu.Unlock()

	if from != to {
		observeFlowState(to)
		f.logger.WithFields(logrus.Fields{
			"from_state": from,
			"to_state":   to,
			"event":      ev,
		}).Debug("bridge flow transition")
		for _, fn := range listeners {
			fn(from, to)
		}
	}
	return to, nil
}
