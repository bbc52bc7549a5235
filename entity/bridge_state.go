package entity

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	// StepNotStarted is the step index of a bridge attempt that has not started yet.
	StepNotStarted = -1
	// StepCount is the number of progress steps. A step index equal to it means completed.
	StepCount = 4
)

// BridgeState is the persisted checkpoint of the tracked bridge attempt.
type BridgeState struct {
	MessageID  *common.Hash `json:"messageId,omitempty"`
	TxHash     *common.Hash `json:"txHash,omitempty"`
	Step       int          `json:"step"`
	Timestamp  int64        `json:"timestamp"`
	StartBlock *BigInt      `json:"startBlock,omitempty"`
}

func InitialBridgeState() BridgeState {
	return BridgeState{Step: StepNotStarted}
}

func (s BridgeState) HasMessage() bool {
	return s.MessageID != nil && *s.MessageID != (common.Hash{})
}
