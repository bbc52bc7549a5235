package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PendingDeposit is a deposit recorded by the destination CCIP receiver.
// A zero Amount means the receiver has no record for the message yet.
type PendingDeposit struct {
	MessageID           common.Hash    `json:"messageId"`
	SourceChainSelector uint64         `json:"sourceChainSelector"`
	SourceSender        common.Address `json:"sourceSender"`
	Receiver            common.Address `json:"receiver"`
	Amount              *big.Int       `json:"amount"`
	SourceAsset         common.Address `json:"sourceAsset"`
	TargetBaseAsset     common.Address `json:"targetBaseAsset"`
	MinShares           *big.Int       `json:"minShares"`
	Executed            bool           `json:"executed"`
}

func (d *PendingDeposit) Recorded() bool {
	return d != nil && d.Amount != nil && d.Amount.Sign() > 0
}
