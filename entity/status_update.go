package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StatusUpdate is one journaled status change of a tracked CCIP message.
type StatusUpdate struct {
	ID        uint           `db:"id" json:"id"`
	MessageID common.Hash    `db:"message_id" json:"messageId"`
	TxHash    *common.Hash   `db:"tx_hash" json:"txHash,omitempty"`
	Status    CCIPStatus     `db:"status" json:"status"`
	Amount    string         `db:"amount" json:"amount"`
	Receiver  common.Address `db:"receiver" json:"receiver"`
	Executed  bool           `db:"executed" json:"executed"`
	CreatedAt *time.Time     `db:"created_at" json:"createdAt,omitempty"`
}

type StatusUpdatesRepo interface {
	Insert(ctx context.Context, update *StatusUpdate) error
	FindByMessageID(ctx context.Context, messageID common.Hash) ([]*StatusUpdate, error)
	GetLatest(ctx context.Context, messageID common.Hash) (*StatusUpdate, error)
}
