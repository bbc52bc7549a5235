package presenter

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/entity"
)

type Links struct {
	SourceTx string `json:"sourceTx,omitempty"`
	Message  string `json:"message,omitempty"`
}

type StatusResult struct {
	MessageID *common.Hash           `json:"messageId"`
	Status    entity.CCIPStatus      `json:"status"`
	Step      int                    `json:"step"`
	Completed bool                   `json:"completed"`
	Deposit   *entity.PendingDeposit `json:"deposit,omitempty"`
	Links     Links                  `json:"links"`
}

type HistoryResult struct {
	MessageID common.Hash            `json:"messageId"`
	Updates   []*entity.StatusUpdate `json:"updates"`
	Links     Links                  `json:"links"`
}

type HealthResult struct {
	Status   string            `json:"status"`
	Tracking bool              `json:"tracking"`
	CCIP     entity.CCIPStatus `json:"ccipStatus"`
}
