package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/ethclient"
)

type CCIPReceiverContract struct {
	*Contract
}

func NewCCIPReceiverContract(client ethclient.Client, addr common.Address) *CCIPReceiverContract {
	return &CCIPReceiverContract{NewContract(client, addr, abi.CCIPReceiverABI)}
}

func (c *CCIPReceiverContract) PendingDeposit(ctx context.Context, messageID common.Hash) (*entity.PendingDeposit, error) {
	res, err := c.Call(ctx, "pendingDeposits", messageID)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain pending deposit: %w", err)
	}
	deposit, err := DecodePendingDeposit(res)
	if err != nil {
		return nil, fmt.Errorf("cannot decode pending deposit: %w", err)
	}
	return deposit, nil
}
