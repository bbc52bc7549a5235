package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/ethclient"
)

type ERC20Contract struct {
	*Contract
}

func NewERC20Contract(client ethclient.Client, addr common.Address) *ERC20Contract {
	return &ERC20Contract{NewContract(client, addr, abi.ERC20ABI)}
}

func (c *ERC20Contract) Decimals(ctx context.Context) (uint8, error) {
	res, err := c.Call(ctx, "decimals")
	if err != nil {
		return 0, fmt.Errorf("cannot obtain decimals: %w", err)
	}
	v, err := singleValue(res)
	if err != nil {
		return 0, err
	}
	d, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals has type %T", ErrUnexpectedValue, v)
	}
	return d, nil
}

// ApproveCalldata encodes approve(spender, amount).
func (c *ERC20Contract) ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	return c.Pack("approve", spender, amount)
}

// FindTransfer returns the value of the first Transfer(from, to) emitted by this token in receipt.
func (c *ERC20Contract) FindTransfer(receipt *types.Receipt, from, to common.Address) (*big.Int, bool) {
	for _, log := range receipt.Logs {
		if log.Address != c.address {
			continue
		}
		event, values, err := c.abi.ParseLog(log)
		if err != nil || event != abi.Transfer {
			continue
		}
		if values["from"] != from || values["to"] != to {
			continue
		}
		value, ok := values["value"].(*big.Int)
		if ok {
			return value, true
		}
	}
	return nil, false
}

func DecodeUint256(values []interface{}) (*big.Int, error) {
	v, err := singleValue(values)
	if err != nil {
		return nil, err
	}
	return asBigInt(v)
}

func DecodeBool(values []interface{}) (bool, error) {
	v, err := singleValue(values)
	if err != nil {
		return false, err
	}
	return asBool(v)
}
