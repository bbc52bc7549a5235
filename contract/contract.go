package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/ethclient"
)

type Contract struct {
	address common.Address
	client  ethclient.Client
	abi     abi.ABI
}

func NewContract(client ethclient.Client, addr common.Address, abi abi.ABI) *Contract {
	return &Contract{addr, client, abi}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Client() ethclient.Client {
	return c.client
}

// CallMsg packs a read call of method suitable for a batched eth_call.
func (c *Contract) CallMsg(method string, args ...interface{}) (ethereum.CallMsg, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("cannot encode abi calldata for %s: %w", method, err)
	}
	return ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}, nil
}

func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	msg, err := c.CallMsg(method, args...)
	if err != nil {
		return nil, err
	}
	res, err := c.client.CallContract(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("cannot call %s(...): %w", method, err)
	}
	return c.Unpack(method, res)
}

func (c *Contract) Unpack(method string, data []byte) ([]interface{}, error) {
	values, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s(...) result: %w", method, err)
	}
	return values, nil
}

func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata for %s: %w", method, err)
	}
	return data, nil
}

func (c *Contract) ABI() *abi.ABI {
	return &c.abi
}
