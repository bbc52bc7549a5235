// Package ethclienttest provides an in-memory ethclient.Client for tests.
package ethclienttest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/apollos-finance/bridge-tracker/ethclient"
)

var ErrExecutionReverted = errors.New("execution reverted")

type CallHandler func(msg ethereum.CallMsg) ([]byte, error)

type handlerKey struct {
	to       common.Address
	selector [4]byte
}

type Client struct {
	mu          sync.Mutex
	chainID     uint64
	blockNumber uint64
	handlers    map[handlerKey]CallHandler
	receipts    map[common.Hash]*types.Receipt
	sent        []*types.Transaction
	calls       int

	BatchErr error
	SendErr  error
	// OnSend runs after a transaction is accepted, e.g. to register its receipt.
	OnSend func(tx *types.Transaction)
}

var _ ethclient.Client = (*Client)(nil)

func NewClient(chainID uint64) *Client {
	return &Client{
		chainID:     chainID,
		blockNumber: 1000,
		handlers:    make(map[handlerKey]CallHandler),
		receipts:    make(map[common.Hash]*types.Receipt),
	}
}

// Handle registers handler for calls to the given contract method selector.
func (c *Client) Handle(to common.Address, selector []byte, handler CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var key handlerKey
	key.to = to
	copy(key.selector[:], selector)
	c.handlers[key] = handler
}

func (c *Client) SetBlockNumber(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockNumber = n
}

func (c *Client) SetReceipt(hash common.Hash, receipt *types.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[hash] = receipt
}

func (c *Client) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// Calls returns the number of eth_call requests served so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

func (c *Client) Close() {}

func (c *Client) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockNumber, nil
}

func (c *Client) call(msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	var key handlerKey
	if msg.To != nil {
		key.to = *msg.To
	}
	if len(msg.Data) >= 4 {
		copy(key.selector[:], msg.Data[:4])
	}
	handler, ok := c.handlers[key]
	c.mu.Unlock()

	if !ok {
		return nil, ErrExecutionReverted
	}
	return handler(msg)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.call(msg)
}

func (c *Client) BatchCallContract(ctx context.Context, msgs []ethereum.CallMsg) ([]ethclient.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	batchErr := c.BatchErr
	c.mu.Unlock()
	if batchErr != nil {
		return nil, batchErr
	}
	results := make([]ethclient.CallResult, len(msgs))
	for i, msg := range msgs {
		if msg.To == nil {
			results[i].Err = ethclient.ErrEmptyCallTarget
			continue
		}
		results[i].Data, results[i].Err = c.call(msg)
	}
	return results, nil
}

func (c *Client) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *Client) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *Client) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *Client) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	if c.SendErr != nil {
		err := c.SendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, tx)
	onSend := c.OnSend
	c.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	return nil
}
