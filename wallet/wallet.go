package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/utils"
)

var (
	ErrNotConnected     = errors.New("wallet is not connected")
	ErrNoPrivateKey     = errors.New("wallet private key is not configured")
	ErrUnsupportedChain = errors.New("chain is not configured")
	ErrTxReverted       = errors.New("transaction reverted")
)

const receiptPollInterval = 2 * time.Second

// TxRequest is a contract call sent from the wallet on its active chain.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

type Wallet interface {
	Connected() bool
	Connect(ctx context.Context) error
	Address() common.Address
	ChainID() uint64
	SwitchChain(ctx context.Context, chainID uint64) error
	Call(ctx context.Context, req TxRequest) ([]byte, error)
	Transact(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// KeyedWallet signs transactions with a locally held private key.
type KeyedWallet struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	clients      map[uint64]ethclient.Client
	logger       logging.Logger
	pollInterval time.Duration

	mu        sync.Mutex
	chainID   uint64
	connected bool
}

func NewKeyedWallet(hexKey string, clients map[uint64]ethclient.Client, chainID uint64, logger logging.Logger) (*KeyedWallet, error) {
	w := &KeyedWallet{
		clients:      clients,
		logger:       logger,
		pollInterval: receiptPollInterval,
		chainID:      chainID,
	}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return w, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("can't parse wallet private key: %w", err)
	}
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	w.logger = logger.WithField("wallet", w.address.Hex())
	return w, nil
}

// SetReceiptPollInterval changes how often WaitReceipt asks for the receipt.
func (w *KeyedWallet) SetReceiptPollInterval(d time.Duration) {
	w.pollInterval = d
}

func (w *KeyedWallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Connect checks that a key is configured and the active chain is reachable.
func (w *KeyedWallet) Connect(ctx context.Context) error {
	if w.key == nil {
		return ErrNoPrivateKey
	}
	client, err := w.client()
	if err != nil {
		return err
	}
	if _, err = client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("can't reach chain %d: %w", client.ChainID(), err)
	}

	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
	w.logger.WithField("chain_id", client.ChainID()).Info("wallet connected")
	return nil
}

func (w *KeyedWallet) Address() common.Address {
	return w.address
}

func (w *KeyedWallet) ChainID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID
}

func (w *KeyedWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if !w.Connected() {
		return ErrNotConnected
	}
	client, ok := w.clients[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("can't reach chain %d: %w", chainID, err)
	}

	w.mu.Lock()
	prev := w.chainID
	w.chainID = chainID
	w.mu.Unlock()
	w.logger.WithFields(logrus.Fields{
		"from_chain_id": prev,
		"to_chain_id":   chainID,
	}).Info("switched chain")
	return nil
}

func (w *KeyedWallet) client() (ethclient.Client, error) {
	chainID := w.ChainID()
	client, ok := w.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	return client, nil
}

func (w *KeyedWallet) callMsg(req TxRequest) ethereum.CallMsg {
	to := req.To
	return ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Data:  req.Data,
		Value: req.Value,
	}
}

// Call simulates req from the wallet address and returns the call result.
func (w *KeyedWallet) Call(ctx context.Context, req TxRequest) ([]byte, error) {
	if !w.Connected() {
		return nil, ErrNotConnected
	}
	client, err := w.client()
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, w.callMsg(req))
	if err != nil {
		return nil, fmt.Errorf("can't simulate transaction: %w", err)
	}
	return res, nil
}

func (w *KeyedWallet) Transact(ctx context.Context, req TxRequest) (common.Hash, error) {
	if !w.Connected() {
		return common.Hash{}, ErrNotConnected
	}
	client, err := w.client()
	if err != nil {
		return common.Hash{}, err
	}
	chainID := client.ChainID()

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get nonce for wallet: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get suggested gas price: %w", err)
	}
	gas, err := client.EstimateGas(ctx, w.callMsg(req))
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't estimate gas: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(w.key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't create transactor: %w", err)
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas * 12 / 10,
		To:       &req.To,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := auth.Signer(w.address, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't sign transaction: %w", err)
	}
	if err = client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("can't send transaction: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"chain_id": chainID,
		"tx_hash":  signed.Hash().Hex(),
		"to":       req.To.Hex(),
		"nonce":    nonce,
	}).Info("sent transaction")
	return signed.Hash(), nil
}

// WaitReceipt blocks until the transaction is mined on the active chain.
// A reverted transaction returns its receipt together with ErrTxReverted.
func (w *KeyedWallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	client, err := w.client()
	if err != nil {
		return nil, err
	}
	logger := w.logger.WithField("tx_hash", hash.Hex())
	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			logger.Debug("transaction is not mined yet")
		default:
			logger.WithError(err).Warn("can't get transaction receipt, retrying")
		}
		if err = utils.ContextSleep(ctx, w.pollInterval); err != nil {
			return nil, err
		}
	}
}
