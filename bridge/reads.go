package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract"
	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/logging"
)

// Reads is a snapshot of the contract state the bridge flow depends on.
// Every field is read independently and keeps its zero value when its read fails.
type Reads struct {
	ChainSupported bool     `json:"chainSupported"`
	AssetSupported bool     `json:"assetSupported"`
	Balance        *big.Int `json:"balance"`
	Allowance      *big.Int `json:"allowance"`
	BridgeFee      *big.Int `json:"bridgeFee"`
	WETHPrice      *big.Int `json:"wethPrice"`
	Failed         []string `json:"failed,omitempty"`
}

func emptyReads() *Reads {
	return &Reads{
		Balance:   new(big.Int),
		Allowance: new(big.Int),
		BridgeFee: new(big.Int),
		WETHPrice: new(big.Int),
	}
}

type ReadRequest struct {
	Account         common.Address
	AmountRaw       *big.Int
	TargetBaseAsset common.Address
}

type readCall struct {
	name     string
	contract *contract.Contract
	method   string
	args     []interface{}
	decode   func(values []interface{}) error
}

// Reader loads Reads with one batched eth_call per chain.
type Reader struct {
	router   *contract.SourceRouterContract
	asset    *contract.ERC20Contract
	pool     *contract.AavePoolContract
	weth     common.Address
	selector uint64
	logger   logging.Logger
}

// NewReader reads router and asset state from source and the WETH price from the
// lending pool on destination.
func NewReader(cfg *config.Config, source, destination ethclient.Client, logger logging.Logger) *Reader {
	return &Reader{
		router:   contract.NewSourceRouterContract(source, cfg.Addresses.SourceRouter),
		asset:    contract.NewERC20Contract(source, cfg.Addresses.BaseCCIPBnM),
		pool:     contract.NewAavePoolContract(destination, cfg.Addresses.AavePool),
		weth:     cfg.Addresses.WETH,
		selector: cfg.Bridge.DestinationChain.CCIPSelector,
		logger:   logger,
	}
}

func (r *Reader) Router() *contract.SourceRouterContract {
	return r.router
}

func (r *Reader) Asset() *contract.ERC20Contract {
	return r.asset
}

// BridgeRequest builds the bridgeToArbitrum arguments for req.
func (r *Reader) BridgeRequest(req ReadRequest) *contract.BridgeRequest {
	amount := req.AmountRaw
	if amount == nil {
		amount = new(big.Int)
	}
	return &contract.BridgeRequest{
		Asset:               r.asset.Address(),
		Amount:              amount,
		DestinationSelector: r.selector,
		Receiver:            req.Account,
		MinShares:           new(big.Int),
		TargetBaseAsset:     req.TargetBaseAsset,
	}
}

func (r *Reader) Read(ctx context.Context, req ReadRequest) *Reads {
	res := emptyReads()
	bridgeReq := r.BridgeRequest(req)

	setBool := func(dst *bool) func([]interface{}) error {
		return func(values []interface{}) error {
			v, err := contract.DecodeBool(values)
			*dst = v
			return err
		}
	}
	setUint := func(dst **big.Int) func([]interface{}) error {
		return func(values []interface{}) error {
			v, err := contract.DecodeUint256(values)
			if err == nil {
				*dst = v
			}
			return err
		}
	}

	sourceCalls := []readCall{
		{"supported_chains", r.router.Contract, "supportedChains", []interface{}{r.selector}, setBool(&res.ChainSupported)},
		{"supported_assets", r.router.Contract, "supportedAssets", []interface{}{r.asset.Address()}, setBool(&res.AssetSupported)},
		{"balance", r.asset.Contract, "balanceOf", []interface{}{req.Account}, setUint(&res.Balance)},
		{"allowance", r.asset.Contract, "allowance", []interface{}{req.Account, r.router.Address()}, setUint(&res.Allowance)},
		{"bridge_fee", r.router.Contract, "getBridgeFee", []interface{}{
			bridgeReq.DestinationSelector, bridgeReq.Asset, bridgeReq.Amount, bridgeReq.MinShares, bridgeReq.TargetBaseAsset,
		}, setUint(&res.BridgeFee)},
	}
	destinationCalls := []readCall{
		{"weth_price", r.pool.Contract, "assetPrices", []interface{}{r.weth}, setUint(&res.WETHPrice)},
	}

	var sourceFailed, destinationFailed []string
	var g errgroup.Group
	g.Go(func() error {
		sourceFailed = r.batch(ctx, r.router.Client(), sourceCalls)
		return nil
	})
	g.Go(func() error {
		destinationFailed = r.batch(ctx, r.pool.Client(), destinationCalls)
		return nil
	})
	_ = g.Wait()

	res.Failed = append(sourceFailed, destinationFailed...)
	return res
}

// batch runs calls in one JSON-RPC batch and returns the names of the failed calls.
func (r *Reader) batch(ctx context.Context, client ethclient.Client, calls []readCall) []string {
	var failed []string
	msgs := make([]ethereum.CallMsg, 0, len(calls))
	for _, call := range calls {
		msg, err := call.contract.CallMsg(call.method, call.args...)
		if err != nil {
			r.logger.WithError(err).WithField("read", call.name).Error("can't encode read")
			msg = ethereum.CallMsg{}
		}
		msgs = append(msgs, msg)
	}

	results, err := client.BatchCallContract(ctx, msgs)
	if err != nil {
		r.logger.WithError(err).WithField("chain_id", client.ChainID()).Warn("batched read failed")
		for _, call := range calls {
			failed = append(failed, call.name)
		}
		return failed
	}

	for i, call := range calls {
		logger := r.logger.WithFields(logrus.Fields{
			"read":     call.name,
			"chain_id": client.ChainID(),
		})
		if results[i].Err != nil {
			logger.WithError(results[i].Err).Debug("read failed")
			failed = append(failed, call.name)
			continue
		}
		values, err := call.contract.Unpack(call.method, results[i].Data)
		if err == nil {
			err = call.decode(values)
		}
		if err != nil {
			logger.WithError(err).Debug("can't decode read result")
			failed = append(failed, call.name)
		}
	}
	return failed
}
