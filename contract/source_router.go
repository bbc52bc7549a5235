package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/ethclient"
)

type SourceRouterContract struct {
	*Contract
}

// BridgeRequest holds the arguments of bridgeToArbitrum.
type BridgeRequest struct {
	Asset               common.Address
	Amount              *big.Int
	DestinationSelector uint64
	Receiver            common.Address
	MinShares           *big.Int
	TargetBaseAsset     common.Address
}

func NewSourceRouterContract(client ethclient.Client, addr common.Address) *SourceRouterContract {
	return &SourceRouterContract{NewContract(client, addr, abi.SourceRouterABI)}
}

func (c *SourceRouterContract) BridgeCalldata(req *BridgeRequest) ([]byte, error) {
	return c.Pack("bridgeToArbitrum", req.Asset, req.Amount, req.DestinationSelector, req.Receiver, minShares(req), req.TargetBaseAsset)
}

// DecodeMessageID decodes the bytes32 returned by a simulated bridgeToArbitrum call.
func (c *SourceRouterContract) DecodeMessageID(data []byte) (common.Hash, error) {
	res, err := c.Unpack("bridgeToArbitrum", data)
	if err != nil {
		return common.Hash{}, err
	}
	v, err := singleValue(res)
	if err != nil {
		return common.Hash{}, err
	}
	return asHash(v)
}

func minShares(req *BridgeRequest) *big.Int {
	if req.MinShares == nil {
		return new(big.Int)
	}
	return req.MinShares
}
