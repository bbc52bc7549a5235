package abi

//nolint:golint
import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed erc20.json
var erc20JSONABI string

//go:embed source_router.json
var sourceRouterJSONABI string

//go:embed ccip_receiver.json
var ccipReceiverJSONABI string

//go:embed ccip_receiver_record.json
var ccipReceiverRecordJSONABI string

//go:embed aave_pool.json
var aavePoolJSONABI string

const (
	Transfer = "event Transfer(address indexed from, address indexed to, uint256 value)"
	Approval = "event Approval(address indexed owner, address indexed spender, uint256 value)"
)

var (
	ERC20ABI        = MustReadABI(erc20JSONABI)
	SourceRouterABI = MustReadABI(sourceRouterJSONABI)
	AavePoolABI     = MustReadABI(aavePoolJSONABI)
	// CCIPReceiverABI declares pendingDeposits as a public mapping getter with flat outputs.
	CCIPReceiverABI = MustReadABI(ccipReceiverJSONABI)
	// CCIPReceiverRecordABI declares pendingDeposits as returning a single struct.
	CCIPReceiverRecordABI = MustReadABI(ccipReceiverRecordJSONABI)
)

type ABI struct {
	abi.ABI
}

func MustReadABI(rawJSON string) ABI {
	res, err := abi.JSON(strings.NewReader(rawJSON))
	if err != nil {
		panic(err)
	}
	return ABI{res}
}

func (a *ABI) AllEvents() map[string]bool {
	events := make(map[string]bool, len(a.Events))
	for _, event := range a.Events {
		events[event.String()] = true
	}
	return events
}

func (a *ABI) FindMatchingEventABI(topics []common.Hash) *abi.Event {
	if len(topics) == 0 {
		return nil
	}
	for _, e := range a.Events {
		if e.ID == topics[0] {
			indexed := Indexed(e.Inputs)
			if len(indexed) == len(topics)-1 {
				e := e
				return &e
			}
		}
	}
	return nil
}

// ParseLog decodes log against the known events. An unknown event yields an empty name and no error.
func (a *ABI) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, fmt.Errorf("cannot process event without topics")
	}
	event := a.FindMatchingEventABI(log.Topics)
	if event == nil {
		return "", nil, nil
	}

	res, err := DecodeEventLog(event, log.Topics, log.Data)
	if err != nil {
		return "", nil, fmt.Errorf("can't decode event log: %w", err)
	}
	return event.String(), res, nil
}
