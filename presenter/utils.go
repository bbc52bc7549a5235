package presenter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/entity"
)

var formats = map[uint64]string{
	1:        "https://etherscan.io/tx/%s",
	8453:     "https://basescan.org/tx/%s",
	42161:    "https://arbiscan.io/tx/%s",
	84532:    "https://sepolia.basescan.org/tx/%s",
	421614:   "https://sepolia.arbiscan.io/tx/%s",
	11155111: "https://sepolia.etherscan.io/tx/%s",
}

const ccipExplorerFormat = "https://ccip.chain.link/msg/%s"

func txLink(chainID uint64, txHash common.Hash) string {
	if format, ok := formats[chainID]; ok {
		return fmt.Sprintf(format, txHash.Hex())
	}
	return txHash.Hex()
}

func stateLinks(chainID uint64, state entity.BridgeState) Links {
	var links Links
	if state.TxHash != nil {
		links.SourceTx = txLink(chainID, *state.TxHash)
	}
	if state.HasMessage() {
		links.Message = fmt.Sprintf(ccipExplorerFormat, state.MessageID.Hex())
	}
	return links
}
