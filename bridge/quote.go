package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/utils"
)

// Quote is a read-only preview of a bridge request for an arbitrary account.
type Quote struct {
	Input     Input          `json:"input"`
	Account   common.Address `json:"account"`
	Vault     string         `json:"vault"`
	Amount    float64        `json:"amount"`
	AmountRaw *big.Int       `json:"amountRaw"`
	Reads     *Reads         `json:"reads"`
	Balance   float64        `json:"balance"`
	Estimate  Estimate       `json:"estimate"`
	Approval  bool           `json:"needsApproval"`
	CanRoute  bool           `json:"canRoute"`
	Warning   string         `json:"warning,omitempty"`
}

// NewQuote reads the contract state for in and account. An empty vault selects the first vault market.
func NewQuote(ctx context.Context, cfg *config.Config, reader *Reader, in Input, account common.Address) (*Quote, error) {
	if in.Vault == "" && len(cfg.VaultOrder) > 0 {
		in.Vault = cfg.VaultOrder[0]
	}
	vault, ok := cfg.Vaults[in.Vault]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVault, in.Vault)
	}
	decimals := cfg.Bridge.SourceAssetDecimals
	amount, _ := ParseAmount(in.Amount)
	raw := ToRaw(amount, decimals)
	reads := reader.Read(ctx, ReadRequest{
		Account:         account,
		AmountRaw:       raw,
		TargetBaseAsset: vault.TargetBaseAddress,
	})
	balance := utils.FormatUnits(reads.Balance, decimals)

	return &Quote{
		Input:     in,
		Account:   account,
		Vault:     vault.Key,
		Amount:    amount,
		AmountRaw: raw,
		Reads:     reads,
		Balance:   balance,
		Estimate:  NewEstimate(amount, reads, vault, cfg.Bridge),
		Approval:  NeedsApproval(raw, reads.Allowance),
		CanRoute:  ValidateAmount(amount, balance) && reads.ChainSupported && reads.AssetSupported,
		Warning:   RouteWarning(reads.ChainSupported, reads.AssetSupported),
	}, nil
}
