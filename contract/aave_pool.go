package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/contract/abi"
	"github.com/apollos-finance/bridge-tracker/ethclient"
)

type AavePoolContract struct {
	*Contract
}

type UserAccountData struct {
	TotalCollateralBase         *big.Int
	TotalDebtBase               *big.Int
	AvailableBorrowsBase        *big.Int
	CurrentLiquidationThreshold *big.Int
	LTV                         *big.Int
	HealthFactor                *big.Int
}

func NewAavePoolContract(client ethclient.Client, addr common.Address) *AavePoolContract {
	return &AavePoolContract{NewContract(client, addr, abi.AavePoolABI)}
}

func DecodeUserAccountData(values []interface{}) (*UserAccountData, error) {
	if len(values) != 6 {
		return nil, fmt.Errorf("%w: account data has %d values", ErrUnexpectedValue, len(values))
	}
	ints := make([]*big.Int, len(values))
	for i, v := range values {
		x, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		ints[i] = x
	}
	return &UserAccountData{
		TotalCollateralBase:         ints[0],
		TotalDebtBase:               ints[1],
		AvailableBorrowsBase:        ints[2],
		CurrentLiquidationThreshold: ints[3],
		LTV:                         ints[4],
		HealthFactor:                ints[5],
	}, nil
}
