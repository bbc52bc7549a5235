package contract

import (
	"fmt"

	"github.com/apollos-finance/bridge-tracker/entity"
)

const pendingDepositFields = 9

var pendingDepositFieldNames = [pendingDepositFields]string{
	"messageid",
	"sourcechainselector",
	"sourcesender",
	"receiver",
	"amount",
	"sourceasset",
	"targetbaseasset",
	"minshares",
	"executed",
}

// DecodePendingDeposit normalizes a pendingDeposits(bytes32) result.
// It accepts the positional tuple of 9 values, a single-element slice wrapping a record,
// or a named record given as a struct or a map. Amount, receiver and executed are
// required, the remaining fields are decoded when present.
func DecodePendingDeposit(v interface{}) (*entity.PendingDeposit, error) {
	if values, ok := v.([]interface{}); ok {
		switch len(values) {
		case pendingDepositFields:
			return decodePendingDepositTuple(values)
		case 1:
			return DecodePendingDeposit(values[0])
		default:
			return nil, fmt.Errorf("%w: pending deposit tuple has %d values", ErrUnexpectedValue, len(values))
		}
	}

	fields, ok := fieldsOf(v)
	if !ok {
		return nil, fmt.Errorf("%w: can't decode pending deposit from %T", ErrUnexpectedValue, v)
	}
	values := make([]interface{}, pendingDepositFields)
	for i, name := range pendingDepositFieldNames {
		values[i] = fields[name]
	}
	return decodePendingDepositTuple(values)
}

func decodePendingDepositTuple(values []interface{}) (*entity.PendingDeposit, error) {
	var err error
	res := new(entity.PendingDeposit)

	if res.Amount, err = asBigInt(values[4]); err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if res.Receiver, err = asAddress(values[3]); err != nil {
		return nil, fmt.Errorf("invalid receiver: %w", err)
	}
	if res.Executed, err = asBool(values[8]); err != nil {
		return nil, fmt.Errorf("invalid executed flag: %w", err)
	}

	if values[0] != nil {
		if res.MessageID, err = asHash(values[0]); err != nil {
			return nil, fmt.Errorf("invalid message id: %w", err)
		}
	}
	if values[1] != nil {
		if res.SourceChainSelector, err = asUint64(values[1]); err != nil {
			return nil, fmt.Errorf("invalid source chain selector: %w", err)
		}
	}
	if values[2] != nil {
		if res.SourceSender, err = asAddress(values[2]); err != nil {
			return nil, fmt.Errorf("invalid source sender: %w", err)
		}
	}
	if values[5] != nil {
		if res.SourceAsset, err = asAddress(values[5]); err != nil {
			return nil, fmt.Errorf("invalid source asset: %w", err)
		}
	}
	if values[6] != nil {
		if res.TargetBaseAsset, err = asAddress(values[6]); err != nil {
			return nil, fmt.Errorf("invalid target base asset: %w", err)
		}
	}
	if values[7] != nil {
		if res.MinShares, err = asBigInt(values[7]); err != nil {
			return nil, fmt.Errorf("invalid min shares: %w", err)
		}
	}
	return res, nil
}
