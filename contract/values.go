package contract

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrUnexpectedValue = errors.New("unexpected decoded value")

func singleValue(values []interface{}) (interface{}, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: expected 1 value, got %d", ErrUnexpectedValue, len(values))
	}
	return values[0], nil
}

func asBigInt(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return new(big.Int), nil
		}
		return x, nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case int:
		return big.NewInt(int64(x)), nil
	case string:
		res, ok := new(big.Int).SetString(x, 0)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrUnexpectedValue, x)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: %T is not an integer", ErrUnexpectedValue, v)
	}
}

func asUint64(v interface{}) (uint64, error) {
	x, err := asBigInt(v)
	if err != nil {
		return 0, err
	}
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows uint64", ErrUnexpectedValue, x)
	}
	return x.Uint64(), nil
}

func asBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	default:
		return false, fmt.Errorf("%w: %T is not a bool", ErrUnexpectedValue, v)
	}
}

func asAddress(v interface{}) (common.Address, error) {
	switch x := v.(type) {
	case common.Address:
		return x, nil
	case *common.Address:
		if x == nil {
			return common.Address{}, nil
		}
		return *x, nil
	case string:
		if !common.IsHexAddress(x) {
			return common.Address{}, fmt.Errorf("%w: %q is not an address", ErrUnexpectedValue, x)
		}
		return common.HexToAddress(x), nil
	default:
		return common.Address{}, fmt.Errorf("%w: %T is not an address", ErrUnexpectedValue, v)
	}
}

func asHash(v interface{}) (common.Hash, error) {
	switch x := v.(type) {
	case [32]byte:
		return x, nil
	case common.Hash:
		return x, nil
	case []byte:
		if len(x) != common.HashLength {
			return common.Hash{}, fmt.Errorf("%w: %d bytes is not a bytes32", ErrUnexpectedValue, len(x))
		}
		return common.BytesToHash(x), nil
	case string:
		b := common.FromHex(x)
		if len(b) != common.HashLength {
			return common.Hash{}, fmt.Errorf("%w: %q is not a bytes32", ErrUnexpectedValue, x)
		}
		return common.BytesToHash(b), nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %T is not a bytes32", ErrUnexpectedValue, v)
	}
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// fieldsOf flattens a named record (map or struct) into normalized field names.
func fieldsOf(v interface{}) (map[string]interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		res := make(map[string]interface{}, len(m))
		for k, val := range m {
			res[normalizeFieldName(k)] = val
		}
		return res, true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	rt := rv.Type()
	res := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		if !rt.Field(i).IsExported() {
			continue
		}
		res[normalizeFieldName(rt.Field(i).Name)] = rv.Field(i).Interface()
	}
	return res, true
}
