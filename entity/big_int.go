package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// BigInt is an arbitrary-precision integer serialized as a decimal JSON string.
type BigInt big.Int

func NewBigInt(x *big.Int) *BigInt {
	if x == nil {
		return nil
	}
	return (*BigInt)(new(big.Int).Set(x))
}

func NewBigIntFromUint64(x uint64) *BigInt {
	return (*BigInt)(new(big.Int).SetUint64(x))
}

func (b *BigInt) Int() *big.Int {
	if b == nil {
		return nil
	}
	return (*big.Int)(b)
}

func (b *BigInt) String() string {
	if b == nil {
		return "<nil>"
	}
	return b.Int().String()
}

func (b *BigInt) Cmp(other *BigInt) int {
	return b.Int().Cmp(other.Int())
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal((*big.Int)(&b).String())
}

// UnmarshalJSON accepts both the string form and a bare JSON number.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	if _, ok := (*big.Int)(b).SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid big integer %q", data)
	}
	return nil
}
