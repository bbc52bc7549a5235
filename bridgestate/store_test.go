package bridgestate_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/storage"
)

var (
	testMessageID = common.HexToHash("0x3b1c8f0b7c43e0a1ad2f3c0f6f8d9e0a1b2c3d4e5f60718293a4b5c6d7e8f901")
	testTxHash    = common.HexToHash("0x9f2e1d0c3b4a59687766554433221100ffeeddccbbaa99887766554433221100")
)

type brokenKV struct {
	storage.KV
	setErr    error
	removeErr error
}

func (kv *brokenKV) Set(ctx context.Context, key string, value []byte) error {
	if kv.setErr != nil {
		return kv.setErr
	}
	return kv.KV.Set(ctx, key, value)
}

func (kv *brokenKV) Remove(ctx context.Context, key string) error {
	if kv.removeErr != nil {
		return kv.removeErr
	}
	return kv.KV.Remove(ctx, key)
}

func newStore(kv storage.KV) *bridgestate.Store {
	return bridgestate.NewStore(kv, logging.NewNop())
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	startBlock, ok := new(big.Int).SetString("98765432109876543210987654321", 10)
	require.True(t, ok)

	for _, tc := range []struct {
		Name  string
		State entity.BridgeState
	}{
		{"initial", entity.InitialBridgeState()},
		{"submitted", entity.BridgeState{
			TxHash:    bridgestate.Hash(testTxHash),
			Step:      0,
			Timestamp: 1718000000000,
		}},
		{"tracking", entity.BridgeState{
			MessageID:  bridgestate.Hash(testMessageID),
			TxHash:     bridgestate.Hash(testTxHash),
			Step:       2,
			Timestamp:  1718000000123,
			StartBlock: entity.NewBigInt(startBlock),
		}},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			kv := storage.NewMemoryKV()
			store := newStore(kv)
			store.Load(ctx)
			store.Save(ctx, tc.State)

			loaded := newStore(kv).Load(ctx)
			require.Equal(t, tc.State.MessageID, loaded.MessageID)
			require.Equal(t, tc.State.TxHash, loaded.TxHash)
			require.Equal(t, tc.State.Step, loaded.Step)
			require.Equal(t, tc.State.Timestamp, loaded.Timestamp)
			if tc.State.StartBlock == nil {
				require.Nil(t, loaded.StartBlock)
			} else {
				require.NotNil(t, loaded.StartBlock)
				require.Zero(t, tc.State.StartBlock.Cmp(loaded.StartBlock))
			}
		})
	}
}

func TestStore_StartBlockIsDecimalString(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newStore(kv)
	store.Load(ctx)
	store.Save(ctx, entity.BridgeState{Step: 1, Timestamp: 5, StartBlock: entity.NewBigIntFromUint64(18500000)})

	blob, err := kv.Get(ctx, bridgestate.StorageKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"step":1,"timestamp":5,"startBlock":"18500000"}`, string(blob))
}

func TestStore_LoadCorrupted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, blob := range []string{
		`{not json`,
		``,
		`[]`,
		`{"step":"two"}`,
		`{"step":1,"startBlock":"12x"}`,
		`{"step":1,"messageId":"0x1234"}`,
		`{"step":-7}`,
	} {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, bridgestate.StorageKey, []byte(blob)))
		store := newStore(kv)
		require.Equal(t, entity.InitialBridgeState(), store.Load(ctx), blob)
		require.True(t, store.IsLoaded())
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	store := newStore(storage.NewMemoryKV())
	require.False(t, store.IsLoaded())
	require.Equal(t, entity.BridgeState{Step: -1, Timestamp: 0}, store.Load(context.Background()))
	require.True(t, store.IsLoaded())
}

func TestStore_WritesGatedByLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	previous := entity.BridgeState{MessageID: bridgestate.Hash(testMessageID), Step: 2, Timestamp: 10}
	seed := newStore(kv)
	seed.Load(ctx)
	seed.Save(ctx, previous)

	store := newStore(kv)
	store.Save(ctx, entity.InitialBridgeState())
	store.Update(ctx, bridgestate.Patch{Step: bridgestate.Int(0)})
	require.Equal(t, 0, store.State().Step)

	loaded := store.Load(ctx)
	require.Equal(t, previous, loaded)
}

func TestStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newStore(kv)
	store.Load(ctx)

	state := store.Update(ctx, bridgestate.Patch{TxHash: bridgestate.Hash(testTxHash), Step: bridgestate.Int(0)})
	require.Equal(t, 0, state.Step)
	require.Equal(t, testTxHash, *state.TxHash)
	require.Nil(t, state.MessageID)
	require.NotZero(t, state.Timestamp)

	ts := int64(42)
	state = store.Update(ctx, bridgestate.Patch{MessageID: bridgestate.Hash(testMessageID), Step: bridgestate.Int(2), Timestamp: &ts})
	require.Equal(t, 2, state.Step)
	require.Equal(t, testTxHash, *state.TxHash)
	require.Equal(t, testMessageID, *state.MessageID)
	require.Equal(t, int64(42), state.Timestamp)

	require.Equal(t, state, newStore(kv).Load(ctx))
}

func TestStore_StepMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(storage.NewMemoryKV())
	store.Load(ctx)

	var observed []int
	for _, step := range []int{0, 1, 3, 2, 1, 4} {
		observed = append(observed, store.Update(ctx, bridgestate.Patch{Step: bridgestate.Int(step)}).Step)
	}
	require.Equal(t, []int{0, 1, 3, 3, 3, 4}, observed)

	state := store.Update(ctx, bridgestate.Patch{Reset: true, Step: bridgestate.Int(0)})
	require.Equal(t, 0, state.Step)
	require.Nil(t, state.MessageID)
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newStore(kv)
	store.Load(ctx)

	store.Clear(ctx)
	require.Equal(t, entity.InitialBridgeState(), store.State())

	store.Update(ctx, bridgestate.Patch{MessageID: bridgestate.Hash(testMessageID), Step: bridgestate.Int(3)})
	store.Clear(ctx)
	require.Equal(t, entity.InitialBridgeState(), store.State())
	_, err := kv.Get(ctx, bridgestate.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// a new attempt may start from step 0 again
	require.Equal(t, 0, store.Update(ctx, bridgestate.Patch{Step: bridgestate.Int(0)}).Step)
}

func TestStore_StorageFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := &brokenKV{
		KV:        storage.NewMemoryKV(),
		setErr:    errors.New("quota exceeded"),
		removeErr: errors.New("storage disabled"),
	}
	store := newStore(kv)
	store.Load(ctx)

	state := store.Update(ctx, bridgestate.Patch{Step: bridgestate.Int(1)})
	require.Equal(t, 1, state.Step)
	require.Equal(t, 1, store.State().Step)

	store.Clear(ctx)
	require.Equal(t, entity.InitialBridgeState(), store.State())
}
