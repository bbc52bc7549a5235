package bridgestate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/storage"
)

const StorageKey = "apollos_bridge_state_v1"

// Patch is a partial update of the bridge state. Nil fields are left unchanged.
type Patch struct {
	MessageID  *common.Hash
	TxHash     *common.Hash
	Step       *int
	Timestamp  *int64
	StartBlock *entity.BigInt
	// Reset starts a new bridge attempt before applying the patch.
	Reset bool
}

// Store keeps the bridge state in memory and checkpoints it to a KV store.
// Storage failures are logged and never returned.
type Store struct {
	kv     storage.KV
	logger logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  entity.BridgeState
	loaded bool
}

func NewStore(kv storage.KV, logger logging.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.WithField("storage_key", StorageKey),
		now:    time.Now,
		state:  entity.InitialBridgeState(),
	}
}

// Load hydrates the state from storage. Missing or malformed data yields the initial state.
func (s *Store) Load(ctx context.Context) entity.BridgeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.read(ctx)
	s.loaded = true
	return s.state
}

func (s *Store) read(ctx context.Context) entity.BridgeState {
	blob, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return entity.InitialBridgeState()
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load bridge state")
		return entity.InitialBridgeState()
	}

	state := entity.InitialBridgeState()
	if err = json.Unmarshal(blob, &state); err != nil {
		s.logger.WithError(err).Error("failed to parse stored bridge state")
		return entity.InitialBridgeState()
	}
	if state.Step < entity.StepNotStarted {
		s.logger.WithField("step", state.Step).Warn("stored bridge state has invalid step")
		return entity.InitialBridgeState()
	}
	return state
}

// Save replaces the whole state. Before Load completes only memory is updated.
func (s *Store) Save(ctx context.Context, state entity.BridgeState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) {
	if !s.loaded {
		return
	}
	blob, err := json.Marshal(s.state)
	if err != nil {
		s.logger.WithError(err).Error("failed to serialize bridge state")
		return
	}
	if err = s.kv.Set(ctx, StorageKey, blob); err != nil {
		s.logger.WithError(err).Error("failed to save bridge state")
	}
}

// Update merges patch into the current state and saves it.
// A step lower than the current one is ignored while the same attempt is tracked.
func (s *Store) Update(ctx context.Context, patch Patch) entity.BridgeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Reset {
		s.state = entity.InitialBridgeState()
	}
	if patch.MessageID != nil {
		s.state.MessageID = patch.MessageID
	}
	if patch.TxHash != nil {
		s.state.TxHash = patch.TxHash
	}
	if patch.StartBlock != nil {
		s.state.StartBlock = patch.StartBlock
	}
	if patch.Step != nil {
		if *patch.Step < s.state.Step {
			s.logger.WithFields(logrus.Fields{
				"current_step":   s.state.Step,
				"requested_step": *patch.Step,
			}).Warn("ignoring backward step update")
		} else {
			s.state.Step = *patch.Step
		}
	}
	if patch.Timestamp != nil {
		s.state.Timestamp = *patch.Timestamp
	} else {
		s.state.Timestamp = s.now().UnixMilli()
	}

	s.persist(ctx)
	return s.state
}

// Clear resets the state and removes the persisted record.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = entity.InitialBridgeState()
	if err := s.kv.Remove(ctx, StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.WithError(err).Error("failed to remove bridge state")
	}
}

func (s *Store) State() entity.BridgeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func Int(v int) *int {
	return &v
}

func Hash(h common.Hash) *common.Hash {
	return &h
}
