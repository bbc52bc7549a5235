package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/apollos-finance/bridge-tracker/config"
)

var ErrNotFound = errors.New("key not found")

// KV is a small key-value store holding the tracker's local state.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

func New(cfg *config.StorageConfig) (KV, error) {
	switch cfg.Backend {
	case config.StorageBackendPebble:
		return NewPebbleKV(cfg.Dir)
	case config.StorageBackendRedis:
		return NewRedisKV(cfg.Redis), nil
	case config.StorageBackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
