package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleKV struct {
	db *pebble.DB
}

func NewPebbleKV(dir string) (*PebbleKV, error) {
	return openPebble(filepath.Join(dir, "bridge-tracker-store"), &pebble.Options{})
}

// NewInMemoryPebbleKV opens a pebble store backed by an in-memory filesystem.
func NewInMemoryPebbleKV() (*PebbleKV, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*PebbleKV, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("can't open pebble db: %w", err)
	}
	return &PebbleKV{db: db}, nil
}

func (s *PebbleKV) Get(_ context.Context, key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get key %s: %w", key, err)
	}
	defer closer.Close()

	res := make([]byte, len(value))
	copy(res, value)
	return res, nil
}

func (s *PebbleKV) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("can't set key %s: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Deleting a missing key is not an error.
func (s *PebbleKV) Remove(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("can't delete key %s: %w", key, err)
	}
	return nil
}

func (s *PebbleKV) Close() error {
	return s.db.Close()
}
