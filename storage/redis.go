package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/apollos-finance/bridge-tracker/config"
)

type RedisKV struct {
	pool *redis.Pool
}

func timeoutDialOptions(cfg *config.RedisConfig) []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
		redis.DialPassword(cfg.Password),
		redis.DialDatabase(cfg.DB),
	}
}

func NewRedisKV(cfg *config.RedisConfig) *RedisKV {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return NewRedisKVWithPool(&redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, timeoutDialOptions(cfg)...)
		},
	})
}

func NewRedisKVWithPool(pool *redis.Pool) *RedisKV {
	return &RedisKV{pool: pool}
}

func (s *RedisKV) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()
	return conn.Do(cmd, args...)
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := redis.Bytes(s.do(ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get key %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.do(ctx, "SET", key, value); err != nil {
		return fmt.Errorf("can't set key %s: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Remove(ctx context.Context, key string) error {
	if _, err := s.do(ctx, "DEL", key); err != nil {
		return fmt.Errorf("can't delete key %s: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Close() error {
	return s.pool.Close()
}
