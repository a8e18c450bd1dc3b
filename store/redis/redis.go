// Package redis provides a correlation store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config configures a Store.
type Config struct {
	// Prefix is prepended to every key. Default "gosplit:".
	Prefix string

	// TTL expires records that are never finalized. Zero keeps them forever.
	TTL time.Duration
}

func (c Config) parse() Config {
	if c.Prefix == "" {
		c.Prefix = "gosplit:"
	}
	return c
}

// Store keeps correlation records as plain Redis strings.
type Store struct {
	client goredis.UniversalClient
	cfg    Config
}

// New creates a Store on an existing client. The caller owns the client.
func New(client goredis.UniversalClient, cfg Config) *Store {
	return &Store{client: client, cfg: cfg.parse()}
}

func (s *Store) key(k string) string {
	return s.cfg.Prefix + k
}

// Load returns the value for key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis store: get %s: %w", key, err)
	}
	return b, true, nil
}

// Store writes value under key.
func (s *Store) Store(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis store: del %s: %w", key, err)
	}
	return nil
}
