// Package redis provides named locks shared across processes through Redis.
//
// A lock is a key set with NX and an expiry, holding a random token. Only
// the holder of the token can release it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fxsml/gosplit/splitter"
)

// ErrNotHeld is returned by Unlock when the lock expired or belongs to
// another holder.
var ErrNotHeld = errors.New("redis lock: not held")

var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config configures a Manager.
type Config struct {
	// Prefix is prepended to every lock name. Default "gosplit:lock:".
	Prefix string

	// TTL bounds how long a crashed holder blocks others. Default 30s.
	TTL time.Duration

	// RetryInterval is the first wait between acquisition attempts.
	// It doubles up to MaxRetryInterval. Defaults 5ms and 200ms.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

func (c Config) parse() Config {
	if c.Prefix == "" {
		c.Prefix = "gosplit:lock:"
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Millisecond
	}
	if c.MaxRetryInterval < c.RetryInterval {
		c.MaxRetryInterval = max(200*time.Millisecond, c.RetryInterval)
	}
	return c
}

// Manager hands out Redis-backed locks.
type Manager struct {
	client goredis.UniversalClient
	cfg    Config
}

// NewManager creates a Manager on an existing client. The caller owns the client.
func NewManager(client goredis.UniversalClient, cfg Config) *Manager {
	return &Manager{client: client, cfg: cfg.parse()}
}

// GetLock returns a handle on the lock for name. Handles for the same name
// exclude each other, in this process and any other.
func (m *Manager) GetLock(name string) splitter.Lock {
	return &Lock{m: m, key: m.cfg.Prefix + name}
}

// RemoveLock is a no-op: nothing is kept locally and Redis forgets a lock
// when it is released.
func (m *Manager) RemoveLock(string) {}

// Lock is one handle on a named lock.
type Lock struct {
	m   *Manager
	key string

	mu    sync.Mutex
	token string
}

// TryLock polls until the lock is acquired or ctx is done.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	wait := l.m.cfg.RetryInterval
	for {
		ok, err := l.m.client.SetNX(ctx, l.key, token, l.m.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("redis lock: acquire %s: %w", l.key, err)
		}
		if ok {
			l.mu.Lock()
			l.token = token
			l.mu.Unlock()
			return true, nil
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, nil
		case <-t.C:
		}
		wait = min(wait*2, l.m.cfg.MaxRetryInterval)
	}
}

// Unlock releases the lock if this handle still holds it.
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return ErrNotHeld
	}

	n, err := unlockScript.Run(ctx, l.m.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis lock: release %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.key)
	}
	return nil
}
