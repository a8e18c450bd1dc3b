package splitter

import (
	"context"

	"github.com/fxsml/gosplit/exchange"
)

// Strategy turns message content into an ordered sequence of sub-contents.
// It must be deterministic for a given input.
type Strategy interface {
	Split(content []byte) ([][]byte, error)
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(content []byte) ([][]byte, error)

// Split implements Strategy.
func (f StrategyFunc) Split(content []byte) ([][]byte, error) {
	return f(content)
}

// Resolver configures the route of a child exchange for a logical target.
type Resolver interface {
	Resolve(ctx context.Context, ex *exchange.Exchange, target string) error
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(ctx context.Context, ex *exchange.Exchange, target string) error

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, ex *exchange.Exchange, target string) error {
	return f(ctx, ex, target)
}

// Store is a durable keyed store of opaque values.
// Only single-key operations need to be atomic.
type Store interface {
	// Load returns the value for key. ok is false if the key is absent.
	Load(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Store writes value under key, replacing any previous value.
	Store(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Lock is a named mutual-exclusion token.
type Lock interface {
	// TryLock blocks until the lock is held or ctx is done.
	// It returns false if the lock could not be acquired.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases a held lock.
	Unlock(ctx context.Context) error
}

// LockManager hands out named locks.
type LockManager interface {
	// GetLock returns the lock for name. Repeated calls with the same name
	// return equivalent locks.
	GetLock(name string) Lock
	// RemoveLock forgets the lock for name.
	RemoveLock(name string)
}

// Channel delivers exchanges between endpoints.
type Channel interface {
	// Send dispatches ex without waiting. Requests go to ex.Endpoint,
	// replies go back to the originator.
	Send(ctx context.Context, ex *exchange.Exchange) error
	// SendSync dispatches a request and blocks until it comes back
	// completed, failed, faulted or answered.
	SendSync(ctx context.Context, ex *exchange.Exchange) (*exchange.Exchange, error)
}

// Logger defines an interface for logging at different severity levels.
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string, args ...any)
	// Info logs a message at info level.
	Info(msg string, args ...any)
	// Warn logs a message at warning level.
	Warn(msg string, args ...any)
	// Error logs a message at error level.
	Error(msg string, args ...any)
}
