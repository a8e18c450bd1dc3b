package splitter

import (
	"errors"
	"fmt"
)

// ErrConfig is the base of all configuration errors. Configuration errors
// are fatal and never retried.
var ErrConfig = errors.New("splitter: configuration")

var (
	ErrMissingTarget   = fmt.Errorf("%w: missing target", ErrConfig)
	ErrMissingStrategy = fmt.Errorf("%w: missing split strategy", ErrConfig)
	ErrMissingResolver = fmt.Errorf("%w: missing target resolver", ErrConfig)
	ErrMissingChannel  = fmt.Errorf("%w: missing delivery channel", ErrConfig)
	ErrMissingStore    = fmt.Errorf("%w: asynchronous mode requires a correlation store", ErrConfig)
	ErrMissingLocks    = fmt.Errorf("%w: asynchronous mode requires a lock manager", ErrConfig)

	// ErrUnsupportedPattern is returned for exchanges that are not
	// fire-and-forget.
	ErrUnsupportedPattern = fmt.Errorf("%w: unsupported exchange pattern", ErrConfig)

	// ErrSplit wraps a failure of the split strategy.
	ErrSplit = fmt.Errorf("%w: split failed", ErrConfig)

	// ErrResolve wraps a failure of the target resolver.
	ErrResolve = fmt.Errorf("%w: target resolution failed", ErrConfig)
)

var (
	// ErrNotCorrelated is returned for a callback that carries no part metadata.
	ErrNotCorrelated = errors.New("splitter: exchange carries no part metadata")

	// ErrLockNotAcquired is returned when a correlation lock could not be taken.
	ErrLockNotAcquired = errors.New("splitter: correlation lock not acquired")

	// ErrRecordCorrupt is returned when a persisted correlation record cannot be read.
	ErrRecordCorrupt = errors.New("splitter: corrupt correlation record")
)

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

func wrap(base, err error) error {
	return fmt.Errorf("%w: %w", base, err)
}
