package bus

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running bus.
	ErrAlreadyStarted = errors.New("bus: already started")

	// ErrClosed is returned when sending on a closed bus.
	ErrClosed = errors.New("bus: closed")

	// ErrUnknownEndpoint is returned for a name no endpoint is registered under.
	ErrUnknownEndpoint = errors.New("bus: unknown endpoint")

	// ErrDuplicateEndpoint is returned when registering a name twice.
	ErrDuplicateEndpoint = errors.New("bus: endpoint already registered")

	// ErrInvalidEndpoint is returned when registering an empty name or a nil endpoint.
	ErrInvalidEndpoint = errors.New("bus: invalid endpoint")

	// ErrInvalidExchange is returned for an exchange that cannot be sent.
	ErrInvalidExchange = errors.New("bus: invalid exchange")
)
