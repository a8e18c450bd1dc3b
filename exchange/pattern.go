package exchange

import "fmt"

// Pattern is the message exchange pattern.
type Pattern int

const (
	// FireAndForget carries no response and no fault, only a
	// completion or error signal.
	FireAndForget Pattern = iota + 1

	// FireAndForgetWithFault carries no response but the responder may
	// answer with a fault.
	FireAndForgetWithFault

	// RequestResponse expects a response message from the responder.
	RequestResponse
)

// String implements fmt.Stringer.
func (p Pattern) String() string {
	switch p {
	case FireAndForget:
		return "fire_and_forget"
	case FireAndForgetWithFault:
		return "fire_and_forget_with_fault"
	case RequestResponse:
		return "request_response"
	default:
		return "unknown"
	}
}

// IsFireAndForget reports whether the pattern carries no response.
func (p Pattern) IsFireAndForget() bool {
	return p == FireAndForget || p == FireAndForgetWithFault
}

// AcceptsFault reports whether a responder may answer with a fault.
func (p Pattern) AcceptsFault() bool {
	return p == FireAndForgetWithFault || p == RequestResponse
}

// ParsePattern parses the String form of a pattern.
// The aliases "in-only", "robust-in-only" and "in-out" are accepted too.
// An empty string returns the zero Pattern without error.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case "":
		return 0, nil
	case "fire_and_forget", "in-only":
		return FireAndForget, nil
	case "fire_and_forget_with_fault", "robust-in-only":
		return FireAndForgetWithFault, nil
	case "request_response", "in-out":
		return RequestResponse, nil
	}
	return 0, fmt.Errorf("exchange: unknown pattern %q", s)
}

// Status is the lifecycle state of an exchange.
type Status int

const (
	// Active exchanges are in flight.
	Active Status = iota
	// Done exchanges completed successfully.
	Done
	// Error exchanges failed; Exchange.Error holds the cause.
	Error
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Done || s == Error
}

func parseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return Active, nil
	case "done":
		return Done, nil
	case "error":
		return Error, nil
	}
	return 0, fmt.Errorf("exchange: unknown status %q", s)
}

// Role is the side from which an exchange is seen.
type Role int

const (
	// Originator created and sent the exchange.
	Originator Role = iota
	// Responder received the exchange for processing.
	Responder
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == Responder {
		return "responder"
	}
	return "originator"
}

// Flip returns the opposite role.
func (r Role) Flip() Role {
	if r == Responder {
		return Originator
	}
	return Responder
}

func parseRole(s string) (Role, error) {
	switch s {
	case "originator":
		return Originator, nil
	case "responder":
		return Responder, nil
	}
	return 0, fmt.Errorf("exchange: unknown role %q", s)
}
