package splitter

import (
	"context"

	"github.com/fxsml/gosplit/exchange"
)

type outcome int

const (
	outcomeDone outcome = iota
	outcomeError
	outcomeFault
)

func (o outcome) String() string {
	switch o {
	case outcomeError:
		return "error"
	case outcomeFault:
		return "fault"
	default:
		return "done"
	}
}

// classify maps a returned part onto the outcome the finalizer branches on.
// A request-response part that came back with a response counts as done.
func classify(part *exchange.Exchange) outcome {
	switch {
	case part.Status == exchange.Error:
		return outcomeError
	case part.Fault != nil:
		return outcomeFault
	default:
		return outcomeDone
	}
}

// needsClose reports whether the originator still owes the responder a
// final status for this part: faults and responses must be acknowledged.
func needsClose(part *exchange.Exchange) bool {
	return part.Status == exchange.Active && (part.Fault != nil || part.Response != nil)
}

// closePart acknowledges a faulted or answered part so its responder sees
// a terminal status.
func (s *Splitter) closePart(ctx context.Context, part *exchange.Exchange) {
	if !needsClose(part) {
		return
	}
	part.Done()
	if err := s.cfg.Channel.Send(ctx, part); err != nil {
		s.log.Warn("splitter: failed to close part", "exchange_id", part.ID, "error", err)
	}
}

// finalization describes how the original exchange ends.
type finalization struct {
	outcome outcome
	cause   *exchange.Exchange
}

// apply writes the outcome onto the original exchange.
func (f finalization) apply(original *exchange.Exchange) {
	switch f.outcome {
	case outcomeError:
		original.Fail(f.cause.Error)
	case outcomeFault:
		original.SetFault(f.cause.Fault)
	default:
		original.Done()
	}
}
