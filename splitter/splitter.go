package splitter

import (
	"context"
	"log/slog"

	"github.com/fxsml/gosplit/exchange"
)

// Config configures a Splitter.
type Config struct {
	// Name is the endpoint name of the splitter. It becomes the source of
	// every child exchange so completion callbacks are routed back to it.
	Name string

	// Target is the logical destination of the parts. Required.
	Target string

	Strategy Strategy // required
	Resolver Resolver // required
	Channel  Channel  // required

	// Store and Locks back asynchronous mode. Required unless Synchronous.
	Store Store
	Locks LockManager

	// Codec persists the original exchange. Default exchange.NewCodec().
	Codec exchange.Codec

	// PartPattern is the pattern of child exchanges.
	// Zero means the pattern of the original exchange.
	PartPattern exchange.Pattern

	// ReportErrors propagates the first failed or faulted part to the
	// original exchange. When false, part failures are absorbed.
	ReportErrors bool

	// Synchronous sends parts one at a time and waits for each.
	Synchronous bool

	// ForwardAttachments copies attachments of the original message to every part.
	ForwardAttachments bool

	// ForwardProperties copies properties of the original message to every part.
	ForwardProperties bool

	// Logger defaults to slog.Default().
	Logger Logger
}

func (c Config) validate() error {
	switch {
	case c.Target == "":
		return ErrMissingTarget
	case c.Strategy == nil:
		return ErrMissingStrategy
	case c.Resolver == nil:
		return ErrMissingResolver
	case c.Channel == nil:
		return ErrMissingChannel
	}
	if !c.Synchronous {
		if c.Store == nil {
			return ErrMissingStore
		}
		if c.Locks == nil {
			return ErrMissingLocks
		}
	}
	if c.PartPattern != 0 && c.PartPattern != exchange.FireAndForget &&
		c.PartPattern != exchange.FireAndForgetWithFault && c.PartPattern != exchange.RequestResponse {
		return ErrUnsupportedPattern
	}
	return nil
}

func (c Config) parse() Config {
	if c.Name == "" {
		c.Name = "splitter"
	}
	if c.Codec == nil {
		c.Codec = exchange.NewCodec()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Splitter is the split and correlate endpoint.
type Splitter struct {
	cfg Config
	log Logger
}

// New creates a Splitter. It returns a configuration error if a required
// collaborator is missing.
func New(cfg Config) (*Splitter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.parse()
	return &Splitter{cfg: cfg, log: cfg.Logger}, nil
}

// Name returns the endpoint name of the splitter.
func (s *Splitter) Name() string {
	return s.cfg.Name
}

// Process handles one exchange delivered to the splitter.
//
// An active exchange received as responder is a new original to split.
// A terminal exchange received as responder is a closing notification and
// is ignored. An exchange received as originator is the completion callback
// of a part sent earlier.
//
// Configuration errors are returned to the caller and the original is not
// completed by the splitter.
func (s *Splitter) Process(ctx context.Context, ex *exchange.Exchange) error {
	if ex.Role == exchange.Originator {
		return s.processCallback(ctx, ex)
	}
	if ex.Status.Terminal() {
		s.log.Debug("splitter: ignoring closed exchange", "exchange_id", ex.ID, "status", ex.Status)
		return nil
	}
	if s.cfg.Synchronous {
		return s.processSync(ctx, ex)
	}
	return s.processAsync(ctx, ex)
}

// processCallback only applies in asynchronous mode. In synchronous mode
// every part is awaited by SendSync and never reaches Process.
func (s *Splitter) processCallback(ctx context.Context, part *exchange.Exchange) error {
	if s.cfg.Synchronous {
		s.log.Warn("splitter: unexpected callback in synchronous mode", "exchange_id", part.ID)
		return nil
	}
	return s.handleCallback(ctx, part)
}

func (s *Splitter) resolve(ctx context.Context, part *exchange.Exchange) error {
	if err := s.cfg.Resolver.Resolve(ctx, part, s.cfg.Target); err != nil {
		return wrap(ErrResolve, err)
	}
	return nil
}

// reply hands a completed or faulted exchange back to whoever sent it.
func (s *Splitter) reply(ctx context.Context, ex *exchange.Exchange) error {
	return s.cfg.Channel.Send(ctx, ex)
}
