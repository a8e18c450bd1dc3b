package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fxsml/gosplit/exchange"
	"github.com/fxsml/gosplit/internal/worker"
)

// Logger defines an interface for logging at different severity levels.
type Logger = worker.Logger

// Metrics describes one delivery.
type Metrics = worker.Metrics

// LogConfig configures delivery logging.
type LogConfig = worker.LogConfig

// LogLevel is the level of a delivery log message.
type LogLevel = worker.LogLevel

// Config configures a Bus.
type Config struct {
	// Concurrency is the number of delivery workers. Default 16.
	Concurrency int

	// BufferSize is the capacity of the delivery queue. Default 256.
	BufferSize int

	// ShutdownTimeout is the grace period for queued deliveries after the
	// start context is canceled. Default 5s.
	ShutdownTimeout time.Duration

	// MaxAttempts retries a failing delivery. 0 or 1 disables retries.
	MaxAttempts int

	// RetryBackoff is the first wait between attempts. Default 100ms.
	RetryBackoff time.Duration

	// RetryBackoffFactor multiplies the wait per retry. Default 2.
	// A factor of 1 or less keeps the wait constant.
	RetryBackoffFactor float64

	// Collect receives the metrics of every delivery.
	Collect func(*Metrics)

	// Log configures delivery logging.
	Log LogConfig

	// Logger defaults to slog.Default().
	Logger Logger
}

func (c Config) parse() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.RetryBackoffFactor == 0 {
		c.RetryBackoffFactor = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Log.Logger == nil {
		c.Log.Logger = c.Logger
	}
	if c.Log.MessageSuccess == "" {
		c.Log.MessageSuccess = "bus: delivered"
	}
	if c.Log.MessageFailure == "" {
		c.Log.MessageFailure = "bus: delivery failed"
	}
	if c.Log.MessageCancel == "" {
		c.Log.MessageCancel = "bus: delivery canceled"
	}
	return c
}

// delivery is one exchange on its way to an endpoint.
type delivery struct {
	name string
	ep   Endpoint
	ex   *exchange.Exchange
}

// Bus routes exchanges between registered endpoints. It implements
// splitter.Channel and splitter.Resolver.
type Bus struct {
	cfg Config
	log Logger

	mu        sync.RWMutex
	endpoints map[string]Endpoint

	waitMu  sync.Mutex
	waiters map[string]chan *exchange.Exchange

	queueMu sync.RWMutex
	queue   chan delivery
	started bool
	closed  bool
	stopped chan struct{}

	handle worker.Handler[delivery]
}

// New creates a stopped Bus. Sends are queued until Start.
func New(cfg Config) *Bus {
	cfg = cfg.parse()
	b := &Bus{
		cfg:       cfg,
		log:       cfg.Logger,
		endpoints: make(map[string]Endpoint),
		waiters:   make(map[string]chan *exchange.Exchange),
		queue:     make(chan delivery, cfg.BufferSize),
		stopped:   make(chan struct{}),
	}
	b.handle = b.handler()
	return b
}

// Start runs the delivery workers until ctx is canceled or Close is called.
// The returned channel is closed once every worker has exited.
func (b *Bus) Start(ctx context.Context) (<-chan struct{}, error) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.started {
		return nil, ErrAlreadyStarted
	}
	b.started = true

	done := worker.Start(ctx, b.queue, b.handle, worker.Config{
		Concurrency:     b.cfg.Concurrency,
		ShutdownTimeout: b.cfg.ShutdownTimeout,
		ErrorHandler: func(in any, err error) {
			if d, ok := in.(delivery); ok {
				b.log.Debug("bus: delivery not completed",
					"endpoint", d.name, "exchange_id", d.ex.ID, "error", err)
			}
		},
		CleanupHandler: func() {
			close(b.stopped)
			b.log.Debug("bus: stopped")
		},
	})
	return done, nil
}

// Close stops accepting sends. Queued deliveries are still processed.
func (b *Bus) Close() {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
}

// Send dispatches ex without waiting.
//
// An exchange sent by its originator travels to ex.Endpoint. An exchange
// sent by its responder travels back to a pending SendSync for ex, or else
// to the endpoint named by ex.Source.
func (b *Bus) Send(ctx context.Context, ex *exchange.Exchange) error {
	if ex == nil {
		return fmt.Errorf("%w: nil exchange", ErrInvalidExchange)
	}
	if ex.Role == exchange.Originator {
		return b.forward(ctx, ex)
	}
	return b.reply(ctx, ex)
}

// SendSync dispatches a request and blocks until the responder sends it back.
// It returns ErrClosed if the bus stops first.
func (b *Bus) SendSync(ctx context.Context, ex *exchange.Exchange) (*exchange.Exchange, error) {
	if ex == nil || ex.Role != exchange.Originator || ex.Status != exchange.Active {
		return nil, fmt.Errorf("%w: synchronous send needs an active request", ErrInvalidExchange)
	}

	wait := make(chan *exchange.Exchange, 1)
	b.waitMu.Lock()
	if _, dup := b.waiters[ex.ID]; dup {
		b.waitMu.Unlock()
		return nil, fmt.Errorf("%w: %s already awaited", ErrInvalidExchange, ex.ID)
	}
	b.waiters[ex.ID] = wait
	b.waitMu.Unlock()
	defer b.removeWaiter(ex.ID)

	if err := b.forward(ctx, ex); err != nil {
		return nil, err
	}
	select {
	case returned := <-wait:
		return returned, nil
	case <-b.stopped:
		select {
		case returned := <-wait:
			return returned, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bus) removeWaiter(id string) {
	b.waitMu.Lock()
	delete(b.waiters, id)
	b.waitMu.Unlock()
}

// forward and reply flip the role before the exchange is queued and restore
// it when it could not be queued.
func (b *Bus) forward(ctx context.Context, ex *exchange.Exchange) error {
	ep, err := b.endpoint(ex.Endpoint)
	if err != nil {
		return err
	}
	ex.Role = ex.Role.Flip()
	if err := b.enqueue(ctx, delivery{name: ex.Endpoint, ep: ep, ex: ex}); err != nil {
		ex.Role = ex.Role.Flip()
		return err
	}
	return nil
}

func (b *Bus) reply(ctx context.Context, ex *exchange.Exchange) error {
	ex.Role = ex.Role.Flip()

	b.waitMu.Lock()
	wait, ok := b.waiters[ex.ID]
	if ok {
		delete(b.waiters, ex.ID)
	}
	b.waitMu.Unlock()
	if ok {
		wait <- ex
		return nil
	}

	if ex.Source == "" {
		b.log.Debug("bus: reply without originator endpoint", "exchange_id", ex.ID, "status", ex.Status)
		return nil
	}
	ep, err := b.endpoint(ex.Source)
	if err == nil {
		err = b.enqueue(ctx, delivery{name: ex.Source, ep: ep, ex: ex})
	}
	if err != nil {
		ex.Role = ex.Role.Flip()
		return err
	}
	return nil
}

func (b *Bus) enqueue(ctx context.Context, d delivery) error {
	b.queueMu.RLock()
	defer b.queueMu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
