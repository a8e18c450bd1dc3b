// Package engine assembles a running splitter from configuration: the bus,
// the split strategy, the correlation store and the lock manager.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fxsml/gosplit/bus"
	"github.com/fxsml/gosplit/config"
	"github.com/fxsml/gosplit/exchange"
	lockmem "github.com/fxsml/gosplit/lock/memory"
	lockredis "github.com/fxsml/gosplit/lock/redis"
	"github.com/fxsml/gosplit/splitter"
	storemem "github.com/fxsml/gosplit/store/memory"
	"github.com/fxsml/gosplit/store/mongodb"
	storeredis "github.com/fxsml/gosplit/store/redis"
	"github.com/fxsml/gosplit/strategy"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStrategy replaces the configured split strategy.
func WithStrategy(s splitter.Strategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// Engine is a bus with a splitter endpoint registered on it.
type Engine struct {
	cfg      config.File
	log      *slog.Logger
	strategy splitter.Strategy

	bus      *bus.Bus
	splitter *splitter.Splitter
	closers  []func(context.Context) error
}

// New builds an engine from f. Backends are connected immediately; call
// Close to release them.
func New(ctx context.Context, f config.File, opts ...Option) (*Engine, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: f, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.build(ctx); err != nil {
		_ = e.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(ctx context.Context) error {
	e.bus = bus.New(bus.Config{
		Concurrency:        e.cfg.Bus.Concurrency,
		BufferSize:         e.cfg.Bus.BufferSize,
		ShutdownTimeout:    e.cfg.Bus.ShutdownTimeout,
		MaxAttempts:        e.cfg.Bus.MaxAttempts,
		RetryBackoff:       e.cfg.Bus.RetryBackoff,
		RetryBackoffFactor: e.cfg.Bus.RetryBackoffFactor,
		Log:                bus.LogConfig{LevelSuccess: bus.LogLevel(e.cfg.Bus.LogLevel)},
		Logger:             e.log,
	})

	if e.strategy == nil {
		s, err := strategy.FromConfig(e.cfg.Strategy.Kind, e.cfg.Strategy.Expression)
		if err != nil {
			return err
		}
		e.strategy = s
	}
	pattern, err := exchange.ParsePattern(e.cfg.Splitter.PartPattern)
	if err != nil {
		return err
	}

	sc := e.cfg.Splitter
	cfg := splitter.Config{
		Name:               sc.Name,
		Target:             sc.Target,
		Strategy:           e.strategy,
		Resolver:           e.bus,
		Channel:            e.bus,
		PartPattern:        pattern,
		ReportErrors:       sc.ReportErrors,
		Synchronous:        sc.Synchronous,
		ForwardAttachments: sc.ForwardAttachments,
		ForwardProperties:  sc.ForwardProperties,
		Logger:             e.log.With("component", "splitter"),
	}
	if !sc.Synchronous {
		if cfg.Store, err = e.store(ctx); err != nil {
			return err
		}
		if cfg.Locks, err = e.locks(ctx); err != nil {
			return err
		}
	}

	if e.splitter, err = splitter.New(cfg); err != nil {
		return err
	}
	return e.bus.Register(e.splitter.Name(), e.splitter)
}

func (e *Engine) store(ctx context.Context) (splitter.Store, error) {
	c := e.cfg.Store
	switch c.Backend {
	case config.BackendRedis:
		client, err := e.redis(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		return storeredis.New(client, storeredis.Config{Prefix: c.Redis.Prefix, TTL: c.TTL}), nil
	case config.BackendMongoDB:
		s, err := mongodb.Connect(ctx, mongodb.Config{
			URI:        c.MongoDB.URI,
			Database:   c.MongoDB.Database,
			Collection: c.MongoDB.Collection,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s.Close)
		return s, nil
	default:
		return storemem.New(), nil
	}
}

func (e *Engine) locks(ctx context.Context) (splitter.LockManager, error) {
	c := e.cfg.Lock
	if c.Backend != config.BackendRedis {
		return lockmem.NewManager(), nil
	}
	client, err := e.redis(ctx, c.Redis)
	if err != nil {
		return nil, err
	}
	prefix := c.Redis.Prefix
	if prefix != "" {
		prefix += "lock:"
	}
	return lockredis.NewManager(client, lockredis.Config{Prefix: prefix, TTL: c.TTL}), nil
}

func (e *Engine) redis(ctx context.Context, c config.Redis) (goredis.UniversalClient, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("engine: redis %s: %w", c.Addr, err)
	}
	e.closers = append(e.closers, func(context.Context) error { return client.Close() })
	return client, nil
}

// Register adds an endpoint parts can be routed to.
func (e *Engine) Register(name string, ep bus.Endpoint) error {
	return e.bus.Register(name, ep)
}

// Bus returns the bus endpoints use to send replies.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Start runs the bus until ctx is canceled or Close is called.
func (e *Engine) Start(ctx context.Context) (<-chan struct{}, error) {
	return e.bus.Start(ctx)
}

// Submit sends content to the splitter as a new fire-and-forget exchange
// and waits until it is finalized.
func (e *Engine) Submit(ctx context.Context, content []byte, props exchange.Properties) (*exchange.Exchange, error) {
	ex := exchange.New(exchange.FireAndForget)
	ex.Endpoint = e.splitter.Name()
	ex.Message.Content = content
	maps.Copy(ex.Properties(), props)
	return e.bus.SendSync(ctx, ex)
}

// Close stops the bus and disconnects the backends.
func (e *Engine) Close(ctx context.Context) error {
	if e.bus != nil {
		e.bus.Close()
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i](ctx))
	}
	e.closers = nil
	return errors.Join(errs...)
}
