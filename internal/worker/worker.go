// Package worker runs a bounded pool of goroutines over an input channel.
//
// Handlers are wrapped with middleware for panic recovery, retries,
// metadata, metrics and logging.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownDropped is reported for items still queued when a forced
// shutdown stops the pool.
var ErrShutdownDropped = errors.New("worker: dropped on shutdown")

// Handler processes one item.
type Handler[T any] func(ctx context.Context, in T) error

// Config configures a pool.
type Config struct {
	// Concurrency sets the number of workers. Default is 1.
	Concurrency int

	// ErrorHandler is called when a handler fails.
	// Default logs via slog.Error.
	ErrorHandler func(in any, err error)

	// CleanupHandler is called once every worker has exited and queued
	// items were dropped.
	CleanupHandler func()

	// ShutdownTimeout controls shutdown on context cancellation.
	// If <= 0, workers stop immediately. If > 0, workers keep draining the
	// input for up to this long, then stop. Items left in a buffered input
	// are reported to ErrorHandler with ErrShutdownDropped.
	ShutdownTimeout time.Duration
}

func (c Config) parse() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = func(in any, err error) {
			slog.Error("worker: processing failed", slog.Any("input", in), slog.Any("error", err))
		}
	}
	return c
}

// Start processes items from in until it is closed or ctx is canceled.
// The returned channel is closed after all workers exited and cleanup ran.
func Start[T any](ctx context.Context, in <-chan T, fn Handler[T], cfg Config) <-chan struct{} {
	cfg = cfg.parse()
	stop := make(chan struct{})
	finished := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for range cfg.Concurrency {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				case v, ok := <-in:
					if !ok {
						return
					}
					if err := fn(ctx, v); err != nil {
						cfg.ErrorHandler(v, err)
					}
				}
			}
		}()
	}

	wgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgDone)
	}()

	go func() {
		select {
		case <-ctx.Done():
			if cfg.ShutdownTimeout > 0 {
				select {
				case <-wgDone:
				case <-time.After(cfg.ShutdownTimeout):
					close(stop)
				}
			} else {
				close(stop)
			}
		case <-wgDone:
		}
		<-wgDone
		dropQueued(in, cfg.ErrorHandler)

		if cfg.CleanupHandler != nil {
			cfg.CleanupHandler()
		}
		close(finished)
	}()

	return finished
}

// dropQueued reports items already buffered in in without waiting for more.
func dropQueued[T any](in <-chan T, report func(any, error)) {
	for {
		select {
		case v, ok := <-in:
			if !ok {
				return
			}
			report(v, ErrShutdownDropped)
		default:
			return
		}
	}
}
