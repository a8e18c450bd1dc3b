package bus

import (
	"context"
	"errors"

	"github.com/fxsml/gosplit/exchange"
	"github.com/fxsml/gosplit/internal/worker"
)

// handler builds the delivery chain: recovery, metadata, metrics and
// logging, optional retries, then the endpoint. A request whose endpoint
// fails is failed back to its originator.
func (b *Bus) handler() worker.Handler[delivery] {
	var retry worker.Middleware[delivery]
	if b.cfg.MaxAttempts > 1 {
		backoff := worker.ConstantBackoff(b.cfg.RetryBackoff, 0.2)
		if b.cfg.RetryBackoffFactor > 1 {
			backoff = worker.ExponentialBackoff(b.cfg.RetryBackoff, b.cfg.RetryBackoffFactor, 0, 0.2)
		}
		retry = worker.Retry[delivery](worker.RetryConfig{
			MaxAttempts: b.cfg.MaxAttempts,
			Backoff:     backoff,
			ShouldRetry: worker.ShouldNotRetry(ErrUnknownEndpoint, ErrInvalidExchange),
		})
	}

	chain := worker.Apply(
		func(ctx context.Context, d delivery) error {
			return d.ep.Process(ctx, d.ex)
		},
		worker.MetadataProvider(func(d delivery) worker.Metadata {
			return worker.Metadata{
				"endpoint":    d.name,
				"exchange_id": d.ex.ID,
				"status":      d.ex.Status.String(),
				"role":        d.ex.Role.String(),
			}
		}),
		worker.Collect[delivery](worker.DistributeMetrics(
			b.cfg.Collect,
			worker.NewLogCollector(b.cfg.Log),
		)),
		retry,
		worker.Recover[delivery](),
	)

	return func(ctx context.Context, d delivery) error {
		isRequest := d.ex.Role == exchange.Responder && d.ex.Status == exchange.Active
		err := chain(ctx, d)
		if err != nil && isRequest && d.ex.Status == exchange.Active {
			b.fail(ctx, d, err)
		}
		return err
	}
}

// fail returns a request its endpoint could not handle to the originator.
func (b *Bus) fail(ctx context.Context, d delivery, err error) {
	var re *worker.RecoveryError
	if errors.As(err, &re) {
		b.log.Error("bus: endpoint panicked", "endpoint", d.name, "exchange_id", d.ex.ID, "panic", re.PanicValue)
	}
	d.ex.Fail(err)
	if sendErr := b.Send(context.WithoutCancel(ctx), d.ex); sendErr != nil {
		b.log.Warn("bus: cannot return failed exchange", "endpoint", d.name, "exchange_id", d.ex.ID, "error", sendErr)
	}
}
