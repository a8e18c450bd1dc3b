package splitter

import (
	"context"

	"github.com/fxsml/gosplit/exchange"
)

// processSync sends every part in index order and waits for each one.
// The first reported failure stops dispatching; parts after it are never sent.
func (s *Splitter) processSync(ctx context.Context, original *exchange.Exchange) error {
	parts, err := s.CreateParts(original)
	if err != nil {
		return err
	}

	for _, part := range parts {
		if err := s.resolve(ctx, part); err != nil {
			return err
		}
		returned, err := s.cfg.Channel.SendSync(ctx, part)
		if err != nil {
			return err
		}

		o := classify(returned)
		s.log.Debug("splitter: part returned",
			"correlation_id", original.ID, "exchange_id", returned.ID, "outcome", o)

		if o != outcomeDone && s.cfg.ReportErrors {
			s.closePart(ctx, returned)
			finalization{outcome: o, cause: returned}.apply(original)
			return s.reply(ctx, original)
		}
		s.closePart(ctx, returned)
	}

	original.Done()
	return s.reply(ctx, original)
}
