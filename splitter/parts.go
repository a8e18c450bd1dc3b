package splitter

import (
	"fmt"
	"maps"

	"github.com/fxsml/gosplit/exchange"
)

// CreateParts splits the content of the original exchange and builds one
// child exchange per piece, in order. Nothing is dispatched.
//
// The original must be fire-and-forget; other patterns are rejected with
// ErrUnsupportedPattern before the strategy runs. Every child carries
// exchange.PartMeta with the number of pieces, its index and the id of the
// original as correlation id.
func (s *Splitter) CreateParts(original *exchange.Exchange) ([]*exchange.Exchange, error) {
	if err := validatePattern(original); err != nil {
		return nil, err
	}

	msg := original.Message.Clone()
	pieces, err := s.cfg.Strategy.Split(msg.Content)
	if err != nil {
		return nil, wrap(ErrSplit, err)
	}

	pattern := s.cfg.PartPattern
	if pattern == 0 {
		pattern = original.Pattern
	}

	parts := make([]*exchange.Exchange, len(pieces))
	for i, content := range pieces {
		part := exchange.New(pattern)
		part.Source = s.cfg.Name
		part.Message.Content = content
		if s.cfg.ForwardAttachments {
			maps.Copy(part.Message.Attachments, msg.Attachments)
		}
		if s.cfg.ForwardProperties {
			maps.Copy(part.Message.Properties, msg.Properties)
		}
		exchange.PartMeta{
			Count:         len(pieces),
			Index:         i,
			CorrelationID: original.ID,
		}.Apply(part.Message.Properties)
		parts[i] = part
	}
	return parts, nil
}

func validatePattern(ex *exchange.Exchange) error {
	if !ex.Pattern.IsFireAndForget() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPattern, ex.Pattern)
	}
	return nil
}
