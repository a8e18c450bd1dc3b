package worker

import (
	"context"
	"maps"
)

// Metadata is a key-value store describing the item being processed.
type Metadata map[string]any

// MetadataFromContext extracts metadata from a context.
// Returns nil if no metadata is present.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return nil
	}
	if metadata, ok := ctx.Value(metadataKey).(Metadata); ok {
		return metadata
	}
	return nil
}

// Args converts metadata to a flat key-value slice for logging.
func (m Metadata) Args() []any {
	args := make([]any, 0, len(m)*2)
	for k, v := range m {
		args = append(args, k, v)
	}
	return args
}

type metadataKeyType struct{}

var metadataKey = metadataKeyType{}

// MetadataProvider attaches metadata derived from the item to the context.
func MetadataProvider[T any](provider func(in T) Metadata) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, in T) error {
			metadata := MetadataFromContext(ctx)
			if metadata == nil {
				metadata = provider(in)
			} else {
				metadata = maps.Clone(metadata)
				maps.Copy(metadata, provider(in))
			}
			return next(context.WithValue(ctx, metadataKey, metadata), in)
		}
	}
}
