package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/fxsml/gosplit/exchange"
)

// Endpoint processes exchanges delivered by the bus.
type Endpoint interface {
	Process(ctx context.Context, ex *exchange.Exchange) error
}

// EndpointFunc adapts a function to an Endpoint.
type EndpointFunc func(ctx context.Context, ex *exchange.Exchange) error

// Process implements Endpoint.
func (f EndpointFunc) Process(ctx context.Context, ex *exchange.Exchange) error {
	return f(ctx, ex)
}

// Register makes ep reachable under name.
func (b *Bus) Register(name string, ep Endpoint) error {
	if name == "" || ep == nil {
		return ErrInvalidEndpoint
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.endpoints[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, name)
	}
	b.endpoints[name] = ep
	return nil
}

// Unregister removes the endpoint registered under name.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.endpoints, name)
}

func (b *Bus) endpoint(name string) (Endpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return ep, nil
}

// Resolve routes ex to target. Targets take the form "endpoint:NAME",
// "service:NAME" or a bare NAME, all naming a registered endpoint.
func (b *Bus) Resolve(_ context.Context, ex *exchange.Exchange, target string) error {
	name := target
	for _, prefix := range []string{"endpoint:", "service:"} {
		if rest, ok := strings.CutPrefix(target, prefix); ok {
			name = rest
			break
		}
	}
	if _, err := b.endpoint(name); err != nil {
		return err
	}
	ex.Endpoint = name
	return nil
}
