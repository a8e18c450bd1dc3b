package worker

// Middleware wraps a Handler with additional behavior.
type Middleware[T any] func(Handler[T]) Handler[T]

// Apply wraps h with middleware. For middleware A, B, C the execution
// flow is A→B→C→h.
func Apply[T any](h Handler[T], middleware ...Middleware[T]) Handler[T] {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			h = middleware[i](h)
		}
	}
	return h
}
