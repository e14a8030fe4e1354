package pipeline

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying id. Publishing from that
// context stamps id on the outgoing message unless one is given explicitly.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id carried by ctx.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}
