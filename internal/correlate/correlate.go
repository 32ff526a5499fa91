// Package correlate attaches a per-connection correlation ID to a
// context.Context so that log lines and audit records from every
// layer handling one connection can be tied back together.
package correlate

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// New generates a fresh correlation ID.
func New() string {
	return uuid.NewString()
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the correlation ID attached by WithID, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}
