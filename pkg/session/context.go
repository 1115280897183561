package session

import (
	"context"

	"github.com/google/uuid"
)

// SessionKey is the context key for the active conversation session id.
type SessionKey struct{}

// ContextWithSessionID adds a session id to the context.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionKey{}, sessionID)
}

// SessionIDFromContext returns the session id stored in ctx, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionKey{}).(string)
	return id, ok && id != ""
}

// NewID generates a fresh session id.
func NewID() string {
	return uuid.NewString()
}
