package session

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
	// ErrInvalidSessionID is returned for empty session identifiers.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Backend names reported by StorageBackend.Name.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// StorageBackend abstracts conversation persistence.
// Implementations must be safe for concurrent use and must all serialize
// entries with the same JSON shape.
type StorageBackend interface {
	// Name identifies the backend kind.
	Name() string

	// Append adds an entry to a session, trimming the session to the newest
	// maxHistory entries, and refreshes the session's expiry.
	Append(ctx context.Context, sessionID string, entry ConversationEntry, maxHistory int) error

	// Load returns the session's entries in chronological order.
	// An unknown or expired session yields an empty slice and no error.
	Load(ctx context.Context, sessionID string) ([]ConversationEntry, error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Pinger is implemented by backends that can probe their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// trimEntries returns the newest limit entries as a fresh slice.
func trimEntries(entries []ConversationEntry, limit int) []ConversationEntry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	out := make([]ConversationEntry, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}
