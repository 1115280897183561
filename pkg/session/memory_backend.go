package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memorySession struct {
	id           string
	entries      []ConversationEntry
	createdAt    time.Time
	lastActivity time.Time
	elem         *list.Element
}

// MemoryBackend keeps sessions in process memory.
//
// Sessions are indexed by last activity, oldest first, so expired sessions
// are reclaimed from the front of the index before every write without
// scanning live sessions. Reads never reclaim.
type MemoryBackend struct {
	ttl      time.Duration
	sessions map[string]*memorySession
	activity *list.List
	nowFunc  func() time.Time
	mu       sync.Mutex
	closed   bool
}

// NewMemoryBackend creates an in-memory backend. A ttl of zero disables expiry.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		ttl:      ttl,
		sessions: make(map[string]*memorySession),
		activity: list.New(),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock (for testing).
func (m *MemoryBackend) SetNowFunc(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	m.nowFunc = fn
}

// Name implements StorageBackend.
func (m *MemoryBackend) Name() string { return BackendMemory }

// Append implements StorageBackend.
func (m *MemoryBackend) Append(ctx context.Context, sessionID string, entry ConversationEntry, maxHistory int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	now := m.nowFunc()
	m.sweepLocked(now)

	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &memorySession{id: sessionID, createdAt: now}
		sess.elem = m.activity.PushBack(sess)
		m.sessions[sessionID] = sess
	} else {
		m.activity.MoveToBack(sess.elem)
	}

	sess.entries = trimEntries(append(sess.entries, entry.clone()), maxHistory)
	sess.lastActivity = now
	return nil
}

// Load implements StorageBackend. The returned entries are deep copies.
func (m *MemoryBackend) Load(ctx context.Context, sessionID string) ([]ConversationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	sess, ok := m.sessions[sessionID]
	if !ok {
		return []ConversationEntry{}, nil
	}
	out := make([]ConversationEntry, len(sess.entries))
	for i, e := range sess.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Delete implements StorageBackend.
func (m *MemoryBackend) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	m.removeLocked(sessionID)
	return nil
}

// Len returns the number of sessions currently held, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close releases resources held by the backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = make(map[string]*memorySession)
	m.activity.Init()
	return nil
}

// sweepLocked drops sessions idle for longer than ttl. Caller must hold mu.
func (m *MemoryBackend) sweepLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for front := m.activity.Front(); front != nil; front = m.activity.Front() {
		sess := front.Value.(*memorySession)
		if now.Sub(sess.lastActivity) <= m.ttl {
			return
		}
		m.removeLocked(sess.id)
	}
}

func (m *MemoryBackend) removeLocked(sessionID string) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	m.activity.Remove(sess.elem)
	delete(m.sessions, sessionID)
}
