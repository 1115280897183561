package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/observability"
)

// Store is the conversation memory used by the assistant.
//
// The backend is chosen once at construction. Store methods never return
// errors: reads that fail yield empty results and writes that fail are
// dropped, and both are logged and reported through Outcome.
// Store is safe for concurrent use.
type Store struct {
	backend  StorageBackend
	cfg      Config
	fellBack bool
	nowFunc  func() time.Time
	mu       sync.RWMutex
}

// New selects a backend from cfg and returns a ready store.
//
// A redis or file backend that cannot be initialized is replaced by the
// memory backend for the lifetime of the store. Only invalid configuration
// returns an error.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		backend StorageBackend
		err     error
	)

	switch {
	case cfg.Store == StoreRedis || (cfg.Store == StoreAuto && cfg.RedisURL != ""):
		backend, err = NewRedisBackend(ctx, RedisConfig{
			URL:        cfg.RedisURL,
			Prefix:     cfg.KeyPrefix,
			SessionTTL: cfg.TTL(),
		})
	case cfg.Store == StoreFile:
		backend, err = NewFileBackend(cfg.BaseDir, cfg.TTL())
	default:
		backend = NewMemoryBackend(cfg.TTL())
	}

	fellBack := false
	if err != nil {
		logger.Warn("conversation backend unavailable, using in-memory store",
			zap.String("store", cfg.Store),
			zap.Error(err),
		)
		backend = NewMemoryBackend(cfg.TTL())
		fellBack = true
	}

	s := NewWithBackend(backend, cfg)
	s.fellBack = fellBack
	observability.SetConversationFallback(fellBack)
	logger.Info("conversation store ready",
		zap.String("backend", backend.Name()),
		zap.Int("max_history", cfg.MaxHistory),
		zap.Duration("ttl", cfg.TTL()),
	)
	return s, nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(backend StorageBackend, cfg Config) *Store {
	return &Store{
		backend: backend,
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock used to stamp entries and, for backends that
// track activity themselves, their expiry clock (for testing).
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	s.mu.Lock()
	s.nowFunc = fn
	s.mu.Unlock()

	if clocked, ok := s.backend.(interface{ SetNowFunc(func() time.Time) }); ok {
		clocked.SetNowFunc(fn)
	}
}

// Backend returns the name of the active backend.
func (s *Store) Backend() string { return s.backend.Name() }

// FellBack reports whether the configured durable backend was replaced by memory.
func (s *Store) FellBack() bool { return s.fellBack }

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Ping probes the backend when it supports probing.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// AddEntry appends one exchange to a session.
func (s *Store) AddEntry(ctx context.Context, sessionID, query, response, model string, metadata map[string]any) Outcome {
	if strings.TrimSpace(sessionID) == "" {
		return s.outcome("add", ErrInvalidSessionID, OutcomeFailed)
	}
	if model == "" {
		model = s.cfg.DefaultModel
	}

	entry := ConversationEntry{
		Timestamp: s.now(),
		Query:     query,
		Response:  response,
		Model:     model,
		Metadata:  cloneMetadata(metadata),
	}

	err := s.backend.Append(ctx, sessionID, entry, s.cfg.MaxHistory)
	if err != nil {
		logger.Warn("conversation write dropped",
			zap.String("session_id", sessionID),
			zap.String("backend", s.backend.Name()),
			zap.Error(err),
		)
	}
	return s.outcome("add", err, OutcomeFailed)
}

// GetHistory returns the session's entries, oldest first. A positive limit
// keeps only the most recent limit entries.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]ConversationEntry, Outcome) {
	if strings.TrimSpace(sessionID) == "" {
		return []ConversationEntry{}, s.outcome("get", ErrInvalidSessionID, OutcomeDegraded)
	}

	entries, err := s.backend.Load(ctx, sessionID)
	if err != nil {
		logger.Warn("conversation read failed",
			zap.String("session_id", sessionID),
			zap.String("backend", s.backend.Name()),
			zap.Error(err),
		)
		return []ConversationEntry{}, s.outcome("get", err, OutcomeDegraded)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, s.outcome("get", nil, OutcomeDegraded)
}

// GetFormattedHistory renders history as alternating "User:" and
// "Assistant:" lines, one pair per exchange. Responses are cut to the
// configured budget. An empty session renders as "".
func (s *Store) GetFormattedHistory(ctx context.Context, sessionID string, limit int) string {
	entries, _ := s.GetHistory(ctx, sessionID, limit)
	return FormatHistory(entries, s.cfg.ResponseBudget)
}

// ClearSession removes all state for a session. Clearing an unknown session
// succeeds.
func (s *Store) ClearSession(ctx context.Context, sessionID string) Outcome {
	if strings.TrimSpace(sessionID) == "" {
		return s.outcome("clear", ErrInvalidSessionID, OutcomeFailed)
	}

	err := s.backend.Delete(ctx, sessionID)
	if err != nil {
		logger.Warn("conversation clear failed",
			zap.String("session_id", sessionID),
			zap.String("backend", s.backend.Name()),
			zap.Error(err),
		)
	}
	return s.outcome("clear", err, OutcomeFailed)
}

// GetSessionSummary digests a session's history.
func (s *Store) GetSessionSummary(ctx context.Context, sessionID string) Summary {
	entries, _ := s.GetHistory(ctx, sessionID, 0)
	return Summarize(sessionID, entries)
}

func (s *Store) now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFunc()
}

// outcome builds and records an Outcome. failStatus is used when err is set.
func (s *Store) outcome(op string, err error, failStatus OutcomeStatus) Outcome {
	o := Outcome{Status: OutcomeOK, Backend: s.backend.Name()}
	if err != nil {
		o.Status = failStatus
		o.Err = err
	}
	observability.RecordConversationOp(op, o.Backend, string(o.Status))
	return o
}
