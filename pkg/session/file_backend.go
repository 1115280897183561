package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrInvalidPathComponent is returned when a path component contains unsafe characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path component.
// It rejects empty strings, path separators, and traversal sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileBackend implements StorageBackend using one JSON file per session.
// Storage layout:
//
//	~/.kenton/conversations/
//	  ├── <session-id>.json     # JSON array of entries
//	  └── ...
//
// A file untouched for longer than the TTL is treated as absent.
type FileBackend struct {
	baseDir string
	ttl     time.Duration
	nowFunc func() time.Time
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a new file-based storage backend.
// If baseDir is empty, uses ~/.kenton/conversations.
func NewFileBackend(baseDir string, ttl time.Duration) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".kenton", "conversations")
	}

	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileBackend{
		baseDir: baseDir,
		ttl:     ttl,
		nowFunc: time.Now,
	}, nil
}

// SetNowFunc overrides the clock (for testing).
func (f *FileBackend) SetNowFunc(fn func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	f.nowFunc = fn
}

// Name implements StorageBackend.
func (f *FileBackend) Name() string { return BackendFile }

// Append implements StorageBackend.
func (f *FileBackend) Append(ctx context.Context, sessionID string, entry ConversationEntry, maxHistory int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}

	path, err := f.sessionPath(sessionID)
	if err != nil {
		return err
	}

	entries, err := f.readUnlocked(path)
	if err != nil {
		return err
	}

	entries = trimEntries(append(entries, entry), maxHistory)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial array
	tmp, err := os.CreateTemp(f.baseDir, "."+sessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write entries: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename entries file: %w", err)
	}

	// Stamp mtime with our clock so expiry follows the injected time source
	now := f.nowFunc()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("touch entries file: %w", err)
	}
	return nil
}

// Load implements StorageBackend.
func (f *FileBackend) Load(ctx context.Context, sessionID string) ([]ConversationEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}

	path, err := f.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}
	return f.readUnlocked(path)
}

// Delete implements StorageBackend.
func (f *FileBackend) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}

	path, err := f.sessionPath(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases resources held by the backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *FileBackend) sessionPath(sessionID string) (string, error) {
	// Validate session ID to prevent path traversal
	if err := validatePathComponent(sessionID); err != nil {
		return "", fmt.Errorf("invalid session ID: %w", err)
	}
	return filepath.Join(f.baseDir, sessionID+".json"), nil
}

// readUnlocked loads a session file. Caller must hold f.mu.
func (f *FileBackend) readUnlocked(path string) ([]ConversationEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationEntry{}, nil
		}
		return nil, fmt.Errorf("stat entries file: %w", err)
	}
	if f.ttl > 0 && f.nowFunc().Sub(info.ModTime()) > f.ttl {
		return []ConversationEntry{}, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - session ID validated to prevent traversal
	if err != nil {
		return nil, fmt.Errorf("read entries file: %w", err)
	}

	entries := []ConversationEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	return entries, nil
}
