package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTxAttempts bounds optimistic transaction retries under write contention.
const maxTxAttempts = 16

// RedisBackend implements StorageBackend using Redis.
//
// Each session lives under a single key holding a JSON array of entries.
// Every write resets the key's TTL, so expiry slides with activity and is
// enforced by Redis itself.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is a redis:// connection URL. It takes precedence over Addr.
	URL string
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all session keys (default: "conversation:").
	Prefix string
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
	// PingTimeout bounds the startup connectivity probe (default: 5s).
	PingTimeout time.Duration
}

// NewRedisBackend creates a new Redis storage backend and probes the
// connection once. The client is closed if the probe fails.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	case cfg.Addr != "":
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	default:
		return nil, errors.New("redis address is required")
	}

	opts.PoolSize = cfg.PoolSize
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		// Close client to release connection pool resources
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisBackendFromClient(client, cfg.Prefix, cfg.SessionTTL), nil
}

// NewRedisBackendFromClient creates a Redis backend from an existing client.
// This is useful for testing with miniredis.
func NewRedisBackendFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding a session's entries.
func (b *RedisBackend) Key(sessionID string) string {
	return b.prefix + sessionID
}

// Name implements StorageBackend.
func (b *RedisBackend) Name() string { return BackendRedis }

// Append implements StorageBackend.
//
// The read-modify-write runs inside WATCH/MULTI so concurrent appends to the
// same session are retried rather than lost.
func (b *RedisBackend) Append(ctx context.Context, sessionID string, entry ConversationEntry, maxHistory int) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	key := b.Key(sessionID)
	txf := func(tx *redis.Tx) error {
		entries, err := decodeEntries(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}

		entries = trimEntries(append(entries, entry), maxHistory)
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal entries: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, b.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := b.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return fmt.Errorf("append entry: %w after %d attempts", redis.TxFailedErr, maxTxAttempts)
}

// Load implements StorageBackend.
func (b *RedisBackend) Load(ctx context.Context, sessionID string) ([]ConversationEntry, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	entries, err := decodeEntries(b.client.Get(ctx, b.Key(sessionID)).Bytes())
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return entries, nil
}

// Delete implements StorageBackend.
func (b *RedisBackend) Delete(ctx context.Context, sessionID string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	if err := b.client.Del(ctx, b.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases resources held by the backend.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.client.Close()
}

// Ping checks if the Redis connection is alive.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// decodeEntries parses a stored JSON array. A missing key is an empty session.
func decodeEntries(data []byte, err error) ([]ConversationEntry, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []ConversationEntry{}, nil
		}
		return nil, err
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
