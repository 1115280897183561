package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func setupMiniredis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	backend := NewRedisBackendFromClient(client, "", ttl)

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return mr, backend
}

func entry(q string) ConversationEntry {
	return ConversationEntry{
		Timestamp: time.Now().UTC(),
		Query:     q,
		Response:  "answer to " + q,
		Model:     "gpt-4.1",
		Metadata:  map[string]any{},
	}
}

func TestRedisBackend_AppendAndLoad(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	for _, q := range []string{"Q1", "Q2", "Q3"} {
		if err := backend.Append(ctx, "sess-1", entry(q), 10); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := backend.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"Q1", "Q2", "Q3"} {
		if entries[i].Query != want {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].Query, want)
		}
	}
}

func TestRedisBackend_KeyLayout(t *testing.T) {
	mr, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	if err := backend.Append(ctx, "abc", entry("What is GDP?"), 10); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	raw, err := mr.Get("conversation:abc")
	if err != nil {
		t.Fatalf("expected key conversation:abc: %v", err)
	}

	var stored []map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("value is not a JSON array: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(stored))
	}
	for _, field := range []string{"timestamp", "query", "response", "model", "metadata"} {
		if _, ok := stored[0][field]; !ok {
			t.Errorf("stored entry missing %q", field)
		}
	}
}

func TestRedisBackend_TrimsOldest(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := backend.Append(ctx, "s", entry(fmt.Sprintf("Q%d", i)), 3); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := backend.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 || entries[0].Query != "Q3" || entries[2].Query != "Q5" {
		t.Fatalf("unexpected window: %+v", entries)
	}
}

func TestRedisBackend_SlidingTTL(t *testing.T) {
	mr, backend := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	if err := backend.Append(ctx, "s", entry("Q1"), 10); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if ttl := mr.TTL("conversation:s"); ttl != time.Hour {
		t.Fatalf("expected TTL 1h, got %v", ttl)
	}

	mr.FastForward(40 * time.Minute)
	if err := backend.Append(ctx, "s", entry("Q2"), 10); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if ttl := mr.TTL("conversation:s"); ttl != time.Hour {
		t.Errorf("expected TTL reset to 1h, got %v", ttl)
	}

	mr.FastForward(61 * time.Minute)
	entries, err := backend.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected expired session to be empty, got %d entries", len(entries))
	}
}

func TestRedisBackend_LoadUnknownSession(t *testing.T) {
	_, backend := setupMiniredis(t, 0)

	entries, err := backend.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	mr, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	if err := backend.Append(ctx, "s", entry("Q1"), 10); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := backend.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("conversation:s") {
		t.Error("expected key to be removed")
	}
	// Deleting twice is fine
	if err := backend.Delete(ctx, "s"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestRedisBackend_CorruptValue(t *testing.T) {
	mr, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	if err := mr.Set("conversation:bad", "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := backend.Load(ctx, "bad"); err == nil {
		t.Error("expected error loading corrupt value")
	}
	if err := backend.Append(ctx, "bad", entry("Q"), 10); err == nil {
		t.Error("expected error appending to corrupt value")
	}
}

func TestRedisBackend_ConcurrentAppendsAllLand(t *testing.T) {
	_, backend := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	const writers = 10
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		q := fmt.Sprintf("Q%d", i)
		g.Go(func() error {
			return backend.Append(gctx, "shared", entry(q), 100)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Append failed: %v", err)
	}

	entries, err := backend.Load(ctx, "shared")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != writers {
		t.Errorf("expected %d entries, got %d", writers, len(entries))
	}
}

func TestRedisBackend_Closed(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := backend.Append(ctx, "s", entry("Q"), 10); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed, got %v", err)
	}
	if _, err := backend.Load(ctx, "s"); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed, got %v", err)
	}
	if err := backend.Ping(ctx); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed, got %v", err)
	}
}

func TestNewRedisBackend_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBackend(context.Background(), RedisConfig{
		Addr:        addr,
		PingTimeout: 500 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestNewRedisBackend_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	backend, err := NewRedisBackend(context.Background(), RedisConfig{
		URL: "redis://" + mr.Addr() + "/0",
	})
	if err != nil {
		t.Fatalf("NewRedisBackend failed: %v", err)
	}
	defer func() { _ = backend.Close() }()

	if err := backend.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
