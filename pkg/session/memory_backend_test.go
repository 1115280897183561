package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryBackend_AppendTrimsFIFO(t *testing.T) {
	m := NewMemoryBackend(time.Hour)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Append(ctx, "s", entry(fmt.Sprintf("Q%d", i)), 2))
	}

	entries, err := m.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Q3", entries[0].Query)
	assert.Equal(t, "Q4", entries[1].Query)
}

func TestMemoryBackend_LoadReturnsCopy(t *testing.T) {
	m := NewMemoryBackend(0)
	ctx := context.Background()
	e := entry("Q1")
	e.Metadata["tools_used"] = []any{"WeatherAPI"}
	require.NoError(t, m.Append(ctx, "s", e, 10))

	entries, err := m.Load(ctx, "s")
	require.NoError(t, err)
	entries[0].Query = "mutated"
	entries[0].Metadata["injected"] = true
	entries[0].Metadata["tools_used"].([]any)[0] = "tampered"

	again, err := m.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "Q1", again[0].Query)
	assert.Equal(t, map[string]any{"tools_used": []any{"WeatherAPI"}}, again[0].Metadata)
}

func TestMemoryBackend_AppendDetachesCallerMetadata(t *testing.T) {
	m := NewMemoryBackend(0)
	ctx := context.Background()
	tools := []any{"FredAPI"}
	e := entry("Q1")
	e.Metadata["tools_used"] = tools
	require.NoError(t, m.Append(ctx, "s", e, 10))

	e.Metadata["late"] = "edit"
	tools[0] = "tampered"

	entries, err := m.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tools_used": []any{"FredAPI"}}, entries[0].Metadata)
}

func TestMemoryBackend_SweepOnWrite(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoryBackend(time.Hour)
	m.SetNowFunc(clock.Now)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "old", entry("Q"), 10))
	clock.Advance(30 * time.Minute)
	require.NoError(t, m.Append(ctx, "recent", entry("Q"), 10))
	clock.Advance(45 * time.Minute)

	// "old" is idle for 75m but reads do not reclaim
	entries, err := m.Load(ctx, "old")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Append(ctx, "trigger", entry("Q"), 10))
	assert.Equal(t, 2, m.Len())

	entries, err = m.Load(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = m.Load(ctx, "recent")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemoryBackend_ActivityRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoryBackend(time.Hour)
	m.SetNowFunc(clock.Now)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "a", entry("Q1"), 10))
	require.NoError(t, m.Append(ctx, "b", entry("Q1"), 10))
	clock.Advance(50 * time.Minute)
	require.NoError(t, m.Append(ctx, "a", entry("Q2"), 10))
	clock.Advance(20 * time.Minute)
	require.NoError(t, m.Append(ctx, "c", entry("Q1"), 10))

	a, _ := m.Load(ctx, "a")
	b, _ := m.Load(ctx, "b")
	assert.Len(t, a, 2)
	assert.Empty(t, b)
}

func TestMemoryBackend_ZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoryBackend(0)
	m.SetNowFunc(clock.Now)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "s", entry("Q1"), 10))
	clock.Advance(1000 * time.Hour)
	require.NoError(t, m.Append(ctx, "other", entry("Q1"), 10))

	entries, _ := m.Load(ctx, "s")
	assert.Len(t, entries, 1)
}

func TestMemoryBackend_DeleteIdempotent(t *testing.T) {
	m := NewMemoryBackend(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "s", entry("Q1"), 10))
	require.NoError(t, m.Delete(ctx, "s"))
	require.NoError(t, m.Delete(ctx, "s"))
	require.NoError(t, m.Delete(ctx, "never-existed"))

	entries, err := m.Load(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryBackend_Closed(t *testing.T) {
	m := NewMemoryBackend(time.Hour)
	require.NoError(t, m.Close())

	err := m.Append(context.Background(), "s", entry("Q"), 10)
	assert.ErrorIs(t, err, ErrStorageClosed)
}

func TestMemoryBackend_ConcurrentAppends(t *testing.T) {
	m := NewMemoryBackend(time.Hour)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		sessionID := fmt.Sprintf("s%d", i%5)
		q := fmt.Sprintf("Q%d", i)
		g.Go(func() error {
			return m.Append(ctx, sessionID, entry(q), 100)
		})
	}
	require.NoError(t, g.Wait())

	total := 0
	for i := 0; i < 5; i++ {
		entries, err := m.Load(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		total += len(entries)
	}
	assert.Equal(t, 50, total)
}
