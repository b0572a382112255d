package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animind/internal/events"
	"animind/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*Manager, *storage.MemoryStore, *events.Bus[Event], *fakeClock) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	bus := events.NewBus[Event]("notifications", logger)
	clock := &fakeClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, bus, logger, WithClock(clock.Now), WithScope("42"))
	return m, store, bus, clock
}

func TestManager_ListSeedsWelcomeOnce(t *testing.T) {
	m, store, _, _ := setup(t)
	ctx := context.Background()

	feed, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, WelcomeText, feed[0].Text)
	assert.False(t, feed[0].Read)

	_, err = store.Get(ctx, storage.KeyNotifications)
	require.NoError(t, err, "Welcome entry must be persisted")

	again, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1, "Second read must not seed another welcome entry")
	assert.Equal(t, feed[0].ID, again[0].ID)
}

func TestManager_AddPrependsAndPublishes(t *testing.T) {
	m, _, bus, clock := setup(t)
	ctx := context.Background()

	var received []Event
	bus.Subscribe(func(e Event) { received = append(received, e) })

	_, err := m.List(ctx)
	require.NoError(t, err)
	clock.Advance(time.Second)

	entry, err := m.Add(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", entry.Text)
	assert.Equal(t, "Just now", entry.DisplayTime)

	feed, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "hello", feed[0].Text, "Newest entry comes first")
	assert.Equal(t, WelcomeText, feed[1].Text)

	require.Len(t, received, 1, "Observers receive the entry within the same call")
	assert.Equal(t, "42", received[0].Scope)
	assert.Equal(t, entry, received[0].Entry)
}

func TestManager_AddOnEmptyFeedKeepsWelcome(t *testing.T) {
	m, _, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Add(ctx, "first")
	require.NoError(t, err)

	feed, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "first", feed[0].Text)
	assert.Equal(t, WelcomeText, feed[1].Text)
	assert.Greater(t, feed[0].ID, feed[1].ID)
}

func TestManager_FeedIsCapped(t *testing.T) {
	m, _, _, _ := setup(t)
	ctx := context.Background()

	const total = 25
	for i := 0; i < total; i++ {
		_, err := m.Add(ctx, fmt.Sprintf("n%d", i))
		require.NoError(t, err)
	}

	feed, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, FeedLimit)
	for i, e := range feed {
		assert.Equal(t, fmt.Sprintf("n%d", total-1-i), e.Text)
	}
}

func TestManager_IDsIncreaseWithinOneMillisecond(t *testing.T) {
	// The fake clock never moves, so every entry shares one millisecond.
	m, _, _, _ := setup(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		e, err := m.Add(ctx, "burst")
		require.NoError(t, err)
		assert.Greater(t, e.ID, last)
		last = e.ID
	}
}

func TestManager_MarkAllReadIsIdempotent(t *testing.T) {
	m, _, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Add(ctx, "a")
	require.NoError(t, err)
	_, err = m.Add(ctx, "b")
	require.NoError(t, err)

	count, err := m.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	once, err := m.MarkAllRead(ctx)
	require.NoError(t, err)
	twice, err := m.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	for _, e := range twice {
		assert.True(t, e.Read)
	}
	count, err = m.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManager_DisplayTimeIsDerivedAtRead(t *testing.T) {
	m, _, _, clock := setup(t)
	ctx := context.Background()

	_, err := m.Add(ctx, "aging")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	feed, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5m ago", feed[0].DisplayTime)

	clock.Advance(3 * time.Hour)
	feed, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3h ago", feed[0].DisplayTime)
}

func TestManager_CorruptFeed(t *testing.T) {
	m, store, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, storage.KeyNotifications, []byte(`[{"id":"x"`)))

	_, err := m.List(ctx)
	assert.ErrorIs(t, err, storage.ErrCorruptState)

	_, err = m.Add(ctx, "lost?")
	assert.ErrorIs(t, err, storage.ErrCorruptState)

	_, err = m.UnreadCount(ctx)
	assert.ErrorIs(t, err, storage.ErrCorruptState)
}

func TestManager_WithoutBus(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(storage.NewMemoryStore(), nil, logger)

	_, err := m.Add(context.Background(), "quiet")
	require.NoError(t, err)
}
