// Package notification maintains the per-user activity feed.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"animind/internal/domain"
	"animind/internal/events"
	"animind/internal/storage"
)

// FeedLimit is the number of most recent entries a feed keeps.
const FeedLimit = 20

// WelcomeText seeds a feed that has never been written.
const WelcomeText = "System: Welcome to the AniMind Network."

// Event is published on the bus for every entry added to a feed.
type Event struct {
	// Scope identifies whose feed received the entry; empty for the
	// unscoped single-user setup.
	Scope string
	Entry domain.Notification
}

// record is the persisted layout of one feed entry.
type record struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	Read      bool   `json:"read"`
	Timestamp int64  `json:"timestamp"`
}

// Manager reads and writes one feed.
type Manager struct {
	store storage.Store
	bus   *events.Bus[Event]
	scope string
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithScope labels published events with the owner of the feed.
func WithScope(scope string) Option {
	return func(m *Manager) { m.scope = scope }
}

// NewManager creates a feed manager over store. bus may be nil, in which
// case nothing is published.
func NewManager(store storage.Store, bus *events.Bus[Event], logger logrus.FieldLogger, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		bus:   bus,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.WithFields(logrus.Fields{
		"component": "notifications",
		"scope":     m.scope,
	})
	return m
}

// List returns the feed newest first. The first read of a feed that was
// never written persists and returns a single welcome entry.
func (m *Manager) List(ctx context.Context) ([]domain.Notification, error) {
	feed, found, err := storage.Load[[]record](ctx, m.store, storage.KeyNotifications)
	if err != nil {
		m.log.WithError(err).Error("Failed to load notifications")
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	if found {
		return m.present(feed), nil
	}

	err = storage.Mutate(ctx, m.store, storage.KeyNotifications, func(cur []record, found bool) ([]record, error) {
		if found {
			// Seeded concurrently.
			feed = cur
			return nil, storage.ErrNoChange
		}
		feed = []record{m.newRecord(WelcomeText, m.now(), 0)}
		return feed, nil
	})
	if err != nil {
		m.log.WithError(err).Error("Failed to seed notifications")
		return nil, fmt.Errorf("failed to seed notifications: %w", err)
	}
	return m.present(feed), nil
}

// Add prepends a new unread entry, trims the feed to FeedLimit and then
// publishes the entry. Observers run after the write has committed.
func (m *Manager) Add(ctx context.Context, text string) (domain.Notification, error) {
	var created record
	err := storage.Mutate(ctx, m.store, storage.KeyNotifications, func(cur []record, found bool) ([]record, error) {
		now := m.now()
		if !found {
			cur = []record{m.newRecord(WelcomeText, now, 0)}
		}
		created = m.newRecord(text, now, newestID(cur))

		next := make([]record, 0, min(len(cur)+1, FeedLimit))
		next = append(next, created)
		next = append(next, cur...)
		if len(next) > FeedLimit {
			next = next[:FeedLimit]
		}
		return next, nil
	})
	if err != nil {
		m.log.WithError(err).Error("Failed to add notification")
		return domain.Notification{}, fmt.Errorf("failed to add notification: %w", err)
	}

	entry := m.toDomain(created, m.now())
	m.log.WithField("notification_id", entry.ID).Debug("Notification added")
	if m.bus != nil {
		m.bus.Publish(Event{Scope: m.scope, Entry: entry})
	}
	return entry, nil
}

// MarkAllRead flags every entry as read and returns the updated feed.
func (m *Manager) MarkAllRead(ctx context.Context) ([]domain.Notification, error) {
	var feed []record
	err := storage.Mutate(ctx, m.store, storage.KeyNotifications, func(cur []record, found bool) ([]record, error) {
		if !found {
			cur = []record{m.newRecord(WelcomeText, m.now(), 0)}
		}
		changed := !found
		feed = make([]record, len(cur))
		for i, r := range cur {
			if !r.Read {
				r.Read = true
				changed = true
			}
			feed[i] = r
		}
		if !changed {
			return nil, storage.ErrNoChange
		}
		return feed, nil
	})
	if err != nil {
		m.log.WithError(err).Error("Failed to mark notifications read")
		return nil, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return m.present(feed), nil
}

// UnreadCount counts entries not yet marked read.
func (m *Manager) UnreadCount(ctx context.Context) (int, error) {
	feed, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range feed {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

// newRecord stamps an entry with the current millisecond, bumped past after
// so ids stay strictly increasing within the same millisecond.
func (m *Manager) newRecord(text string, now time.Time, after int64) record {
	id := now.UnixMilli()
	if id <= after {
		id = after + 1
	}
	return record{
		ID:        id,
		Text:      text,
		Time:      domain.RelativeTime(now, now),
		Timestamp: now.UnixMilli(),
	}
}

func newestID(feed []record) int64 {
	var newest int64
	for _, r := range feed {
		newest = max(newest, r.ID)
	}
	return newest
}

func (m *Manager) present(feed []record) []domain.Notification {
	now := m.now()
	out := make([]domain.Notification, len(feed))
	for i, r := range feed {
		out[i] = m.toDomain(r, now)
	}
	return out
}

func (m *Manager) toDomain(r record, now time.Time) domain.Notification {
	ts := time.UnixMilli(r.Timestamp)
	return domain.Notification{
		ID:          r.ID,
		Text:        r.Text,
		Timestamp:   ts,
		DisplayTime: domain.RelativeTime(now, ts),
		Read:        r.Read,
	}
}
