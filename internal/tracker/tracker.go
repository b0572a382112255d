// Package tracker couples library mutations to the activity feed: adding a
// title and changing its status each leave a message in the user's feed.
package tracker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"animind/internal/domain"
	"animind/internal/library"
)

// Feed receives the messages produced by library activity.
type Feed interface {
	Add(ctx context.Context, text string) (domain.Notification, error)
}

// Tracker wraps a library manager and reports its effective mutations.
type Tracker struct {
	library *library.Manager
	feed    Feed
	log     logrus.FieldLogger
}

func New(lib *library.Manager, feed Feed, logger logrus.FieldLogger) *Tracker {
	return &Tracker{
		library: lib,
		feed:    feed,
		log:     logger.WithField("component", "tracker"),
	}
}

// AddedMessage is the feed text for a newly added title.
func AddedMessage(title string, status domain.Status) string {
	return fmt.Sprintf(`Library: Added "%s" as %s.`, title, status)
}

// ChangedMessage is the feed text for a status change.
func ChangedMessage(title string, from, to domain.Status) string {
	return fmt.Sprintf(`Library: Changed "%s" from %s to %s.`, title, from, to)
}

// Add stores anime in the library and, when it was not there yet, records
// the addition in the feed.
func (t *Tracker) Add(ctx context.Context, anime domain.AnimeSummary, status domain.Status) (bool, error) {
	if status == "" {
		status = domain.StatusWatching
	}
	added, err := t.library.Add(ctx, anime, status)
	if err != nil || !added {
		return added, err
	}
	t.record(ctx, anime.ID, AddedMessage(anime.DisplayTitle(), status))
	return true, nil
}

// UpdateStatus changes the status of id and records the change in the feed
// when the status actually differs from the stored one.
func (t *Tracker) UpdateStatus(ctx context.Context, id int, status domain.Status) (library.StatusChange, bool, error) {
	change, found, err := t.library.UpdateStatus(ctx, id, status)
	if err != nil || !found {
		return change, found, err
	}
	if change.Changed() {
		t.record(ctx, id, ChangedMessage(change.Entry.Title, change.Previous, change.Entry.Status))
	}
	return change, true, nil
}

// Remove deletes id from the library. Removal leaves no feed entry.
func (t *Tracker) Remove(ctx context.Context, id int) (domain.LibraryEntry, bool, error) {
	return t.library.Remove(ctx, id)
}

// Library exposes the wrapped manager for read-only queries.
func (t *Tracker) Library() *library.Manager {
	return t.library
}

// record writes to the feed. The library write has already committed, so a
// feed failure is logged instead of being reported as a failed mutation.
func (t *Tracker) record(ctx context.Context, animeID int, text string) {
	if _, err := t.feed.Add(ctx, text); err != nil {
		t.log.WithError(err).WithField("anime_id", animeID).Warn("Failed to record library activity")
	}
}
