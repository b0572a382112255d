// Package library manages the user's personal watch library.
package library

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"animind/internal/domain"
	"animind/internal/storage"
)

// StatusChange describes the outcome of a status update.
type StatusChange struct {
	Entry    domain.LibraryEntry
	Previous domain.Status
}

// Changed reports whether the update altered the stored status.
func (c StatusChange) Changed() bool {
	return c.Previous != c.Entry.Status
}

// Stats summarizes the library for the profile view.
type Stats struct {
	Total    int
	ByStatus map[domain.Status]int
}

// Manager owns the library collection of one store.
type Manager struct {
	store storage.Store
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store storage.Store, logger logrus.FieldLogger, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		log:   logger.WithField("component", "library"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns every entry in insertion order.
func (m *Manager) List(ctx context.Context) ([]domain.LibraryEntry, error) {
	entries, _, err := storage.Load[[]domain.LibraryEntry](ctx, m.store, storage.KeyLibrary)
	if err != nil {
		m.log.WithError(err).Error("Failed to load library")
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	if entries == nil {
		entries = []domain.LibraryEntry{}
	}
	return entries, nil
}

// ListByStatus returns the entries currently in status, in insertion order.
func (m *Manager) ListByStatus(ctx context.Context, status domain.Status) ([]domain.LibraryEntry, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.LibraryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == status {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Get looks an entry up by id.
func (m *Manager) Get(ctx context.Context, id int) (domain.LibraryEntry, bool, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return domain.LibraryEntry{}, false, err
	}
	if i := indexOf(entries, id); i >= 0 {
		return entries[i], true, nil
	}
	return domain.LibraryEntry{}, false, nil
}

// Add stores anime under status. It returns false without writing anything
// when an entry with the same id already exists. An empty status means
// StatusWatching.
func (m *Manager) Add(ctx context.Context, anime domain.AnimeSummary, status domain.Status) (bool, error) {
	if status == "" {
		status = domain.StatusWatching
	}
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if anime.ID <= 0 {
		return false, fmt.Errorf("%w: %d", domain.ErrInvalidID, anime.ID)
	}

	log := m.log.WithFields(logrus.Fields{
		"anime_id": anime.ID,
		"status":   status,
	})

	entry := newEntry(anime, status, m.now())
	var added bool
	err := storage.Mutate(ctx, m.store, storage.KeyLibrary, func(entries []domain.LibraryEntry, _ bool) ([]domain.LibraryEntry, error) {
		added = false
		if indexOf(entries, anime.ID) >= 0 {
			return nil, storage.ErrNoChange
		}
		added = true
		return append(entries, entry), nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to add anime to library")
		return false, fmt.Errorf("failed to add anime %d: %w", anime.ID, err)
	}

	if added {
		log.Info("Anime added to library")
	} else {
		log.Debug("Anime already in library")
	}
	return added, nil
}

// IsSaved reports whether id is in the library.
func (m *Manager) IsSaved(ctx context.Context, id int) (bool, error) {
	_, found, err := m.Get(ctx, id)
	return found, err
}

// SavedStatus returns the status of id, or "" when id is not in the library.
func (m *Manager) SavedStatus(ctx context.Context, id int) (domain.Status, error) {
	entry, found, err := m.Get(ctx, id)
	if err != nil || !found {
		return "", err
	}
	return entry.Status, nil
}

// UpdateStatus sets the status of id. found is false when id is not in the
// library. Setting the current status again writes nothing.
func (m *Manager) UpdateStatus(ctx context.Context, id int, status domain.Status) (change StatusChange, found bool, err error) {
	if !status.Valid() {
		return StatusChange{}, false, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	log := m.log.WithFields(logrus.Fields{
		"anime_id": id,
		"status":   status,
	})

	err = storage.Mutate(ctx, m.store, storage.KeyLibrary, func(entries []domain.LibraryEntry, _ bool) ([]domain.LibraryEntry, error) {
		change, found = StatusChange{}, false
		i := indexOf(entries, id)
		if i < 0 {
			return nil, storage.ErrNoChange
		}
		found = true
		change.Previous = entries[i].Status
		entries[i].Status = status
		change.Entry = entries[i].Clone()
		if !change.Changed() {
			return nil, storage.ErrNoChange
		}
		return entries, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to update status")
		return StatusChange{}, false, fmt.Errorf("failed to update status of %d: %w", id, err)
	}

	switch {
	case !found:
		log.Debug("Status update for unknown anime")
	case change.Changed():
		log.WithField("previous", change.Previous).Info("Status updated")
	}
	return change, found, nil
}

// Remove deletes id from the library and returns the removed entry.
func (m *Manager) Remove(ctx context.Context, id int) (domain.LibraryEntry, bool, error) {
	var removed domain.LibraryEntry
	var found bool
	err := storage.Mutate(ctx, m.store, storage.KeyLibrary, func(entries []domain.LibraryEntry, _ bool) ([]domain.LibraryEntry, error) {
		found = false
		i := indexOf(entries, id)
		if i < 0 {
			return nil, storage.ErrNoChange
		}
		found = true
		removed = entries[i]
		return append(entries[:i], entries[i+1:]...), nil
	})
	if err != nil {
		m.log.WithError(err).WithField("anime_id", id).Error("Failed to remove anime")
		return domain.LibraryEntry{}, false, fmt.Errorf("failed to remove anime %d: %w", id, err)
	}
	if found {
		m.log.WithField("anime_id", id).Info("Anime removed from library")
	}
	return removed, found, nil
}

// Stats counts entries per status.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Total: len(entries), ByStatus: make(map[domain.Status]int, len(domain.Statuses))}
	for _, st := range domain.Statuses {
		s.ByStatus[st] = 0
	}
	for _, e := range entries {
		s.ByStatus[e.Status]++
	}
	return s, nil
}

func newEntry(anime domain.AnimeSummary, status domain.Status, now time.Time) domain.LibraryEntry {
	entry := domain.LibraryEntry{
		ID:       anime.ID,
		Title:    anime.DisplayTitle(),
		ImageURL: anime.Image(),
		Genres:   append([]string{}, anime.Genres...),
		Status:   status,
		AddedAt:  now.UTC(),
	}
	if studio := anime.PrimaryStudio(); studio != "" {
		entry.Studio = &studio
	}
	return entry
}

func indexOf(entries []domain.LibraryEntry, id int) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
