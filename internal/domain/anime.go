package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidID is returned when an anime id cannot be parsed into its canonical form.
var ErrInvalidID = errors.New("invalid anime id")

// ErrInvalidStatus is returned for a watch status outside the known set.
var ErrInvalidStatus = errors.New("invalid watch status")

// Status is the user's progress on a library entry.
type Status string

const (
	StatusWatching    Status = "Watching"
	StatusCompleted   Status = "Completed"
	StatusPlanToWatch Status = "Plan to Watch"
	StatusDropped     Status = "Dropped"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status in any case, with spaces, dashes or
// underscores between words ("plan-to-watch", "PLAN_TO_WATCH").
func ParseStatus(raw string) (Status, error) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(raw))
	norm = strings.Join(strings.Fields(norm), " ")
	for _, known := range Statuses {
		if strings.EqualFold(norm, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// ParseID normalizes an externally supplied id (command argument, route
// parameter) into the canonical integer form used by the library.
func ParseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

// AnimeTitle holds the localized and romanized titles reported by the metadata source.
type AnimeTitle struct {
	English string `json:"english"`
	Romaji  string `json:"romaji"`
}

// CoverImage holds cover art URLs in the sizes the metadata source offers.
type CoverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
}

// Studio is a production studio credited on a title.
type Studio struct {
	Name              string `json:"name"`
	IsAnimationStudio bool   `json:"isAnimationStudio"`
}

// StudioConnection mirrors the metadata source's paged studio list.
type StudioConnection struct {
	Nodes []Studio `json:"nodes"`
}

// AnimeSummary is the subset of metadata the application reads about a title.
type AnimeSummary struct {
	ID           int              `json:"id"`
	Title        AnimeTitle       `json:"title"`
	CoverImage   CoverImage       `json:"coverImage"`
	BannerImage  string           `json:"bannerImage,omitempty"`
	AverageScore int              `json:"averageScore,omitempty"`
	Episodes     int              `json:"episodes,omitempty"`
	Description  string           `json:"description,omitempty"`
	Genres       []string         `json:"genres,omitempty"`
	Studios      StudioConnection `json:"studios"`
}

// DisplayTitle prefers the localized title and falls back to the romanized one.
func (a AnimeSummary) DisplayTitle() string {
	if a.Title.English != "" {
		return a.Title.English
	}
	return a.Title.Romaji
}

// Image returns the largest available cover image.
func (a AnimeSummary) Image() string {
	if a.CoverImage.ExtraLarge != "" {
		return a.CoverImage.ExtraLarge
	}
	return a.CoverImage.Large
}

// PrimaryStudio returns the first animation studio, or the first credited
// studio when none is flagged as such. Empty when nothing is credited.
func (a AnimeSummary) PrimaryStudio() string {
	for _, s := range a.Studios.Nodes {
		if s.IsAnimationStudio {
			return s.Name
		}
	}
	if len(a.Studios.Nodes) > 0 {
		return a.Studios.Nodes[0].Name
	}
	return ""
}

// LibraryEntry is one anime the user tracks.
type LibraryEntry struct {
	// ID is the metadata source's identifier and the entry's primary key.
	ID int `json:"id"`

	Title string `json:"title"`

	// ImageURL points at the cover art captured when the entry was added.
	ImageURL string `json:"image"`

	Genres []string `json:"genres"`

	// Studio is nil when the metadata source credited no studio.
	Studio *string `json:"studio"`

	// Status is the only field that changes after creation.
	Status Status `json:"status"`

	// AddedAt is set once when the entry is created.
	AddedAt time.Time `json:"addedAt"`
}

// Clone returns a copy that shares no memory with e.
func (e LibraryEntry) Clone() LibraryEntry {
	c := e
	if e.Genres != nil {
		c.Genres = append([]string(nil), e.Genres...)
	}
	if e.Studio != nil {
		s := *e.Studio
		c.Studio = &s
	}
	return c
}
