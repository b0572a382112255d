package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"animind/internal/anilist"
	"animind/internal/domain"
	"animind/internal/scraper"
)

const (
	trendingCount = 10
	searchCount   = 5
	genreCount    = 10
)

// savedStatuses maps the ids of userID's library to their status. Lookup
// failures only cost the markers, so they are logged and ignored.
func (h *Handler) savedStatuses(ctx context.Context, userID int64) map[int]domain.Status {
	entries, err := h.session(userID).library.List(ctx)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Failed to load library for markers")
		return nil
	}
	saved := make(map[int]domain.Status, len(entries))
	for _, e := range entries {
		saved[e.ID] = e.Status
	}
	return saved
}

func (h *Handler) trending(ctx context.Context, userID int64, _ string) string {
	media := h.catalog.Trending(ctx, trendingCount)
	return formatAnimeList("Trending now", media, h.savedStatuses(ctx, userID))
}

func (h *Handler) search(ctx context.Context, userID int64, args string) string {
	if args == "" {
		return "Usage: /search <title>"
	}
	media := h.catalog.Search(ctx, args, searchCount)
	return formatAnimeList(fmt.Sprintf("Results for %q", args), media, h.savedStatuses(ctx, userID))
}

func (h *Handler) anime(ctx context.Context, userID int64, args string) string {
	id, err := anilist.ParseRef(args)
	if err != nil {
		return "Usage: /anime <id|anilist link>"
	}
	a, found := h.catalog.Details(ctx, id)
	if !found {
		return fmt.Sprintf("I could not find anime #%d.", id)
	}
	status, err := h.session(userID).library.SavedStatus(ctx, id)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Failed to load saved status")
	}
	return formatAnime(a, status)
}

func (h *Handler) genres(ctx context.Context, _ int64, _ string) string {
	genres := h.catalog.Genres(ctx)
	if len(genres) == 0 {
		return "Genres are not available right now."
	}
	return "Genres\n\n" + strings.Join(genres, "\n") + "\n\nBrowse one with /genre <name>."
}

func (h *Handler) genre(ctx context.Context, userID int64, args string) string {
	if args == "" {
		return "Usage: /genre <name>"
	}
	media := h.catalog.ByGenre(ctx, args, genreCount)
	return formatAnimeList("Popular in "+args, media, h.savedStatuses(ctx, userID))
}

func (h *Handler) vibe(ctx context.Context, userID int64, args string) string {
	if args == "" {
		return "Usage: /vibe <describe a mood>"
	}
	titles := h.recommender.ForVibe(ctx, args)
	media := h.catalog.ByTitles(ctx, titles)
	return formatAnimeList(fmt.Sprintf("Vibe check: %q", args), media, h.savedStatuses(ctx, userID))
}

func (h *Handler) imageVibe(ctx context.Context, userID int64, image []byte, mimeType string) string {
	titles := h.recommender.ForImage(ctx, image, mimeType)
	if len(titles) == 0 {
		return "I could not read the vibe of that image. Try another one or use /vibe <mood>."
	}
	media := h.catalog.ByTitles(ctx, titles)
	return formatAnimeList("Looks like", media, h.savedStatuses(ctx, userID))
}

// text handles a plain message: AniList links open the title, other links
// are scraped for a title to search, anything else is a search.
func (h *Handler) text(ctx context.Context, userID int64, text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return h.search(ctx, userID, text)
	}
	if _, err := anilist.ParseRef(text); err == nil {
		return h.anime(ctx, userID, text)
	}

	if err := scraper.CheckPublicURL(ctx, h.resolver, text); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "url": text}).Warn("Refused to scrape page")
		if errors.Is(err, scraper.ErrForbiddenURL) {
			return "I can only read public web pages."
		}
		return "I could not reach that page."
	}

	meta, err := h.scraper.Scrape(ctx, text)
	if err != nil {
		h.log.WithError(err).WithField("url", text).Warn("Failed to scrape page")
		return "I could not read that page."
	}
	if meta.Title == "" {
		return "I could not find a title on that page."
	}
	media := h.catalog.Search(ctx, meta.Title, searchCount)
	return formatAnimeList(fmt.Sprintf("That page is about %q. Matches:", meta.Title), media, h.savedStatuses(ctx, userID))
}
