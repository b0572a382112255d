package scraper

import (
	"context"
	"strings"
)

// PageMetadata is what a web page says about itself.
type PageMetadata struct {
	URL         string
	Title       string
	Description string
	Image       string
}

// Scraper fetches metadata from a web page.
type Scraper interface {
	// Scrape loads url and extracts its title, description and preview image.
	Scrape(ctx context.Context, url string) (PageMetadata, error)

	// Close releases the browser, if one was started.
	Close() error
}

// siteSuffixes are trailing page-title segments naming the site rather than the title.
var siteSuffixes = []string{
	"anilist", "myanimelist.net", "myanimelist", "crunchyroll", "netflix",
	"hidive", "wikipedia", "anime news network", "kitsu", "imdb",
}

// CleanTitle strips site names and separators that pages append to a
// title, e.g. "Frieren - AniList" or "Watch Frieren | Crunchyroll".
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for {
		i := max(strings.LastIndex(title, " | "), strings.LastIndex(title, " - "), strings.LastIndex(title, " – "))
		if i < 0 {
			break
		}
		sep := 3
		if strings.HasPrefix(title[i:], " – ") {
			sep = len(" – ")
		}
		suffix := strings.ToLower(strings.TrimSpace(title[i+sep:]))
		if !isSiteSuffix(suffix) {
			break
		}
		title = strings.TrimSpace(title[:i])
	}
	title = strings.TrimSpace(strings.TrimPrefix(title, "Watch "))
	return title
}

func isSiteSuffix(s string) bool {
	for _, site := range siteSuffixes {
		if s == site || strings.HasPrefix(s, site+" ") {
			return true
		}
	}
	return false
}
