// Package anilist queries the public AniList GraphQL API for anime metadata.
//
// Every exported lookup swallows transport and API errors: they are logged
// and an empty result is returned, so callers only have to handle "nothing
// found".
package anilist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/sirupsen/logrus"

	"animind/internal/domain"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

const mediaFields = `
	id
	title { english romaji }
	coverImage { extraLarge large }
	bannerImage
	averageScore
	episodes
	genres
	studios { nodes { name isAnimationStudio } }`

const trendingQuery = `
query ($perPage: Int) {
  Page(perPage: $perPage) {
    media(sort: TRENDING_DESC, type: ANIME) {` + mediaFields + `
    }
  }
}`

const searchQuery = `
query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(search: $search, type: ANIME, sort: POPULARITY_DESC) {` + mediaFields + `
    }
  }
}`

const genreQuery = `
query ($genre: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(genre: $genre, sort: POPULARITY_DESC, type: ANIME) {` + mediaFields + `
    }
  }
}`

const detailsQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {` + mediaFields + `
    description(asHtml: false)
  }
}`

const genresQuery = `query { GenreCollection }`

// Client talks to one AniList endpoint.
type Client struct {
	gql *graphql.Client
	log logrus.FieldLogger
}

func NewClient(endpoint string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		gql: graphql.NewClient(endpoint, graphql.WithHTTPClient(&http.Client{Timeout: timeout})),
		log: logger.WithField("component", "anilist"),
	}
}

type pageData struct {
	Page struct {
		Media []domain.AnimeSummary `json:"media"`
	} `json:"Page"`
}

// Trending returns the currently trending titles.
func (c *Client) Trending(ctx context.Context, perPage int) []domain.AnimeSummary {
	var out pageData
	if err := c.query(ctx, trendingQuery, map[string]any{"perPage": perPage}, &out); err != nil {
		c.log.WithError(err).Warn("Failed to fetch trending anime")
		return nil
	}
	return out.Page.Media
}

// Search finds titles matching text, most popular first.
func (c *Client) Search(ctx context.Context, text string, perPage int) []domain.AnimeSummary {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out pageData
	vars := map[string]any{"search": text, "perPage": perPage}
	if err := c.query(ctx, searchQuery, vars, &out); err != nil {
		c.log.WithError(err).WithField("search", text).Warn("Failed to search anime")
		return nil
	}
	return out.Page.Media
}

// ByGenre returns the most popular titles of genre.
func (c *Client) ByGenre(ctx context.Context, genre string, perPage int) []domain.AnimeSummary {
	var out pageData
	vars := map[string]any{"genre": genre, "perPage": perPage}
	if err := c.query(ctx, genreQuery, vars, &out); err != nil {
		c.log.WithError(err).WithField("genre", genre).Warn("Failed to fetch anime by genre")
		return nil
	}
	return out.Page.Media
}

// Genres lists every genre AniList knows.
func (c *Client) Genres(ctx context.Context) []string {
	var out struct {
		GenreCollection []string `json:"GenreCollection"`
	}
	if err := c.query(ctx, genresQuery, nil, &out); err != nil {
		c.log.WithError(err).Warn("Failed to fetch genres")
		return nil
	}
	return out.GenreCollection
}

// Details looks a single title up by id.
func (c *Client) Details(ctx context.Context, id int) (domain.AnimeSummary, bool) {
	var out struct {
		Media *domain.AnimeSummary `json:"Media"`
	}
	if err := c.query(ctx, detailsQuery, map[string]any{"id": id}, &out); err != nil {
		c.log.WithError(err).WithField("anime_id", id).Warn("Failed to fetch anime details")
		return domain.AnimeSummary{}, false
	}
	if out.Media == nil {
		return domain.AnimeSummary{}, false
	}
	return *out.Media, true
}

// ByTitles resolves each title to its best search match in one request,
// using one aliased field per title. Titles without a match are skipped and
// a title matched twice is returned once.
func (c *Client) ByTitles(ctx context.Context, titles []string) []domain.AnimeSummary {
	if len(titles) == 0 {
		return nil
	}

	var params, fields strings.Builder
	vars := make(map[string]any, len(titles))
	for i, title := range titles {
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "$t%d: String", i)
		fmt.Fprintf(&fields, "\n  t%d: Media(search: $t%d, type: ANIME) {%s\n  }", i, i, mediaFields)
		vars[fmt.Sprintf("t%d", i)] = title
	}
	query := fmt.Sprintf("query (%s) {%s\n}", params.String(), fields.String())

	// AniList reports each unmatched alias as an error (HTTP 404) while
	// still filling the matched ones, so errors only matter without data.
	var out map[string]*domain.AnimeSummary
	if err := c.query(ctx, query, vars, &out); err != nil {
		if len(out) == 0 {
			c.log.WithError(err).WithField("titles", len(titles)).Warn("Failed to resolve titles")
			return nil
		}
		c.log.WithError(err).WithField("titles", len(titles)).Debug("Some titles did not resolve")
	}

	seen := make(map[int]bool, len(out))
	result := make([]domain.AnimeSummary, 0, len(out))
	for i := range titles {
		m := out[fmt.Sprintf("t%d", i)]
		if m == nil || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		result = append(result, *m)
	}
	return result
}

func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	req.Header.Set("Accept", "application/json")

	// Run decodes data into out before reporting GraphQL errors, so a
	// partial answer stays readable alongside the error.
	if err := c.gql.Run(ctx, req, out); err != nil {
		return fmt.Errorf("anilist: %w", err)
	}
	return nil
}

// ParseRef accepts either a bare id ("154587") or an AniList title URL
// ("https://anilist.co/anime/154587/Sousou-no-Frieren/") and returns the id.
func ParseRef(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if id, err := domain.ParseID(ref); err == nil {
		return id, nil
	}

	u, err := url.Parse(ref)
	if err != nil || !isAniListHost(u.Hostname()) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, ref)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "anime" {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, ref)
	}
	return domain.ParseID(parts[1])
}

func isAniListHost(host string) bool {
	host = strings.ToLower(host)
	return host == "anilist.co" || strings.HasSuffix(host, ".anilist.co")
}
