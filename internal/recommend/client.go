// Package recommend asks a Gemini model for anime titles matching a mood
// ("vibe") described in text or shown in an image.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// ErrNoAPIKey is returned when no credential is configured.
var ErrNoAPIKey = errors.New("recommend: gemini api key is not set")

// FallbackTitles is served when a text recommendation cannot be obtained.
var FallbackTitles = []string{
	"Attack on Titan", "Death Note", "One Piece", "Demon Slayer", "Jujutsu Kaisen",
	"Naruto", "My Hero Academia", "One Punch Man", "Haikyuu", "Boruto",
}

const textPrompt = `Recommend 15 anime titles based on this vibe: %q.
Return ONLY a comma-separated list of titles. Example: "Naruto, Bleach, One Piece".
Do not add numbering, bullet points, or extra text.`

const imagePrompt = `Analyze the art style, color palette, and atmosphere of this anime image.
Based on the visual style, recommend 5 specific anime titles that look similar.
Strict Output Format: Just a comma-separated list of titles.
Example: Cyberpunk: Edgerunners, Akira, Ghost in the Shell`

// Client asks one Gemini model for recommendations.
type Client struct {
	models *genai.Models // nil without an API key
	model  string
	log    logrus.FieldLogger
}

// NewClient creates a client for model. baseURL overrides the Gemini API
// host and may be empty. Without apiKey every call fails with ErrNoAPIKey,
// which callers see as the fallback behaviour.
func NewClient(ctx context.Context, baseURL, apiKey, model string, timeout time.Duration, logger logrus.FieldLogger) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		model: model,
		log:   logger.WithFields(logrus.Fields{"component": "recommend", "model": model}),
	}
	if apiKey == "" {
		c.log.Warn("GEMINI_API_KEY is not set, recommendations use the static list")
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

// ForVibe returns titles matching a free-text mood. Any failure yields
// FallbackTitles so the caller always has something to show.
func (c *Client) ForVibe(ctx context.Context, vibe string) []string {
	text, err := c.generate(ctx, genai.Text(fmt.Sprintf(textPrompt, vibe)))
	if err == nil {
		if titles := ParseTitles(text); len(titles) > 0 {
			return titles
		}
		err = errors.New("recommend: no titles in response")
	}
	c.log.WithError(err).Warn("Falling back to static recommendations")
	return append([]string(nil), FallbackTitles...)
}

// ForImage returns titles resembling the style of an image. Failures yield
// an empty list.
func (c *Client) ForImage(ctx context.Context, image []byte, mimeType string) []string {
	text, err := c.generate(ctx, []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(imagePrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	})
	if err != nil {
		c.log.WithError(err).Warn("Image recommendation failed")
		return nil
	}
	return ParseTitles(text)
}

// ParseTitles splits a model answer on commas and newlines, dropping blanks
// and bullet lines.
func ParseTitles(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' })
	titles := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), `"`)
		if f == "" || strings.HasPrefix(f, "-") || strings.HasPrefix(f, "*") {
			continue
		}
		titles = append(titles, f)
	}
	return titles
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	if c.models == nil {
		return "", ErrNoAPIKey
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
