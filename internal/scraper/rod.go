package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// pageTimeout bounds loading and reading a single page.
const pageTimeout = 30 * time.Second

// RodScraper implements Scraper with a headless browser driven by rod.
// The browser is launched on first use and reused until Close.
type RodScraper struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodScraper creates a scraper. No browser is started yet.
func NewRodScraper(logger logrus.FieldLogger) *RodScraper {
	return &RodScraper{
		log: logger.WithField("component", "scraper"),
	}
}

func (s *RodScraper) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	path, exists := launcher.LookPath()
	if !exists {
		s.log.Error("Cannot find browser executable for rod")
		return nil, errors.New("rod browser dependency not found")
	}
	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		s.log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		s.log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.log.Info("Rod browser instance started")
	s.browser = browser
	return browser, nil
}

// Close shuts the browser down.
func (s *RodScraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	s.log.Info("Closing rod browser instance")
	err := s.browser.Close()
	s.browser = nil
	return err
}

// Scrape loads url and reads its Open Graph metadata, falling back to the
// <title> element and the description meta tag.
func (s *RodScraper) Scrape(ctx context.Context, url string) (meta PageMetadata, err error) {
	log := s.log.WithField("url", url)
	log.Info("Attempting to scrape metadata")

	browser, err := s.connect()
	if err != nil {
		return PageMetadata{}, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return PageMetadata{}, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod page")
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()
	page = page.Context(pageCtx)

	if err := page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Scraping timed out")
			return PageMetadata{}, fmt.Errorf("scraping timed out for %s: %w", url, pageCtx.Err())
		}
		log.WithError(err).Error("Failed to wait for page load")
		return PageMetadata{}, fmt.Errorf("failed waiting for page load: %w", err)
	}

	meta.URL = url
	meta.Title = firstAttr(page, log, "content", `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	if meta.Title == "" {
		meta.Title = elementText(page, log, "title")
	}
	meta.Title = CleanTitle(meta.Title)
	meta.Description = firstAttr(page, log, "content", `meta[property="og:description"]`, `meta[name="description"]`)
	meta.Image = firstAttr(page, log, "content", `meta[property="og:image"]`, `meta[name="twitter:image"]`)

	if meta.Title == "" {
		log.Warn("Page has no usable title")
	}
	log.WithField("title", meta.Title).Info("Metadata scraping completed successfully")
	return meta, nil
}

// firstAttr returns the first non-empty attr among the elements matched by selectors.
func firstAttr(page *rod.Page, log logrus.FieldLogger, attr string, selectors ...string) string {
	for _, selector := range selectors {
		has, el, err := page.Has(selector)
		if err != nil {
			log.WithError(err).WithField("selector", selector).Warn("Error searching for element")
			continue
		}
		if !has {
			continue
		}
		value, err := el.Attribute(attr)
		if err != nil {
			log.WithError(err).WithField("selector", selector).Warn("Failed to read attribute")
			continue
		}
		if value != nil && strings.TrimSpace(*value) != "" {
			return strings.TrimSpace(*value)
		}
	}
	return ""
}

func elementText(page *rod.Page, log logrus.FieldLogger, selector string) string {
	has, el, err := page.Has(selector)
	if err != nil || !has {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		log.WithError(err).WithField("selector", selector).Warn("Failed to read element text")
		return ""
	}
	return strings.TrimSpace(text)
}
