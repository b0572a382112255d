package scraper

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Sousou no Frieren - AniList", "Sousou no Frieren"},
		{"Watch Frieren: Beyond Journey's End | Crunchyroll", "Frieren: Beyond Journey's End"},
		{"Frieren (TV) – MyAnimeList.net", "Frieren (TV)"},
		{"Re:Zero - Starting Life in Another World", "Re:Zero - Starting Life in Another World"},
		{"Mushishi - Wikipedia | Wikipedia", "Mushishi"},
		{"  Monster  ", "Monster"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanTitle(tc.in), tc.in)
	}
}

func TestRodScraper_CloseWithoutBrowser(t *testing.T) {
	s := NewRodScraper(testLogger())
	assert.NoError(t, s.Close(), "Closing before any scrape is a no-op")
}

func testLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}
