package bot

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animind/internal/domain"
	"animind/internal/events"
	"animind/internal/notification"
	"animind/internal/scraper"
	"animind/internal/storage"
)

type fakeCatalog struct {
	anime    map[int]domain.AnimeSummary
	searches []string
}

func (c *fakeCatalog) all() []domain.AnimeSummary {
	out := make([]domain.AnimeSummary, 0, len(c.anime))
	for _, id := range []int{101, 202} {
		if a, ok := c.anime[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *fakeCatalog) Trending(context.Context, int) []domain.AnimeSummary { return c.all() }
func (c *fakeCatalog) Search(_ context.Context, text string, _ int) []domain.AnimeSummary {
	c.searches = append(c.searches, text)
	return c.all()
}
func (c *fakeCatalog) ByGenre(context.Context, string, int) []domain.AnimeSummary { return c.all() }
func (c *fakeCatalog) Genres(context.Context) []string                             { return []string{"Action", "Drama"} }
func (c *fakeCatalog) Details(_ context.Context, id int) (domain.AnimeSummary, bool) {
	a, ok := c.anime[id]
	return a, ok
}
func (c *fakeCatalog) ByTitles(context.Context, []string) []domain.AnimeSummary { return c.all() }

type fakeRecommender struct{ titles []string }

func (r fakeRecommender) ForVibe(context.Context, string) []string { return r.titles }
func (r fakeRecommender) ForImage(context.Context, []byte, string) []string {
	return r.titles
}

type fakeScraper struct {
	meta scraper.PageMetadata
	err  error
}

func (s fakeScraper) Scrape(context.Context, string) (scraper.PageMetadata, error) { return s.meta, s.err }
func (s fakeScraper) Close() error                                                 { return nil }

// publicResolver resolves every host to one public address.
type publicResolver struct{}

func (publicResolver) LookupNetIP(context.Context, string, string) ([]netip.Addr, error) {
	return []netip.Addr{netip.MustParseAddr("93.184.216.34")}, nil
}

// fakeSender records chat messages, taking delay per message.
type fakeSender struct {
	mu    sync.Mutex
	delay time.Duration
	sent  []string
}

func (s *fakeSender) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, params.Text)
	return &models.Message{}, nil
}

func (s *fakeSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fixture struct {
	h       *Handler
	bus     *events.Bus[notification.Event]
	store   *storage.MemoryStore
	catalog *fakeCatalog
	events  []notification.Event
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{
		store: storage.NewMemoryStore(),
		catalog: &fakeCatalog{anime: map[int]domain.AnimeSummary{
			101: {ID: 101, Title: domain.AnimeTitle{English: "Frieren", Romaji: "Sousou no Frieren"}, AverageScore: 91,
				Studios: domain.StudioConnection{Nodes: []domain.Studio{{Name: "Madhouse", IsAnimationStudio: true}}}},
			202: {ID: 202, Title: domain.AnimeTitle{Romaji: "Mushishi"}},
		}},
	}
	bus := events.NewBus[notification.Event]("notifications", logger)
	bus.Subscribe(func(e notification.Event) { f.events = append(f.events, e) })
	f.h = newHandler(f.store, bus, f.catalog, fakeRecommender{titles: []string{"Frieren"}},
		fakeScraper{meta: scraper.PageMetadata{Title: "Frieren"}}, logger)
	f.h.resolver = publicResolver{}
	f.bus = bus
	return f
}

func (f *fixture) run(name string, userID int64, args string) string {
	return f.h.commands[name](context.Background(), userID, args)
}

func TestSplitCommand(t *testing.T) {
	name, args := splitCommand("/add@AniMindBot 101 plan to watch")
	assert.Equal(t, "add", name)
	assert.Equal(t, "101 plan to watch", args)

	name, args = splitCommand("/Library")
	assert.Equal(t, "library", name)
	assert.Empty(t, args)

	name, args = splitCommand("just text")
	assert.Empty(t, name)
	assert.Equal(t, "just text", args)
}

func TestCommands_LibraryFlow(t *testing.T) {
	f := setup(t)
	const user = 42

	assert.Contains(t, f.run("library", user, ""), "Your library is empty")

	assert.Equal(t, "Added Frieren as Watching.", f.run("add", user, "101"))
	assert.Equal(t, "Added Mushishi as Plan to Watch.", f.run("add", user, "https://anilist.co/anime/202/Mushishi plan-to-watch"))
	assert.Contains(t, f.run("add", user, "101 dropped"), "already in your library (Watching)")

	assert.Equal(t, "Frieren: Watching → Completed.", f.run("status", user, "101 completed"))
	assert.Equal(t, "Frieren is already marked as Completed.", f.run("status", user, "101 Completed"))
	assert.Contains(t, f.run("status", user, "999 dropped"), "not in your library")
	assert.Contains(t, f.run("status", user, "101 binging"), "is not a status")

	lib := f.run("library", user, "")
	assert.Contains(t, lib, "#101 Frieren · Completed (Madhouse)")
	assert.Contains(t, lib, "#202 Mushishi · Plan to Watch")
	assert.Equal(t, "No anime found in 'Dropped'.", f.run("library", user, "dropped"))

	require.Len(t, f.events, 3, "Two adds and one effective status change")
	for _, e := range f.events {
		assert.Equal(t, "42", e.Scope)
	}
	assert.Equal(t, `Library: Changed "Frieren" from Watching to Completed.`, f.events[2].Entry.Text)

	feed := f.run("notifications", user, "")
	assert.Contains(t, feed, "Notifications (4 unread)")
	assert.Contains(t, feed, notification.WelcomeText)
	assert.Contains(t, f.run("read", user, ""), "4 notifications marked as read")
	assert.Contains(t, f.run("notifications", user, ""), "Notifications (0 unread)")

	assert.Equal(t, "Removed Mushishi from your library.", f.run("remove", user, "202"))
	assert.Contains(t, f.run("stats", user, ""), "Saved anime: 1")
	assert.Len(t, f.events, 3, "Removal leaves no feed entry")
}

func TestCommands_AddUnknownAnime(t *testing.T) {
	f := setup(t)
	assert.Equal(t, "I could not find anime #5.", f.run("add", 1, "5"))
	assert.Contains(t, f.run("add", 1, "frieren"), "is not an anime id")
	assert.Contains(t, f.run("add", 1, ""), "Usage")
	assert.Empty(t, f.events)
}

func TestCommands_UsersAreIsolated(t *testing.T) {
	f := setup(t)
	f.run("add", 1, "101")

	assert.Contains(t, f.run("library", 2, ""), "Your library is empty")
	assert.Contains(t, f.run("trending", 1, ""), "#101 Frieren · 91% · in library: Watching")
	assert.NotContains(t, f.run("trending", 2, ""), "in library")
}

func TestCommands_Profile(t *testing.T) {
	f := setup(t)
	const user = 7

	assert.Contains(t, f.run("start", user, ""), "Welcome to AniMind, Guest Otaku!")
	assert.Contains(t, f.run("profile", user, ""), "Guest Otaku @guest")

	assert.Equal(t, "Profile saved: Mika @guest", f.run("setname", user, "Mika"))
	assert.Equal(t, "Profile saved: Mika @mika_watches", f.run("sethandle", user, "mika_watches"))
	assert.Contains(t, f.run("setname", user, "   "), "Usage")
	assert.Contains(t, f.run("profile", user, ""), "Mika @mika_watches")
}

func TestCommands_CorruptDataAndReset(t *testing.T) {
	f := setup(t)
	const user = 9
	scoped := storage.WithPrefix(f.store, storage.UserPrefix(user))
	require.NoError(t, scoped.Put(context.Background(), storage.KeyLibrary, []byte("{broken")))

	assert.Equal(t, corruptMessage, f.run("library", user, ""))
	assert.Equal(t, corruptMessage, f.run("add", user, "101"))

	assert.Contains(t, f.run("reset", user, ""), "/reset confirm")
	assert.Equal(t, "Your data has been reset.", f.run("reset", user, "confirm"))
	assert.Equal(t, "Added Frieren as Watching.", f.run("add", user, "101"))
}

func TestCommands_Discover(t *testing.T) {
	f := setup(t)

	assert.Contains(t, f.run("search", 1, "frieren"), `Results for "frieren"`)
	assert.Contains(t, f.run("genres", 1, ""), "Action\nDrama")
	assert.Contains(t, f.run("genre", 1, "Drama"), "Popular in Drama")
	assert.Contains(t, f.run("vibe", 1, "cozy melancholy"), `Vibe check: "cozy melancholy"`)

	details := f.run("anime", 1, "101")
	assert.Contains(t, details, "Frieren (#101)")
	assert.Contains(t, details, "Sousou no Frieren")
	assert.Contains(t, details, "Save it with /add 101")
}

func TestText_RoutesLinksAndSearches(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.Contains(t, f.h.text(ctx, 1, "https://anilist.co/anime/101"), "Frieren (#101)")

	out := f.h.text(ctx, 1, "https://www.crunchyroll.com/series/frieren")
	assert.Contains(t, out, `That page is about "Frieren"`)

	f.h.text(ctx, 1, "mushishi")
	assert.Equal(t, []string{"Frieren", "mushishi"}, f.catalog.searches)

	f.h.scraper = fakeScraper{err: errors.New("no browser")}
	assert.Equal(t, "I could not read that page.", f.h.text(ctx, 1, "https://example.com"))
}

func TestText_RefusesInternalAddresses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.h.scraper = fakeScraper{err: errors.New("the browser must not be used")}

	for _, raw := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://127.0.0.1:8080/admin",
		"http://[::1]/",
		"http://192.168.0.1/",
	} {
		assert.Equal(t, "I can only read public web pages.", f.h.text(ctx, 1, raw), raw)
	}
	assert.Empty(t, f.catalog.searches)
}

func TestStart_WaitsForHandlersAndPushes(t *testing.T) {
	f := setup(t)
	sender := &fakeSender{delay: 20 * time.Millisecond}
	f.h.sender = sender
	f.h.poll = func(ctx context.Context) { <-ctx.Done() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.h.Start(ctx)
	}()
	require.Eventually(t, func() bool { return f.bus.Len() == 2 }, time.Second, time.Millisecond)

	// A handler that is still running when polling stops.
	require.True(t, f.h.handlers.enter())
	handlerDone := make(chan struct{})
	go func() {
		defer f.h.handlers.leave()
		defer close(handlerDone)
		time.Sleep(20 * time.Millisecond)
		f.run("add", 42, "101")
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
	select {
	case <-handlerDone:
	default:
		t.Fatal("Start returned before the running handler finished")
	}
	assert.Equal(t, []string{`🔔 Library: Added "Frieren" as Watching.`}, sender.messages())
	assert.False(t, f.h.handlers.enter(), "No handler starts after shutdown")
	assert.Equal(t, 1, f.bus.Len(), "The push observer is unsubscribed")
}

func TestInflight(t *testing.T) {
	var f inflight
	require.True(t, f.enter())

	closed := make(chan struct{})
	go func() {
		f.close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while work was registered")
	case <-time.After(20 * time.Millisecond):
	}
	f.leave()
	<-closed
	assert.False(t, f.enter())
}

func TestImageVibe(t *testing.T) {
	f := setup(t)
	assert.Contains(t, f.h.imageVibe(context.Background(), 1, []byte("img"), "image/jpeg"), "Looks like")

	f.h.recommender = fakeRecommender{}
	assert.Contains(t, f.h.imageVibe(context.Background(), 1, []byte("img"), "image/jpeg"), "could not read the vibe")
}
