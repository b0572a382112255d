package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"animind/internal/config"
	"animind/internal/domain"
	"animind/internal/events"
	"animind/internal/library"
	"animind/internal/notification"
	"animind/internal/profile"
	"animind/internal/scraper"
	"animind/internal/storage"
	"animind/internal/tracker"
)

// maxPhotoBytes caps downloads for the image vibe check.
const maxPhotoBytes = 10 << 20

// Catalog is the anime metadata source.
type Catalog interface {
	Trending(ctx context.Context, perPage int) []domain.AnimeSummary
	Search(ctx context.Context, text string, perPage int) []domain.AnimeSummary
	ByGenre(ctx context.Context, genre string, perPage int) []domain.AnimeSummary
	Genres(ctx context.Context) []string
	Details(ctx context.Context, id int) (domain.AnimeSummary, bool)
	ByTitles(ctx context.Context, titles []string) []domain.AnimeSummary
}

// Recommender suggests titles for a mood.
type Recommender interface {
	ForVibe(ctx context.Context, vibe string) []string
	ForImage(ctx context.Context, image []byte, mimeType string) []string
}

// sender delivers chat messages. *tgbot.Bot satisfies it.
type sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// pushTimeout bounds delivering one feed entry to a chat.
const pushTimeout = 10 * time.Second

// commandFunc handles one command for userID and returns the reply text.
type commandFunc func(ctx context.Context, userID int64, args string) string

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot         *tgbot.Bot
	sender      sender
	poll        func(ctx context.Context)
	handlers    inflight
	pushes      inflight
	store       storage.Store
	bus         *events.Bus[notification.Event]
	catalog     Catalog
	recommender Recommender
	scraper     scraper.Scraper
	resolver    scraper.Resolver
	http        *http.Client
	commands    map[string]commandFunc
	log         logrus.FieldLogger
}

// NewHandler creates the bot and registers its handlers. Every Telegram user
// gets an isolated scope of store.
func NewHandler(cfg config.Config, store storage.Store, bus *events.Bus[notification.Event], catalog Catalog, recommender Recommender, scr scraper.Scraper, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(store, bus, catalog, recommender, scr, logger)
	h.http.Timeout = cfg.HTTPTimeout

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.sender = b
	h.poll = b.Start

	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/", tgbot.MatchTypePrefix, h.commandHandler)
	h.log.WithField("commands", len(h.commands)).Info("Registered command handlers")

	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(store storage.Store, bus *events.Bus[notification.Event], catalog Catalog, recommender Recommender, scr scraper.Scraper, logger logrus.FieldLogger) *Handler {
	h := &Handler{
		store:       store,
		bus:         bus,
		catalog:     catalog,
		recommender: recommender,
		scraper:     scr,
		resolver:    net.DefaultResolver,
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         logger.WithField("component", "bot_handler"),
	}
	h.commands = map[string]commandFunc{
		"start":         h.start,
		"help":          h.help,
		"library":       h.library,
		"add":           h.add,
		"status":        h.status,
		"remove":        h.remove,
		"stats":         h.stats,
		"notifications": h.notifications,
		"read":          h.markRead,
		"profile":       h.profile,
		"setname":       h.setName,
		"sethandle":     h.setHandle,
		"setavatar":     h.setAvatar,
		"reset":         h.reset,
		"trending":      h.trending,
		"search":        h.search,
		"anime":         h.anime,
		"genres":        h.genres,
		"genre":         h.genre,
		"vibe":          h.vibe,
	}
	return h
}

// Start subscribes the chat push to the feed bus and polls Telegram until
// ctx is cancelled. It returns only after running handlers and the pushes
// they triggered have finished, so the store can be closed afterwards.
func (h *Handler) Start(ctx context.Context) {
	unsubscribe := h.bus.Subscribe(func(e notification.Event) {
		if !h.pushes.enter() {
			h.log.WithField("scope", e.Scope).Warn("Dropping feed push during shutdown")
			return
		}
		go func() {
			defer h.pushes.leave()
			h.push(ctx, e)
		}()
	})

	h.log.Info("Starting Telegram bot polling...")
	h.poll(ctx)

	// Handlers may still publish feed entries, so pushes close after them.
	h.handlers.close()
	unsubscribe()
	h.pushes.close()
	h.log.Info("Telegram bot polling stopped.")
}

// session wires the managers of one user's scope.
type session struct {
	store   storage.Store
	library *library.Manager
	tracker *tracker.Tracker
	feed    *notification.Manager
	profile *profile.Service
}

func (h *Handler) session(userID int64) session {
	store := storage.WithPrefix(h.store, storage.UserPrefix(userID))
	log := h.log.WithField("user_id", userID)

	lib := library.NewManager(store, log)
	feed := notification.NewManager(store, h.bus, log, notification.WithScope(strconv.FormatInt(userID, 10)))
	return session{
		store:   store,
		library: lib,
		tracker: tracker.New(lib, feed, log),
		feed:    feed,
		profile: profile.NewService(store, log),
	}
}

func (h *Handler) commandHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if !h.handlers.enter() {
		return
	}
	defer h.handlers.leave()

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	name, args := splitCommand(msg.Text)
	log := h.log.WithFields(logrus.Fields{
		"user_id": msg.From.ID,
		"command": name,
	})

	cmd, ok := h.commands[name]
	if !ok {
		log.Debug("Unknown command")
		h.reply(ctx, msg.Chat.ID, "Unknown command. Send /help to see what I can do.")
		return
	}
	log.Info("Received command")
	h.reply(ctx, msg.Chat.ID, cmd(ctx, msg.From.ID, args))
}

// defaultHandler handles everything that is not a command: photos start an
// image vibe check, links are looked up, other text is searched.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if !h.handlers.enter() {
		return
	}
	defer h.handlers.leave()

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.log.WithField("user_id", msg.From.ID)

	if len(msg.Photo) > 0 {
		log.Info("Received photo for vibe check")
		h.reply(ctx, msg.Chat.ID, "Checking the vibe of your image...")
		image, err := h.downloadPhoto(ctx, msg.Photo[len(msg.Photo)-1].FileID)
		if err != nil {
			log.WithError(err).Error("Failed to download photo")
			h.reply(ctx, msg.Chat.ID, "I could not download that image. Please try again.")
			return
		}
		h.reply(ctx, msg.Chat.ID, h.imageVibe(ctx, msg.From.ID, image, "image/jpeg"))
		return
	}

	if msg.Text == "" {
		return
	}
	log.WithField("text", msg.Text).Debug("Received text message")
	h.reply(ctx, msg.Chat.ID, h.text(ctx, msg.From.ID, msg.Text))
}

func (h *Handler) downloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	file, err := h.bot.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading file", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

// push forwards a new feed entry into the owner's private chat.
func (h *Handler) push(ctx context.Context, e notification.Event) {
	chatID, err := strconv.ParseInt(e.Scope, 10, 64)
	if err != nil {
		h.log.WithField("scope", e.Scope).Debug("Feed event without a chat scope")
		return
	}
	// Entries committed during shutdown are still delivered.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	h.reply(ctx, chatID, "🔔 "+e.Entry.Text)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	_, err := h.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// failure logs err and turns it into a user-facing message.
func (h *Handler) failure(userID int64, err error, action string) string {
	h.log.WithError(err).WithField("user_id", userID).Error("Failed to " + action)
	if errors.Is(err, storage.ErrCorruptState) {
		return corruptMessage
	}
	return fmt.Sprintf("Sorry, I could not %s. Please try again.", action)
}
