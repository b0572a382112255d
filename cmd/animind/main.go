package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"animind/internal/anilist"
	"animind/internal/bot"
	"animind/internal/config"
	"animind/internal/desktop"
	"animind/internal/events"
	"animind/internal/notification"
	"animind/internal/recommend"
	"animind/internal/scraper"
	"animind/internal/storage"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(logOutput(cfg))
	level, _ := logrus.ParseLevel(cfg.LogLevel) // validated by LoadConfig
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"anilist_url":   cfg.AniListURL,
		"gemini_model":  cfg.GeminiModel,
		"desktop":       cfg.DesktopNotifications,
	}).Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Components ---
	log.Info("Initializing components...")

	// Database
	store, err := storage.NewBadgerStore(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	go store.RunGC(ctx, cfg.BadgerGCInterval)

	// Feed events
	bus := events.NewBus[notification.Event]("notifications", log)
	if cfg.DesktopNotifications {
		detach := desktop.NewNotifier("AniMind", log).Attach(bus)
		defer detach()
	}

	// Collaborators
	catalog := anilist.NewClient(cfg.AniListURL, cfg.HTTPTimeout, log)
	recommender, err := recommend.NewClient(ctx, "", cfg.GeminiAPIKey, cfg.GeminiModel, cfg.HTTPTimeout, log)
	if err != nil {
		log.Fatalf("Failed to initialize recommendation client: %v", err)
	}

	scr := scraper.NewRodScraper(log)
	defer func() {
		if err := scr.Close(); err != nil {
			log.WithError(err).Error("Error closing browser")
		}
	}()

	// Bot Handler
	botHandler, err := bot.NewHandler(cfg, store, bus, catalog, recommender, scr, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	// --- Application Startup ---
	log.Info("Starting AniMind...")
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		botHandler.Start(ctx)
	}()
	log.Info("AniMind is running. Press Ctrl+C to exit.")

	<-ctx.Done()

	// --- Graceful Shutdown ---
	log.Info("Shutting down AniMind...")
	stop()
	// Start returns once in-flight handlers and chat pushes are done; only
	// then may the deferred closers release the browser and the database.
	<-botDone
}

// logOutput writes to stdout, and also to a rotated file when LOG_FILE is set.
func logOutput(cfg config.Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
}
