package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"animind/internal/anilist"
	"animind/internal/recommend"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFile, when set, receives a rotated copy of the log stream.
	LogFile string `mapstructure:"LOG_FILE"`

	AniListURL   string `mapstructure:"ANILIST_API_URL"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	DesktopNotifications bool          `mapstructure:"DESKTOP_NOTIFICATIONS"`
	BadgerGCInterval     time.Duration `mapstructure:"BADGER_GC_INTERVAL"`
	HTTPTimeout          time.Duration `mapstructure:"HTTP_TIMEOUT"`
}

var defaults = map[string]any{
	"TELEGRAM_BOT_TOKEN":    "",
	"BADGERDB_PATH":         "./badger_data",
	"LOG_LEVEL":             "info",
	"LOG_FILE":              "",
	"ANILIST_API_URL":       anilist.DefaultEndpoint,
	"GEMINI_API_KEY":        "",
	"GEMINI_MODEL":          recommend.DefaultModel,
	"DESKTOP_NOTIFICATIONS": false,
	"BADGER_GC_INTERVAL":    "5m",
	"HTTP_TIMEOUT":          "15s",
}

// LoadConfig reads configuration from file or environment variables.
// Environment variables take precedence over the file.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults register every key, which lets AutomaticEnv resolve them on Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.TelegramBotToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if config.BadgerGCInterval <= 0 {
		return Config{}, fmt.Errorf("BADGER_GC_INTERVAL must be positive, got %s", config.BadgerGCInterval)
	}
	if config.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", config.HTTPTimeout)
	}

	return config, nil
}
