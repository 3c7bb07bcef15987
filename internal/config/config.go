package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the client.
type Config struct {
	TelegramToken   string
	APIBaseURL      string
	SessionDBPath   string
	HTTPTimeout     time.Duration
	RefreshInterval time.Duration
	DigestTime      string
}

// Load reads configuration from environment variables with sane
// defaults. A local .env file is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:   strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		APIBaseURL:      strings.TrimSpace(os.Getenv("TASK_API_URL")),
		SessionDBPath:   strings.TrimSpace(os.Getenv("SESSION_DB")),
		HTTPTimeout:     parseDuration(strings.TrimSpace(os.Getenv("HTTP_TIMEOUT_SECONDS")), "s"),
		RefreshInterval: parseDuration(strings.TrimSpace(os.Getenv("REFRESH_INTERVAL_HOURS")), "h"),
		DigestTime:      strings.TrimSpace(os.Getenv("DIGEST_TIME")),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:5000"
	}
	if cfg.SessionDBPath == "" {
		cfg.SessionDBPath = "taskpilot.db"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseDuration(raw, unit string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw + unit)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
