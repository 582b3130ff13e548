package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. Runtime-tunable settings (interval, thresholds, cooldown) live
// in the sqlite config table instead; these are process-level only.
type Config struct {
	// Telegram
	TelegramBotToken string
	TelegramChatID   string
	AdminUserID      int64

	// Notification backend: "telegram", "webhook", or "log"
	NotifyBackend string
	WebhookURL    string

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string

	// Market data
	ChartBaseURL  string
	PriceCacheTTL time.Duration

	// Indicator geometry
	BollingerWindow int
	RPPLookbackDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		NotifyBackend: getEnv("NOTIFY_BACKEND", "telegram"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		ChartBaseURL:  getEnv("CHART_BASE_URL", ""),
		PriceCacheTTL: getDuration("PRICE_CACHE_TTL", 10*time.Minute),

		BollingerWindow: getInt("BOLLINGER_WINDOW", 20),
		RPPLookbackDays: getInt("RPP_LOOKBACK_DAYS", 180),
	}

	if cfg.NotifyBackend == "telegram" {
		cfg.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
		cfg.TelegramChatID = mustEnv("TELEGRAM_CHAT_ID")
	} else {
		cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
		cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	}
	if cfg.NotifyBackend == "webhook" && cfg.WebhookURL == "" {
		log.Fatalf("[config] NOTIFY_BACKEND=webhook requires WEBHOOK_URL")
	}

	cfg.AdminUserID = getInt64("TELEGRAM_ADMIN_ID", 0)
	return cfg
}

// BotEnabled reports whether the command bot can run: it needs a token and
// an admin user id.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != "" && c.AdminUserID != 0
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
