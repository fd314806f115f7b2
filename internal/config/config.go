// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the bot needs to start, read once from the
// environment. PublicURL empty means long-poll mode; PingURL empty disables
// the keep-alive pinger.
type Config struct {
	BotToken     string
	PublicURL    string
	Port         int
	DBPath       string
	PingURL      string
	PingInterval time.Duration
	Debug        bool
}

// ErrMissingToken is returned when TELEGRAM_BOT_TOKEN is not set.
var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

// Load reads configuration from environment variables and returns a validated
// Config. TELEGRAM_BOT_TOKEN is required. Optional variables with defaults:
// PORT (10000), DB_PATH (willbot.db), PING_INTERVAL (10m).
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, ErrMissingToken
	}

	port := 10000
	if v, ok := os.LookupEnv("PORT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("PORT has invalid value %q", v)
		}
		port = parsed
	}

	dbPath := "willbot.db"
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		dbPath = v
	}

	pingInterval := 10 * time.Minute
	if v, ok := os.LookupEnv("PING_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PING_INTERVAL has invalid duration %q: %w", v, err)
		}
		pingInterval = parsed
	}

	debug := false
	if v, ok := os.LookupEnv("DEBUG"); ok {
		debug, _ = strconv.ParseBool(v)
	}

	return &Config{
		BotToken:     token,
		PublicURL:    os.Getenv("PUBLIC_URL"),
		Port:         port,
		DBPath:       dbPath,
		PingURL:      os.Getenv("PING_URL"),
		PingInterval: pingInterval,
		Debug:        debug,
	}, nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
