// internal/config/config.go
//
// Environment-driven configuration for the Pairs server.
// main loads .env (godotenv) first, then calls Load.
//
// Variables (default):
//   PORT (5175)             LOG_LEVEL (info)        LOG_PRETTY (unset)
//   DB_PATH (./data/pairs.db)
//   JWT_SECRET (dev secret; rejected when APP_ENV=production)
//   JWT_EXPIRES_DAYS (14)   COOKIE_NAME (pairs_token)
//   CLIENT_ORIGIN (http://localhost:5173)           APP_ENV (development)
//   DAILY_SALT (local_dev_salt)
//   DEFAULT_PAIRS (8)       DEFAULT_THEME (classic) THEMES_FILE (embedded)
//   MATCH_DELAY (600ms)     MISMATCH_DELAY (1s)     TICK_INTERVAL (1s)
//   SESSION_TTL (30m)

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const devSecret = "dev_secret_change_me"

type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool
	DBPath    string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Env            string
	DailySalt      string

	DefaultPairs int
	DefaultTheme string
	ThemesFile   string

	MatchDelay    time.Duration
	MismatchDelay time.Duration
	TickInterval  time.Duration
	SessionTTL    time.Duration
}

// Production reports whether cookies should be Secure / SameSite=None.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads the environment.
func Load() (Config, error) {
	c := Config{
		Port:         envOr("PORT", "5175"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		LogPretty:    os.Getenv("LOG_PRETTY") == "1",
		DBPath:       envOr("DB_PATH", "./data/pairs.db"),
		JWTSecret:    envOr("JWT_SECRET", devSecret),
		CookieName:   envOr("COOKIE_NAME", "pairs_token"),
		ClientOrigin: envOr("CLIENT_ORIGIN", "http://localhost:5173"),
		Env:          envOr("APP_ENV", "development"),
		DailySalt:    envOr("DAILY_SALT", "local_dev_salt"),
		DefaultTheme: envOr("DEFAULT_THEME", "classic"),
		ThemesFile:   os.Getenv("THEMES_FILE"),
	}

	var err error
	if c.JWTExpiresDays, err = envInt("JWT_EXPIRES_DAYS", 14); err != nil {
		return Config{}, err
	}
	if c.DefaultPairs, err = envInt("DEFAULT_PAIRS", 8); err != nil {
		return Config{}, err
	}
	if c.MatchDelay, err = envDuration("MATCH_DELAY", 600*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.MismatchDelay, err = envDuration("MISMATCH_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if c.TickInterval, err = envDuration("TICK_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if c.SessionTTL, err = envDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}

	if c.TickInterval <= 0 {
		return Config{}, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.Production() && c.JWTSecret == devSecret {
		return Config{}, fmt.Errorf("JWT_SECRET is required when APP_ENV=production")
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, v)
	}
	return d, nil
}
