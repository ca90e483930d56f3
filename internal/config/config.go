package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	DatabaseURL  string
	AnalyticsURL string
	AnalyticsBot string

	MaxInteractions int
	HistoryWindow   int
	MemoryExpiry    time.Duration
	SweepInterval   time.Duration

	CTACooldown   time.Duration
	CTARateWindow time.Duration
	CTARateCap    int

	CompletionMode    string
	CompletionHTTPURL string
	PersonaPath       string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "rusty"),
		AllowAnyOrigin:    false,
		DatabaseURL:       trimEnv("DATABASE_URL"),
		AnalyticsURL:      trimEnv("ANALYTICS_DATABASE_URL"),
		AnalyticsBot:      envOrDefault("ANALYTICS_BOT", "pool-guide"),
		MaxInteractions:   15,
		HistoryWindow:     10,
		MemoryExpiry:      90 * 24 * time.Hour,
		SweepInterval:     time.Hour,
		CTACooldown:       5 * time.Minute,
		CTARateWindow:     time.Hour,
		CTARateCap:        2,
		CompletionMode:    envOrDefault("COMPLETION_MODE", "auto"),
		CompletionHTTPURL: trimEnv("COMPLETION_HTTP_URL"),
		PersonaPath:       trimEnv("PERSONA_PATH"),
		ShutdownTimeout:   15 * time.Second,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MemoryExpiry, err = durationFromEnv("MEMORY_EXPIRY", cfg.MemoryExpiry); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationFromEnv("MEMORY_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.CTACooldown, err = durationFromEnv("CTA_COOLDOWN", cfg.CTACooldown); err != nil {
		return Config{}, err
	}
	if cfg.CTARateWindow, err = durationFromEnv("CTA_RATE_WINDOW", cfg.CTARateWindow); err != nil {
		return Config{}, err
	}
	if cfg.CTARateCap, err = intFromEnv("CTA_RATE_CAP", cfg.CTARateCap); err != nil {
		return Config{}, err
	}
	if cfg.MaxInteractions, err = intFromEnv("MEMORY_MAX_INTERACTIONS", cfg.MaxInteractions); err != nil {
		return Config{}, err
	}
	if cfg.HistoryWindow, err = intFromEnv("MEMORY_HISTORY_WINDOW", cfg.HistoryWindow); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}

	if cfg.MaxInteractions <= 0 {
		return Config{}, fmt.Errorf("MEMORY_MAX_INTERACTIONS must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("MEMORY_HISTORY_WINDOW must be positive")
	}
	if cfg.MemoryExpiry < time.Hour {
		return Config{}, fmt.Errorf("MEMORY_EXPIRY must be at least 1h")
	}
	if cfg.CTARateCap <= 0 {
		return Config{}, fmt.Errorf("CTA_RATE_CAP must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
