package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MetricsNamespace != "rusty" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "rusty")
	}
	if cfg.MaxInteractions != 15 {
		t.Fatalf("MaxInteractions = %d, want 15", cfg.MaxInteractions)
	}
	if cfg.HistoryWindow != 10 {
		t.Fatalf("HistoryWindow = %d, want 10", cfg.HistoryWindow)
	}
	if cfg.MemoryExpiry != 90*24*time.Hour {
		t.Fatalf("MemoryExpiry = %v, want 90 days", cfg.MemoryExpiry)
	}
	if cfg.CTACooldown != 5*time.Minute || cfg.CTARateWindow != time.Hour || cfg.CTARateCap != 2 {
		t.Fatalf("CTA policy = (%v, %v, %d), want (5m, 1h, 2)",
			cfg.CTACooldown, cfg.CTARateWindow, cfg.CTARateCap)
	}
	if cfg.CompletionMode != "auto" {
		t.Fatalf("CompletionMode = %q, want auto", cfg.CompletionMode)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("MEMORY_EXPIRY", "48h")
	t.Setenv("CTA_COOLDOWN", "10m")
	t.Setenv("CTA_RATE_CAP", "3")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.MemoryExpiry != 48*time.Hour {
		t.Fatalf("MemoryExpiry = %v, want 48h", cfg.MemoryExpiry)
	}
	if cfg.CTACooldown != 10*time.Minute {
		t.Fatalf("CTACooldown = %v, want 10m", cfg.CTACooldown)
	}
	if cfg.CTARateCap != 3 {
		t.Fatalf("CTARateCap = %d, want 3", cfg.CTARateCap)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "MEMORY_EXPIRY", "soon"},
		{"expiry under an hour", "MEMORY_EXPIRY", "30m"},
		{"bad int", "CTA_RATE_CAP", "two"},
		{"zero rate cap", "CTA_RATE_CAP", "0"},
		{"bad bool", "APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"zero interactions", "MEMORY_MAX_INTERACTIONS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q error = nil, want error", tt.key, tt.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
		"ANALYTICS_DATABASE_URL",
		"ANALYTICS_BOT",
		"MEMORY_EXPIRY",
		"MEMORY_SWEEP_INTERVAL",
		"MEMORY_MAX_INTERACTIONS",
		"MEMORY_HISTORY_WINDOW",
		"CTA_COOLDOWN",
		"CTA_RATE_WINDOW",
		"CTA_RATE_CAP",
		"COMPLETION_MODE",
		"COMPLETION_HTTP_URL",
		"PERSONA_PATH",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
