package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/countryleisure/rusty/internal/analytics"
	"github.com/countryleisure/rusty/internal/completion"
	"github.com/countryleisure/rusty/internal/config"
	"github.com/countryleisure/rusty/internal/engine"
	"github.com/countryleisure/rusty/internal/httpapi"
	"github.com/countryleisure/rusty/internal/journey"
	"github.com/countryleisure/rusty/internal/memory"
	"github.com/countryleisure/rusty/internal/observability"
	"github.com/countryleisure/rusty/internal/phrase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.MemoryExpiry)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("memory store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("memory store: postgres")
	}

	var recorder analytics.Recorder = analytics.NopRecorder{}
	if cfg.AnalyticsURL != "" {
		pg, err := analytics.NewPostgresRecorder(ctx, cfg.AnalyticsURL, cfg.AnalyticsBot)
		if err != nil {
			log.Fatalf("analytics recorder init failed: %v", err)
		}
		recorder = pg
		log.Printf("analytics recorder: postgres (bot=%s)", cfg.AnalyticsBot)
	}
	defer recorder.Close()

	client, err := completion.NewClient(completion.Config{
		Mode:    cfg.CompletionMode,
		HTTPURL: cfg.CompletionHTTPURL,
	})
	if err != nil {
		log.Fatalf("completion client init failed: %v", err)
	}

	persona := ""
	if cfg.PersonaPath != "" {
		raw, err := os.ReadFile(cfg.PersonaPath)
		if err != nil {
			log.Fatalf("persona file read failed: %v", err)
		}
		persona = strings.TrimSpace(string(raw))
	}

	eng := engine.New(store, client, phrase.DefaultBanks(), recorder, metrics, engine.Options{
		Persona:         persona,
		MaxInteractions: cfg.MaxInteractions,
		HistoryWindow:   cfg.HistoryWindow,
		GatePolicy: journey.GatePolicy{
			Cooldown:   cfg.CTACooldown,
			RateWindow: cfg.CTARateWindow,
			RateCap:    cfg.CTARateCap,
		},
	})

	api := httpapi.New(cfg, eng, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	eng.StartSweeper(runCtx, cfg.SweepInterval)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
