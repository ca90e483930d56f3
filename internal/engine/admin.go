package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/countryleisure/rusty/internal/journey"
	"github.com/countryleisure/rusty/internal/memory"
)

// UserStats is the read-only per-user projection for surrounding tooling.
type UserStats struct {
	UserID            string              `json:"user_id"`
	TotalInteractions int                 `json:"total_interactions"`
	KeyFacts          journey.KeyFacts    `json:"key_facts"`
	BuyerStage        journey.BuyerStage  `json:"buyer_stage"`
	EngagementLevel   int                 `json:"engagement_level"`
	RenderRequested   bool                `json:"render_requested"`
	RenderStage       journey.RenderStage `json:"render_stage"`
	MissingFields     []string            `json:"missing_fields,omitempty"`
	CTAAttempts       int                 `json:"cta_attempts"`
	LastActive        time.Time           `json:"last_active"`
	ContextSummary    string              `json:"context_summary"`
}

// Stats returns the projection for one user. Unknown ids project a fresh
// record.
func (e *Engine) Stats(ctx context.Context, userID string, now time.Time) (UserStats, error) {
	record, err := e.store.Load(ctx, userID, now)
	if err != nil {
		return UserStats{}, fmt.Errorf("load record for stats %s: %w", userID, err)
	}
	stats := UserStats{
		UserID:            record.UserID,
		TotalInteractions: len(record.Interactions),
		KeyFacts:          record.KeyFacts,
		BuyerStage:        record.BuyerStage,
		EngagementLevel:   record.EngagementLevel,
		RenderRequested:   record.RenderRequested,
		RenderStage:       journey.RenderStageOf(record),
		CTAAttempts:       len(record.CTAAttempts),
		LastActive:        record.LastUpdatedAt,
		ContextSummary:    journey.Summarize(record),
	}
	if record.RenderRequested && record.RenderStatus != journey.RenderStatusComplete {
		stats.MissingFields = record.ContactInfo.Missing()
	}
	return stats, nil
}

// Reset hard-deletes a user's record.
func (e *Engine) Reset(ctx context.Context, userID string) error {
	e.locks.lock(userID)
	defer e.locks.unlock(userID)
	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset record %s: %w", userID, err)
	}
	return nil
}

// Sweep removes expired records. Idempotent and safe alongside live
// traffic.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int64, error) {
	removed, err := e.store.SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	if removed > 0 && e.metrics != nil {
		e.metrics.SweepDeleted.Add(float64(removed))
	}
	return removed, nil
}

// ExportRenders returns all records whose render collection completed.
func (e *Engine) ExportRenders(ctx context.Context) ([]journey.Record, error) {
	return e.store.ExportCompletedRenders(ctx)
}

// Overview returns the aggregate record statistics.
func (e *Engine) Overview(ctx context.Context, now time.Time) (memory.Overview, error) {
	return e.store.Overview(ctx, now)
}

// SetRenderStatus is the out-of-band fulfillment hook: the render team
// marks a request in_progress while building and complete when delivered.
func (e *Engine) SetRenderStatus(ctx context.Context, userID string, status journey.RenderStatus, now time.Time) (journey.Record, error) {
	switch status {
	case journey.RenderStatusInProgress, journey.RenderStatusComplete:
	default:
		return journey.Record{}, fmt.Errorf("%w: render status %q not externally settable", ErrInvalidInput, status)
	}

	e.locks.lock(userID)
	defer e.locks.unlock(userID)

	record, err := e.store.Load(ctx, userID, now)
	if err != nil {
		return journey.Record{}, fmt.Errorf("load record %s: %w", userID, err)
	}
	if !record.RenderRequested {
		return journey.Record{}, fmt.Errorf("%w: no render requested for %s", ErrInvalidInput, userID)
	}
	record.RenderStatus = status
	persisted, err := e.store.Upsert(ctx, record, now)
	if err != nil {
		return journey.Record{}, fmt.Errorf("persist render status %s: %w", userID, err)
	}
	return persisted, nil
}

// RecordCTAOutcome applies an explicit CTA response (used by tooling and
// click-through callbacks rather than the chat flow).
func (e *Engine) RecordCTAOutcome(ctx context.Context, userID string, kind journey.CTAKind, outcome string, now time.Time) (journey.Record, error) {
	if kind != journey.CTAConsult && kind != journey.CTARender {
		return journey.Record{}, fmt.Errorf("%w: unknown cta kind %q", ErrInvalidInput, kind)
	}
	if strings.TrimSpace(outcome) == "" {
		return journey.Record{}, fmt.Errorf("%w: empty cta outcome", ErrInvalidInput)
	}

	e.locks.lock(userID)
	defer e.locks.unlock(userID)

	record, err := e.store.Load(ctx, userID, now)
	if err != nil {
		return journey.Record{}, fmt.Errorf("load record %s: %w", userID, err)
	}
	journey.RecordCTAAttempt(&record, kind, outcome, now)
	persisted, err := e.store.Upsert(ctx, record, now)
	if err != nil {
		return journey.Record{}, fmt.Errorf("persist cta outcome %s: %w", userID, err)
	}
	return persisted, nil
}

// StartSweeper runs the expiry sweep on a fixed interval until the context
// ends.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := e.Sweep(ctx, time.Now().UTC()); err != nil {
					log.Printf("engine: sweep failed: %v", err)
				} else if removed > 0 {
					log.Printf("engine: sweep removed %d expired records", removed)
				}
			}
		}
	}()
}
