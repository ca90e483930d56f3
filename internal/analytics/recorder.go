// Package analytics writes an append-only log of raw turns and CTA events
// for offline analysis. It is fire-and-forget: recording failures are
// logged and never affect the chat turn.
package analytics

import (
	"context"
	"time"
)

// TurnEvent is one user/assistant exchange as seen by the analytics log.
// Content arrives already scrubbed of PII.
type TurnEvent struct {
	UserID      string
	UserText    string
	BotText     string
	LatencyMS   int64
	RecordedAt  time.Time
	BuyerStage  string
	RenderStage string
}

// CTAEvent is one recorded nudge.
type CTAEvent struct {
	UserID     string
	Kind       string
	Outcome    string
	RecordedAt time.Time
}

// Recorder appends events to the analytics log.
type Recorder interface {
	RecordTurn(ctx context.Context, event TurnEvent) error
	RecordCTA(ctx context.Context, event CTAEvent) error
	Close() error
}

// NopRecorder drops everything; used when no analytics database is
// configured.
type NopRecorder struct{}

func (NopRecorder) RecordTurn(context.Context, TurnEvent) error { return nil }
func (NopRecorder) RecordCTA(context.Context, CTAEvent) error   { return nil }
func (NopRecorder) Close() error                                { return nil }
