package memory

import (
	"context"
	"errors"
	"time"

	"github.com/countryleisure/rusty/internal/journey"
)

// ErrVersionConflict reports a lost optimistic-concurrency race: another
// writer persisted the record after this working copy was loaded. Callers
// reload and re-apply.
var ErrVersionConflict = errors.New("memory: record version conflict")

// Overview is the aggregate admin projection across all records.
type Overview struct {
	TotalUsers     int64                        `json:"total_users"`
	ActiveLastWeek int64                        `json:"active_users_7days"`
	RenderRequests int64                        `json:"render_requests"`
	ByStage        map[journey.BuyerStage]int64 `json:"buyer_stages"`
}

// Store persists conversation records, one row per user id. Load never
// fails on an unknown or expired id; it returns a defaulted record instead.
// Upsert is atomic per record and guarded by the record's version.
type Store interface {
	Load(ctx context.Context, userID string, now time.Time) (journey.Record, error)
	Upsert(ctx context.Context, record journey.Record, now time.Time) (journey.Record, error)
	Delete(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	ExportCompletedRenders(ctx context.Context) ([]journey.Record, error)
	Overview(ctx context.Context, now time.Time) (Overview, error)
	Close() error
}
