package memory

import (
	"context"
	"sync"
	"time"

	"github.com/countryleisure/rusty/internal/journey"
)

// InMemoryStore is a simple in-process record store for local/dev use and
// tests. It honors the same version contract as the postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]journey.Record
	expiry  time.Duration
}

func NewInMemoryStore(expiry time.Duration) *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]journey.Record),
		expiry:  expiry,
	}
}

func (s *InMemoryStore) Load(_ context.Context, userID string, now time.Time) (journey.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[userID]
	if !ok || r.Expired(now, s.expiry) {
		// An expired row behaves like a brand-new id; the sweep removes
		// the stale row itself.
		return journey.NewRecord(userID, now), nil
	}
	out := r.Clone()
	out.Normalize(now)
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, record journey.Record, now time.Time) (journey.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[record.UserID]
	switch {
	case !exists && record.Version != 0:
		return journey.Record{}, ErrVersionConflict
	case exists && current.Version != record.Version:
		// A fresh working copy (version 0) over a live-but-expired row is
		// allowed to replace it; everything else is a lost-update race.
		if !(record.Version == 0 && current.Expired(now, s.expiry)) {
			return journey.Record{}, ErrVersionConflict
		}
	}

	record.LastUpdatedAt = now
	record.Version++
	s.records[record.UserID] = record.Clone()
	return record, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *InMemoryStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, r := range s.records {
		if r.Expired(now, s.expiry) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) ExportCompletedRenders(_ context.Context) ([]journey.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []journey.Record
	for _, r := range s.records {
		if r.RenderRequested && r.RenderStatus == journey.RenderStatusComplete {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) Overview(_ context.Context, now time.Time) (Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overview := Overview{ByStage: make(map[journey.BuyerStage]int64)}
	for _, r := range s.records {
		overview.TotalUsers++
		if now.Sub(r.LastUpdatedAt) <= 7*24*time.Hour {
			overview.ActiveLastWeek++
		}
		if r.RenderRequested {
			overview.RenderRequests++
		}
		overview.ByStage[r.BuyerStage]++
	}
	return overview, nil
}

func (s *InMemoryStore) Close() error { return nil }
