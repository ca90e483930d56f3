package journey

import (
	"testing"
	"time"
)

func TestNewRecordDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := NewRecord("u1", now)

	if record.BuyerStage != StageBrowsing {
		t.Fatalf("BuyerStage = %s, want %s", record.BuyerStage, StageBrowsing)
	}
	if record.EngagementLevel != 1 {
		t.Fatalf("EngagementLevel = %d, want 1", record.EngagementLevel)
	}
	if !record.CreatedAt.Equal(now) || !record.LastUpdatedAt.Equal(now) {
		t.Fatalf("timestamps = (%v, %v), want %v", record.CreatedAt, record.LastUpdatedAt, now)
	}
}

func TestNormalizeBackfillsCorruptFields(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := Record{
		UserID:          "u1",
		BuyerStage:      "galactic",
		EngagementLevel: 42,
		RenderStatus:    "exploded",
	}
	record.Normalize(now)

	if record.BuyerStage != StageBrowsing {
		t.Fatalf("BuyerStage = %s, want %s", record.BuyerStage, StageBrowsing)
	}
	if record.EngagementLevel != 5 {
		t.Fatalf("EngagementLevel = %d, want clamped 5", record.EngagementLevel)
	}
	if record.RenderStatus != RenderStatusNone {
		t.Fatalf("RenderStatus = %q, want none", record.RenderStatus)
	}
	if record.CreatedAt.IsZero() || record.LastUpdatedAt.IsZero() {
		t.Fatalf("timestamps not backfilled: %+v", record)
	}

	record.EngagementLevel = 0
	record.Normalize(now)
	if record.EngagementLevel != 1 {
		t.Fatalf("EngagementLevel = %d, want raised to 1", record.EngagementLevel)
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 90 * 24 * time.Hour

	record := NewRecord("u1", now.Add(-window).Add(time.Minute))
	if record.Expired(now, window) {
		t.Fatalf("Expired just inside the window = true, want false")
	}

	record.LastUpdatedAt = now.Add(-window).Add(-time.Minute)
	if !record.Expired(now, window) {
		t.Fatalf("Expired just outside the window = false, want true")
	}

	if record.Expired(now, 0) {
		t.Fatalf("Expired with zero window = true, want false")
	}
}

func TestAppendInteractionFIFOCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := NewRecord("u1", now)

	for i := 0; i < 20; i++ {
		record.AppendInteraction(string(rune('a'+i)), "reply", now, 15)
	}
	if len(record.Interactions) != 15 {
		t.Fatalf("len(Interactions) = %d, want 15", len(record.Interactions))
	}
	if record.Interactions[0].User != "f" {
		t.Fatalf("oldest kept = %q, want %q (first five evicted)", record.Interactions[0].User, "f")
	}
	if record.Interactions[14].User != "t" {
		t.Fatalf("newest = %q, want %q", record.Interactions[14].User, "t")
	}
}

func TestRecentInteractions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := NewRecord("u1", now)
	for i := 0; i < 12; i++ {
		record.AppendInteraction(string(rune('a'+i)), "reply", now, 15)
	}

	recent := record.RecentInteractions(10)
	if len(recent) != 10 {
		t.Fatalf("len(recent) = %d, want 10", len(recent))
	}
	if recent[0].User != "c" || recent[9].User != "l" {
		t.Fatalf("recent window = [%q..%q], want [c..l]", recent[0].User, recent[9].User)
	}

	all := record.RecentInteractions(0)
	if len(all) != 12 {
		t.Fatalf("RecentInteractions(0) returned %d, want all 12", len(all))
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	record := NewRecord("u1", now)
	record.KeyFacts.Features = []string{"lighting"}
	record.AppendInteraction("hi", "hello", now, 15)
	record.LastCTAAttempt = &now

	clone := record.Clone()
	clone.KeyFacts.Features[0] = "jets"
	clone.Interactions[0].User = "changed"
	*clone.LastCTAAttempt = now.Add(time.Hour)

	if record.KeyFacts.Features[0] != "lighting" {
		t.Fatalf("Features shared with clone: %v", record.KeyFacts.Features)
	}
	if record.Interactions[0].User != "hi" {
		t.Fatalf("Interactions shared with clone: %v", record.Interactions)
	}
	if !record.LastCTAAttempt.Equal(now) {
		t.Fatalf("LastCTAAttempt shared with clone: %v", record.LastCTAAttempt)
	}
}
