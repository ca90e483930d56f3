package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/countryleisure/rusty/internal/completion"
	"github.com/countryleisure/rusty/internal/journey"
	"github.com/countryleisure/rusty/internal/memory"
	"github.com/countryleisure/rusty/internal/phrase"
)

const testExpiry = 90 * 24 * time.Hour

func newTestEngine(store memory.Store, client completion.Client) *Engine {
	return New(store, client, phrase.DefaultBanks(), nil, nil, Options{
		Rand: rand.New(rand.NewSource(42)),
	})
}

type failingClient struct{ err error }

func (c failingClient) Complete(context.Context, completion.Request) (completion.Response, error) {
	return completion.Response{}, c.err
}

type countingClient struct {
	calls int
	inner completion.Client
}

func (c *countingClient) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	c.calls++
	return c.inner.Complete(ctx, req)
}

// conflictingStore fails the first n upserts with a version conflict.
type conflictingStore struct {
	memory.Store
	remaining int
}

func (s *conflictingStore) Upsert(ctx context.Context, record journey.Record, now time.Time) (journey.Record, error) {
	if s.remaining > 0 {
		s.remaining--
		return journey.Record{}, memory.ErrVersionConflict
	}
	return s.Store.Upsert(ctx, record, now)
}

func TestProcessTurnRejectsInvalidInput(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := eng.ProcessTurn(ctx, "", "hello", now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ProcessTurn(no user) error = %v, want ErrInvalidInput", err)
	}
	if _, err := eng.ProcessTurn(ctx, "u1", "   ", now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ProcessTurn(blank message) error = %v, want ErrInvalidInput", err)
	}

	// Nothing was persisted.
	record, _ := store.Load(ctx, "u1", now)
	if record.Version != 0 {
		t.Fatalf("record persisted for rejected turn: %+v", record)
	}
}

func TestProcessTurnPersistsJourneyState(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()
	now := time.Now().UTC()

	result, err := eng.ProcessTurn(ctx, "u1", "What's the price for a 12x24 with a tanning ledge? I'm worried about my small backyard", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.Reply == "" {
		t.Fatalf("ProcessTurn() returned empty reply")
	}
	if result.BuyerStage != journey.StageInterested {
		t.Fatalf("BuyerStage = %s, want %s", result.BuyerStage, journey.StageInterested)
	}

	record, _ := store.Load(ctx, "u1", now)
	if record.Version != 1 {
		t.Fatalf("record Version = %d, want 1", record.Version)
	}
	if len(record.Interactions) != 1 {
		t.Fatalf("len(Interactions) = %d, want 1", len(record.Interactions))
	}
	if !record.KeyFacts.BudgetConscious || record.KeyFacts.PreferredSize != "12x24" || !record.KeyFacts.SpaceConcerns {
		t.Fatalf("KeyFacts = %+v, want budget, size and space captured", record.KeyFacts)
	}
	if !record.KeyFacts.HasFeature("tanning ledge") {
		t.Fatalf("Features = %v, want tanning ledge", record.KeyFacts.Features)
	}
}

func TestProcessTurnCompletionFailure(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, failingClient{err: errors.New("service down")})
	ctx := context.Background()
	now := time.Now().UTC()

	result, err := eng.ProcessTurn(ctx, "u1", "what does a 12x24 cost?", now)
	if !errors.Is(err, ErrCompletionUnavailable) {
		t.Fatalf("ProcessTurn() error = %v, want ErrCompletionUnavailable", err)
	}
	if result.Reply != RetryReply {
		t.Fatalf("Reply = %q, want the retry line", result.Reply)
	}

	// Journey mutations survive; the failed exchange does not.
	record, _ := store.Load(ctx, "u1", now)
	if record.Version != 1 {
		t.Fatalf("record Version = %d, want journey state persisted", record.Version)
	}
	if record.BuyerStage != journey.StageInterested {
		t.Fatalf("BuyerStage = %s, want %s persisted", record.BuyerStage, journey.StageInterested)
	}
	if len(record.Interactions) != 0 {
		t.Fatalf("Interactions = %+v, want none for an undelivered reply", record.Interactions)
	}
}

func TestProcessTurnRetriesOnVersionConflict(t *testing.T) {
	inner := memory.NewInMemoryStore(testExpiry)
	store := &conflictingStore{Store: inner, remaining: 1}
	client := &countingClient{inner: completion.NewMockClient()}
	eng := newTestEngine(store, client)
	ctx := context.Background()
	now := time.Now().UTC()

	result, err := eng.ProcessTurn(ctx, "u1", "hi there", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v, want retry to succeed", err)
	}
	if result.Record.Version != 1 {
		t.Fatalf("Version = %d, want 1 after successful retry", result.Record.Version)
	}
	if client.calls != 1 {
		t.Fatalf("completion called %d times, want 1 (cached across retries)", client.calls)
	}
}

func TestProcessTurnConflictExhaustion(t *testing.T) {
	inner := memory.NewInMemoryStore(testExpiry)
	store := &conflictingStore{Store: inner, remaining: persistAttempts}
	eng := newTestEngine(store, completion.NewMockClient())

	_, err := eng.ProcessTurn(context.Background(), "u1", "hi", time.Now().UTC())
	if !errors.Is(err, memory.ErrVersionConflict) {
		t.Fatalf("ProcessTurn() error = %v, want ErrVersionConflict after exhaustion", err)
	}
}

func TestProcessTurnConsultCTAAndResolution(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()
	now := time.Now().UTC()

	seed := journey.NewRecord("u1", now)
	seed.BuyerStage = journey.StageConsidering
	seed.EngagementLevel = 3
	if _, err := store.Upsert(ctx, seed, now); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	result, err := eng.ProcessTurn(ctx, "u1", "sounds good to me", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if len(result.Record.CTAAttempts) != 1 {
		t.Fatalf("CTAAttempts = %+v, want one pending consult", result.Record.CTAAttempts)
	}
	attempt := result.Record.CTAAttempts[0]
	if attempt.Kind != journey.CTAConsult || attempt.Outcome != "pending" {
		t.Fatalf("attempt = %+v, want pending consult", attempt)
	}

	// The affirmative next turn resolves the pending attempt and advances
	// the buyer to ready.
	later := now.Add(10 * time.Minute)
	result, err = eng.ProcessTurn(ctx, "u1", "yes that works", later)
	if err != nil {
		t.Fatalf("ProcessTurn(resolution) error = %v", err)
	}
	if result.Record.CTAAttempts[0].Outcome != "yes that works" {
		t.Fatalf("Outcome = %q, want folded response", result.Record.CTAAttempts[0].Outcome)
	}
	if result.BuyerStage != journey.StageReady {
		t.Fatalf("BuyerStage = %s, want %s after affirmative consult", result.BuyerStage, journey.StageReady)
	}
}

func TestProcessTurnCTACooldownHolds(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()
	now := time.Now().UTC()

	seed := journey.NewRecord("u1", now)
	seed.BuyerStage = journey.StageConsidering
	seed.EngagementLevel = 3
	recent := now.Add(-time.Minute)
	seed.LastCTAAttempt = &recent
	seed.CTAAttempts = []journey.CTAAttempt{{Timestamp: recent, Kind: journey.CTAConsult, Outcome: "declined"}}
	if _, err := store.Upsert(ctx, seed, now); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	result, err := eng.ProcessTurn(ctx, "u1", "sounds good to me", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if len(result.Record.CTAAttempts) != 1 {
		t.Fatalf("CTAAttempts = %+v, want no new attempt within cooldown", result.Record.CTAAttempts)
	}
}

func TestProcessTurnRenderCollectionFlow(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()
	now := time.Now().UTC()

	seed := journey.NewRecord("u1", now)
	seed.RenderRequested = true
	seed.RenderStatus = journey.RenderStatusInfoNeeded
	seed.EngagementLevel = 3
	if _, err := store.Upsert(ctx, seed, now); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	// First collection turn asks for everything.
	result, err := eng.ProcessTurn(ctx, "u1", "ok how do we start", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.RenderStage != journey.RenderInfoNeeded {
		t.Fatalf("RenderStage = %s, want %s", result.RenderStage, journey.RenderInfoNeeded)
	}
	if !strings.Contains(strings.ToLower(result.Reply), "name") {
		t.Fatalf("Reply = %q, want a contact request", result.Reply)
	}

	// Fields arrive over two turns.
	now = now.Add(time.Minute)
	result, err = eng.ProcessTurn(ctx, "u1", "I'm Jordan Banks, email jordan@example.com", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.RenderStage != journey.RenderCollectingInfo {
		t.Fatalf("RenderStage = %s, want %s", result.RenderStage, journey.RenderCollectingInfo)
	}

	now = now.Add(time.Minute)
	result, err = eng.ProcessTurn(ctx, "u1", "phone is 405-555-0123 and I just sent the photo", now)
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.RenderStage != journey.RenderComplete {
		t.Fatalf("RenderStage = %s, want %s", result.RenderStage, journey.RenderComplete)
	}

	record, _ := store.Load(ctx, "u1", now)
	if record.ContactInfo.Name != "Jordan Banks" || record.ContactInfo.Phone != "405-555-0123" {
		t.Fatalf("ContactInfo = %+v, want collected fields", record.ContactInfo)
	}
	if record.RenderStatus != journey.RenderStatusComplete {
		t.Fatalf("RenderStatus = %q, want %q", record.RenderStatus, journey.RenderStatusComplete)
	}
}

func TestProcessTurnSerializesSameUser(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()

	const turns = 20
	done := make(chan error, turns)
	for i := 0; i < turns; i++ {
		go func() {
			_, err := eng.ProcessTurn(ctx, "u1", "hello there friend", time.Now().UTC())
			done <- err
		}()
	}
	for i := 0; i < turns; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent ProcessTurn() error = %v", err)
		}
	}

	record, _ := store.Load(ctx, "u1", time.Now().UTC())
	if len(record.Interactions) != 15 {
		t.Fatalf("len(Interactions) = %d, want capped 15 from %d turns", len(record.Interactions), turns)
	}
	if record.Version != turns {
		t.Fatalf("Version = %d, want %d (every turn persisted exactly once)", record.Version, turns)
	}
}

// Different users are not serialized against each other, so their turns
// drive the phrase selection paths at the same time.
func TestProcessTurnConcurrentUsers(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	ctx := context.Background()

	const users = 8
	const turnsPerUser = 20
	done := make(chan error, users*turnsPerUser)
	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("u%d", i)
		for j := 0; j < turnsPerUser; j++ {
			go func() {
				_, err := eng.ProcessTurn(ctx, userID, "what does the lighting package cost?", time.Now().UTC())
				done <- err
			}()
		}
	}
	for i := 0; i < users*turnsPerUser; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent ProcessTurn() error = %v", err)
		}
	}

	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("u%d", i)
		record, _ := store.Load(ctx, userID, time.Now().UTC())
		if record.Version != turnsPerUser {
			t.Fatalf("user %s Version = %d, want %d", userID, record.Version, turnsPerUser)
		}
	}
}

func TestPhilosophyTopic(t *testing.T) {
	tests := []struct {
		reply string
		topic string
	}{
		{"The 12x24 price starts at $65,000.", "materials_that_last"},
		{"The lighting package is included with both sizes.", "lighting_mood"},
		{"A tanning ledge runs about $2,400.", "purpose_driven"},
		{"We keep the design modern and simple.", "clean_geometry"},
		{"A spillover adds a little motion to the water.", "water_feature"},
		{"Happy to help with that.", ""},
	}

	for _, tt := range tests {
		topic, _ := philosophyTopic(strings.ToLower(tt.reply))
		if topic != tt.topic {
			t.Fatalf("philosophyTopic(%q) = %q, want %q", tt.reply, topic, tt.topic)
		}
	}
}

func TestPhilosophyLinePurposeDriven(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())

	record := journey.NewRecord("u1", time.Now().UTC())
	record.KeyFacts.Focus = "family"

	// The injection is chance-gated, so draw until it fires.
	var line string
	for i := 0; i < 200 && line == ""; i++ {
		line = eng.philosophyLine(&record, "A tanning ledge fits nicely along that side.")
	}
	if line == "" {
		t.Fatalf("philosophyLine never fired across 200 draws")
	}
	if !strings.Contains(line, "tanning ledge") || !strings.Contains(line, "safe play area") {
		t.Fatalf("line = %q, want the feature and its role woven in", line)
	}
	if strings.Contains(line, "%s") {
		t.Fatalf("line = %q, placeholder left unformatted", line)
	}
}

func TestPhilosophyLineStaysQuietOffTheme(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	record := journey.NewRecord("u1", time.Now().UTC())

	for i := 0; i < 50; i++ {
		if line := eng.philosophyLine(&record, "Happy to help with that."); line != "" {
			t.Fatalf("philosophyLine = %q, want none for an off-theme reply", line)
		}
	}
}

func TestFollowUpTargetsKnowledgeGaps(t *testing.T) {
	store := memory.NewInMemoryStore(testExpiry)
	eng := newTestEngine(store, completion.NewMockClient())
	now := time.Now().UTC()

	fromBank := func(bank []string, got string) bool {
		for _, variant := range bank {
			if got == variant {
				return true
			}
		}
		return false
	}

	record := journey.NewRecord("u1", now)
	if got := eng.followUp(&record); !fromBank(eng.banks.ExploreFollowUps, got) {
		t.Fatalf("followUp(new browsing) = %q, want an exploration prompt", got)
	}

	record.BuyerStage = journey.StageInterested
	if got := eng.followUp(&record); !fromBank(eng.banks.SizeFollowUps, got) {
		t.Fatalf("followUp(interested, no size) = %q, want a size prompt", got)
	}

	record.KeyFacts.PreferredSize = "12x24"
	if got := eng.followUp(&record); !fromBank(eng.banks.FocusFollowUps, got) {
		t.Fatalf("followUp(interested, no focus) = %q, want a focus prompt", got)
	}

	record.KeyFacts.Focus = "family"
	if got := eng.followUp(&record); !fromBank(eng.banks.FeatureFollowUps, got) {
		t.Fatalf("followUp(interested, no features) = %q, want a feature prompt", got)
	}

	record.KeyFacts.Features = []string{"jets"}
	if got := eng.followUp(&record); !fromBank(eng.banks.FollowUps, got) {
		t.Fatalf("followUp(interested, facts known) = %q, want a general prompt", got)
	}

	record.BuyerStage = journey.StageConsidering
	if got := eng.followUp(&record); !fromBank(eng.banks.TimelineFollowUps, got) {
		t.Fatalf("followUp(considering, no timeline) = %q, want a timeline prompt", got)
	}

	record.KeyFacts.TimelineInterest = true
	if got := eng.followUp(&record); !fromBank(eng.banks.FollowUps, got) {
		t.Fatalf("followUp(considering, timeline known) = %q, want a general prompt", got)
	}
}
