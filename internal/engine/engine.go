// Package engine drives one chat turn end to end: load the buyer record,
// fold the utterance into it, brief the completion service, shape the reply,
// and persist. It is the only writer of conversation records.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/countryleisure/rusty/internal/analytics"
	"github.com/countryleisure/rusty/internal/completion"
	"github.com/countryleisure/rusty/internal/journey"
	"github.com/countryleisure/rusty/internal/memory"
	"github.com/countryleisure/rusty/internal/observability"
	"github.com/countryleisure/rusty/internal/phrase"
	"github.com/countryleisure/rusty/internal/policy"
)

var (
	// ErrInvalidInput marks a turn rejected before any state was touched.
	ErrInvalidInput = errors.New("engine: invalid input")
	// ErrCompletionUnavailable marks a turn whose journey state persisted
	// but whose reply never arrived; the caller should ask the user to
	// retry.
	ErrCompletionUnavailable = errors.New("engine: completion unavailable")
)

// RetryReply is the user-visible text for a failed completion call.
const RetryReply = "Sorry, I'm having trouble connecting right now. Please try again."

const persistAttempts = 3

// Options tunes the engine. Zero values fall back to production defaults.
type Options struct {
	Persona         string
	MaxInteractions int
	HistoryWindow   int
	GatePolicy      journey.GatePolicy
	Rand            *rand.Rand
}

// Engine owns the turn pipeline. Safe for concurrent use; turns for the
// same user id are serialized.
type Engine struct {
	store    memory.Store
	client   completion.Client
	banks    phrase.Banks
	selector *phrase.Selector
	recorder analytics.Recorder
	metrics  *observability.Metrics

	persona         string
	maxInteractions int
	historyWindow   int
	gatePolicy      journey.GatePolicy

	locks *userLocks

	randMu sync.Mutex
	rng    *rand.Rand

	lastMu    sync.Mutex
	lastPicks map[string]string
}

func New(store memory.Store, client completion.Client, banks phrase.Banks, recorder analytics.Recorder, metrics *observability.Metrics, opts Options) *Engine {
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = 15
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.GatePolicy == (journey.GatePolicy{}) {
		opts.GatePolicy = journey.DefaultGatePolicy()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if recorder == nil {
		recorder = analytics.NopRecorder{}
	}
	return &Engine{
		store:  store,
		client: client,
		banks:  banks,
		// The selector locks its own source, so it gets a generator of its
		// own; rng stays behind randMu for the chance draws.
		selector:        phrase.NewSelector(rand.New(rand.NewSource(rng.Int63()))),
		recorder:        recorder,
		metrics:         metrics,
		persona:         opts.Persona,
		maxInteractions: opts.MaxInteractions,
		historyWindow:   opts.HistoryWindow,
		gatePolicy:      opts.GatePolicy,
		locks:           newUserLocks(),
		rng:             rng,
		lastPicks:       make(map[string]string),
	}
}

// TurnResult is what the transport layer gets back for one turn.
type TurnResult struct {
	Reply       string              `json:"reply"`
	UserID      string              `json:"user_id"`
	BuyerStage  journey.BuyerStage  `json:"buyer_stage"`
	Engagement  int                 `json:"engagement_level"`
	RenderStage journey.RenderStage `json:"render_status"`
	Record      journey.Record      `json:"-"`
}

// ProcessTurn runs one chat turn. The working copy it mutates becomes
// authoritative only once persisted; on a version conflict the turn is
// recomputed against the fresh record (the heuristics depend only on the
// utterance, so replay is safe). The completion call runs outside any store
// transaction and is made at most once per turn.
func (e *Engine) ProcessTurn(ctx context.Context, userID, userMsg string, now time.Time) (TurnResult, error) {
	userID = strings.TrimSpace(userID)
	userMsg = strings.TrimSpace(userMsg)
	if userID == "" {
		return TurnResult{}, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if userMsg == "" {
		return TurnResult{}, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	e.locks.lock(userID)
	defer e.locks.unlock(userID)

	started := time.Now()

	var (
		completionReply string
		completionErr   error
		completionDone  bool
	)

	for attempt := 0; attempt < persistAttempts; attempt++ {
		record, err := e.store.Load(ctx, userID, now)
		if err != nil {
			e.countTurn("store_error")
			return TurnResult{}, fmt.Errorf("load record for %s: %w", userID, err)
		}

		opening := e.openingMessage(record)
		contextSummary := journey.Summarize(record)

		journey.ResolvePendingCTA(&record, userMsg)
		stageBefore := record.BuyerStage
		record.KeyFacts = journey.ExtractFacts(record.KeyFacts, userMsg)
		record.BuyerStage = journey.AdvanceStage(record.BuyerStage, record.KeyFacts, userMsg)
		record.EngagementLevel = journey.AdvanceEngagement(record.EngagementLevel, userMsg)
		if record.BuyerStage != stageBefore && e.metrics != nil {
			e.metrics.StageTransitions.WithLabelValues(string(record.BuyerStage)).Inc()
		}

		if !completionDone {
			messages := e.buildMessages(record, contextSummary, opening, userMsg)
			resp, err := e.client.Complete(ctx, completion.Request{UserID: userID, Messages: messages})
			completionReply, completionErr = resp.Text, err
			completionDone = true
		}

		if completionErr != nil {
			// The journey mutations depend only on the utterance and stay
			// valid; persist them, but never record a bot turn for a reply
			// that was not delivered.
			if _, err := e.store.Upsert(ctx, record, now); err != nil && !errors.Is(err, memory.ErrVersionConflict) {
				log.Printf("engine: persist after completion failure user=%s stage=%s: %v", userID, record.BuyerStage, err)
			}
			e.countTurn("completion_error")
			log.Printf("engine: completion failed user=%s stage=%s: %v", userID, record.BuyerStage, completionErr)
			return e.result(RetryReply, record), ErrCompletionUnavailable
		}

		reply, ctaKind := e.shapeReply(&record, userMsg, completionReply, now)
		record.AppendInteraction(userMsg, reply, now, e.maxInteractions)

		persisted, err := e.store.Upsert(ctx, record, now)
		if errors.Is(err, memory.ErrVersionConflict) {
			if e.metrics != nil {
				e.metrics.VersionConflicts.Inc()
			}
			continue
		}
		if err != nil {
			e.countTurn("store_error")
			return TurnResult{}, fmt.Errorf("persist record for %s: %w", userID, err)
		}

		e.countTurn("ok")
		if e.metrics != nil {
			e.metrics.ObserveTurnLatency(time.Since(started))
		}
		e.publishAnalytics(userID, userMsg, reply, ctaKind, persisted, started, now)
		return e.result(reply, persisted), nil
	}

	e.countTurn("conflict_exhausted")
	return TurnResult{}, fmt.Errorf("persist record for %s: %w", userID, memory.ErrVersionConflict)
}

// shapeReply layers the conversation intelligence on top of the raw
// completion text: credibility, design philosophy, render workflow, CTA
// gate, stall restart and follow-up. Returns the final reply and the CTA
// kind attempted this turn, if any.
func (e *Engine) shapeReply(record *journey.Record, userMsg, reply string, now time.Time) (string, journey.CTAKind) {
	if journey.WantsCredibility(userMsg) {
		reply += " " + e.pickVaried(record.UserID, "credibility", e.banks.CredibilityLines)
	}

	if line := e.philosophyLine(record, reply); line != "" {
		reply += " " + line
	}

	lowerMsg := strings.ToLower(userMsg)
	if record.RenderRequested || strings.Contains(lowerMsg, "render") || strings.Contains(lowerMsg, "visual") {
		reply = e.applyRenderDirective(record, userMsg, reply)
	}

	attemptedKind := journey.CTANone
	lowerReply := strings.ToLower(reply)
	if !strings.Contains(lowerReply, "render") && !strings.Contains(lowerReply, "consult") {
		if attempt, kind := journey.ShouldAttemptCTA(*record, e.gatePolicy, now); attempt {
			reply += "\n\n" + e.ctaMessage(*record, kind)
			journey.RecordCTAAttempt(record, kind, "pending", now)
			attemptedKind = kind
			if e.metrics != nil {
				e.metrics.CTAAttempts.WithLabelValues(string(kind)).Inc()
			}
		}
	}

	if journey.DetectStall(*record) {
		reply = e.restartMessage(*record)
	}

	if e.chance(0.6) && !strings.HasSuffix(reply, "?") && !strings.Contains(strings.ToLower(reply), "render") {
		reply += " " + e.followUp(record)
	}

	return reply, attemptedKind
}

// philosophyTriggers maps reply themes to a philosophy topic and the odds
// of weaving it in. Evaluated in order; the first keyword hit wins.
var philosophyTriggers = []struct {
	topic    string
	rate     float64
	keywords []string
}{
	{"materials_that_last", 0.3, []string{"cost", "price", "budget", "materials"}},
	{"lighting_mood", 0.4, []string{"lighting"}},
	{"purpose_driven", 0.3, []string{"tanning ledge", "bench", "seating"}},
	{"clean_geometry", 0.3, []string{"modern", "sleek", "minimalist"}},
	{"water_feature", 0.3, []string{"fountain", "water feature", "spillover"}},
}

func philosophyTopic(lowerReply string) (string, float64) {
	for _, trigger := range philosophyTriggers {
		for _, kw := range trigger.keywords {
			if strings.Contains(lowerReply, kw) {
				return trigger.topic, trigger.rate
			}
		}
	}
	return "", 0
}

// philosophyLine weaves one of Rusty's design-philosophy lines into replies
// that touch a matching theme. Purpose lines name the feature under
// discussion and the role it plays for this customer's focus.
func (e *Engine) philosophyLine(record *journey.Record, reply string) string {
	lower := strings.ToLower(reply)
	topic, rate := philosophyTopic(lower)
	if topic == "" || !e.chance(rate) {
		return ""
	}
	line := e.pickVaried(record.UserID, "philosophy_"+topic, e.banks.Philosophy[topic])
	if topic == "purpose_driven" {
		feature := "bench seating"
		if strings.Contains(lower, "ledge") {
			feature = "tanning ledge"
		}
		line = fmt.Sprintf(line, feature, purposeFunction(record.KeyFacts.Focus))
	}
	return line
}

func purposeFunction(focus string) string {
	switch focus {
	case "entertaining":
		return "perfect gathering spot"
	case "relaxation":
		return "personal retreat space"
	case "family":
		return "safe play area"
	case "both":
		return "versatile space"
	default:
		return "gathering place"
	}
}

// followUp picks the question that fills the biggest gap in what we know at
// this stage, falling back to general variety once the gaps are covered.
func (e *Engine) followUp(record *journey.Record) string {
	facts := record.KeyFacts
	switch {
	case record.BuyerStage == journey.StageBrowsing && len(record.Interactions) <= 3:
		return e.pickVaried(record.UserID, "followup_explore", e.banks.ExploreFollowUps)
	case record.BuyerStage == journey.StageInterested && facts.PreferredSize == "":
		return e.pickVaried(record.UserID, "followup_size", e.banks.SizeFollowUps)
	case record.BuyerStage == journey.StageInterested && facts.Focus == "":
		return e.pickVaried(record.UserID, "followup_focus", e.banks.FocusFollowUps)
	case record.BuyerStage == journey.StageInterested && len(facts.Features) == 0:
		return e.pickVaried(record.UserID, "followup_features", e.banks.FeatureFollowUps)
	case record.BuyerStage == journey.StageConsidering && !facts.TimelineInterest:
		return e.pickVaried(record.UserID, "followup_timeline", e.banks.TimelineFollowUps)
	default:
		return e.pickVaried(record.UserID, "followup", e.banks.FollowUps)
	}
}

func (e *Engine) applyRenderDirective(record *journey.Record, userMsg, reply string) string {
	directive := journey.AdvanceRenderWorkflow(record, userMsg)
	switch {
	case directive.Completed:
		reply += " Perfect! I've got everything I need. We'll get started on your render and have it ready in 2-3 business days."
		if e.metrics != nil {
			e.metrics.RenderCompleted.Inc()
		}
	case directive.RequestAllFields:
		reply += " " + e.pickVaried(record.UserID, "contact_collection", e.banks.ContactCollection)
		reply += " " + e.pickVaried(record.UserID, "render_timeline", e.banks.RenderTimelines)
	case directive.OfferPartial:
		reply += " " + e.pickVaried(record.UserID, "partial_offer", e.banks.PartialInfoOffers)
	case len(directive.MissingFields) > 0:
		reply += " " + e.banks.MissingFieldsPrompt(e.selector, e.lastPick(record.UserID, "contact_collection"), directive.MissingFields)
		if directive.SoftApproach {
			reply += " " + e.pickVaried(record.UserID, "soft_approach", e.banks.SoftApproaches)
		}
	}
	return reply
}

func (e *Engine) ctaMessage(record journey.Record, kind journey.CTAKind) string {
	switch kind {
	case journey.CTAConsult:
		msg := e.pickVaried(record.UserID, "consult_cta", e.banks.ConsultCTAs)
		if suffix, ok := e.banks.ConsultFocusSuffix[record.KeyFacts.Focus]; ok {
			msg += suffix
		}
		return msg
	case journey.CTARender:
		item := phrase.SpecificRenderItem(record.KeyFacts.PreferredSize, record.KeyFacts.Features)
		template := e.pickVaried(record.UserID, "render_cta", e.banks.RenderCTAs)
		return fmt.Sprintf(template, item)
	default:
		return ""
	}
}

func (e *Engine) restartMessage(record journey.Record) string {
	msg := e.pickVaried(record.UserID, "restart", e.banks.RestartLines)
	switch {
	case record.KeyFacts.BudgetConscious:
		msg += " Is it mainly about cost and value?"
	case record.KeyFacts.SpaceConcerns:
		msg += " Is it about whether it'll work in your space?"
	case record.KeyFacts.Count() == 0:
		msg += " I want to make sure I'm giving you the right information."
	}
	return msg
}

// pickVaried selects from a bank excluding the previous pick for this user
// and bank, so consecutive turns never repeat wording.
func (e *Engine) pickVaried(userID, bankKey string, bank []string) string {
	key := userID + ":" + bankKey

	e.lastMu.Lock()
	previous := e.lastPicks[key]
	e.lastMu.Unlock()

	choice := e.selector.Pick(bank, previous)

	e.lastMu.Lock()
	e.lastPicks[key] = choice
	e.lastMu.Unlock()
	return choice
}

func (e *Engine) lastPick(userID, bankKey string) string {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	return e.lastPicks[userID+":"+bankKey]
}

func (e *Engine) chance(p float64) bool {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rng.Float64() < p
}

func (e *Engine) countTurn(outcome string) {
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) result(reply string, record journey.Record) TurnResult {
	return TurnResult{
		Reply:       reply,
		UserID:      record.UserID,
		BuyerStage:  record.BuyerStage,
		Engagement:  record.EngagementLevel,
		RenderStage: journey.RenderStageOf(record),
		Record:      record,
	}
}

// publishAnalytics ships the scrubbed turn to the analytics log without
// blocking or failing the turn.
func (e *Engine) publishAnalytics(userID, userMsg, reply string, ctaKind journey.CTAKind, record journey.Record, started time.Time, now time.Time) {
	userScrubbed, _ := policy.ScrubPII(userMsg)
	replyScrubbed, _ := policy.ScrubPII(reply)
	turn := analytics.TurnEvent{
		UserID:      userID,
		UserText:    userScrubbed,
		BotText:     replyScrubbed,
		LatencyMS:   time.Since(started).Milliseconds(),
		RecordedAt:  now,
		BuyerStage:  string(record.BuyerStage),
		RenderStage: string(journey.RenderStageOf(record)),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.recorder.RecordTurn(ctx, turn); err != nil {
			log.Printf("engine: analytics turn record user=%s: %v", userID, err)
		}
		if ctaKind != journey.CTANone {
			event := analytics.CTAEvent{UserID: userID, Kind: string(ctaKind), Outcome: "pending", RecordedAt: now}
			if err := e.recorder.RecordCTA(ctx, event); err != nil {
				log.Printf("engine: analytics cta record user=%s: %v", userID, err)
			}
		}
	}()
}
