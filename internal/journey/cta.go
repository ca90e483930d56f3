package journey

import (
	"strings"
	"time"
)

// GatePolicy carries the timing knobs for CTA gating.
type GatePolicy struct {
	Cooldown   time.Duration
	RateWindow time.Duration
	RateCap    int
}

// DefaultGatePolicy mirrors the production tuning: one nudge per five
// minutes, at most two per rolling hour.
func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		Cooldown:   5 * time.Minute,
		RateWindow: time.Hour,
		RateCap:    2,
	}
}

// ShouldAttemptCTA decides whether to nudge and with which kind. Rules run
// in order and the first satisfied one wins: cooldown refusal, rolling-window
// rate cap refusal, then the stage/engagement ladder.
func ShouldAttemptCTA(r Record, policy GatePolicy, now time.Time) (bool, CTAKind) {
	if r.LastCTAAttempt != nil && now.Sub(*r.LastCTAAttempt) < policy.Cooldown {
		return false, CTANone
	}

	recent := 0
	for _, attempt := range r.CTAAttempts {
		if now.Sub(attempt.Timestamp) < policy.RateWindow {
			recent++
		}
	}
	if recent >= policy.RateCap {
		return false, CTANone
	}

	switch {
	case (r.BuyerStage == StageConsidering || r.BuyerStage == StageReady) && r.EngagementLevel >= 3:
		return true, CTAConsult
	case r.BuyerStage == StageInterested && r.EngagementLevel >= 2 && r.KeyFacts.SpaceConcerns:
		return true, CTARender
	case len(r.Interactions) >= 4 && r.EngagementLevel >= 3:
		return true, CTAConsult
	}
	return false, CTANone
}

var affirmativeSignals = []string{"yes", "sure", "okay"}

// RecordCTAAttempt appends the attempt and stamps the cooldown clock. An
// affirmative outcome advances the record: consult forces the ready stage,
// render opens the contact-collection workflow. Non-affirmative outcomes
// still count against the rate cap but change nothing else.
func RecordCTAAttempt(r *Record, kind CTAKind, outcome string, now time.Time) {
	r.CTAAttempts = append(r.CTAAttempts, CTAAttempt{
		Timestamp: now,
		Kind:      kind,
		Outcome:   strings.ToLower(outcome),
	})
	t := now
	r.LastCTAAttempt = &t

	applyCTAOutcome(r, kind, outcome)
}

// ResolvePendingCTA folds the user's next utterance into the most recent
// attempt when that attempt is still pending, applying the affirmative
// transitions. Returns whether a pending attempt was resolved.
func ResolvePendingCTA(r *Record, outcome string) bool {
	if len(r.CTAAttempts) == 0 {
		return false
	}
	last := &r.CTAAttempts[len(r.CTAAttempts)-1]
	if last.Outcome != "pending" {
		return false
	}
	last.Outcome = strings.ToLower(outcome)
	applyCTAOutcome(r, last.Kind, outcome)
	return true
}

func applyCTAOutcome(r *Record, kind CTAKind, outcome string) {
	if !containsAny(strings.ToLower(outcome), affirmativeSignals) {
		return
	}
	switch kind {
	case CTAConsult:
		r.BuyerStage = StageReady
	case CTARender:
		r.RenderRequested = true
		if r.RenderStatus == RenderStatusNone {
			r.RenderStatus = RenderStatusInfoNeeded
		}
	}
}
