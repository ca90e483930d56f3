package journey

import "strings"

var (
	specificSignals   = []string{"size", "cost", "price", "timeline", "process", "how long", "when", "schedule"}
	commitmentSignals = []string{"ready", "interested", "want", "need", "planning", "thinking about"}
	urgencySignals    = []string{"timeline", "schedule", "when can", "how soon"}
	agreementSignals  = []string{"ready", "let's do", "schedule", "visit", "consult"}
)

// AdvanceStage returns the buyer stage after one utterance. Transitions are
// forward-only; an utterance matching no rule leaves the stage unchanged.
// The considering transition also fires on breadth of established facts,
// independent of any timeline wording.
func AdvanceStage(current BuyerStage, facts KeyFacts, msg string) BuyerStage {
	lower := strings.ToLower(msg)

	switch current {
	case StageBrowsing:
		if containsAny(lower, specificSignals) || containsAny(lower, commitmentSignals) {
			return StageInterested
		}
	case StageInterested:
		if containsAny(lower, urgencySignals) || facts.Count() >= 3 {
			return StageConsidering
		}
	case StageConsidering:
		if containsAny(lower, agreementSignals) {
			return StageReady
		}
	}
	return current
}

var engagementTerms = []string{"size", "cost", "feature", "timeline", "process"}

// AdvanceEngagement returns the engagement level after one utterance,
// clamped to [current, 5]. The score mixes question marks, domain terms and
// message length, each capped at 1.0, so a single turn can raise the level
// by up to three.
func AdvanceEngagement(current int, msg string) int {
	lower := strings.ToLower(msg)

	questions := float64(strings.Count(msg, "?"))
	terms := 0
	for _, term := range engagementTerms {
		if strings.Contains(lower, term) {
			terms++
		}
	}
	words := float64(len(strings.Fields(msg)))

	score := 0.0
	score += capAt(questions*0.5, 1)
	score += capAt(float64(terms)*0.3, 1)
	score += capAt(words/20, 1)

	level := current + int(score)
	if level < current {
		level = current
	}
	if level > 5 {
		level = 5
	}
	return level
}

func capAt(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}
