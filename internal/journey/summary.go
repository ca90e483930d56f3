package journey

import (
	"fmt"
	"strings"
)

var stageDescriptors = map[BuyerStage]string{
	StageBrowsing:    "still exploring options",
	StageInterested:  "showing specific interest",
	StageConsidering: "seriously considering a pool",
	StageReady:       "ready to move forward",
}

// Summarize projects the record into a compact third-person briefing for
// the completion call. Deterministic given the record; it reports state and
// guidance only and never decides CTA timing, which belongs to the gate.
func Summarize(r Record) string {
	if r.KeyFacts.Count() == 0 && len(r.Interactions) == 0 {
		return ""
	}

	var parts []string
	facts := r.KeyFacts

	if facts.Focus != "" {
		parts = append(parts, fmt.Sprintf("they're focused on %s", facts.Focus))
	}
	if facts.BudgetConscious {
		parts = append(parts, "they're budget-conscious")
	}
	if facts.PoolType != "" {
		parts = append(parts, fmt.Sprintf("they're interested in %s pools", facts.PoolType))
	}
	if facts.PreferredSize != "" {
		parts = append(parts, fmt.Sprintf("they prefer %s size", facts.PreferredSize))
	}
	if len(facts.Features) > 0 {
		parts = append(parts, fmt.Sprintf("interested in features: %s", strings.Join(facts.Features, ", ")))
	}

	if r.BuyerStage != StageBrowsing {
		parts = append(parts, stageDescriptors[r.BuyerStage])
	}

	if r.RenderRequested {
		switch RenderStageOf(r) {
		case RenderInProgress:
			parts = append(parts, "waiting for their render")
		case RenderCollectingInfo:
			parts = append(parts, "providing info for render")
		case RenderComplete:
			parts = append(parts, "render info collected")
		}
	}

	if len(parts) == 0 {
		return ""
	}

	summary := "CONVERSATION CONTEXT: Customer " + strings.Join(parts, ", ") + "."
	if guidance := guidanceHints(r); guidance != "" {
		summary += " GUIDANCE: " + guidance
	}
	return summary
}

// guidanceHints derives up to three conversational nudges from stage and
// facts.
func guidanceHints(r Record) string {
	facts := r.KeyFacts
	var hints []string

	switch r.BuyerStage {
	case StageBrowsing:
		if r.EngagementLevel >= 2 {
			hints = append(hints, "ask about their vision for the space")
		}
	case StageInterested:
		if facts.PreferredSize == "" {
			hints = append(hints, "explore size preferences")
		}
		if facts.Focus == "" {
			hints = append(hints, "understand their main use (relaxing vs entertaining)")
		}
	}

	switch facts.Focus {
	case "entertaining":
		hints = append(hints, "discuss layout for gatherings", "mention lighting importance")
	case "relaxation":
		hints = append(hints, "emphasize clean lines", "discuss peaceful features")
	case "family":
		hints = append(hints, "highlight safety features", "discuss kid-friendly elements")
	}

	if facts.BudgetConscious {
		hints = append(hints, "emphasize value and materials that last")
	}

	if len(hints) > 3 {
		hints = hints[:3]
	}
	return strings.Join(hints, ". ")
}
