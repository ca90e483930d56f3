package engine

import (
	"github.com/countryleisure/rusty/internal/completion"
	"github.com/countryleisure/rusty/internal/journey"
)

// buildMessages assembles the ordered prompt list for the completion call:
// persona, optional context summary, optional reopening line, the recent
// interaction window, then the current utterance.
func (e *Engine) buildMessages(record journey.Record, contextSummary, opening, userMsg string) []completion.Message {
	msgs := []completion.Message{{Role: completion.RoleSystem, Content: e.persona}}

	if contextSummary != "" {
		msgs = append(msgs, completion.Message{Role: completion.RoleSystem, Content: contextSummary})
	}
	if opening != "" {
		msgs = append(msgs, completion.Message{Role: completion.RoleAssistant, Content: opening})
	}

	for _, in := range record.RecentInteractions(e.historyWindow) {
		msgs = append(msgs,
			completion.Message{Role: completion.RoleUser, Content: in.User},
			completion.Message{Role: completion.RoleAssistant, Content: in.Bot},
		)
	}

	msgs = append(msgs, completion.Message{Role: completion.RoleUser, Content: userMsg})
	return msgs
}

// openingMessage produces a reopening line for returning users: render
// status chatter when a render is being built, otherwise a re-engagement
// greeting once some history exists.
func (e *Engine) openingMessage(record journey.Record) string {
	if journey.RenderStageOf(record) == journey.RenderInProgress {
		return e.pickVaried(record.UserID, "render_in_progress", e.banks.RenderInProgress)
	}
	if len(record.Interactions) > 2 {
		return e.pickVaried(record.UserID, "re_engagement", e.banks.ReEngagement)
	}
	return ""
}
