package journey

import "strings"

var qualitySignals = []string{
	"experience", "qualified", "certified", "professional", "expertise",
	"quality", "trust", "credentials", "builder", "years", "reputation",
}

// WantsCredibility reports whether the utterance questions quality or
// experience, which warrants citing the builder's credentials.
func WantsCredibility(msg string) bool {
	return containsAny(strings.ToLower(msg), qualitySignals)
}

// DetectStall reports whether the recent exchanges look disengaged: repeated
// very short replies, or a question-free streak. Needs at least three
// interactions to judge.
func DetectStall(r Record) bool {
	if len(r.Interactions) < 3 {
		return false
	}
	recent := r.Interactions[len(r.Interactions)-3:]

	short := 0
	for _, in := range recent {
		if len(strings.Fields(in.User)) <= 3 {
			short++
		}
	}
	if short >= 2 {
		return true
	}

	for _, in := range recent {
		if !strings.Contains(in.User, "?") {
			return true
		}
	}
	return false
}
