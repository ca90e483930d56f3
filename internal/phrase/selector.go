// Package phrase holds the assistant's pre-authored wording as immutable
// configuration and picks variants without repeating the previous choice.
package phrase

import (
	"math/rand"
	"sync"
)

// Selector picks phrase variants. The random source is injectable so tests
// can pin selection; a nil source falls back to the global generator. Safe
// for concurrent use: a selector guards its source, so turns for different
// users may pick at the same time.
type Selector struct {
	mu   sync.Mutex
	intn func(n int) int
}

// NewSelector builds a selector from a rand.Rand. Pass nil for the default
// source. The rand.Rand must not be shared with other unsynchronized users.
func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		return &Selector{intn: rand.Intn}
	}
	return &Selector{intn: rng.Intn}
}

// Pick returns one variant, never the excluded one when an alternative
// exists. Empty banks yield "".
func (s *Selector) Pick(bank []string, exclude string) string {
	if len(bank) == 0 {
		return ""
	}
	if len(bank) == 1 {
		return bank[0]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		choice := bank[s.intn(len(bank))]
		if choice != exclude {
			return choice
		}
	}
}
