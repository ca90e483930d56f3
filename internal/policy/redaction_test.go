package policy

import (
	"strings"
	"testing"
)

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantChanged bool
		wantMask    string
		wantAbsent  string
	}{
		{
			name:        "email",
			input:       "reach me at jordan@example.com please",
			wantChanged: true,
			wantMask:    "[REDACTED_EMAIL]",
			wantAbsent:  "jordan@example.com",
		},
		{
			name:        "phone",
			input:       "call me at 405-555-0123 anytime",
			wantChanged: true,
			wantMask:    "[REDACTED_PHONE]",
			wantAbsent:  "405-555-0123",
		},
		{
			name:        "card-like digit run",
			input:       "my card is 4111 1111 1111 1111 ok",
			wantChanged: true,
			wantMask:    "[REDACTED_CARD]",
			wantAbsent:  "4111",
		},
		{
			name:        "clean text untouched",
			input:       "a 12x24 pool with a tanning ledge",
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ScrubPII(tt.input)
			if changed != tt.wantChanged {
				t.Fatalf("ScrubPII(%q) changed = %v, want %v", tt.input, changed, tt.wantChanged)
			}
			if tt.wantMask != "" && !strings.Contains(got, tt.wantMask) {
				t.Fatalf("ScrubPII(%q) = %q, missing %q", tt.input, got, tt.wantMask)
			}
			if tt.wantAbsent != "" && strings.Contains(got, tt.wantAbsent) {
				t.Fatalf("ScrubPII(%q) = %q, still contains %q", tt.input, got, tt.wantAbsent)
			}
			if !tt.wantChanged && got != tt.input {
				t.Fatalf("ScrubPII(%q) = %q, want unchanged", tt.input, got)
			}
		})
	}
}

func TestScrubPIIMasksCardBeforePhone(t *testing.T) {
	got, _ := ScrubPII("pay with 4111111111111111")
	if !strings.Contains(got, "[REDACTED_CARD]") {
		t.Fatalf("ScrubPII() = %q, want long digit run masked as card", got)
	}
	if strings.Contains(got, "[REDACTED_PHONE]") {
		t.Fatalf("ScrubPII() = %q, card run misclassified as phone", got)
	}
}
