package journey

import (
	"regexp"
	"strings"
)

// factRule is one entry in the ordered extraction table. Rules for a fact
// are skipped entirely once that fact is set; the first matching rule wins.
type factRule struct {
	fact  string
	match func(msg, lower string) bool
	apply func(f *KeyFacts)
}

func keywordMatch(keywords ...string) func(msg, lower string) bool {
	return func(_, lower string) bool {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

var (
	size12x24Pattern = regexp.MustCompile(`(?i)\b12\s*'?\s*(?:x|by)\s*24\s*'?`)
	size14x28Pattern = regexp.MustCompile(`(?i)\b14\s*'?\s*(?:x|by)\s*28\s*'?`)
)

// factRules is evaluated in order by ExtractFacts. Priority is positional:
// earlier rules for the same fact shadow later ones.
var factRules = []factRule{
	{
		fact:  "focus",
		match: keywordMatch("relax", "relaxing", "peaceful", "quiet", "unwind"),
		apply: func(f *KeyFacts) { f.Focus = "relaxation" },
	},
	{
		fact:  "focus",
		match: keywordMatch("entertain", "entertaining", "party", "friends", "gather", "host"),
		apply: func(f *KeyFacts) { f.Focus = "entertaining" },
	},
	{
		fact:  "focus",
		match: keywordMatch("family", "kids", "children", "grandkids"),
		apply: func(f *KeyFacts) { f.Focus = "family" },
	},
	{
		fact: "focus",
		match: func(msg, lower string) bool {
			return strings.Contains(lower, "both") &&
				(strings.Contains(lower, "relax") || strings.Contains(lower, "entertain"))
		},
		apply: func(f *KeyFacts) { f.Focus = "both" },
	},
	{
		fact: "budget_conscious",
		match: func(msg, lower string) bool {
			if strings.Contains(msg, "$") {
				return true
			}
			return keywordMatch("budget", "cost", "price", "expensive", "affordable",
				"cheap", "financing", "payment")(msg, lower)
		},
		apply: func(f *KeyFacts) { f.BudgetConscious = true },
	},
	{
		fact:  "pool_type",
		match: keywordMatch("cocktail"),
		apply: func(f *KeyFacts) { f.PoolType = "cocktail" },
	},
	{
		fact: "pool_type",
		match: func(msg, lower string) bool {
			return strings.Contains(lower, "semi") && strings.Contains(lower, "ground")
		},
		apply: func(f *KeyFacts) { f.PoolType = "semi-inground" },
	},
	{
		fact:  "pool_type",
		match: keywordMatch("custom"),
		apply: func(f *KeyFacts) { f.PoolType = "custom" },
	},
	{
		fact:  "preferred_size",
		match: func(msg, _ string) bool { return size12x24Pattern.MatchString(msg) },
		apply: func(f *KeyFacts) { f.PreferredSize = "12x24" },
	},
	{
		fact:  "preferred_size",
		match: func(msg, _ string) bool { return size14x28Pattern.MatchString(msg) },
		apply: func(f *KeyFacts) { f.PreferredSize = "14x28" },
	},
	{
		fact:  "timeline_interest",
		match: keywordMatch("timeline", "when", "how long", "schedule", "start", "soon", "ready"),
		apply: func(f *KeyFacts) { f.TimelineInterest = true },
	},
	{
		fact:  "space_concerns",
		match: keywordMatch("space", "yard", "backyard", "small", "tight", "fit", "room"),
		apply: func(f *KeyFacts) { f.SpaceConcerns = true },
	},
}

func factSet(f KeyFacts, fact string) bool {
	switch fact {
	case "focus":
		return f.Focus != ""
	case "budget_conscious":
		return f.BudgetConscious
	case "pool_type":
		return f.PoolType != ""
	case "preferred_size":
		return f.PreferredSize != ""
	case "timeline_interest":
		return f.TimelineInterest
	case "space_concerns":
		return f.SpaceConcerns
	default:
		return false
	}
}

// ledPattern needs word boundaries: a plain substring check would fire
// inside "ledge" and tag every tanning-ledge mention as lighting.
var ledPattern = regexp.MustCompile(`\bled\b`)

// featureCatalog maps canonical feature names to their trigger keywords.
// Unlike scalar facts, features accumulate across turns.
var featureCatalog = []struct {
	name     string
	keywords []string
	pattern  *regexp.Regexp
}{
	{name: "tanning ledge", keywords: []string{"tanning ledge", "tanning shelf", "sun shelf", "ledge"}},
	{name: "wraparound bench", keywords: []string{"bench", "seating", "wraparound", "built-in seating"}},
	{name: "lighting", keywords: []string{"lighting", "lights", "underwater lights"}, pattern: ledPattern},
	{name: "heating", keywords: []string{"heated", "heating", "heater", "warm", "year-round"}},
	{name: "jets", keywords: []string{"jets", "hydrotherapy", "massage", "spa jets"}},
	{name: "fountains", keywords: []string{"fountain", "water feature", "bubblers", "spillover"}},
}

func featureMentioned(lower string, keywords []string, pattern *regexp.Regexp) bool {
	if containsAny(lower, keywords) {
		return true
	}
	return pattern != nil && pattern.MatchString(lower)
}

// ExtractFacts applies the rule table to one utterance and returns the
// merged fact set. The input is not mutated; set scalar facts are never
// revisited.
func ExtractFacts(facts KeyFacts, msg string) KeyFacts {
	lower := strings.ToLower(msg)
	out := facts
	if facts.Features != nil {
		out.Features = append([]string(nil), facts.Features...)
	}

	matched := map[string]bool{}
	for _, rule := range factRules {
		if matched[rule.fact] || factSet(out, rule.fact) {
			continue
		}
		if rule.match(msg, lower) {
			rule.apply(&out)
			matched[rule.fact] = true
		}
	}

	for _, feature := range featureCatalog {
		if out.HasFeature(feature.name) {
			continue
		}
		if featureMentioned(lower, feature.keywords, feature.pattern) {
			out.Features = append(out.Features, feature.name)
		}
	}

	return out
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi'?m\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
		regexp.MustCompile(`(?i)\bmy name is\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
		regexp.MustCompile(`(?i)\bname'?s\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
		regexp.MustCompile(`(?i)\bcall me\s+([a-zA-Z]+)`),
	}
	photoKeywords      = []string{"photo", "picture", "image"}
	attachmentKeywords = []string{"sent", "attached", "here"}
)

// ExtractContact parses contact fields from free text for the render
// workflow. First non-empty value wins; captured fields are never replaced.
// The photo field is a heuristic marker ("provided"), not file verification.
func ExtractContact(contact ContactInfo, msg string) ContactInfo {
	out := contact
	lower := strings.ToLower(msg)

	if out.Email == "" {
		if m := emailPattern.FindString(msg); m != "" {
			out.Email = m
		}
	}
	if out.Phone == "" {
		if m := phonePattern.FindString(msg); m != "" {
			out.Phone = m
		}
	}
	if out.Name == "" {
		for _, pattern := range namePatterns {
			if m := pattern.FindStringSubmatch(msg); m != nil {
				out.Name = properCase(m[1])
				break
			}
		}
	}
	if out.Photo == "" && containsAny(lower, photoKeywords) && containsAny(lower, attachmentKeywords) {
		out.Photo = "provided"
	}

	return out
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func properCase(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
