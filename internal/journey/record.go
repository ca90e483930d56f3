package journey

import "time"

// BuyerStage is the coarse funnel position for a customer. It only ever
// moves forward along the order declared below.
type BuyerStage string

const (
	StageBrowsing    BuyerStage = "browsing"
	StageInterested  BuyerStage = "interested"
	StageConsidering BuyerStage = "considering"
	StageReady       BuyerStage = "ready"
)

var stageOrder = map[BuyerStage]int{
	StageBrowsing:    0,
	StageInterested:  1,
	StageConsidering: 2,
	StageReady:       3,
}

// Rank returns the stage position in funnel order, 0 for unknown values.
func (s BuyerStage) Rank() int { return stageOrder[s] }

// AtLeast reports whether s is at or past other in funnel order.
func (s BuyerStage) AtLeast(other BuyerStage) bool { return s.Rank() >= other.Rank() }

// RenderStatus is the persisted render fulfillment state. The empty value
// means no render was ever requested.
type RenderStatus string

const (
	RenderStatusNone       RenderStatus = ""
	RenderStatusInfoNeeded RenderStatus = "info_needed"
	RenderStatusInProgress RenderStatus = "in_progress"
	RenderStatusComplete   RenderStatus = "complete"
)

// RenderStage is the derived workflow position, a pure projection of the
// record (see RenderStageOf).
type RenderStage string

const (
	RenderNotRequested   RenderStage = "not_requested"
	RenderInfoNeeded     RenderStage = "info_needed"
	RenderCollectingInfo RenderStage = "collecting_info"
	RenderInProgress     RenderStage = "in_progress"
	RenderComplete       RenderStage = "complete"
)

// CTAKind distinguishes the two nudges the assistant can make.
type CTAKind string

const (
	CTANone    CTAKind = ""
	CTAConsult CTAKind = "consult"
	CTARender  CTAKind = "render"
)

// Interaction is one user/bot exchange.
type Interaction struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Bot       string    `json:"bot"`
}

// CTAAttempt records a single nudge and how the customer responded.
type CTAAttempt struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      CTAKind   `json:"type"`
	Outcome   string    `json:"response"`
}

// KeyFacts holds the structured attributes inferred from free text. Scalar
// fields are append-only: once set they are never overwritten or cleared.
// Features accumulates, de-duplicated, in first-seen order.
type KeyFacts struct {
	Focus            string   `json:"focus,omitempty"`
	BudgetConscious  bool     `json:"budget_conscious,omitempty"`
	PoolType         string   `json:"pool_type,omitempty"`
	PreferredSize    string   `json:"preferred_size,omitempty"`
	Features         []string `json:"features,omitempty"`
	TimelineInterest bool     `json:"timeline_interest,omitempty"`
	SpaceConcerns    bool     `json:"space_concerns,omitempty"`
}

// Count returns how many distinct facts are established. Features count as
// one fact regardless of length; this feeds the breadth-of-facts stage rule.
func (f KeyFacts) Count() int {
	n := 0
	if f.Focus != "" {
		n++
	}
	if f.BudgetConscious {
		n++
	}
	if f.PoolType != "" {
		n++
	}
	if f.PreferredSize != "" {
		n++
	}
	if len(f.Features) > 0 {
		n++
	}
	if f.TimelineInterest {
		n++
	}
	if f.SpaceConcerns {
		n++
	}
	return n
}

// HasFeature reports whether name was already captured.
func (f KeyFacts) HasFeature(name string) bool {
	for _, feat := range f.Features {
		if feat == name {
			return true
		}
	}
	return false
}

// ContactInfo holds the four fields the render workflow collects. Each field
// is first-set-wins: later extractions never overwrite a captured value.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// CapturedCount returns how many contact fields are present.
func (c ContactInfo) CapturedCount() int {
	n := 0
	for _, v := range []string{c.Name, c.Email, c.Phone, c.Photo} {
		if v != "" {
			n++
		}
	}
	return n
}

// Missing returns the absent fields in fixed collection order.
func (c ContactInfo) Missing() []string {
	var out []string
	if c.Name == "" {
		out = append(out, "name")
	}
	if c.Email == "" {
		out = append(out, "email")
	}
	if c.Phone == "" {
		out = append(out, "phone")
	}
	if c.Photo == "" {
		out = append(out, "photo")
	}
	return out
}

// Complete reports whether all four fields are captured.
func (c ContactInfo) Complete() bool { return c.CapturedCount() == 4 }

// Record is the durable per-customer state. The store owns the persisted
// row; a Record handed to callers is a working copy and takes effect only
// once upserted.
type Record struct {
	UserID          string        `json:"user_id"`
	CreatedAt       time.Time     `json:"created_at"`
	LastUpdatedAt   time.Time     `json:"last_updated"`
	Interactions    []Interaction `json:"interactions"`
	KeyFacts        KeyFacts      `json:"key_facts"`
	BuyerStage      BuyerStage    `json:"buyer_stage"`
	EngagementLevel int           `json:"engagement_level"`
	RenderRequested bool          `json:"render_requested"`
	RenderStatus    RenderStatus  `json:"render_status"`
	ContactInfo     ContactInfo   `json:"contact_info"`
	CTAAttempts     []CTAAttempt  `json:"cta_attempts"`
	LastCTAAttempt  *time.Time    `json:"last_cta_attempt,omitempty"`

	// Version is the optimistic-concurrency token managed by the store.
	// 0 means the record has never been persisted.
	Version int64 `json:"-"`
}

// NewRecord returns a defaulted record for an unknown or expired user id.
func NewRecord(userID string, now time.Time) Record {
	return Record{
		UserID:          userID,
		CreatedAt:       now,
		LastUpdatedAt:   now,
		BuyerStage:      StageBrowsing,
		EngagementLevel: 1,
	}
}

// Normalize backfills zero or out-of-range fields with defaults. Loaders run
// it on every row so schema drift degrades to defaults instead of failing
// the turn.
func (r *Record) Normalize(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastUpdatedAt.IsZero() {
		r.LastUpdatedAt = now
	}
	if _, ok := stageOrder[r.BuyerStage]; !ok || r.BuyerStage == "" {
		r.BuyerStage = StageBrowsing
	}
	if r.EngagementLevel < 1 {
		r.EngagementLevel = 1
	}
	if r.EngagementLevel > 5 {
		r.EngagementLevel = 5
	}
	switch r.RenderStatus {
	case RenderStatusNone, RenderStatusInfoNeeded, RenderStatusInProgress, RenderStatusComplete:
	default:
		r.RenderStatus = RenderStatusNone
	}
}

// Expired reports whether the record's freshness invariant has failed.
func (r Record) Expired(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(r.LastUpdatedAt) > window
}

// AppendInteraction adds one exchange and enforces the FIFO cap, evicting
// oldest entries first.
func (r *Record) AppendInteraction(userText, botText string, now time.Time, maxInteractions int) {
	r.Interactions = append(r.Interactions, Interaction{
		Timestamp: now,
		User:      userText,
		Bot:       botText,
	})
	if maxInteractions > 0 && len(r.Interactions) > maxInteractions {
		keep := r.Interactions[len(r.Interactions)-maxInteractions:]
		r.Interactions = append([]Interaction(nil), keep...)
	}
}

// RecentInteractions returns up to limit of the newest exchanges in
// chronological order.
func (r Record) RecentInteractions(limit int) []Interaction {
	if limit <= 0 || limit >= len(r.Interactions) {
		return r.Interactions
	}
	return r.Interactions[len(r.Interactions)-limit:]
}

// Clone returns a deep copy so concurrent readers never share slices.
func (r Record) Clone() Record {
	out := r
	if r.Interactions != nil {
		out.Interactions = append([]Interaction(nil), r.Interactions...)
	}
	if r.KeyFacts.Features != nil {
		out.KeyFacts.Features = append([]string(nil), r.KeyFacts.Features...)
	}
	if r.CTAAttempts != nil {
		out.CTAAttempts = append([]CTAAttempt(nil), r.CTAAttempts...)
	}
	if r.LastCTAAttempt != nil {
		t := *r.LastCTAAttempt
		out.LastCTAAttempt = &t
	}
	return out
}
