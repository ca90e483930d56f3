package journey

// RenderStageOf projects the render workflow position from persisted state
// alone. No hidden counters: (renderRequested, renderStatus, contactInfo)
// fully determine the result.
func RenderStageOf(r Record) RenderStage {
	if !r.RenderRequested {
		return RenderNotRequested
	}
	switch r.RenderStatus {
	case RenderStatusComplete:
		return RenderComplete
	case RenderStatusInProgress:
		return RenderInProgress
	}
	switch {
	case r.ContactInfo.Complete():
		return RenderComplete
	case r.ContactInfo.CapturedCount() > 0:
		return RenderCollectingInfo
	default:
		return RenderInfoNeeded
	}
}

// RenderDirective tells the caller what the workflow wants said this turn.
// The engine maps it onto phrase banks; the controller itself stays
// text-free.
type RenderDirective struct {
	Stage            RenderStage
	RequestAllFields bool
	MissingFields    []string
	OfferPartial     bool
	SoftApproach     bool
	Completed        bool
}

// AdvanceRenderWorkflow runs one chat turn of contact collection. Any
// contact fields present in msg are captured first-set-wins; the directive
// describes the follow-up the reply should carry. The complete and
// in_progress stages are terminal for the chat flow and yield an empty
// directive.
func AdvanceRenderWorkflow(r *Record, msg string) RenderDirective {
	stage := RenderStageOf(*r)
	switch stage {
	case RenderNotRequested, RenderInProgress, RenderComplete:
		return RenderDirective{Stage: stage}
	}

	r.ContactInfo = ExtractContact(r.ContactInfo, msg)
	missing := r.ContactInfo.Missing()

	if len(missing) == 0 {
		r.RenderStatus = RenderStatusComplete
		return RenderDirective{Stage: RenderComplete, Completed: true}
	}

	directive := RenderDirective{
		Stage:         RenderStageOf(*r),
		MissingFields: missing,
	}
	if stage == RenderInfoNeeded {
		// First collection turn: ask for everything up front and set the
		// turnaround expectation.
		directive.RequestAllFields = true
		return directive
	}

	// One-time reduced path: only while nothing at all has been captured.
	if len(missing) <= 2 && r.EngagementLevel >= 2 && r.ContactInfo.CapturedCount() == 0 {
		directive.OfferPartial = true
		return directive
	}
	if len(missing) >= 3 {
		directive.SoftApproach = true
	}
	return directive
}
