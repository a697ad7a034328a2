package crawler

import "github.com/Adda-Baaj/bazar-scraper/internal/domain"

// Phase is the lifecycle position of one run.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// RunState is owned by a single Service.Run call and dropped when it returns.
type RunState struct {
	Phase        Phase
	Items        []domain.EnrichedListing
	PageIndex    int
	PagesFetched int
	Terminated   bool
	Cancelled    bool
}

func newRunState() *RunState {
	return &RunState{Phase: PhaseIdle}
}

func (s *RunState) start() {
	s.Phase = PhaseRunning
}

func (s *RunState) finish(phase Phase) {
	s.Phase = phase
	s.Terminated = true
	if phase == PhaseCancelled {
		s.Cancelled = true
		// partial results are not handed back on cancellation
		s.Items = nil
	}
}

// Snapshot is the loggable summary of a run state.
func (s *RunState) Snapshot() map[string]any {
	return map[string]any{
		"phase":         string(s.Phase),
		"page_index":    s.PageIndex,
		"pages_fetched": s.PagesFetched,
		"items":         len(s.Items),
		"cancelled":     s.Cancelled,
	}
}
