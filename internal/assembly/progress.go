package assembly

import "reportgen/internal/toc"

// State is the lifecycle position of a session's report.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateGenerating State = "GENERATING"
	StatePaused     State = "PAUSED"
	StateComplete   State = "COMPLETE"
)

// Progress tracks how far a session's report has been generated. It is
// owned by the session and only changed between passes.
type Progress struct {
	CurrentSectionIndex int      `json:"current_section_index"`
	CompletedSections   []string `json:"completed_sections"`
	TotalSections       int      `json:"total_sections"`
	IsGenerating        bool     `json:"is_generating"`
}

func (p Progress) State() State {
	switch {
	case p.IsGenerating:
		return StateGenerating
	case p.CurrentSectionIndex == 0:
		return StateNotStarted
	case p.CurrentSectionIndex >= p.TotalSections:
		return StateComplete
	default:
		return StatePaused
	}
}

// Begin marks a pass as running.
func (p *Progress) Begin(total int) {
	p.TotalSections = total
	p.IsGenerating = true
}

// Apply records the outcome of a pass over t.
func (p *Progress) Apply(t toc.TOC, res Result) {
	order := toc.AssemblyOrder(t)
	p.TotalSections = len(order)
	p.CurrentSectionIndex = res.CompletedCount
	p.CompletedSections = make([]string, 0, res.CompletedCount)
	for i := 0; i < res.CompletedCount && i < len(order); i++ {
		p.CompletedSections = append(p.CompletedSections, order[i].Number)
	}
	p.IsGenerating = false
}

// Reset returns the progress to its initial state.
func (p *Progress) Reset() {
	*p = Progress{}
}
