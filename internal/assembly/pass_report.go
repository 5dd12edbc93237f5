package assembly

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type ReportSignal struct {
	Code     string  `json:"code"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type SectionMetric struct {
	Number        string   `json:"number"`
	Title         string   `json:"title"`
	RetrievalHits int      `json:"retrieval_hits"`
	UsedFallback  bool     `json:"used_fallback"`
	ExcerptRunes  int      `json:"excerpt_runes"`
	Tokens        int      `json:"tokens"`
	Attempts      int      `json:"attempts"`
	DurationMS    int64    `json:"duration_ms"`
	Failed        bool     `json:"failed"`
	Error         string   `json:"error,omitempty"`
	QualityScore  float64  `json:"quality_score"`
	QualityIssues []string `json:"quality_issues,omitempty"`
}

type ReportSummary struct {
	SectionCount      int            `json:"section_count"`
	FailedSections    int            `json:"failed_sections"`
	FallbackSections  int            `json:"fallback_sections"`
	TotalTokens       int            `json:"total_tokens"`
	LowQuality        int            `json:"low_quality_sections"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// PassReport collects per-section metrics of one generation pass. All
// methods accept a nil receiver.
type PassReport struct {
	Version     string          `json:"version"`
	Mode        string          `json:"mode"`
	SessionID   string          `json:"session_id,omitempty"`
	GeneratedAt string          `json:"generated_at"`
	Sections    []SectionMetric `json:"sections"`
	Signals     []ReportSignal  `json:"signals"`
	Summary     ReportSummary   `json:"summary"`
}

func NewPassReport(mode, sessionID string) *PassReport {
	return &PassReport{
		Version:     "v1",
		Mode:        mode,
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Sections:    []SectionMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *PassReport) AddSignal(code, severity, message string, value float64) {
	if r == nil {
		return
	}
	s := ReportSignal{
		Code:     strings.TrimSpace(code),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

func (r *PassReport) AddSection(m SectionMetric) {
	if r == nil || strings.TrimSpace(m.Number) == "" {
		return
	}
	r.Sections = append(r.Sections, m)
}

func (r *PassReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi, pj := signalPriority(r.Signals[i].Severity), signalPriority(r.Signals[j].Severity)
		if pi == pj {
			return r.Signals[i].Code < r.Signals[j].Code
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	summary := ReportSummary{SectionCount: len(r.Sections), SignalsBySeverity: severityCount}
	for _, sec := range r.Sections {
		if sec.Failed {
			summary.FailedSections++
		}
		if sec.UsedFallback {
			summary.FallbackSections++
		}
		if !sec.Failed && sec.QualityScore < lowQualityScore {
			summary.LowQuality++
		}
		summary.TotalTokens += sec.Tokens
	}
	r.Summary = summary
}

func (r *PassReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
