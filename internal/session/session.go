// Package session holds the state one user builds up while producing a
// report, and the repositories that keep it between requests.
package session

import (
	"context"
	"errors"
	"time"

	"reportgen/internal/assembly"
	"reportgen/internal/knowledge"
	"reportgen/internal/toc"
	"reportgen/internal/yearfilter"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is owned by its caller; the generation loop and the router only
// read it and return results that the caller writes back.
type Session struct {
	ID string `json:"id"`

	TOC toc.TOC `json:"toc"`

	ReferenceLabel string                 `json:"reference_label,omitempty"`
	ReferenceText  string                 `json:"reference_text,omitempty"`
	Style          knowledge.StyleProfile `json:"style"`
	ProtectedTerms []string               `json:"protected_terms,omitempty"`

	SourceLabel string `json:"source_label,omitempty"`
	SourceText  string `json:"source_text,omitempty"`

	CurrentYear int `json:"current_year"`
	TotalYears  int `json:"total_years"`

	Report   string            `json:"report"`
	Progress assembly.Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty session with a fresh id.
func New(currentYear, totalYears int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		TOC:         toc.TOC{},
		CurrentYear: currentYear,
		TotalYears:  totalYears,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Eligibility builds the year context for a pass over the current TOC.
func (s *Session) Eligibility() yearfilter.Context {
	return yearfilter.NewContext(s.CurrentYear, s.TotalYears, s.TOC)
}

// SetReference stores the reference document together with its derived
// style profile and protected terms.
func (s *Session) SetReference(label, text string, style knowledge.StyleProfile) {
	s.ReferenceLabel = label
	s.ReferenceText = text
	s.Style = style
	s.ProtectedTerms = style.TechnicalTerms
	s.touch()
}

// SetSource stores the source document text.
func (s *Session) SetSource(label, text string) {
	s.SourceLabel = label
	s.SourceText = text
	s.touch()
}

// ApplyPass writes the outcome of a generation pass back into the session.
func (s *Session) ApplyPass(res assembly.Result) {
	s.Report = res.Report
	s.Progress.Apply(s.TOC, res)
	s.touch()
}

// SetReport replaces the report text without touching progress.
func (s *Session) SetReport(text string) {
	s.Report = text
	s.touch()
}

// ResetReport discards the generated report and its progress.
func (s *Session) ResetReport() {
	s.Report = ""
	s.Progress.Reset()
	s.touch()
}

// Ready reports why a generation pass cannot start yet, or nil.
func (s *Session) Ready() error {
	if s.SourceText == "" {
		return errors.New("소스 문서가 업로드되지 않았습니다")
	}
	return s.TOC.Validate()
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Repository stores sessions by id.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
