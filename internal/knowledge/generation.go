package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// WarningMarker prefixes every failure placeholder written into a report.
// Generated text must never start with it.
const WarningMarker = "⚠️"

// GenerationError reports that a backend could not produce a section.
type GenerationError struct {
	Section string
	Reason  string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("generation failed for %q: %s", e.Section, e.Reason)
	}
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

func newGenerationError(section string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Section: section, Reason: err.Error(), Err: err}
}

// IsGenerationError reports whether err carries a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// Placeholder renders the visible text that stands in for a failed section.
func Placeholder(err error) string {
	reason := "알 수 없는 오류"
	var ge *GenerationError
	if errors.As(err, &ge) {
		reason = ge.Reason
	} else if err != nil {
		reason = err.Error()
	}
	return WarningMarker + " 콘텐츠 생성 중 오류가 발생했습니다: " + reason
}

// IsPlaceholder reports whether text is a failure placeholder.
func IsPlaceholder(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), WarningMarker)
}

// UnavailableGenerator stands in for a backend that is not configured.
type UnavailableGenerator struct {
	Reason string
}

func (u UnavailableGenerator) GenerateSection(_ context.Context, req SectionRequest) (string, error) {
	return "", &GenerationError{Section: req.Title, Reason: u.Reason}
}

// finalizeOutput cleans model output and rejects text that would be
// indistinguishable from a failure placeholder.
func finalizeOutput(section, text string) (string, error) {
	text = cleanMarkdownOutput(text)
	if text == "" {
		return "", &GenerationError{Section: section, Reason: "empty response from model"}
	}
	if IsPlaceholder(text) {
		text = strings.TrimSpace(strings.TrimPrefix(text, WarningMarker))
	}
	return text, nil
}
