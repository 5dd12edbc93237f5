// Package refine routes free-text modification requests against a
// generated report.
package refine

import (
	"regexp"
	"strings"
)

// Intent is what a modification request asks for.
type Intent string

const (
	IntentRegenerateAll   Intent = "regenerate_all"
	IntentSpecificSection Intent = "specific_section"
	IntentAddContent      Intent = "add_content"
	IntentGeneral         Intent = "general"
)

// Classification is the routed form of a request. Section is set only for
// IntentSpecificSection.
type Classification struct {
	Intent  Intent `json:"intent"`
	Section string `json:"section,omitempty"`
}

type matcher struct {
	intent Intent
	match  func(request string) (section string, ok bool)
}

// matchers are tried in order; the first hit wins.
var matchers = []matcher{
	{IntentRegenerateAll, containsAny("전체", "모두", "다시")},
	{IntentSpecificSection, sectionReference},
	{IntentAddContent, containsAny("추가", "더", "보완")},
}

// sectionPatterns capture a section number. Longer numbers are tried first
// so "2-1번" is not read as "1번".
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+-\d+-\d+)번`),
	regexp.MustCompile(`(\d+-\d+)번`),
	regexp.MustCompile(`(\d+)번`),
	regexp.MustCompile(`(\d+-\d+-\d+)번째`),
	regexp.MustCompile(`(\d+-\d+)번째`),
	regexp.MustCompile(`(\d+)번째`),
	regexp.MustCompile(`섹션\s*(\d+-\d+-\d+)`),
	regexp.MustCompile(`섹션\s*(\d+-\d+)`),
	regexp.MustCompile(`섹션\s*(\d+)`),
}

// Classify routes a modification request.
func Classify(request string) Classification {
	for _, m := range matchers {
		if section, ok := m.match(request); ok {
			return Classification{Intent: m.intent, Section: section}
		}
	}
	return Classification{Intent: IntentGeneral}
}

// sectionReference returns the first section number mentioned in request.
func sectionReference(request string) (string, bool) {
	for _, re := range sectionPatterns {
		if m := re.FindStringSubmatch(request); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func containsAny(markers ...string) func(string) (string, bool) {
	return func(request string) (string, bool) {
		for _, mk := range markers {
			if strings.Contains(request, mk) {
				return "", true
			}
		}
		return "", false
	}
}
