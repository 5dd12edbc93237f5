// Package yearfilter decides whether content tagged with a project year
// may appear in a given report section.
package yearfilter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"reportgen/internal/toc"
)

// Context carries the per-pass facts the eligibility rules depend on.
// Build it once per generation pass with NewContext.
type Context struct {
	CurrentYear           int      `json:"current_year"`
	TotalYears            int      `json:"total_years"`
	HasNextYearSection    bool     `json:"has_next_year_section"`
	MatchingSectionTitles []string `json:"matching_section_titles,omitempty"`
}

// NewContext derives the next-year facts from the TOC.
func NewContext(currentYear, totalYears int, nodes []toc.Node) Context {
	has, matching := DetectNextYearSections(nodes)
	return Context{
		CurrentYear:           currentYear,
		TotalYears:            totalYears,
		HasNextYearSection:    has,
		MatchingSectionTitles: matching,
	}
}

// ForSection narrows the context for one section: matching titles are kept
// only when the section itself is a next-year section.
func (c Context) ForSection(title string) Context {
	out := c
	if IsNextYearSection(title, c.MatchingSectionTitles) {
		out.MatchingSectionTitles = append([]string(nil), c.MatchingSectionTitles...)
	} else {
		out.MatchingSectionTitles = nil
	}
	return out
}

// IsYearEligible applies the year policy in order: past years are
// excluded, the current year is included, the next year is included only
// inside a matching next-year section, anything later is excluded.
func IsYearEligible(contentYear int, sectionTitle string, ctx Context) bool {
	switch {
	case contentYear < ctx.CurrentYear:
		return false
	case contentYear == ctx.CurrentYear:
		return true
	case contentYear == ctx.CurrentYear+1:
		return ctx.HasNextYearSection && IsNextYearSection(sectionTitle, ctx.MatchingSectionTitles)
	default:
		return false
	}
}

var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)차년도`),
	regexp.MustCompile(`(\d+)차\s*년도`),
	regexp.MustCompile(`(\d+)년차`),
	regexp.MustCompile(`(\d+)차`),
}

const (
	minYear = 1
	maxYear = 10
)

// ExtractYears returns the distinct project years mentioned in text, sorted.
// Values outside 1..10 are ignored.
func ExtractYears(text string) []int {
	seen := make(map[int]bool)
	for _, re := range yearPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			year, err := strconv.Atoi(m[1])
			if err != nil || year < minYear || year > maxYear {
				continue
			}
			seen[year] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// IsSpanEligible reports whether a span may appear in the section. A span
// without year markers is always eligible; a span naming several years is
// eligible only if every one of them is.
func IsSpanEligible(text, sectionTitle string, ctx Context) bool {
	for _, year := range ExtractYears(text) {
		if !IsYearEligible(year, sectionTitle, ctx) {
			return false
		}
	}
	return true
}

var sentenceSplit = regexp.MustCompile(`[.!?。！？]\s*`)

// FilterContent drops every sentence of text that is not eligible for the
// section. It returns "" when nothing survives.
func FilterContent(text, sectionTitle string, ctx Context) string {
	var kept []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if IsSpanEligible(s, sectionTitle, ctx) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, ". ") + "."
}
