package yearfilter

import (
	"regexp"
	"strings"

	"reportgen/internal/toc"
)

var nextYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)다음년도\s*수행\s*계획`),
	regexp.MustCompile(`(?i)다음년도\s*계획`),
	regexp.MustCompile(`(?i)차년도\s*계획`),
	regexp.MustCompile(`(?i)차년도\s*수행\s*계획`),
	regexp.MustCompile(`(?i)내년\s*계획`),
	regexp.MustCompile(`(?i)내년\s*수행\s*계획`),
	regexp.MustCompile(`(?i)익년도\s*계획`),
	regexp.MustCompile(`(?i)익년도\s*수행\s*계획`),
	regexp.MustCompile(`(?i)향후\s*계획`),
	regexp.MustCompile(`(?i)\d+차년도\s*계획`),
	regexp.MustCompile(`(?i)\d+차년도\s*수행\s*계획`),
}

// DetectNextYearSections scans TOC titles for next-year plan sections.
// Titles are returned in TOC order; duplicates are kept.
func DetectNextYearSections(nodes []toc.Node) (bool, []string) {
	var matching []string
	for _, n := range nodes {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			continue
		}
		if isNextYearTitle(title) {
			matching = append(matching, title)
		}
	}
	return len(matching) > 0, matching
}

func isNextYearTitle(title string) bool {
	for _, re := range nextYearPatterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// IsNextYearSection reports whether title contains, or is contained in,
// any of the matching titles. An empty title never matches.
func IsNextYearSection(title string, matching []string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	for _, m := range matching {
		if m == "" {
			continue
		}
		if strings.Contains(title, m) || strings.Contains(m, title) {
			return true
		}
	}
	return false
}
