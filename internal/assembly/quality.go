package assembly

import (
	"fmt"
	"strings"

	"reportgen/internal/knowledge"
	"reportgen/internal/yearfilter"
)

// lowQualityScore is the score below which a section raises a signal.
const lowQualityScore = 0.6

type sectionQuality struct {
	Score  float64
	Issues []string
}

// assessSection scores generated text against the reference style and the
// section's year window. It is advisory; the text is kept either way.
func assessSection(title, content string, style knowledge.StyleProfile, elig yearfilter.Context) sectionQuality {
	text := strings.TrimSpace(content)
	if text == "" {
		return sectionQuality{Score: 0, Issues: []string{"empty_content"}}
	}

	score := 1.0
	issues := make([]string, 0, 4)

	total, bullets, headings := 0, 0, 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		total++
		if strings.HasPrefix(line, "#") {
			headings++
		}
		if isBullet(line) {
			bullets++
		}
	}
	ratio := float64(bullets) / float64(total)
	switch {
	case style.Itemized && ratio < 0.5:
		score -= 0.25
		issues = append(issues, "not_itemized")
	case !style.Itemized && ratio > 0.45:
		score -= 0.25
		issues = append(issues, "list_heavy")
	}
	if headings > 0 {
		score -= 0.1
		issues = append(issues, "markdown_heading")
	}

	for _, y := range yearfilter.ExtractYears(text) {
		if !yearfilter.IsYearEligible(y, title, elig) {
			score -= 0.4
			issues = append(issues, fmt.Sprintf("ineligible_year_%d", y))
			break
		}
	}

	lower := strings.ToLower(text)
	for _, token := range []string{"작성 예정", "[수정 요청", "[기존 내용", "tbd", "placeholder"} {
		if strings.Contains(lower, token) {
			score -= 0.2
			issues = append(issues, "instructional_or_placeholder_text")
			break
		}
	}

	if score < 0 {
		score = 0
	}
	return sectionQuality{Score: score, Issues: issues}
}

func isBullet(line string) bool {
	for _, p := range []string{"- ", "* ", "• ", "○ ", "□ "} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
