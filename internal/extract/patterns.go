package extract

import (
	"regexp"
	"sort"

	"reportgen/internal/knowledge"
)

// itemizedBulletThreshold is the number of bullet lines with an itemized
// ending above which a document counts as itemized.
const itemizedBulletThreshold = 5

var (
	itemizedEnding = regexp.MustCompile(`[임함됨]|예정임|계획임|목적임|필요함|중요함|완료됨|진행됨|제공함|적용함|개발함|구현함|완성함|수행함|실시함|추진함|강화함|개선함|확대함|보완함|확인함|검토함|분석함|평가함|활용함|운영함|관리함|지원함|협력함|공유함|연계함|연결함|통합함|연결됨|통합됨|구축됨|설치됨|적용됨|개선됨|제공됨|개발됨|구현됨|완성됨|수행됨|실시됨|추진됨|강화됨|확대됨|보완됨|확인됨|검토됨|분석됨|평가됨|활용됨|운영됨|관리됨|지원됨|협력됨|공유됨|연계됨`)
	bulletLine     = regexp.MustCompile(`(?m)^[\*\-•]\s+.+[임함됨]`)
	sentenceEnding = regexp.MustCompile(`[다음임함됨]`)

	acronymTerm      = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	standardTerm     = regexp.MustCompile(`\b[A-Z]+[- ]?[0-9]+\b`)
	parenthesizedAbr = regexp.MustCompile(`\(([A-Z]{2,})\)`)
)

// FormattingPatterns derives the style profile of a reference text.
func FormattingPatterns(text string) knowledge.StyleProfile {
	return knowledge.StyleProfile{
		Itemized:        len(bulletLine.FindAllString(text, -1)) > itemizedBulletThreshold,
		ItemizedEndings: distinct(itemizedEnding.FindAllString(text, -1)),
		SentenceEndings: distinct(sentenceEnding.FindAllString(text, -1)),
		TechnicalTerms:  Terms(text),
	}
}

// Terms returns the technical terms of text that must not be translated:
// all-caps acronyms, standard identifiers such as "S-100" or "ISO 19115",
// and acronyms written in parentheses.
func Terms(text string) []string {
	var found []string
	found = append(found, acronymTerm.FindAllString(text, -1)...)
	found = append(found, standardTerm.FindAllString(text, -1)...)
	for _, m := range parenthesizedAbr.FindAllStringSubmatch(text, -1) {
		found = append(found, m[1])
	}
	return distinct(found)
}

func distinct(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
