package knowledge

import (
	"fmt"
	"strings"

	"reportgen/internal/yearfilter"
)

const (
	maxSourceExcerptRunes = 5000
	maxPriorSections      = 3
	maxProtectedTerms     = 50
	maxSystemEndings      = 15
	maxUserEndings        = 10
)

// PromptBuilder renders the system and user prompts for section generation.
type PromptBuilder struct{}

func (pb *PromptBuilder) BuildSystemPrompt(style StyleProfile, terms []string, elig yearfilter.Context) string {
	var sb strings.Builder
	sb.WriteString("당신은 한국어 비즈니스 보고서 작성 보조자입니다.\n")
	sb.WriteString("- 참고 문서의 어조, 용어, 문장 구조를 분석하여 그대로 따릅니다.\n")
	sb.WriteString("- 소스 문서에서 현재 섹션에 해당하는 내용만 골라 작성합니다.\n")
	sb.WriteString("- 사실 정보는 더하거나 빼지 않고 보존합니다.\n")
	sb.WriteString("- 적절한 위치에 이미지 추천을 한국어 설명으로 덧붙입니다.\n")

	sb.WriteString("\n[문체]\n")
	sb.WriteString("- 모든 출력은 한국어로 작성합니다.\n")
	if style.Itemized {
		sb.WriteString("- 개조식 문체만 사용합니다. 각 문장은 불릿(*)으로 시작하고 개조식 종결어미(~임, ~함, ~됨, ~예정임, ~계획임 등)로 끝납니다.\n")
		sb.WriteString("- 문단형 종결(~다, ~습니다, ~합니다)은 사용하지 않습니다.\n")
	} else {
		sb.WriteString("- 참고 문서와 같은 서술형 문단으로 작성합니다.\n")
	}
	if endings := head(style.ItemizedEndings, maxSystemEndings); len(endings) > 0 {
		fmt.Fprintf(&sb, "- 참고 문서에서 발견된 종결어미: %s\n", strings.Join(endings, ", "))
	}
	sb.WriteString("- 정부 보고서에 맞는 공식적인 비즈니스 문체를 유지합니다.\n")

	sb.WriteString("\n[기술 용어 보존]\n")
	sb.WriteString("- 약어, 표준 번호, 기관명은 번역하지 않고 원문 그대로 씁니다.\n")
	sb.WriteString("- 참고 문서가 \"국문명(약어)\" 형식을 쓰면 같은 형식을 따릅니다.\n")
	sb.WriteString("- 확실하지 않으면 번역어를 만들지 말고 원문 용어를 씁니다.\n")
	fmt.Fprintf(&sb, "보호 용어 목록: %s\n", strings.Join(head(terms, maxProtectedTerms), ", "))

	sb.WriteString("\n[제약]\n")
	sb.WriteString("- 제공되지 않은 데이터나 주장을 만들어내지 않습니다.\n")
	sb.WriteString("- 내용을 임의로 생략하거나 바꾸지 않습니다.\n")
	sb.WriteString("- 간결함보다 완전성과 품질을 우선합니다.\n")

	sb.WriteString("\n")
	sb.WriteString(buildYearRules(elig))
	return sb.String()
}

func buildYearRules(elig yearfilter.Context) string {
	cur := elig.CurrentYear
	var sb strings.Builder
	sb.WriteString("[연도 기반 내용 선별 규칙]\n")
	fmt.Fprintf(&sb, "현재 보고 연도: %d차년도 / 전체 기간: %d차년도\n", cur, elig.TotalYears)
	fmt.Fprintf(&sb, "1. %d차년도 내용은 포함합니다.\n", cur)
	if cur > 1 {
		fmt.Fprintf(&sb, "2. %d차년도 이하의 지난 연도 내용은 절대 포함하지 않습니다.\n", cur-1)
	} else {
		sb.WriteString("2. 현재 연도보다 앞선 연도 내용은 절대 포함하지 않습니다.\n")
	}
	fmt.Fprintf(&sb, "3. %d차년도 내용은 목차에 다음 연도 계획 섹션이 있을 때 그 섹션에서만 사용합니다. 그런 섹션이 없으면 완전히 제외합니다.\n", cur+1)
	fmt.Fprintf(&sb, "4. %d차년도 이후 내용은 항상 제외합니다.\n", cur+2)
	sb.WriteString("5. 여러 연도가 함께 언급된 문장은 모든 연도가 허용될 때만 사용합니다.\n")

	sb.WriteString("현재 상태:\n")
	if elig.HasNextYearSection {
		sb.WriteString("- 다음 연도 계획 섹션 존재: 예\n")
	} else {
		sb.WriteString("- 다음 연도 계획 섹션 존재: 아니오\n")
	}
	if len(elig.MatchingSectionTitles) > 0 {
		fmt.Fprintf(&sb, "- 이 섹션은 다음 연도 계획 섹션입니다 (매칭: %s). %d차년도 내용을 사용할 수 있습니다.\n",
			strings.Join(elig.MatchingSectionTitles, ", "), cur+1)
	} else {
		fmt.Fprintf(&sb, "- 이 섹션에서는 %d차년도 내용을 사용하지 않습니다.\n", cur+1)
	}
	return sb.String()
}

func (pb *PromptBuilder) BuildUserPrompt(req SectionRequest) string {
	var sb strings.Builder
	sb.WriteString("다음 섹션을 작성해주세요.\n\n")
	fmt.Fprintf(&sb, "섹션 제목: %s\n", req.Title)
	fmt.Fprintf(&sb, "섹션 레벨: %d\n\n", req.Level)
	sb.WriteString("소스 문서 내용:\n")
	sb.WriteString(TruncateRunes(req.SourceExcerpt, maxSourceExcerptRunes))
	sb.WriteString("\n")

	if prior := tail(req.PriorSections, maxPriorSections); len(prior) > 0 {
		sb.WriteString("\n이전 섹션:\n")
		sb.WriteString(strings.Join(prior, "\n\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n요구사항:\n")
	if req.Style.Itemized {
		sb.WriteString("1. 개조식 문체로 작성하고 각 문장을 불릿(*)으로 시작하세요.\n")
		sb.WriteString("2. 문장은 개조식 종결어미로 끝내고 문단형 종결은 쓰지 마세요.\n")
	} else {
		sb.WriteString("1. 참고 문서와 같은 문단 형식으로 작성하세요.\n")
		sb.WriteString("2. 참고 문서의 문장 종결 방식을 그대로 따르세요.\n")
	}
	if endings := head(req.Style.ItemizedEndings, maxUserEndings); len(endings) > 0 {
		fmt.Fprintf(&sb, "3. 참고 문서의 종결어미 예시를 따르세요: %s\n", strings.Join(endings, ", "))
	} else {
		sb.WriteString("3. 참고 문서의 스타일을 정확히 따르세요.\n")
	}
	sb.WriteString("4. 소스 문서의 정보만 사용하고 새로운 정보를 만들지 마세요.\n")
	sb.WriteString("5. 기술 용어는 원문 그대로 보존하세요.\n")
	sb.WriteString("6. 필요한 위치에 [이미지 추천: 설명 - 위치 맥락] 형식으로 이미지 추천을 넣으세요.\n")
	sb.WriteString("7. 섹션 제목은 다시 쓰지 말고 본문만 출력하세요.\n")
	return sb.String()
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func tail(items []string, n int) []string {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
