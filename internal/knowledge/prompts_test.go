package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reportgen/internal/yearfilter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUserPrompt_Caps(t *testing.T) {
	pb := &PromptBuilder{}
	source := strings.Repeat("가", 5000) + "TAIL_MARKER"
	req := SectionRequest{
		Title:         "사업 개요",
		Level:         1,
		SourceExcerpt: source,
		PriorSections: []string{"PRIOR-0", "PRIOR-1", "PRIOR-2", "PRIOR-3"},
		Style:         StyleProfile{Itemized: true, ItemizedEndings: manyEndings(20)},
	}

	prompt := pb.BuildUserPrompt(req)
	assert.Contains(t, prompt, "섹션 제목: 사업 개요")
	assert.NotContains(t, prompt, "TAIL_MARKER")
	assert.NotContains(t, prompt, "PRIOR-0")
	assert.Contains(t, prompt, "PRIOR-1")
	assert.Contains(t, prompt, "PRIOR-3")
	assert.Contains(t, prompt, "E9함")
	assert.NotContains(t, prompt, "E10함")
	assert.Contains(t, prompt, "불릿")
}

func TestBuildSystemPrompt_CapsAndYearRules(t *testing.T) {
	pb := &PromptBuilder{}
	terms := make([]string, 60)
	for i := range terms {
		terms[i] = fmt.Sprintf("T%02d", i)
	}
	elig := yearfilter.Context{CurrentYear: 2, TotalYears: 5, HasNextYearSection: true, MatchingSectionTitles: []string{"3차년도 계획"}}

	prompt := pb.BuildSystemPrompt(StyleProfile{ItemizedEndings: manyEndings(20)}, terms, elig)
	assert.Contains(t, prompt, "T49")
	assert.NotContains(t, prompt, "T50")
	assert.Contains(t, prompt, "E14함")
	assert.NotContains(t, prompt, "E15함")
	assert.Contains(t, prompt, "현재 보고 연도: 2차년도 / 전체 기간: 5차년도")
	assert.Contains(t, prompt, "3차년도 계획")
	assert.Contains(t, prompt, "서술형")

	noPlan := pb.BuildSystemPrompt(StyleProfile{Itemized: true}, nil, yearfilter.Context{CurrentYear: 1, TotalYears: 3})
	assert.Contains(t, noPlan, "다음 연도 계획 섹션 존재: 아니오")
	assert.Contains(t, noPlan, "개조식")
}

func manyEndings(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("E%d함", i)
	}
	return out
}

func TestPlaceholder(t *testing.T) {
	err := &GenerationError{Section: "개요", Reason: "timeout"}
	text := Placeholder(err)
	assert.True(t, strings.HasPrefix(text, WarningMarker))
	assert.Contains(t, text, "timeout")
	assert.True(t, IsPlaceholder(text))
	assert.False(t, IsPlaceholder("* 정상 내용임."))
	assert.True(t, IsGenerationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsGenerationError(errors.New("plain")))
}

func TestNewGenerationError_PassesContextErrors(t *testing.T) {
	assert.ErrorIs(t, newGenerationError("s", context.Canceled), context.Canceled)
	assert.False(t, IsGenerationError(newGenerationError("s", context.DeadlineExceeded)))
	assert.True(t, IsGenerationError(newGenerationError("s", errors.New("boom"))))
	assert.NoError(t, newGenerationError("s", nil))
}

func TestFinalizeOutput(t *testing.T) {
	text, err := finalizeOutput("s", "```markdown\n* 내용임.\n```")
	require.NoError(t, err)
	assert.Equal(t, "* 내용임.", text)

	_, err = finalizeOutput("s", "   ")
	assert.True(t, IsGenerationError(err))

	text, err = finalizeOutput("s", WarningMarker+" 주의 사항임.")
	require.NoError(t, err)
	assert.False(t, IsPlaceholder(text))
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	gen, err := NewGenerator(ctx, GeneratorOptions{Provider: "openai"})
	require.NoError(t, err)
	_, err = gen.GenerateSection(ctx, SectionRequest{Title: "개요"})
	assert.True(t, IsGenerationError(err))

	gen, err = NewGenerator(ctx, GeneratorOptions{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)

	_, err = NewGenerator(ctx, GeneratorOptions{Provider: "claude", APIKey: "x"})
	assert.Error(t, err)
}
