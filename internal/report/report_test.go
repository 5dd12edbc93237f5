package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockLayout(t *testing.T) {
	w := NewWriter("")
	w.Append("1", "사업 개요", "* 내용임.")
	w.Append("1-1", "추진 배경", "* 배경임.")

	want := "1. 사업 개요\n========\n\n* 내용임.\n\n\n" +
		"1-1. 추진 배경\n==========\n\n* 배경임.\n\n"
	assert.Equal(t, want, w.String())
}

func TestUnderline_CountsCharacters(t *testing.T) {
	assert.Equal(t, "=======", Underline("1. 개요 임"))
}

func TestWriter_ResumeMatchesSingleRun(t *testing.T) {
	single := NewWriter("")
	single.Append("1", "a", "x")
	single.Append("2", "b", "y")
	single.Append("3", "c", "z")

	first := NewWriter("")
	first.Append("1", "a", "x")
	resumed := NewWriter(first.String())
	resumed.Append("2", "b", "y")
	resumed.Append("3", "c", "z")

	assert.Equal(t, single.String(), resumed.String())
}

func TestParseCombineRoundTrip(t *testing.T) {
	sections := []Section{
		{Number: "1", Title: "사업 개요", Content: "* 첫째 내용임.\n* 둘째 내용임.\n\n* 단락 뒤 내용임."},
		{Number: "1-1", Title: "추진 배경", Content: "* 배경 설명함."},
		{Number: "2-1-3", Title: "세부 항목", Content: "본문"},
		{Number: "3", Title: "", Content: "제목 없는 섹션"},
	}

	text := CombineSections(sections)
	parsed := ParseSections(text)
	require.Len(t, parsed, len(sections))
	assert.Equal(t, sections, parsed)
	assert.Equal(t, text, CombineSections(parsed))
}

func TestParseSections_IgnoresPreamble(t *testing.T) {
	text := "머리말\n\n1. 개요\n====\n본문 한 줄\n2. 결론\n=====\n끝"
	parsed := ParseSections(text)
	require.Len(t, parsed, 2)
	assert.Equal(t, Section{Number: "1", Title: "개요", Content: "본문 한 줄"}, parsed[0])
	assert.Equal(t, Section{Number: "2", Title: "결론", Content: "끝"}, parsed[1])

	assert.Empty(t, ParseSections("헤더 없는 텍스트"))
}

func TestParseSections_NumberedLinesInBody(t *testing.T) {
	body := "1. 추진 배경\n2024.03 착수\n2-1. 세부 일정\n* 설치함."
	text := CombineSections([]Section{
		{Number: "1", Title: "사업 개요", Content: body},
		{Number: "2", Title: "추진 실적", Content: "* 완료함."},
	})

	parsed := ParseSections(text)
	require.Len(t, parsed, 2)
	assert.Equal(t, body, parsed[0].Content)
	assert.Equal(t, "2", parsed[1].Number)

	// a round trip does not turn body lines into headers
	assert.Equal(t, text, CombineSections(parsed))
}

func TestRecentBlocks(t *testing.T) {
	text := CombineSections([]Section{
		{Number: "1", Title: "a", Content: "x"},
		{Number: "2", Title: "b", Content: "y"},
		{Number: "3", Title: "c", Content: "z"},
		{Number: "4", Title: "d", Content: "w"},
	})
	blocks := RecentBlocks(text, 3)
	require.Len(t, blocks, 3)
	assert.Contains(t, blocks[0], "2. b")
	assert.Contains(t, blocks[2], "4. d")

	assert.Nil(t, RecentBlocks("", 3))
}

func TestReplaceSection(t *testing.T) {
	sections := []Section{{Number: "1", Content: "a"}, {Number: "2", Content: "b"}}
	assert.True(t, ReplaceSection(sections, "2", "c"))
	assert.Equal(t, "c", sections[1].Content)
	assert.False(t, ReplaceSection(sections, "9", "d"))
}
