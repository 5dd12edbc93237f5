package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reportgen/internal/assembly"
	"reportgen/internal/knowledge"
	"reportgen/internal/report"
	"reportgen/internal/toc"
	"reportgen/internal/yearfilter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		request string
		want    Classification
	}{
		{"전체 다시 생성해줘", Classification{Intent: IntentRegenerateAll}},
		{"3번 섹션 더 자세히", Classification{Intent: IntentSpecificSection, Section: "3"}},
		{"이미지 추가해줘", Classification{Intent: IntentAddContent}},
		{"안녕하세요", Classification{Intent: IntentGeneral}},
		{"2-1번 문장을 다듬어 줘", Classification{Intent: IntentSpecificSection, Section: "2-1"}},
		{"1-2-3번째 항목 수정", Classification{Intent: IntentSpecificSection, Section: "1-2-3"}},
		{"섹션 4-2 표현 수정", Classification{Intent: IntentSpecificSection, Section: "4-2"}},
		{"섹션4 수정", Classification{Intent: IntentSpecificSection, Section: "4"}},
		// whole-scope markers win over section references
		{"2번 섹션 다시 작성", Classification{Intent: IntentRegenerateAll}},
		{"내용을 보완해 주세요", Classification{Intent: IntentAddContent}},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.request))
		})
	}
}

type recordingGenerator struct {
	err      error
	requests []knowledge.SectionRequest
}

func (g *recordingGenerator) GenerateSection(_ context.Context, req knowledge.SectionRequest) (string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	return "new " + req.Number, nil
}

type staticRetriever struct {
	hits    []string
	queries []string
}

func (s *staticRetriever) SearchSimilar(_ context.Context, query string, n int) []knowledge.SearchResult {
	s.queries = append(s.queries, query)
	var out []knowledge.SearchResult
	for _, h := range s.hits {
		out = append(out, knowledge.SearchResult{Text: h})
	}
	return out
}

func refineTOC(t *testing.T) toc.TOC {
	t.Helper()
	var out toc.TOC
	for _, n := range []struct {
		number, title string
		level         int
	}{
		{"1", "사업 개요", 1},
		{"2", "추진 실적", 1},
		{"2-1", "다음년도 계획", 2},
	} {
		node, err := toc.NewNode(n.number, n.title, n.level, "", nil)
		require.NoError(t, err)
		out = append(out, node)
	}
	return out
}

func baseReport() string {
	return report.CombineSections([]report.Section{
		{Number: "1", Title: "사업 개요", Content: "old 1"},
		{Number: "2", Title: "추진 실적", Content: "old 2"},
		{Number: "2-1", Title: "다음년도 계획", Content: strings.Repeat("가", 1200)},
	})
}

func TestRefine_SpecificSection(t *testing.T) {
	gen := &recordingGenerator{}
	retriever := &staticRetriever{hits: []string{"hit a", "hit b"}}
	r := New(gen, retriever, nil, 0, nil)
	tc := refineTOC(t)

	out, err := r.Refine(context.Background(), Request{
		Report:       baseReport(),
		Modification: "2-1번 더 구체적으로",
		TOC:          tc,
		Eligibility:  yearfilter.NewContext(2, 5, tc),
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, IntentSpecificSection, out.Classification.Intent)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, "다음년도 계획", req.Title)
	assert.Equal(t, 2, req.Level)
	assert.Equal(t, []string{"2-1 다음년도 계획 2-1번 더 구체적으로"}, retriever.queries)
	assert.True(t, strings.HasPrefix(req.SourceExcerpt, "hit a\n\nhit b\n\n[수정 요청: 2-1번 더 구체적으로]\n\n[기존 내용 참고: "))
	assert.Contains(t, req.SourceExcerpt, strings.Repeat("가", 1000)+"]")
	assert.NotContains(t, req.SourceExcerpt, strings.Repeat("가", 1001))
	assert.Equal(t, []string{strings.Repeat("가", 1200)}, req.PriorSections)
	assert.Equal(t, []string{"다음년도 계획"}, req.Eligibility.MatchingSectionTitles)

	sections := report.ParseSections(out.Report)
	require.Len(t, sections, 3)
	assert.Equal(t, "old 1", sections[0].Content)
	assert.Equal(t, "old 2", sections[1].Content)
	assert.Equal(t, "new 2-1", sections[2].Content)
}

func TestRefine_SpecificSectionFallbacks(t *testing.T) {
	gen := &recordingGenerator{}
	r := New(gen, &staticRetriever{}, nil, 0, nil)

	// section absent from the TOC: title from the report, level 1
	out, err := r.Refine(context.Background(), Request{
		Report:        baseReport(),
		Modification:  "2번 수정",
		SourceContent: "FULL SOURCE",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, "추진 실적", gen.requests[0].Title)
	assert.Equal(t, 1, gen.requests[0].Level)
	assert.True(t, strings.HasPrefix(gen.requests[0].SourceExcerpt, "FULL SOURCE\n\n[수정 요청: 2번 수정]"))
	assert.Empty(t, gen.requests[0].Eligibility.MatchingSectionTitles)
}

func TestRefine_MissingSectionLeavesReportUnchanged(t *testing.T) {
	gen := &recordingGenerator{}
	r := New(gen, nil, nil, 0, nil)
	in := baseReport()

	out, err := r.Refine(context.Background(), Request{Report: in, Modification: "9번 수정"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.NotEmpty(t, out.Reason)
	assert.Equal(t, in, out.Report)
	assert.Empty(t, gen.requests)
}

func TestRefine_GenerationFailureKeepsExistingText(t *testing.T) {
	gen := &recordingGenerator{err: &knowledge.GenerationError{Reason: "quota"}}
	r := New(gen, nil, nil, 0, nil)
	in := baseReport()

	out, err := r.Refine(context.Background(), Request{Report: in, Modification: "1번 수정"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Contains(t, out.Reason, "quota")
	assert.Equal(t, in, out.Report)

	gen.err = context.Canceled
	_, err = r.Refine(context.Background(), Request{Report: in, Modification: "1번 수정"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRefine_RegenerateAll(t *testing.T) {
	gen := &recordingGenerator{}
	a := assembly.New(gen, nil, nil, assembly.Options{}, nil)
	r := New(gen, nil, a, 0, nil)
	tc := refineTOC(t)

	out, err := r.Refine(context.Background(), Request{
		Report:        "stale",
		Modification:  "전체 다시 생성해줘",
		TOC:           tc,
		SourceContent: "S",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	require.NotNil(t, out.Assembly)
	assert.True(t, out.Assembly.IsComplete)
	assert.NotContains(t, out.Report, "stale")
	assert.Len(t, report.ParseSections(out.Report), 3)
	for _, req := range gen.requests {
		assert.NotContains(t, req.SourceExcerpt, "전체 다시")
	}
}

func TestRefine_UnsupportedIntentsAreExplicitNoOps(t *testing.T) {
	gen := &recordingGenerator{}
	r := New(gen, nil, nil, 0, nil)
	in := baseReport()

	for _, request := range []string{"이미지 추가해줘", "안녕하세요"} {
		out, err := r.Refine(context.Background(), Request{Report: in, Modification: request})
		require.NoError(t, err)
		assert.False(t, out.Applied, request)
		assert.NotEmpty(t, out.Reason, request)
		assert.Equal(t, in, out.Report, request)
	}
	assert.Empty(t, gen.requests)
}
