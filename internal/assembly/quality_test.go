package assembly

import (
	"context"
	"testing"

	"reportgen/internal/knowledge"
	"reportgen/internal/yearfilter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessSection(t *testing.T) {
	elig := yearfilter.Context{CurrentYear: 2, TotalYears: 5}
	itemized := knowledge.StyleProfile{Itemized: true}

	tests := []struct {
		name    string
		title   string
		content string
		style   knowledge.StyleProfile
		issues  []string
	}{
		{"clean prose", "추진 실적", "2차년도에 장비를 설치하였다.\n시험 운영을 마쳤다.", knowledge.StyleProfile{}, []string{}},
		{"clean itemized", "추진 실적", "* 장비를 설치함\n* 시험 운영을 완료함", itemized, []string{}},
		{"empty", "추진 실적", "  ", knowledge.StyleProfile{}, []string{"empty_content"}},
		{"prose where items expected", "추진 실적", "장비를 설치하였다.\n시험을 마쳤다.", itemized, []string{"not_itemized"}},
		{"list in prose report", "추진 실적", "- 장비 설치\n- 시험 운영", knowledge.StyleProfile{}, []string{"list_heavy"}},
		{"markdown heading", "추진 실적", "## 실적\n* 장비를 설치함", itemized, []string{"markdown_heading"}},
		{"past year", "추진 실적", "* 1차년도 장비를 설치함", itemized, []string{"ineligible_year_1"}},
		{"next year outside plan section", "추진 실적", "* 3차년도에 확대 예정임", itemized, []string{"ineligible_year_3"}},
		{"leftover instructions", "추진 실적", "* 세부 내용 작성 예정임", itemized, []string{"instructional_or_placeholder_text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := assessSection(tt.title, tt.content, tt.style, elig)
			assert.ElementsMatch(t, tt.issues, q.Issues)
			if len(tt.issues) == 0 {
				assert.Equal(t, 1.0, q.Score)
			} else {
				assert.Less(t, q.Score, 1.0)
			}
		})
	}
}

func TestAssessSection_NextYearInsidePlanSection(t *testing.T) {
	elig := yearfilter.Context{
		CurrentYear:           2,
		TotalYears:            5,
		HasNextYearSection:    true,
		MatchingSectionTitles: []string{"3차년도 계획"},
	}
	q := assessSection("3차년도 계획", "* 3차년도에 확대 구축함", knowledge.StyleProfile{Itemized: true}, elig)
	assert.Empty(t, q.Issues)
}

func TestGenerateFullReport_RecordsQuality(t *testing.T) {
	gen := &scriptedGenerator{}
	metrics := NewPassReport("full", "s")
	a := New(gen, nil, nil, Options{}, nil)

	_, err := a.GenerateFullReport(context.Background(), Request{
		TOC:     testTOC(t),
		Style:   knowledge.StyleProfile{Itemized: true},
		Metrics: metrics,
	})
	require.NoError(t, err)
	require.Len(t, metrics.Sections, 4)
	for _, m := range metrics.Sections {
		assert.Equal(t, []string{"not_itemized"}, m.QualityIssues)
		assert.InDelta(t, 0.75, m.QualityScore, 1e-9)
	}

	metrics.Finalize()
	assert.Zero(t, metrics.Summary.LowQuality)
}
