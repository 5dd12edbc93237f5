package refine

import (
	"context"
	"fmt"

	"reportgen/internal/assembly"
	"reportgen/internal/knowledge"
	"reportgen/internal/report"
	"reportgen/internal/toc"
	"reportgen/internal/yearfilter"

	"go.uber.org/zap"
)

const (
	DefaultRetrievalResults = 5
	priorContentRunes       = 1000
)

// Refiner applies modification requests to a report.
type Refiner struct {
	gen        knowledge.Generator
	retriever  knowledge.Retriever
	assembler  *assembly.Assembler
	retrievalN int
	log        *zap.Logger
}

// New creates a Refiner. retrievalN <= 0 uses DefaultRetrievalResults.
func New(gen knowledge.Generator, retriever knowledge.Retriever, assembler *assembly.Assembler, retrievalN int, log *zap.Logger) *Refiner {
	if retrievalN <= 0 {
		retrievalN = DefaultRetrievalResults
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Refiner{
		gen:        gen,
		retriever:  retriever,
		assembler:  assembler,
		retrievalN: retrievalN,
		log:        log,
	}
}

type Request struct {
	Report         string
	Modification   string
	TOC            toc.TOC
	SourceContent  string
	Style          knowledge.StyleProfile
	ProtectedTerms []string
	Eligibility    yearfilter.Context
}

// Outcome describes what a refinement did. When Applied is false Report is
// the unchanged input and Reason says why.
type Outcome struct {
	Report         string           `json:"report"`
	Classification Classification   `json:"classification"`
	Applied        bool             `json:"applied"`
	Reason         string           `json:"reason,omitempty"`
	Assembly       *assembly.Result `json:"assembly,omitempty"`
}

// Refine classifies req.Modification and applies it.
func (r *Refiner) Refine(ctx context.Context, req Request) (Outcome, error) {
	c := Classify(req.Modification)
	out := Outcome{Report: req.Report, Classification: c}
	log := r.log.With(zap.String("intent", string(c.Intent)))

	switch c.Intent {
	case IntentRegenerateAll:
		return r.regenerateAll(ctx, req, out)
	case IntentSpecificSection:
		return r.refineSection(ctx, req, out)
	case IntentAddContent:
		out.Reason = "콘텐츠 추가 요청은 아직 지원되지 않습니다. 수정할 섹션 번호를 지정해 주세요."
	default:
		out.Reason = "요청 유형을 판별할 수 없습니다. 섹션 번호(예: 2-1번) 또는 '전체 다시 생성'을 지정해 주세요."
	}
	log.Warn("modification request not applied", zap.String("request", req.Modification))
	return out, nil
}

// regenerateAll rebuilds the whole report from scratch. The request text is
// not passed to the generator.
func (r *Refiner) regenerateAll(ctx context.Context, req Request, out Outcome) (Outcome, error) {
	if r.assembler == nil {
		out.Reason = "보고서 생성기가 구성되지 않았습니다."
		return out, nil
	}
	res, err := r.assembler.GenerateFullReport(ctx, assembly.Request{
		TOC:            req.TOC,
		SourceContent:  req.SourceContent,
		Style:          req.Style,
		ProtectedTerms: req.ProtectedTerms,
		Eligibility:    req.Eligibility,
	})
	out.Assembly = &res
	if err != nil {
		return out, fmt.Errorf("regenerate report: %w", err)
	}
	out.Report = res.Report
	out.Applied = true
	return out, nil
}

func (r *Refiner) refineSection(ctx context.Context, req Request, out Outcome) (Outcome, error) {
	number := out.Classification.Section
	sections := report.ParseSections(req.Report)

	idx := -1
	for i, s := range sections {
		if s.Number == number {
			idx = i
			break
		}
	}
	if idx < 0 {
		out.Reason = fmt.Sprintf("보고서에서 %s 섹션을 찾을 수 없습니다.", number)
		r.log.Warn("section not found", zap.String("section", number))
		return out, nil
	}
	target := sections[idx]

	node, ok := req.TOC.Find(number)
	if !ok {
		node = toc.Node{Number: number, Title: target.Title, Level: 1}
	}

	relevant, _ := assembly.Excerpt(ctx, r.retriever,
		fmt.Sprintf("%s %s %s", number, node.Title, req.Modification), r.retrievalN, req.SourceContent)
	excerpt := fmt.Sprintf("%s\n\n[수정 요청: %s]\n\n[기존 내용 참고: %s]",
		relevant, req.Modification, knowledge.TruncateRunes(target.Content, priorContentRunes))

	if r.gen == nil {
		out.Reason = "생성 백엔드가 구성되지 않았습니다."
		return out, nil
	}
	content, err := r.gen.GenerateSection(ctx, knowledge.SectionRequest{
		Number:         number,
		Title:          node.Title,
		Level:          node.Level,
		SourceExcerpt:  excerpt,
		Style:          req.Style,
		PriorSections:  []string{target.Content},
		ProtectedTerms: req.ProtectedTerms,
		Eligibility:    req.Eligibility.ForSection(node.Title),
	})
	if err != nil {
		if !knowledge.IsGenerationError(err) {
			return out, fmt.Errorf("refine section %s: %w", number, err)
		}
		// keep the existing text rather than splicing in a placeholder
		out.Reason = err.Error()
		r.log.Warn("section refinement failed", zap.String("section", number), zap.Error(err))
		return out, nil
	}

	sections[idx] = report.Section{Number: number, Title: node.Title, Content: content}
	out.Report = report.CombineSections(sections)
	out.Applied = true
	r.log.Info("section refined", zap.String("section", number))
	return out, nil
}
