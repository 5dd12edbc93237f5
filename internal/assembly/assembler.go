// Package assembly runs the resumable section-by-section report generation
// loop under a token budget.
package assembly

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reportgen/internal/knowledge"
	"reportgen/internal/report"
	"reportgen/internal/toc"
	"reportgen/internal/yearfilter"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// FailurePolicy selects what happens when a section cannot be generated.
type FailurePolicy string

const (
	// PolicyCount writes a placeholder and counts the section as completed.
	PolicyCount FailurePolicy = "count"
	// PolicyRetry retries the section before falling back to PolicyCount.
	PolicyRetry FailurePolicy = "retry"
)

const (
	DefaultTokenBudget      = 128000
	DefaultBudgetRatio      = 0.9
	DefaultRetrievalResults = 3
	contextWindow           = 3
)

type Options struct {
	TokenBudget      int
	BudgetRatio      float64
	RetrievalResults int
	FailurePolicy    FailurePolicy
	MaxRetries       uint
	RetryDelay       time.Duration
	// PrefilterSource drops retrieved sentences that mention years the
	// section may not cover before they reach the generator.
	PrefilterSource bool
}

func (o Options) withDefaults() Options {
	if o.TokenBudget <= 0 {
		o.TokenBudget = DefaultTokenBudget
	}
	if o.BudgetRatio <= 0 || o.BudgetRatio > 1 {
		o.BudgetRatio = DefaultBudgetRatio
	}
	if o.RetrievalResults <= 0 {
		o.RetrievalResults = DefaultRetrievalResults
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = PolicyCount
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}

// Assembler generates report sections in assembly order.
type Assembler struct {
	gen       knowledge.Generator
	retriever knowledge.Retriever
	counter   knowledge.TokenCounter
	opts      Options
	log       *zap.Logger
}

// New creates an Assembler. A nil retriever makes every section use the full
// source; a nil counter falls back to the character approximation.
func New(gen knowledge.Generator, retriever knowledge.Retriever, counter knowledge.TokenCounter, opts Options, log *zap.Logger) *Assembler {
	if counter == nil {
		counter = knowledge.ApproxCounter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		gen:       gen,
		retriever: retriever,
		counter:   counter,
		opts:      opts.withDefaults(),
		log:       log,
	}
}

type Request struct {
	TOC            toc.TOC
	SourceContent  string
	Style          knowledge.StyleProfile
	ProtectedTerms []string
	// StartIndex is the number of sections already present in
	// ExistingReport.
	StartIndex     int
	ExistingReport string
	Eligibility    yearfilter.Context
	// Metrics, when set, receives one entry per generated section.
	Metrics *PassReport
}

type Result struct {
	Report         string   `json:"report"`
	CompletedCount int      `json:"completed_count"`
	TotalSections  int      `json:"total_sections"`
	IsComplete     bool     `json:"is_complete"`
	Paused         bool     `json:"paused"`
	Failed         []string `json:"failed,omitempty"`
}

// GenerateFullReport generates sections from req.StartIndex onward and
// appends them to req.ExistingReport. It stops before the next section once
// the running token estimate exceeds the budget threshold; calling it again
// with StartIndex = CompletedCount and ExistingReport = Report continues
// where it left off.
//
// Errors other than generation failures (context cancellation) abort the
// pass; the returned Result still holds every section finished so far.
func (a *Assembler) GenerateFullReport(ctx context.Context, req Request) (Result, error) {
	nodes := toc.AssemblyOrder(req.TOC)
	total := len(nodes)
	start := min(max(req.StartIndex, 0), total)

	w := report.NewWriter(req.ExistingReport)
	prior := report.RecentBlocks(req.ExistingReport, contextWindow)
	estimate := 0
	if req.ExistingReport != "" {
		estimate = a.counter.CountTokens(req.ExistingReport)
	}
	threshold := float64(a.opts.TokenBudget) * a.opts.BudgetRatio

	res := Result{CompletedCount: start, TotalSections: total}
	finish := func() Result {
		res.Report = w.String()
		res.IsComplete = res.CompletedCount >= total
		return res
	}

	for i := start; i < total; i++ {
		if float64(estimate) > threshold {
			a.log.Info("token budget reached, pausing",
				zap.Int("estimate", estimate), zap.Float64("threshold", threshold),
				zap.Int("completed", res.CompletedCount), zap.Int("total", total))
			res.Paused = true
			req.Metrics.AddSignal("token_budget", "warning",
				fmt.Sprintf("paused after %d of %d sections", res.CompletedCount, total), float64(estimate))
			res.Report = w.String()
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		node := nodes[i]
		started := time.Now()
		excerpt, hits := a.sourceExcerpt(ctx, node, req)
		elig := req.Eligibility.ForSection(node.Title)
		if a.opts.PrefilterSource && hits > 0 {
			if filtered := yearfilter.FilterContent(excerpt, node.Title, elig); filtered != "" {
				excerpt = filtered
			}
		}

		body, attempts, genErr := a.generate(ctx, knowledge.SectionRequest{
			Number:         node.Number,
			Title:          node.Title,
			Level:          node.Level,
			SourceExcerpt:  excerpt,
			Style:          req.Style,
			PriorSections:  prior,
			ProtectedTerms: req.ProtectedTerms,
			Eligibility:    elig,
		})
		if genErr != nil {
			if !knowledge.IsGenerationError(genErr) {
				return finish(), fmt.Errorf("section %s: %w", node.Number, genErr)
			}
			a.log.Warn("section generation failed",
				zap.String("section", node.Number), zap.Int("attempts", attempts), zap.Error(genErr))
			body = knowledge.Placeholder(genErr)
			res.Failed = append(res.Failed, node.Number)
		}

		w.Append(node.Number, node.Title, body)
		header := report.Header(node.Number, node.Title)
		prior = append(prior, header+"\n"+body)
		if len(prior) > contextWindow {
			prior = prior[len(prior)-contextWindow:]
		}
		sectionTokens := a.counter.CountTokens(header + "\n" + body)
		estimate += sectionTokens
		res.CompletedCount++

		metric := SectionMetric{
			Number:        node.Number,
			Title:         node.Title,
			RetrievalHits: hits,
			UsedFallback:  hits == 0,
			ExcerptRunes:  len([]rune(excerpt)),
			Tokens:        sectionTokens,
			Attempts:      attempts,
			DurationMS:    time.Since(started).Milliseconds(),
		}
		if genErr != nil {
			metric.Failed = true
			metric.Error = genErr.Error()
		} else {
			q := assessSection(node.Title, body, req.Style, elig)
			metric.QualityScore = q.Score
			metric.QualityIssues = q.Issues
			if q.Score < lowQualityScore {
				req.Metrics.AddSignal("section_quality", "warning",
					fmt.Sprintf("section %s: %s", node.Number, strings.Join(q.Issues, ", ")), q.Score)
			}
		}
		req.Metrics.AddSection(metric)

		a.log.Info("section generated",
			zap.String("section", node.Number), zap.Int("completed", res.CompletedCount),
			zap.Int("total", total), zap.Int("token_estimate", estimate))
	}

	return finish(), nil
}

// sourceExcerpt returns the retrieved text for node and the number of hits,
// or the full source when retrieval finds nothing.
func (a *Assembler) sourceExcerpt(ctx context.Context, node toc.Node, req Request) (string, int) {
	return Excerpt(ctx, a.retriever, node.Number+" "+node.Title, a.opts.RetrievalResults, req.SourceContent)
}

// Excerpt runs a similarity query and joins the hits with blank lines. It
// falls back to source when the retriever is nil or returns nothing.
func Excerpt(ctx context.Context, r knowledge.Retriever, query string, n int, source string) (string, int) {
	if r == nil {
		return source, 0
	}
	hits := r.SearchSimilar(ctx, query, n)
	if len(hits) == 0 {
		return source, 0
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n\n"), len(hits)
}

// generate calls the generator once, or under the retry policy up to
// MaxRetries additional times while it keeps failing with generation errors.
func (a *Assembler) generate(ctx context.Context, sreq knowledge.SectionRequest) (string, int, error) {
	if a.gen == nil {
		return "", 0, &knowledge.GenerationError{Section: sreq.Title, Reason: "generator not configured"}
	}
	attempts := 0
	call := func() (string, error) {
		attempts++
		return a.gen.GenerateSection(ctx, sreq)
	}
	if a.opts.FailurePolicy != PolicyRetry || a.opts.MaxRetries == 0 {
		text, err := call()
		return text, attempts, err
	}

	text, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(a.opts.MaxRetries+1),
		retry.Delay(a.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(knowledge.IsGenerationError),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			a.log.Debug("retrying section", zap.String("section", sreq.Number), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil && ctx.Err() != nil {
		return "", attempts, ctx.Err()
	}
	return text, attempts, err
}
