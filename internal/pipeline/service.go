// Package pipeline wires configuration, storage, retrieval and generation
// into the operations the CLI and the HTTP API expose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"reportgen/internal/assembly"
	"reportgen/internal/config"
	"reportgen/internal/extract"
	"reportgen/internal/knowledge"
	"reportgen/internal/logger"
	"reportgen/internal/refine"
	"reportgen/internal/session"
	"reportgen/internal/storage"

	"go.uber.org/zap"
)

// Components are the collaborators a Service is built from.
type Components struct {
	Store     storage.Store
	Embedder  knowledge.Embedder
	Generator knowledge.Generator
	Counter   knowledge.TokenCounter
}

type Service struct {
	cfg      *config.Config
	log      *zap.Logger
	store    storage.Store
	embedder knowledge.Embedder
	gen      knowledge.Generator
	counter  knowledge.TokenCounter

	Sessions *session.SQLiteRepository

	mu       sync.Mutex
	memIndex map[string]*knowledge.MemoryIndex
}

// New opens the database and builds the configured backends. Backends that
// cannot be built are logged and degrade: a missing embedder disables
// retrieval, a missing API key makes every section a placeholder.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Service, error) {
	log = logger.Module(log, "pipeline")

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	em, err := knowledge.NewEmbedder(ctx, knowledge.EmbedderOptions{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BaseURL:   cfg.Embedding.BaseURL,
	})
	if err != nil {
		log.Warn("embedder unavailable, retrieval disabled", zap.Error(err))
		em = nil
	}

	gen, err := knowledge.NewGenerator(ctx, knowledge.GeneratorOptions{
		Provider:        cfg.AI.Provider,
		APIKey:          cfg.AI.APIKey,
		Model:           cfg.AI.Model,
		BaseURL:         cfg.AI.BaseURL,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return NewWithComponents(cfg, log, Components{
		Store:     store,
		Embedder:  em,
		Generator: gen,
		Counter:   knowledge.NewTiktokenCounter(cfg.AI.Model, log),
	}), nil
}

// NewWithComponents builds a Service from ready collaborators.
func NewWithComponents(cfg *config.Config, log *zap.Logger, c Components) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		store:    c.Store,
		embedder: c.Embedder,
		gen:      c.Generator,
		counter:  c.Counter,
		Sessions: session.NewSQLiteRepository(c.Store),
		memIndex: make(map[string]*knowledge.MemoryIndex),
	}
}

func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) Config() *config.Config { return s.cfg }

// engine returns the retrieval engine over the session's collection.
func (s *Service) engine(sessionID string) *knowledge.Engine {
	var idx knowledge.Indexer
	if s.embedder != nil {
		idx = s.collection(sessionID)
	}
	return knowledge.NewEngine(s.embedder, idx, s.cfg.Storage.ChunkSize, logger.Module(s.log, "retrieval"))
}

// collection returns the vector index of a session in the configured store.
func (s *Service) collection(sessionID string) knowledge.Indexer {
	name := s.collectionName(sessionID)
	if s.cfg.Storage.VectorStore != "memory" {
		return s.store.Collection(name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.memIndex[name]
	if !ok {
		idx = knowledge.NewMemoryIndex()
		s.memIndex[name] = idx
	}
	return idx
}

func (s *Service) collectionName(sessionID string) string {
	if sessionID == "" {
		return s.cfg.Storage.Collection
	}
	return s.cfg.Storage.Collection + "_" + sessionID
}

func (s *Service) assembler(sessionID string) *assembly.Assembler {
	g := s.cfg.Generation
	return assembly.New(s.gen, s.engine(sessionID), s.counter, assembly.Options{
		TokenBudget:      g.TokenBudget,
		BudgetRatio:      g.BudgetRatio,
		RetrievalResults: g.RetrievalResults,
		FailurePolicy:    assembly.FailurePolicy(g.FailurePolicy),
		MaxRetries:       uint(g.MaxRetries),
		PrefilterSource:  g.PrefilterSource,
	}, logger.Module(s.log, "assembly"))
}

// IndexedChunks reports how many source chunks the session's collection
// holds. 0 means generation falls back to the full source text.
func (s *Service) IndexedChunks(ctx context.Context, sessionID string) int {
	if s.embedder == nil {
		return 0
	}
	return s.engine(sessionID).Size(ctx)
}

// IngestReference stores a reference document and derives its style.
func (s *Service) IngestReference(sess *session.Session, label, text string) knowledge.StyleProfile {
	style := extract.FormattingPatterns(text)
	sess.SetReference(label, text, style)
	s.log.Info("reference ingested",
		zap.String("session", sess.ID), zap.String("label", label),
		zap.Bool("itemized", style.Itemized), zap.Int("terms", len(style.TechnicalTerms)))
	return style
}

// IngestSource stores a source document and indexes it for retrieval. It
// returns the number of indexed chunks; 0 means retrieval will fall back to
// the full text.
func (s *Service) IngestSource(ctx context.Context, sess *session.Session, label, text string) int {
	sess.SetSource(label, text)
	engine := s.engine(sess.ID)
	engine.Clear(ctx)
	chunks := engine.IndexSource(ctx, label, text)
	s.log.Info("source ingested", zap.String("session", sess.ID), zap.String("label", label), zap.Int("chunks", chunks))
	return chunks
}

// IngestFile extracts text from path and ingests it as the reference or the
// source document.
func (s *Service) IngestFile(ctx context.Context, sess *session.Session, kind, path string) (extract.Result, error) {
	res := extract.File(path)
	for _, w := range res.Warnings {
		s.log.Warn("extraction warning", zap.String("file", path), zap.String("warning", w))
	}
	label := filepath.Base(path)
	switch kind {
	case "reference":
		s.IngestReference(sess, label, res.Text)
	case "source":
		s.IngestSource(ctx, sess, label, res.Text)
	default:
		return res, fmt.Errorf("unknown document kind %q", kind)
	}
	return res, nil
}

// Generate runs one generation pass and writes the result back into the
// session. A paused report is resumed; a complete one is discarded and
// generated again from the first section.
func (s *Service) Generate(ctx context.Context, sess *session.Session, metrics *assembly.PassReport) (assembly.Result, error) {
	if err := sess.Ready(); err != nil {
		return assembly.Result{}, err
	}
	if sess.Progress.State() == assembly.StateComplete {
		s.log.Info("report complete, starting a fresh pass", zap.String("session", sess.ID))
		sess.ResetReport()
	}

	sess.Progress.Begin(len(sess.TOC))
	res, err := s.assembler(sess.ID).GenerateFullReport(ctx, assembly.Request{
		TOC:            sess.TOC,
		SourceContent:  sess.SourceText,
		Style:          sess.Style,
		ProtectedTerms: sess.ProtectedTerms,
		StartIndex:     sess.Progress.CurrentSectionIndex,
		ExistingReport: sess.Report,
		Eligibility:    sess.Eligibility(),
		Metrics:        metrics,
	})
	sess.ApplyPass(res)
	return res, err
}

// Refine applies a modification request to the session's report.
func (s *Service) Refine(ctx context.Context, sess *session.Session, request string) (refine.Outcome, error) {
	if sess.Report == "" {
		return refine.Outcome{}, errors.New("수정할 보고서가 없습니다")
	}
	r := refine.New(s.gen, s.engine(sess.ID), s.assembler(sess.ID),
		s.cfg.Generation.RefineRetrievalResults, logger.Module(s.log, "refine"))

	out, err := r.Refine(ctx, refine.Request{
		Report:         sess.Report,
		Modification:   request,
		TOC:            sess.TOC,
		SourceContent:  sess.SourceText,
		Style:          sess.Style,
		ProtectedTerms: sess.ProtectedTerms,
		Eligibility:    sess.Eligibility(),
	})
	switch {
	case out.Assembly != nil:
		sess.ApplyPass(*out.Assembly)
	case out.Applied:
		sess.SetReport(out.Report)
	}
	return out, err
}

// Reset discards the session's report and progress.
func (s *Service) Reset(sess *session.Session) {
	sess.ResetReport()
}

// Delete removes a session together with its retrieval collection.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.collection(id).Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.memIndex, s.collectionName(id))
	s.mu.Unlock()
	return s.Sessions.Delete(ctx, id)
}
