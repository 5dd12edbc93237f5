package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reportgen/internal/assembly"
	"reportgen/internal/knowledge"
	"reportgen/internal/session"
	"reportgen/internal/toc"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSessionRequest struct {
	CurrentYear int `json:"current_year" binding:"omitempty,gte=1"`
	TotalYears  int `json:"total_years" binding:"omitempty,gte=1"`
}

type documentRequest struct {
	Label string `json:"label"`
	Text  string `json:"text" binding:"required"`
}

type addSectionRequest struct {
	ParentNumber string `json:"parent_number"`
	Level        int    `json:"level" binding:"required,min=1,max=3"`
	Title        string `json:"title"`
}

type updateSectionRequest struct {
	Title string `json:"title" binding:"required"`
}

type refineRequest struct {
	Request string `json:"request" binding:"required"`
}

// sessionView is the session without its document bodies.
type sessionView struct {
	ID             string                 `json:"id"`
	CurrentYear    int                    `json:"current_year"`
	TotalYears     int                    `json:"total_years"`
	TOC            toc.TOC                `json:"toc"`
	ReferenceLabel string                 `json:"reference_label,omitempty"`
	SourceLabel    string                 `json:"source_label,omitempty"`
	Style          knowledge.StyleProfile `json:"style"`
	ProtectedTerms []string               `json:"protected_terms,omitempty"`
	Progress       assembly.Progress      `json:"progress"`
	State          assembly.State         `json:"state"`
	HasReport      bool                   `json:"has_report"`
	IndexedChunks  int                    `json:"indexed_chunks"`
}

func (s *Server) view(ctx context.Context, sess *session.Session) sessionView {
	v := viewOf(sess)
	v.IndexedChunks = s.svc.IndexedChunks(ctx, sess.ID)
	return v
}

func viewOf(s *session.Session) sessionView {
	return sessionView{
		ID:             s.ID,
		CurrentYear:    s.CurrentYear,
		TotalYears:     s.TotalYears,
		TOC:            s.TOC,
		ReferenceLabel: s.ReferenceLabel,
		SourceLabel:    s.SourceLabel,
		Style:          s.Style,
		ProtectedTerms: s.ProtectedTerms,
		Progress:       s.Progress,
		State:          s.Progress.State(),
		HasReport:      s.Report != "",
	}
}

// CreateSession starts an empty session. Years default to the configured report period.
func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	defaults := s.svc.Config().Report
	if req.CurrentYear == 0 {
		req.CurrentYear = defaults.CurrentYear
	}
	if req.TotalYears == 0 {
		req.TotalYears = defaults.TotalYears
	}

	sess := session.New(req.CurrentYear, req.TotalYears)
	if err := s.sessions.Save(c.Request.Context(), sess); err != nil {
		s.internalError(c, "세션 저장 실패", err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) GetSession(c *gin.Context) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.view(c.Request.Context(), sess))
}

func (s *Server) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	defer s.lock(id)()

	if err := s.svc.Delete(c.Request.Context(), id); err != nil {
		s.internalError(c, "세션 삭제 실패", err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		s.internalError(c, "세션 삭제 실패", err)
		return
	}
	s.locks.Delete(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) IngestReference(c *gin.Context) {
	s.ingest(c, "reference")
}

func (s *Server) IngestSource(c *gin.Context) {
	s.ingest(c, "source")
}

// ingest accepts either a multipart upload under "file" or a JSON body
// with the document text.
func (s *Server) ingest(c *gin.Context, kind string) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var warnings []string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "업로드 파일을 가져오지 못했습니다"})
			return
		}
		dir, err := os.MkdirTemp("", "reportgen-upload-")
		if err != nil {
			s.internalError(c, "임시 디렉터리 생성 실패", err)
			return
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			s.internalError(c, "파일 저장 실패", err)
			return
		}
		res, err := s.svc.IngestFile(ctx, sess, kind, path)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		warnings = res.Warnings
	} else {
		var req documentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Label == "" {
			req.Label = kind + ".txt"
		}
		if kind == "reference" {
			s.svc.IngestReference(sess, req.Label, req.Text)
		} else {
			s.svc.IngestSource(ctx, sess, req.Label, req.Text)
		}
	}

	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.view(ctx, sess), "warnings": warnings})
}

func (s *Server) AddSection(c *gin.Context) {
	var req addSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	node, added := sess.TOC.Add(req.ParentNumber, req.Level)
	if !added {
		c.JSON(http.StatusBadRequest, gin.H{"error": "상위 항목 번호가 올바르지 않습니다"})
		return
	}
	if req.Title != "" {
		sess.TOC.SetTitle(len(sess.TOC)-1, req.Title)
		node = sess.TOC[len(sess.TOC)-1]
	}
	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"section": node, "toc": sess.TOC})
}

func (s *Server) UpdateSection(c *gin.Context) {
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	var req updateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	if !sess.TOC.SetTitle(index, req.Title) {
		c.JSON(http.StatusNotFound, gin.H{"error": "목차 항목을 찾을 수 없습니다"})
		return
	}
	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"toc": sess.TOC})
}

func (s *Server) DeleteSection(c *gin.Context) {
	index, ok := sectionIndex(c)
	if !ok {
		return
	}

	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	if index >= len(sess.TOC) {
		c.JSON(http.StatusNotFound, gin.H{"error": "목차 항목을 찾을 수 없습니다"})
		return
	}
	sess.TOC = sess.TOC.Delete(index)
	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"toc": sess.TOC})
}

func (s *Server) RenumberTOC(c *gin.Context) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	sess.TOC = toc.RenumberByHierarchy(sess.TOC)
	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"toc": sess.TOC})
}

// Generate runs one pass. A paused pass is resumed by calling it again; a
// complete report is generated again from scratch.
func (s *Server) Generate(c *gin.Context) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	if err := sess.Ready(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := "full"
	if sess.Progress.State() == assembly.StatePaused {
		mode = "resume"
	}
	metrics := assembly.NewPassReport(mode, sess.ID)
	res, err := s.svc.Generate(c.Request.Context(), sess, metrics)
	metrics.Finalize()
	if !s.save(c, sess) {
		return
	}
	if err != nil {
		s.log.Error("generation pass failed", zap.String("session", sess.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    err.Error(),
			"progress": sess.Progress,
			"state":    sess.Progress.State(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed_count": res.CompletedCount,
		"total_sections":  res.TotalSections,
		"is_complete":     res.IsComplete,
		"paused":          res.Paused,
		"failed":          res.Failed,
		"state":           sess.Progress.State(),
		"summary":         metrics.Summary,
	})
}

func (s *Server) Refine(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	if sess.Report == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "수정할 보고서가 없습니다"})
		return
	}

	out, err := s.svc.Refine(c.Request.Context(), sess, req.Request)
	if !s.save(c, sess) {
		return
	}
	if err != nil {
		s.internalError(c, "수정 요청 처리 실패", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"classification": out.Classification,
		"applied":        out.Applied,
		"reason":         out.Reason,
		"state":          sess.Progress.State(),
	})
}

// Reset discards the report and its progress.
func (s *Server) Reset(c *gin.Context) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	s.svc.Reset(sess)
	if !s.save(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sess.Progress.State()})
}

// GetReport returns the report as JSON, or as plain text with ?format=text.
func (s *Server) GetReport(c *gin.Context) {
	defer s.lock(c.Param("id"))()
	sess, ok := s.load(c)
	if !ok {
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, sess.Report)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":   sess.Report,
		"progress": sess.Progress,
		"state":    sess.Progress.State(),
	})
}

func (s *Server) load(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "세션을 찾을 수 없습니다"})
		return nil, false
	}
	if err != nil {
		s.internalError(c, "세션 조회 실패", err)
		return nil, false
	}
	return sess, true
}

// save persists sess even when the client has gone away, so a pass that
// finished some sections is not lost.
func (s *Server) save(c *gin.Context, sess *session.Session) bool {
	if err := s.sessions.Save(context.WithoutCancel(c.Request.Context()), sess); err != nil {
		s.internalError(c, "세션 저장 실패", err)
		return false
	}
	return true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func sectionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 목차 인덱스입니다"})
		return 0, false
	}
	return index, true
}
