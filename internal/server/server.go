// Package server exposes report sessions over HTTP.
package server

import (
	"net/http"
	"sync"

	"reportgen/internal/logger"
	"reportgen/internal/pipeline"
	"reportgen/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	svc      *pipeline.Service
	sessions session.Repository
	log      *zap.Logger

	// one mutex per session id; passes on the same session never overlap
	locks sync.Map
}

// New builds a server over svc. Sessions are cached in memory for the
// configured TTL and written through to the service's SQLite repository.
func New(svc *pipeline.Service, log *zap.Logger) *Server {
	mem := session.NewMemoryRepository(svc.Config().Server.SessionTTL)
	return &Server{
		svc:      svc,
		sessions: session.NewCachedRepository(mem, svc.Sessions),
		log:      logger.Module(log, "server"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/sessions", s.CreateSession)

		sess := api.Group("/sessions/:id")
		{
			sess.GET("", s.GetSession)
			sess.DELETE("", s.DeleteSession)

			sess.POST("/reference", s.IngestReference)
			sess.POST("/source", s.IngestSource)

			sess.POST("/toc/sections", s.AddSection)
			sess.PATCH("/toc/sections/:index", s.UpdateSection)
			sess.DELETE("/toc/sections/:index", s.DeleteSection)
			sess.POST("/toc/renumber", s.RenumberTOC)

			sess.POST("/generate", s.Generate)
			sess.POST("/reset", s.Reset)
			sess.POST("/refine", s.Refine)
			sess.GET("/report", s.GetReport)
		}
	}
	return r
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}
