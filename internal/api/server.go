// Package api implements the HTTP API for managing audits and reading
// their results.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/pipeline"
	"github.com/jonesrussell/goaudit/internal/report"
)

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	cfg        config.ServerConfig
	log        logger.Interface
	httpServer *http.Server
}

// NewServer builds the router and wires every audit endpoint.
func NewServer(
	cfg config.ServerConfig,
	repos database.Repositories,
	orchestrator *pipeline.Orchestrator,
	reports *report.Service,
	log logger.Interface,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := NewAuditsHandler(repos, orchestrator, reports, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/audits", h.ListAudits)
		v1.POST("/audits", h.CreateAudit)
		v1.GET("/audits/:id", h.GetAudit)
		v1.DELETE("/audits/:id", h.DeleteAudit)
		v1.POST("/audits/:id/start", h.StartAudit)
		v1.POST("/audits/:id/cancel", h.CancelAudit)
		v1.POST("/audits/:id/restart", h.RestartAudit)
		v1.GET("/audits/:id/progress", h.GetProgress)
		v1.GET("/audits/:id/findings", h.ListFindings)
		v1.GET("/audits/:id/report", h.GetReport)
		v1.GET("/audits/:id/compare/:previous", h.CompareAudits)
	}

	return &Server{
		cfg: cfg,
		log: log.WithComponent("api"),
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("api server listening", "address", s.cfg.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}
