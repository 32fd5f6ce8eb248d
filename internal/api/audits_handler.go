package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/pipeline"
	"github.com/jonesrussell/goaudit/internal/report"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// CreateAuditRequest is the body for POST /api/v1/audits.
type CreateAuditRequest struct {
	URL      string `json:"url" binding:"required"`
	MaxPages int    `json:"max_pages"`
	Start    bool   `json:"start"`
}

// AuditsHandler handles audit-related HTTP requests.
type AuditsHandler struct {
	repos        database.Repositories
	orchestrator *pipeline.Orchestrator
	reports      *report.Service
	log          logger.Interface
}

// NewAuditsHandler creates an audits handler.
func NewAuditsHandler(
	repos database.Repositories,
	orchestrator *pipeline.Orchestrator,
	reports *report.Service,
	log logger.Interface,
) *AuditsHandler {
	return &AuditsHandler{
		repos:        repos,
		orchestrator: orchestrator,
		reports:      reports,
		log:          log.WithComponent("api"),
	}
}

// ListAudits handles GET /api/v1/audits.
func (h *AuditsHandler) ListAudits(c *gin.Context) {
	status := c.Query("status")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultOffset)))
	if err != nil || offset < 0 {
		offset = defaultOffset
	}

	audits, err := h.repos.Audits.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.log.Error("failed to list audits", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

// CreateAudit handles POST /api/v1/audits.
func (h *AuditsHandler) CreateAudit(c *gin.Context) {
	var req CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	audit, err := h.orchestrator.CreateAudit(c.Request.Context(), req.URL, req.MaxPages)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Start {
		if err := h.orchestrator.Start(c.Request.Context(), audit.ID); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "audit": audit})
			return
		}
	}

	c.JSON(http.StatusCreated, audit)
}

// GetAudit handles GET /api/v1/audits/:id.
func (h *AuditsHandler) GetAudit(c *gin.Context) {
	audit, ok := h.loadAudit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, audit)
}

// DeleteAudit handles DELETE /api/v1/audits/:id.
func (h *AuditsHandler) DeleteAudit(c *gin.Context) {
	id := c.Param("id")
	if err := h.orchestrator.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
			return
		}
		h.log.Error("failed to delete audit", "audit_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete audit"})
		return
	}
	c.Status(http.StatusNoContent)
}

// StartAudit handles POST /api/v1/audits/:id/start.
func (h *AuditsHandler) StartAudit(c *gin.Context) {
	h.lifecycle(c, h.orchestrator.Start, "started")
}

// CancelAudit handles POST /api/v1/audits/:id/cancel.
func (h *AuditsHandler) CancelAudit(c *gin.Context) {
	h.lifecycle(c, h.orchestrator.Cancel, "cancelled")
}

// RestartAudit handles POST /api/v1/audits/:id/restart.
func (h *AuditsHandler) RestartAudit(c *gin.Context) {
	h.lifecycle(c, h.orchestrator.Restart, "restarted")
}

// GetProgress handles GET /api/v1/audits/:id/progress.
func (h *AuditsHandler) GetProgress(c *gin.Context) {
	audit, ok := h.loadAudit(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         audit.Status,
		"current_step":   audit.CurrentStep,
		"pages_crawled":  audit.PagesCrawled,
		"jobs_total":     audit.JobsTotal,
		"jobs_completed": audit.JobsCompleted,
		"jobs_failed":    audit.JobsFailed,
		"percentage":     audit.ProgressPercentage(),
	})
}

// ListFindings handles GET /api/v1/audits/:id/findings with an optional
// category filter.
func (h *AuditsHandler) ListFindings(c *gin.Context) {
	audit, ok := h.loadAudit(c)
	if !ok {
		return
	}

	var (
		findings []*domain.Finding
		err      error
	)
	if raw := c.Query("category"); raw != "" {
		category := domain.Category(raw)
		if !category.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category: " + raw})
			return
		}
		findings, err = h.repos.Findings.ListByCategory(c.Request.Context(), audit.ID, category)
	} else {
		findings, err = h.repos.Findings.ListByAudit(c.Request.Context(), audit.ID)
	}
	if err != nil {
		h.log.Error("failed to list findings", "audit_id", audit.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve findings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

// GetReport handles GET /api/v1/audits/:id/report.
func (h *AuditsHandler) GetReport(c *gin.Context) {
	summary, err := h.reports.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
			return
		}
		h.log.Error("failed to build report", "audit_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CompareAudits handles GET /api/v1/audits/:id/compare/:previous.
func (h *AuditsHandler) CompareAudits(c *gin.Context) {
	comparison, err := h.reports.Compare(c.Request.Context(), c.Param("id"), c.Param("previous"))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAuditNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		case errors.Is(err, report.ErrIncomparable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Error("failed to compare audits", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare audits"})
		}
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// lifecycle runs one of the start/cancel/restart operations and maps its
// state-conflict errors to HTTP statuses.
func (h *AuditsHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id string) error, verb string) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid audit ID"})
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, database.ErrAuditNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		case errors.Is(err, pipeline.ErrAlreadyProcessing),
			errors.Is(err, pipeline.ErrAlreadyCompleted),
			errors.Is(err, pipeline.ErrNotProcessing):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.log.Error("lifecycle operation failed", "audit_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": verb, "audit_id": id})
}

// loadAudit fetches the audit named in the path, writing the error response
// itself when the audit cannot be loaded.
func (h *AuditsHandler) loadAudit(c *gin.Context) (*domain.Audit, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid audit ID"})
		return nil, false
	}

	audit, err := h.repos.Audits.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit not found"})
		} else {
			h.log.Error("failed to load audit", "audit_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit"})
		}
		return nil, false
	}
	return audit, true
}
