package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronoplan/calsync-api/internal/dto"
	"github.com/chronoplan/calsync-api/internal/models"
	appErrors "github.com/chronoplan/calsync-api/pkg/errors"
	"github.com/chronoplan/calsync-api/pkg/response"
)

type syncOrchestrator interface {
	SyncUserCalendar(ctx context.Context, userID string, req dto.SyncRequest) dto.SyncResult
	NeedsSync(ctx context.Context, userID string) (bool, error)
	GetActiveSummary(ctx context.Context, userID string) (*models.CompressedCalendarSummary, error)
}

type auditReader interface {
	ListRuns(ctx context.Context, filter models.SyncRunFilter) ([]models.SyncRun, *models.Pagination, error)
	Export(ctx context.Context, userID, format string) ([]byte, string, error)
}

// SyncHandler exposes the calendar sync endpoints.
type SyncHandler struct {
	sync  syncOrchestrator
	audit auditReader
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(sync syncOrchestrator, audit auditReader) *SyncHandler {
	return &SyncHandler{sync: sync, audit: audit}
}

// Sync godoc
// @Summary Run a calendar sync for the authenticated user
// @Tags Calendar
// @Accept json
// @Produce json
// @Param request body dto.SyncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Router /calendar/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := dto.SyncRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid sync request body"))
			return
		}
	}

	// The orchestrator reports rather than throws; pass the result through.
	result := h.sync.SyncUserCalendar(c.Request.Context(), claims.UserID, req)
	response.JSON(c, http.StatusOK, result, nil)
}

// NeedsSync godoc
// @Summary Staleness check for the user's compressed calendar
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/sync/needed [get]
func (h *SyncHandler) NeedsSync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	needed, err := h.sync.NeedsSync(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NeedsSyncResult{NeedsSync: needed}, nil)
}

// Summary godoc
// @Summary Active compressed calendar summary
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/summary [get]
func (h *SyncHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.sync.GetActiveSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if summary == nil {
		response.Error(c, appErrors.ErrNoSummary)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ListRuns godoc
// @Summary Sync run audit trail
// @Tags Calendar
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param status query string false "Filter by run status"
// @Success 200 {object} response.Envelope
// @Router /calendar/sync/runs [get]
func (h *SyncHandler) ListRuns(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.SyncRunFilter{
		UserID:   claims.UserID,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.SyncRunStatus(raw)
		filter.Status = &status
	}

	runs, pagination, err := h.audit.ListRuns(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// ExportRuns godoc
// @Summary Export the sync run audit trail
// @Tags Calendar
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /calendar/sync/runs/export [get]
func (h *SyncHandler) ExportRuns(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.audit.Export(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("sync-history-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
