package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronoplan/calsync-api/internal/dto"
	appErrors "github.com/chronoplan/calsync-api/pkg/errors"
	"github.com/chronoplan/calsync-api/pkg/response"
)

type eventWriter interface {
	CreateCalendarEvent(ctx context.Context, organizerUserID string, req dto.CreateEventRequest) dto.CreateEventResult
}

// EventHandler exposes the write-back endpoint.
type EventHandler struct {
	writer eventWriter
}

// NewEventHandler constructs the handler.
func NewEventHandler(writer eventWriter) *EventHandler {
	return &EventHandler{writer: writer}
}

// Create godoc
// @Summary Create a provider-side calendar event, idempotent per meeting id
// @Tags Calendar
// @Accept json
// @Produce json
// @Param request body dto.CreateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /calendar/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event request body"))
		return
	}

	result := h.writer.CreateCalendarEvent(c.Request.Context(), claims.UserID, req)
	status := http.StatusOK
	if result.Success && !result.AlreadyExists {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}
