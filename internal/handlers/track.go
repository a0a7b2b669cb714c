package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fluentora/fluentora-backend/internal/services"
)

type TrackHandler struct {
	automationService services.AutomationService
}

func NewTrackHandler(automationService services.AutomationService) *TrackHandler {
	return &TrackHandler{automationService: automationService}
}

// Tracking endpoints are hit by mail clients and link redirects; they answer
// 200 regardless of whether the transition applied so a stale pixel never
// surfaces an error to a reader.

// POST /track/open/:logId
func (h *TrackHandler) TrackOpen(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("logId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_log_id", err)
		return
	}
	applied, err := h.automationService.TrackOpen(c.Request.Context(), nil, logID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "track_failed", err)
		return
	}
	RespondOK(c, gin.H{"tracked": applied})
}

// POST /track/click/:logId
func (h *TrackHandler) TrackClick(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("logId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_log_id", err)
		return
	}
	applied, err := h.automationService.TrackClick(c.Request.Context(), nil, logID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "track_failed", err)
		return
	}
	RespondOK(c, gin.H{"tracked": applied})
}
