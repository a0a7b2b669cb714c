package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fluentora/fluentora-backend/internal/services"
)

type AutomationHandler struct {
	automationService services.AutomationService
}

func NewAutomationHandler(automationService services.AutomationService) *AutomationHandler {
	return &AutomationHandler{automationService: automationService}
}

type triggerRequest struct {
	Trigger  string         `json:"trigger"`
	UserID   uuid.UUID      `json:"user_id"`
	Metadata map[string]any `json:"metadata"`
}

// POST /api/admin/automation/trigger
func (h *AutomationHandler) Trigger(c *gin.Context) {
	var input triggerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	enrollments, err := h.automationService.EnrollByTrigger(c.Request.Context(), nil,
		input.Trigger, input.UserID, input.Metadata)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "trigger_failed", err)
		return
	}
	RespondOK(c, gin.H{"enrollments": enrollments})
}

// POST /api/admin/automation/process
func (h *AutomationHandler) Process(c *gin.Context) {
	processed, errored := h.automationService.ProcessQueue(c.Request.Context())
	RespondOK(c, gin.H{"processed": processed, "errors": errored})
}
