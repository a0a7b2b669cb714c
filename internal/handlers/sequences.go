package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fluentora/fluentora-backend/internal/requestdata"
	"github.com/fluentora/fluentora-backend/internal/services"
)

type SequencesHandler struct {
	automationService services.AutomationService
}

func NewSequencesHandler(automationService services.AutomationService) *SequencesHandler {
	return &SequencesHandler{automationService: automationService}
}

// GET /api/admin/sequences
func (h *SequencesHandler) ListSequences(c *gin.Context) {
	sequences, err := h.automationService.ListSequences(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "sequence_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"sequences": sequences})
}

// GET /api/admin/sequences/:id
func (h *SequencesHandler) GetSequence(c *gin.Context) {
	sequenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sequence_id", err)
		return
	}
	sequence, analytics, err := h.automationService.GetSequence(c.Request.Context(), nil, sequenceID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "sequence_not_found", err)
		return
	}
	RespondOK(c, gin.H{"sequence": sequence, "analytics": analytics})
}

// POST /api/admin/sequences
func (h *SequencesHandler) CreateSequence(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var input services.CreateSequenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sequence, err := h.automationService.CreateSequence(c.Request.Context(), nil, input, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "sequence_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sequence": sequence})
}

// PATCH /api/admin/sequences/:id
func (h *SequencesHandler) UpdateSequence(c *gin.Context) {
	sequenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sequence_id", err)
		return
	}
	var input services.UpdateSequenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sequence, err := h.automationService.UpdateSequence(c.Request.Context(), nil, sequenceID, input)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "sequence_update_failed", err)
		return
	}
	RespondOK(c, gin.H{"sequence": sequence})
}

// DELETE /api/admin/sequences/:id
func (h *SequencesHandler) DeleteSequence(c *gin.Context) {
	sequenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sequence_id", err)
		return
	}
	if err := h.automationService.DeleteSequence(c.Request.Context(), nil, sequenceID); err != nil {
		RespondError(c, http.StatusBadRequest, "sequence_delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/admin/sequences/:id/enrollments
func (h *SequencesHandler) ListEnrollments(c *gin.Context) {
	sequenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sequence_id", err)
		return
	}
	enrollments, err := h.automationService.ListEnrollments(c.Request.Context(), nil, sequenceID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "enrollment_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"enrollments": enrollments})
}

// GET /api/admin/sequences/:id/analytics
func (h *SequencesHandler) SequenceAnalytics(c *gin.Context) {
	sequenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_sequence_id", err)
		return
	}
	analytics, err := h.automationService.Analytics(c.Request.Context(), nil, sequenceID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "analytics_failed", err)
		return
	}
	RespondOK(c, gin.H{"analytics": analytics})
}
