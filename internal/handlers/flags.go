package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fluentora/fluentora-backend/internal/requestdata"
	"github.com/fluentora/fluentora-backend/internal/services"
)

type FlagsHandler struct {
	flagService services.FlagService
}

func NewFlagsHandler(flagService services.FlagService) *FlagsHandler {
	return &FlagsHandler{flagService: flagService}
}

func evalContextFrom(c *gin.Context) (services.EvalContext, error) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return services.EvalContext{}, fmt.Errorf("missing request identity")
	}
	return services.EvalContext{UserID: rd.UserID, Role: rd.Role}, nil
}

// GET /api/flags/me
func (h *FlagsHandler) GetMyFlags(c *gin.Context) {
	ec, err := evalContextFrom(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	RespondOK(c, gin.H{"flags": h.flagService.GetUserFlags(c.Request.Context(), ec)})
}

// GET /api/flags/check/:key
func (h *FlagsHandler) CheckFlag(c *gin.Context) {
	ec, err := evalContextFrom(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	key := c.Param("key")
	RespondOK(c, gin.H{
		"key":     key,
		"enabled": h.flagService.IsEnabled(c.Request.Context(), key, ec),
	})
}

// GET /api/admin/flags
func (h *FlagsHandler) ListFlags(c *gin.Context) {
	flags, err := h.flagService.List(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "flag_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"flags": flags})
}

// POST /api/admin/flags
func (h *FlagsHandler) CreateFlag(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var input services.CreateFlagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	flag, err := h.flagService.Create(c.Request.Context(), nil, input, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "flag_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"flag": flag})
}

// PATCH /api/admin/flags/:id
func (h *FlagsHandler) UpdateFlag(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	flagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_flag_id", err)
		return
	}
	var input services.UpdateFlagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	flag, err := h.flagService.Update(c.Request.Context(), nil, flagID, input, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "flag_update_failed", err)
		return
	}
	RespondOK(c, gin.H{"flag": flag})
}

// POST /api/admin/flags/:id/toggle
func (h *FlagsHandler) ToggleFlag(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	flagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_flag_id", err)
		return
	}
	flag, err := h.flagService.Toggle(c.Request.Context(), nil, flagID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "flag_toggle_failed", err)
		return
	}
	RespondOK(c, gin.H{"flag": flag})
}

// DELETE /api/admin/flags/:id
func (h *FlagsHandler) DeleteFlag(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	flagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_flag_id", err)
		return
	}
	if err := h.flagService.Delete(c.Request.Context(), nil, flagID, rd.UserID); err != nil {
		RespondError(c, http.StatusBadRequest, "flag_delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/admin/flags/:id/history
func (h *FlagsHandler) FlagHistory(c *gin.Context) {
	flagID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_flag_id", err)
		return
	}
	history, err := h.flagService.History(c.Request.Context(), nil, flagID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "flag_history_failed", err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}
