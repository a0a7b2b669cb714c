package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/requestdata"
	"github.com/fluentora/fluentora-backend/internal/services"
)

type SegmentsHandler struct {
	segmentService services.SegmentService
	exportService  services.ExportService
}

func NewSegmentsHandler(segmentService services.SegmentService, exportService services.ExportService) *SegmentsHandler {
	return &SegmentsHandler{segmentService: segmentService, exportService: exportService}
}

// POST /api/admin/segments/query
func (h *SegmentsHandler) Query(c *gin.Context) {
	var input services.SegmentQueryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.segmentService.Query(c.Request.Context(), nil, input)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "segment_query_failed", err)
		return
	}
	RespondOK(c, result)
}

type saveSegmentRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Filters     []types.FilterRule `json:"filters"`
	Logic       string             `json:"logic"`
}

// POST /api/admin/segments
func (h *SegmentsHandler) SaveSegment(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var input saveSegmentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	segment, err := h.segmentService.SaveSegment(c.Request.Context(), nil,
		input.Name, input.Description, input.Filters, input.Logic, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "segment_save_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"segment": segment})
}

// POST /api/admin/segments/:id/refresh
func (h *SegmentsHandler) RefreshSegment(c *gin.Context) {
	segmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_segment_id", err)
		return
	}
	segment, err := h.segmentService.RefreshSegment(c.Request.Context(), nil, segmentID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "segment_refresh_failed", err)
		return
	}
	RespondOK(c, gin.H{"segment": segment})
}

// GET /api/admin/segments
func (h *SegmentsHandler) ListSegments(c *gin.Context) {
	segments, err := h.segmentService.ListSegments(c.Request.Context(), nil)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "segment_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"segments": segments})
}

// DELETE /api/admin/segments/:id
func (h *SegmentsHandler) DeleteSegment(c *gin.Context) {
	segmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_segment_id", err)
		return
	}
	if err := h.segmentService.DeleteSegment(c.Request.Context(), nil, segmentID); err != nil {
		RespondError(c, http.StatusBadRequest, "segment_delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

type exportRequest struct {
	Filters []types.FilterRule `json:"filters"`
	Logic   string             `json:"logic"`
	Fields  []string           `json:"fields"`
	Limit   int                `json:"limit"`
}

// POST /api/admin/exports/csv
func (h *SegmentsHandler) ExportCSV(c *gin.Context) {
	var input exportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	payload, err := h.exportService.ExportCSV(c.Request.Context(), nil,
		input.Filters, input.Logic, input.Fields, input.Limit)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "export_failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="learners.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// POST /api/admin/exports/excel
func (h *SegmentsHandler) ExportExcel(c *gin.Context) {
	var input exportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	payload, err := h.exportService.ExportExcel(c.Request.Context(), nil,
		input.Filters, input.Logic, input.Fields, input.Limit)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "export_failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="learners.xls"`)
	c.Data(http.StatusOK, "application/vnd.ms-excel", payload)
}

// POST /api/admin/exports/json
func (h *SegmentsHandler) ExportJSON(c *gin.Context) {
	var input exportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	payload, err := h.exportService.ExportJSON(c.Request.Context(), nil,
		input.Filters, input.Logic, input.Fields, input.Limit)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "export_failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="learners.json"`)
	c.Data(http.StatusOK, "application/json", payload)
}
