package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/response"
)

// ReportBuilder generates and reads assignment reports.
type ReportBuilder interface {
	GenerateReport(ctx context.Context, assignmentID uuid.UUID) (*model.Report, error)
	GetReport(ctx context.Context, reportID uuid.UUID) (*model.Report, error)
	GetReportByAssignment(ctx context.Context, assignmentID uuid.UUID) (*model.Report, error)
}

// ReportHandler handles admin report endpoints.
type ReportHandler struct {
	reports ReportBuilder
	log     zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportBuilder, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		log:     log.With().Str("component", "report_handler").Logger(),
	}
}

// GenerateReport godoc
// POST /api/v1/admin/reports/:id/generate
// Rebuilds the report synchronously. :id is the assignment id, which must be COMPLETED.
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	r, err := h.reports.GenerateReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": r})
}

// GetReport godoc
// GET /api/v1/admin/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	r, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": r})
}

// GetAssignmentReport godoc
// GET /api/v1/admin/assignments/:id/report
func (h *ReportHandler) GetAssignmentReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	r, err := h.reports.GetReportByAssignment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": r})
}
