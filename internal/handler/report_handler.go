package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
)

type reportService interface {
	List(ctx context.Context, filter models.ReportFilter, actor service.Actor) ([]models.Report, *models.Pagination, error)
	GetByUpload(ctx context.Context, uploadID string, actor service.Actor) (*models.Report, error)
}

// ReportHandler exposes finalized reports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List godoc
// @Summary List final reports
// @Tags Reports
// @Produce json
// @Param userId query string false "Owner (admin only)"
// @Param financialYear query string false "Financial year"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.ReportFilter{UserID: c.Query("userId"), FinancialYear: c.Query("financialYear")}
	filter.Limit, filter.Offset = limitOffset(c)

	reports, pagination, err := h.reports.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// ForUpload godoc
// @Summary Final report of an upload
// @Tags Reports
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads/{id}/report [get]
func (h *ReportHandler) ForUpload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.reports.GetByUpload(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
