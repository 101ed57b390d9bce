package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
)

type uploadService interface {
	Submit(ctx context.Context, req service.SubmitUploadRequest, file *service.FileUpload, actor service.Actor) (*models.Upload, error)
	Get(ctx context.Context, id string, actor service.Actor) (*models.Upload, error)
	List(ctx context.Context, filter models.UploadFilter, actor service.Actor) ([]models.Upload, *models.Pagination, error)
	Review(ctx context.Context, id string, req service.ReviewUploadRequest, actor service.Actor) (*models.Upload, error)
}

// UploadHandler serves filled-template submissions.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(svc uploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Submit godoc
// @Summary Submit a filled template
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param templateId formData string true "Template ID"
// @Param financialYear formData string true "Financial year, e.g. 2023-24"
// @Param file formData file true "Filled template"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads [post]
func (h *UploadHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, closeFile, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	req := service.SubmitUploadRequest{TemplateID: c.PostForm("templateId"), FinancialYear: c.PostForm("financialYear")}
	upload, err := h.service.Submit(c.Request.Context(), req, file, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, upload)
}

// List godoc
// @Summary List uploads
// @Description Users only see their own uploads
// @Tags Uploads
// @Produce json
// @Param userId query string false "Owner (admin only)"
// @Param templateId query string false "Template ID"
// @Param financialYear query string false "Financial year"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.UploadFilter{
		UserID:        c.Query("userId"),
		TemplateID:    c.Query("templateId"),
		FinancialYear: c.Query("financialYear"),
		Status:        models.UploadStatus(c.Query("status")),
	}
	filter.Limit, filter.Offset = limitOffset(c)

	uploads, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, uploads, pagination)
}

// Get godoc
// @Summary Get upload
// @Tags Uploads
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads/{id} [get]
func (h *UploadHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	upload, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, upload, nil)
}

// Review godoc
// @Summary Review upload
// @Tags Uploads
// @Accept json
// @Produce json
// @Param id path string true "Upload ID"
// @Param payload body service.ReviewUploadRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads/{id}/status [patch]
func (h *UploadHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ReviewUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	upload, err := h.service.Review(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, upload, nil)
}
