package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
)

type templateService interface {
	Create(ctx context.Context, req service.TemplateRequest, file *service.FileUpload, actor service.Actor) (*models.Template, error)
	CreateVersion(ctx context.Context, templateID string, req service.TemplateRequest, file *service.FileUpload, actor service.Actor) (*models.Template, error)
	Get(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter, actor service.Actor) ([]models.Template, error)
	History(ctx context.Context, templateID string) ([]models.Template, error)
}

// TemplateHandler serves report template endpoints.
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler constructs a TemplateHandler.
func NewTemplateHandler(svc templateService) *TemplateHandler {
	return &TemplateHandler{service: svc}
}

// List godoc
// @Summary List templates
// @Description Active templates; admins may pass includeInactive=true
// @Tags Templates
// @Produce json
// @Param includeInactive query bool false "Include superseded versions"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.TemplateFilter{Search: c.Query("search")}
	if raw := c.Query("includeInactive"); raw != "" {
		filter.IncludeInactive, _ = strconv.ParseBool(raw)
	}
	if c.Query("limit") != "" || c.Query("offset") != "" {
		filter.Limit, filter.Offset = limitOffset(c)
	}

	templates, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Upload template
// @Description Stores a new template family at version 1
// @Tags Templates
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Template name"
// @Param description formData string false "Description"
// @Param file formData file true "Template file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	h.store(c, func(ctx context.Context, req service.TemplateRequest, file *service.FileUpload, actor service.Actor) (*models.Template, error) {
		return h.service.Create(ctx, req, file, actor)
	})
}

// CreateVersion godoc
// @Summary Upload a new template version
// @Description Supersedes the active version of the template family
// @Tags Templates
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Any template ID of the family"
// @Param name formData string true "Template name"
// @Param description formData string false "Description"
// @Param file formData file true "Template file"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /templates/{id}/versions [post]
func (h *TemplateHandler) CreateVersion(c *gin.Context) {
	templateID := c.Param("id")
	h.store(c, func(ctx context.Context, req service.TemplateRequest, file *service.FileUpload, actor service.Actor) (*models.Template, error) {
		return h.service.CreateVersion(ctx, templateID, req, file, actor)
	})
}

func (h *TemplateHandler) store(c *gin.Context, save func(context.Context, service.TemplateRequest, *service.FileUpload, service.Actor) (*models.Template, error)) {
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

	req := service.TemplateRequest{Name: c.PostForm("name"), Description: c.PostForm("description")}
	tpl, err := save(c.Request.Context(), req, file, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// History godoc
// @Summary Template version history
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates/{id}/history [get]
func (h *TemplateHandler) History(c *gin.Context) {
	versions, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}
