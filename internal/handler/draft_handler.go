package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/dto"
	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
)

type draftService interface {
	CreateAdminDraft(ctx context.Context, uploadID string, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error)
	Respond(ctx context.Context, draftID int64, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error)
	Get(ctx context.Context, id int64, actor service.Actor) (*models.Draft, error)
	List(ctx context.Context, filter models.DraftFilter, actor service.Actor) ([]models.Draft, *models.Pagination, error)
	Thread(ctx context.Context, uploadID string, actor service.Actor) (*service.DraftThread, error)
	UpdateStatus(ctx context.Context, id int64, req service.DraftStatusRequest, actor service.Actor) (*models.Draft, error)
	MarkFinal(ctx context.Context, id int64, actor service.Actor) (*models.Draft, error)
}

// DraftHandler exposes the draft review exchange.
type DraftHandler struct {
	service draftService
}

// NewDraftHandler constructs a DraftHandler.
func NewDraftHandler(svc draftService) *DraftHandler {
	return &DraftHandler{service: svc}
}

// CreateAdminDraft godoc
// @Summary Send a draft to the upload owner
// @Description Admin only; the upload must be APPROVED and its thread not final
// @Tags Drafts
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Upload ID"
// @Param comments formData string false "Comments"
// @Param file formData file true "Draft file"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads/{id}/drafts [post]
func (h *DraftHandler) CreateAdminDraft(c *gin.Context) {
	uploadID := c.Param("id")
	h.createWithFile(c, func(ctx context.Context, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error) {
		return h.service.CreateAdminDraft(ctx, uploadID, req, file, actor)
	})
}

// Respond godoc
// @Summary Respond to an admin draft
// @Description The upload owner answers the latest pending admin draft
// @Tags Drafts
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Draft ID"
// @Param comments formData string false "Comments"
// @Param file formData file true "Revised file"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id}/respond [post]
func (h *DraftHandler) Respond(c *gin.Context) {
	draftID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	h.createWithFile(c, func(ctx context.Context, req service.DraftRequest, file *service.FileUpload, actor service.Actor) (*models.Draft, error) {
		return h.service.Respond(ctx, draftID, req, file, actor)
	})
}

func (h *DraftHandler) createWithFile(c *gin.Context, create func(context.Context, service.DraftRequest, *service.FileUpload, service.Actor) (*models.Draft, error)) {
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

	var req service.DraftRequest
	if comments, present := c.GetPostForm("comments"); present {
		req.Comments = &comments
	}
	draft, err := create(c.Request.Context(), req, file, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDraftResponse(draft))
}

// Thread godoc
// @Summary Draft thread of an upload
// @Tags Drafts
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /uploads/{id}/drafts [get]
func (h *DraftHandler) Thread(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	thread, err := h.service.Thread(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDraftThreadResponse(thread), nil)
}

// List godoc
// @Summary List drafts
// @Description Without paging, an uploadId filter returns the thread in draft order
// @Tags Drafts
// @Produce json
// @Param userId query string false "Owner"
// @Param uploadId query string false "Upload ID"
// @Param status query string false "Draft status"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts [get]
func (h *DraftHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.DraftFilter{
		UserID:   c.Query("userId"),
		UploadID: c.Query("uploadId"),
		Status:   models.DraftStatus(c.Query("status")),
	}
	scoped := filter.UploadID != "" || filter.UserID != "" || !actor.IsAdmin()
	if !scoped || filter.Status != "" || c.Query("limit") != "" || c.Query("offset") != "" {
		filter.Limit, filter.Offset = limitOffset(c)
	}

	drafts, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDraftResponses(drafts), pagination)
}

// Get godoc
// @Summary Get draft
// @Tags Drafts
// @Produce json
// @Param id path int true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	draft, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDraftResponse(draft), nil)
}

// UpdateStatus godoc
// @Summary Change draft status
// @Description FINAL is routed through the finalization rules
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path int true "Draft ID"
// @Param payload body service.DraftStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id}/status [patch]
func (h *DraftHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req service.DraftStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	draft, err := h.service.UpdateStatus(c.Request.Context(), id, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDraftResponse(draft), nil)
}

// MarkFinal godoc
// @Summary Accept a draft as final
// @Description Only the recipient of a pending draft may finalize it
// @Tags Drafts
// @Produce json
// @Param id path int true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /drafts/{id}/final [post]
func (h *DraftHandler) MarkFinal(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	draft, err := h.service.MarkFinal(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewDraftResponse(draft), nil)
}
