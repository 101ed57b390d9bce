package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/service"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/export"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

type exportService interface {
	GenerateReviewSummary(ctx context.Context, req service.ExportRequest, actor service.Actor) (*service.ExportResult, error)
	Resolve(token string) (*os.File, *storage.SignedFile, error)
}

// ExportHandler generates and serves review summary exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ReviewSummary godoc
// @Summary Export review summary
// @Description Renders every upload with its draft progress as CSV or PDF
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Format and optional financial year"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/review-summary [post]
func (h *ExportHandler) ReviewSummary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	result, err := h.exports.GenerateReviewSummary(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, signed, err := h.exports.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}

	name := filepath.Base(signed.Path)
	contentType := "application/octet-stream"
	if renderer, err := export.ForFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil {
		contentType = renderer.ContentType()
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
