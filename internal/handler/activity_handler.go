package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/pkg/response"
)

type activityLister interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error)
}

// ActivityHandler serves the admin activity log.
type ActivityHandler struct {
	activity activityLister
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(activity activityLister) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List godoc
// @Summary List activity
// @Tags Activity
// @Produce json
// @Param userId query string false "Actor"
// @Param action query string false "Action, e.g. DRAFT_FINAL"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityFilter{UserID: c.Query("userId"), Action: c.Query("action")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	entries, pagination, err := h.activity.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
