package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type reportRepository interface {
	GetByUpload(ctx context.Context, uploadID string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

// ReportService exposes the final reports produced by closed draft threads.
type ReportService struct {
	repo   reportRepository
	logger *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, logger: logger}
}

// List returns final reports; non-admins only see their own.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter, actor Actor) ([]models.Report, *models.Pagination, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, offsetPagination(filter.Limit, filter.Offset, total), nil
}

// GetByUpload returns the final report of an upload visible to the actor.
func (s *ReportService) GetByUpload(ctx context.Context, uploadID string, actor Actor) (*models.Report, error) {
	report, err := s.repo.GetByUpload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload has no final report")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if !actor.IsAdmin() && report.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return report, nil
}
