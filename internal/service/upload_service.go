package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

var financialYearPattern = regexp.MustCompile(`^\d{4}(-\d{2})?$`)

type uploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id string) (*models.Upload, error)
	List(ctx context.Context, filter models.UploadFilter) ([]models.Upload, int, error)
	UpdateStatus(ctx context.Context, id string, status models.UploadStatus, comments *string, reviewerID string, reviewedAt time.Time) (*models.Upload, error)
}

type templateLookup interface {
	GetByID(ctx context.Context, id string) (*models.Template, error)
}

type finalReportLookup interface {
	GetByUpload(ctx context.Context, uploadID string) (*models.Report, error)
}

// SubmitUploadRequest is the metadata sent with a filled template.
type SubmitUploadRequest struct {
	TemplateID    string `json:"templateId" validate:"required"`
	FinancialYear string `json:"financialYear" validate:"required"`
}

// ReviewUploadRequest records an admin decision on an upload.
type ReviewUploadRequest struct {
	Status   models.UploadStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Comments *string             `json:"comments" validate:"omitempty,max=4000"`
}

// UploadService handles submissions of filled templates and their review.
type UploadService struct {
	repo      uploadRepository
	templates templateLookup
	reports   finalReportLookup
	blobs     storage.BlobStore
	policy    FilePolicy
	metrics   *MetricsService
	validator *validator.Validate
	activity  activityRecorder
	logger    *zap.Logger
}

// UploadServiceDeps groups UploadService collaborators.
type UploadServiceDeps struct {
	Repo      uploadRepository
	Templates templateLookup
	Reports   finalReportLookup
	Blobs     storage.BlobStore
	Policy    FilePolicy
	Metrics   *MetricsService
	Validator *validator.Validate
	Activity  activityRecorder
	Logger    *zap.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(deps UploadServiceDeps) *UploadService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Activity == nil {
		deps.Activity = noopActivity{}
	}
	return &UploadService{
		repo:      deps.Repo,
		templates: deps.Templates,
		reports:   deps.Reports,
		blobs:     deps.Blobs,
		policy:    deps.Policy,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		activity:  deps.Activity,
		logger:    deps.Logger,
	}
}

// Submit stores a filled template for the actor.
func (s *UploadService) Submit(ctx context.Context, req SubmitUploadRequest, file *FileUpload, actor Actor) (*models.Upload, error) {
	req.TemplateID = strings.TrimSpace(req.TemplateID)
	req.FinancialYear = strings.TrimSpace(req.FinancialYear)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if !financialYearPattern.MatchString(req.FinancialYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "financialYear must look like 2023-24 or 2024")
	}

	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "template does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !tpl.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template version is no longer active")
	}

	obj, err := storeFile(ctx, s.blobs, s.policy, "uploads", file)
	if err != nil {
		return nil, err
	}

	upload := &models.Upload{
		UserID:        actor.UserID,
		TemplateID:    tpl.ID,
		FinancialYear: req.FinancialYear,
		FileURL:       obj.URL,
		FileName:      file.Name,
		Status:        models.UploadStatusPending,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		discardFile(ctx, s.blobs, s.logger, obj)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save upload")
	}

	s.activity.Record(ctx, actor, models.ActivityUploadSubmit, map[string]interface{}{
		"uploadId":      upload.ID,
		"templateId":    upload.TemplateID,
		"financialYear": upload.FinancialYear,
	})
	return upload, nil
}

// Get returns an upload visible to the actor.
func (s *UploadService) Get(ctx context.Context, id string, actor Actor) (*models.Upload, error) {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload")
	}
	if !actor.IsAdmin() && upload.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "upload belongs to another user")
	}
	return upload, nil
}

// List returns uploads; non-admins only see their own.
func (s *UploadService) List(ctx context.Context, filter models.UploadFilter, actor Actor) ([]models.Upload, *models.Pagination, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown upload status")
	}
	uploads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list uploads")
	}
	if uploads == nil {
		uploads = []models.Upload{}
	}
	return uploads, offsetPagination(filter.Limit, filter.Offset, total), nil
}

// Review records the admin decision. Uploads whose thread is already final
// cannot be reviewed again.
func (s *UploadService) Review(ctx context.Context, id string, req ReviewUploadRequest, actor Actor) (*models.Upload, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}

	if s.reports != nil {
		if _, err := s.reports.GetByUpload(ctx, id); err == nil {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "upload already has a final report")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check final report")
		}
	}

	upload, err := s.repo.UpdateStatus(ctx, id, req.Status, req.Comments, actor.UserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review upload")
	}

	s.metrics.UploadReviewed(string(upload.Status))
	s.activity.Record(ctx, actor, models.ActivityUploadReview, map[string]interface{}{
		"uploadId": upload.ID,
		"status":   upload.Status,
	})
	return upload, nil
}
