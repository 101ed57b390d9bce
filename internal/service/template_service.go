package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

type templateRepository interface {
	Create(ctx context.Context, tpl *models.Template) error
	CreateVersion(ctx context.Context, familyID string, tpl *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error)
	History(ctx context.Context, familyID string) ([]models.Template, error)
}

// TemplateRequest carries the metadata submitted with a template file.
type TemplateRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// TemplateService manages versioned report templates.
type TemplateService struct {
	repo      templateRepository
	blobs     storage.BlobStore
	policy    FilePolicy
	cache     *CacheService
	validator *validator.Validate
	activity  activityRecorder
	logger    *zap.Logger
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(repo templateRepository, blobs storage.BlobStore, policy FilePolicy, cache *CacheService, validate *validator.Validate, activity activityRecorder, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if activity == nil {
		activity = noopActivity{}
	}
	return &TemplateService{repo: repo, blobs: blobs, policy: policy, cache: cache, validator: validate, activity: activity, logger: logger}
}

// Create stores a template as version 1 of a new family.
func (s *TemplateService) Create(ctx context.Context, req TemplateRequest, file *FileUpload, actor Actor) (*models.Template, error) {
	tpl, obj, err := s.prepare(ctx, req, file, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		discardFile(ctx, s.blobs, s.logger, obj)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}

	s.invalidate(ctx)
	s.activity.Record(ctx, actor, models.ActivityTemplateUpload, map[string]interface{}{"templateId": tpl.ID, "name": tpl.Name})
	return tpl, nil
}

// CreateVersion appends a new version to the family of templateID and makes
// it the active one.
func (s *TemplateService) CreateVersion(ctx context.Context, templateID string, req TemplateRequest, file *FileUpload, actor Actor) (*models.Template, error) {
	current, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	tpl, obj, err := s.prepare(ctx, req, file, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateVersion(ctx, current.FamilyID, tpl); err != nil {
		discardFile(ctx, s.blobs, s.logger, obj)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a newer version was created concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template version")
	}

	s.invalidate(ctx)
	s.activity.Record(ctx, actor, models.ActivityTemplateVersion, map[string]interface{}{
		"templateId": tpl.ID,
		"familyId":   tpl.FamilyID,
		"version":    tpl.Version,
	})
	return tpl, nil
}

func (s *TemplateService) prepare(ctx context.Context, req TemplateRequest, file *FileUpload, actor Actor) (*models.Template, *storage.Object, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	obj, err := storeFile(ctx, s.blobs, s.policy, "templates", file)
	if err != nil {
		return nil, nil, err
	}

	tpl := &models.Template{
		Name:      req.Name,
		FileURL:   obj.URL,
		FileName:  file.Name,
		MimeType:  obj.ContentType,
		SizeBytes: obj.Size,
	}
	if req.Description != "" {
		tpl.Description = &req.Description
	}
	if actor.UserID != "" {
		uploadedBy := actor.UserID
		tpl.UploadedBy = &uploadedBy
	}
	return tpl, obj, nil
}

// Get returns a template by ID.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tpl, nil
}

// List returns templates. Only admins may include inactive versions; the
// unfiltered active list is served from cache when enabled.
func (s *TemplateService) List(ctx context.Context, filter models.TemplateFilter, actor Actor) ([]models.Template, error) {
	if !actor.IsAdmin() {
		filter.IncludeInactive = false
	}
	cacheable := !filter.IncludeInactive && filter.Search == "" && filter.Limit == 0 && filter.Offset == 0
	if cacheable {
		var cached []models.Template
		if hit, _ := s.cache.Get(ctx, activeTemplatesCacheKey(), &cached); hit {
			return cached, nil
		}
	}

	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	if templates == nil {
		templates = []models.Template{}
	}
	if cacheable {
		_ = s.cache.Set(ctx, activeTemplatesCacheKey(), templates, 0)
	}
	return templates, nil
}

// History lists every version in the family of templateID, newest first.
func (s *TemplateService) History(ctx context.Context, templateID string) ([]models.Template, error) {
	tpl, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	versions, err := s.repo.History(ctx, tpl.FamilyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template history")
	}
	return versions, nil
}

func (s *TemplateService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cacheNamespace+":templates:*")
}
