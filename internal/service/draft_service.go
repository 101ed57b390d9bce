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

type draftStore interface {
	Create(ctx context.Context, draft *models.Draft) error
	NextDraftNumber(ctx context.Context, uploadID string) (int, error)
	GetByID(ctx context.Context, id int64) (*models.Draft, error)
	TransitionStatus(ctx context.Context, id int64, status models.DraftStatus, comments *string) (*models.Draft, error)
	Finalize(ctx context.Context, id int64, report *models.Report) (*models.Draft, error)
	ListByUser(ctx context.Context, userID string) ([]models.Draft, error)
	ListByUpload(ctx context.Context, uploadID string) ([]models.Draft, error)
	LatestByUpload(ctx context.Context, uploadID string) (*models.Draft, error)
	List(ctx context.Context, filter models.DraftFilter) ([]models.Draft, int, error)
}

type uploadLookup interface {
	GetByID(ctx context.Context, id string) (*models.Upload, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// DraftRequest carries the optional comment sent with a draft file.
type DraftRequest struct {
	Comments *string `json:"comments" validate:"omitempty,max=4000"`
}

// DraftStatusRequest changes the review status of a draft.
type DraftStatusRequest struct {
	Status   models.DraftStatus `json:"status" validate:"required"`
	Comments *string            `json:"comments" validate:"omitempty,max=4000"`
}

// DraftThread is the ordered exchange for one upload.
type DraftThread struct {
	UploadID        string         `json:"uploadId"`
	Drafts          []models.Draft `json:"drafts"`
	NextDraftNumber int            `json:"nextDraftNumber"`
	Finalized       bool           `json:"finalized"`
}

// DraftService runs the admin/user draft exchange on top of an upload.
type DraftService struct {
	store     draftStore
	uploads   uploadLookup
	users     userLookup
	templates templateLookup
	blobs     storage.BlobStore
	policy    FilePolicy
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	activity  activityRecorder
	logger    *zap.Logger
}

// DraftServiceDeps groups DraftService collaborators.
type DraftServiceDeps struct {
	Store     draftStore
	Uploads   uploadLookup
	Users     userLookup
	Templates templateLookup
	Blobs     storage.BlobStore
	Policy    FilePolicy
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Activity  activityRecorder
	Logger    *zap.Logger
}

// NewDraftService constructs a DraftService.
func NewDraftService(deps DraftServiceDeps) *DraftService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Activity == nil {
		deps.Activity = noopActivity{}
	}
	return &DraftService{
		store:     deps.Store,
		uploads:   deps.Uploads,
		users:     deps.Users,
		templates: deps.Templates,
		blobs:     deps.Blobs,
		policy:    deps.Policy,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		activity:  deps.Activity,
		logger:    deps.Logger,
	}
}

// CreateAdminDraft sends a reviewed file back to the owner of an approved
// upload.
func (s *DraftService) CreateAdminDraft(ctx context.Context, uploadID string, req DraftRequest, file *FileUpload, actor Actor) (*models.Draft, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can send drafts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}

	upload, err := s.loadUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != models.UploadStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "upload must be approved before drafts are exchanged")
	}

	return s.create(ctx, upload, models.DraftTypeAdminToUser, req, file, actor)
}

// Respond answers a pending admin draft with the user's revised file. Only
// the owner may respond, and only to the latest draft of the thread.
func (s *DraftService) Respond(ctx context.Context, draftID int64, req DraftRequest, file *FileUpload, actor Actor) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}

	draft, err := s.loadDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another user")
	}
	if !CanRespond(draft) {
		if draft.IsFinal() {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft thread is finalized")
		}
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "draft is not awaiting a response")
	}

	latest, err := s.store.LatestByUpload(ctx, draft.UploadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest draft")
	}
	if latest.ID != draft.ID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a newer draft exists for this upload")
	}

	upload, err := s.loadUpload(ctx, draft.UploadID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, upload, models.DraftTypeUserToAdmin, req, file, actor)
}

func (s *DraftService) create(ctx context.Context, upload *models.Upload, draftType models.DraftType, req DraftRequest, file *FileUpload, actor Actor) (*models.Draft, error) {
	userSnap, templateSnap, err := s.snapshots(ctx, upload)
	if err != nil {
		return nil, err
	}

	obj, err := storeFile(ctx, s.blobs, s.policy, "drafts", file)
	if err != nil {
		return nil, err
	}

	draft := &models.Draft{
		UploadID:         upload.ID,
		UserID:           upload.UserID,
		TemplateID:       upload.TemplateID,
		DraftType:        draftType,
		Status:           models.DraftStatusPendingReview,
		FileURL:          obj.URL,
		FileName:         file.Name,
		Comments:         trimComments(req.Comments),
		CreatedBy:        actor.UserID,
		UserSnapshot:     userSnap,
		TemplateSnapshot: templateSnap,
		UploadSnapshot: models.UploadSnapshot{
			ID:            upload.ID,
			FinancialYear: upload.FinancialYear,
			FileURL:       upload.FileURL,
			FileName:      upload.FileName,
			Status:        upload.Status,
			CreatedAt:     upload.CreatedAt,
		},
	}

	if err := s.store.Create(ctx, draft); err != nil {
		discardFile(ctx, s.blobs, s.logger, obj)
		switch {
		case errors.Is(err, repository.ErrThreadFinalized):
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft thread is finalized")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "draft number already taken, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft")
	}

	s.invalidateThread(ctx, draft.UploadID)
	s.metrics.DraftCreated(string(draft.DraftType))
	action := models.ActivityDraftCreate
	if draftType == models.DraftTypeUserToAdmin {
		action = models.ActivityDraftRespond
	}
	s.activity.Record(ctx, actor, action, map[string]interface{}{
		"draftId":     draft.ID,
		"uploadId":    draft.UploadID,
		"draftNumber": draft.DraftNumber,
	})
	return draft, nil
}

// snapshots copies the current owner and template; they are stored with the
// draft and never refreshed.
func (s *DraftService) snapshots(ctx context.Context, upload *models.Upload) (models.UserSnapshot, models.TemplateSnapshot, error) {
	user, err := s.users.FindByID(ctx, upload.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserSnapshot{}, models.TemplateSnapshot{}, appErrors.Clone(appErrors.ErrNotFound, "upload owner not found")
		}
		return models.UserSnapshot{}, models.TemplateSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload owner")
	}
	tpl, err := s.templates.GetByID(ctx, upload.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserSnapshot{}, models.TemplateSnapshot{}, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return models.UserSnapshot{}, models.TemplateSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return models.UserSnapshot{ID: user.ID, Name: user.Name, Username: user.Username},
		models.TemplateSnapshot{ID: tpl.ID, FamilyID: tpl.FamilyID, Name: tpl.Name, Version: tpl.Version, FileURL: tpl.FileURL},
		nil
}

// Get returns a draft visible to the actor.
func (s *DraftService) Get(ctx context.Context, id int64, actor Actor) (*models.Draft, error) {
	draft, err := s.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && draft.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another user")
	}
	return draft, nil
}

// List returns drafts matching filter. Non-admins are restricted to their own
// drafts. Unpaged uploadId or userId filters return drafts in insertion
// order; everything else is paged newest first.
func (s *DraftService) List(ctx context.Context, filter models.DraftFilter, actor Actor) ([]models.Draft, *models.Pagination, error) {
	if !actor.IsAdmin() {
		if filter.UserID != "" && filter.UserID != actor.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cannot list drafts of another user")
		}
		filter.UserID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown draft status")
	}

	unpaged := filter.Status == "" && filter.Limit == 0 && filter.Offset == 0
	if unpaged && filter.UploadID == "" && filter.UserID != "" {
		drafts, err := s.store.ListByUser(ctx, filter.UserID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
		}
		if drafts == nil {
			drafts = []models.Draft{}
		}
		return drafts, &models.Pagination{Page: 1, PageSize: len(drafts), TotalCount: len(drafts)}, nil
	}
	if unpaged && filter.UploadID != "" {
		thread, err := s.threadDrafts(ctx, filter.UploadID)
		if err != nil {
			return nil, nil, err
		}
		drafts := make([]models.Draft, 0, len(thread))
		for _, d := range thread {
			if filter.UserID == "" || d.UserID == filter.UserID {
				drafts = append(drafts, d)
			}
		}
		return drafts, &models.Pagination{Page: 1, PageSize: len(drafts), TotalCount: len(drafts)}, nil
	}

	drafts, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	return drafts, offsetPagination(filter.Limit, filter.Offset, total), nil
}

// Thread returns the whole exchange for an upload with the number the next
// draft would receive.
func (s *DraftService) Thread(ctx context.Context, uploadID string, actor Actor) (*DraftThread, error) {
	upload, err := s.loadUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && upload.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "upload belongs to another user")
	}

	drafts, err := s.threadDrafts(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	next, err := s.store.NextDraftNumber(ctx, uploadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute next draft number")
	}

	thread := &DraftThread{UploadID: uploadID, Drafts: drafts, NextDraftNumber: next}
	for i := range drafts {
		if drafts[i].IsFinal() {
			thread.Finalized = true
			break
		}
	}
	return thread, nil
}

func (s *DraftService) threadDrafts(ctx context.Context, uploadID string) ([]models.Draft, error) {
	key := draftThreadCacheKey(uploadID)
	var cached []models.Draft
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	drafts, err := s.store.ListByUpload(ctx, uploadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	_ = s.cache.Set(ctx, key, drafts, 0)
	return drafts, nil
}

// UpdateStatus changes a draft's review status. FINAL is routed through
// MarkFinal; a draft that is already FINAL cannot change.
func (s *DraftService) UpdateStatus(ctx context.Context, id int64, req DraftStatusRequest, actor Actor) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of PENDING_REVIEW, APPROVED, REJECTED, FINAL")
	}
	if req.Status == models.DraftStatusFinal {
		return s.MarkFinal(ctx, id, actor)
	}

	draft, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if draft.IsFinal() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "draft is final")
	}

	updated, err := s.store.TransitionStatus(ctx, id, req.Status, trimComments(req.Comments))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		case errors.Is(err, repository.ErrDraftFinal):
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft is final")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update draft status")
	}

	s.invalidateThread(ctx, updated.UploadID)
	s.activity.Record(ctx, actor, models.ActivityDraftStatus, map[string]interface{}{
		"draftId": updated.ID,
		"from":    draft.Status,
		"to":      updated.Status,
	})
	return updated, nil
}

// MarkFinal closes the thread on its latest, pending draft. Only the
// recipient may do so: the owner for an admin draft, any admin for a user
// response. The final report for the upload is recorded in the same
// transaction.
func (s *DraftService) MarkFinal(ctx context.Context, id int64, actor Actor) (*models.Draft, error) {
	draft, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	adminUserID := ""
	if actor.IsAdmin() {
		adminUserID = actor.UserID
	}
	if !CanMarkFinal(draft, actor.UserID, adminUserID) {
		switch {
		case draft.IsFinal():
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft is already final")
		case draft.Status != models.DraftStatusPendingReview:
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only drafts pending review can be finalized")
		default:
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the recipient can finalize this draft")
		}
	}

	latest, err := s.store.LatestByUpload(ctx, draft.UploadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest draft")
	}
	if latest.ID != draft.ID {
		if latest.IsFinal() {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft thread is finalized")
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "a newer draft exists for this upload")
	}

	report :=&models.Report{
		UserID:        draft.UserID,
		TemplateID:    draft.TemplateID,
		FinancialYear: draft.UploadSnapshot.FinancialYear,
		FileURL:       draft.FileURL,
	}
	final, err := s.store.Finalize(ctx, id, report)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		case errors.Is(err, repository.ErrThreadFinalized):
			return nil, appErrors.Clone(appErrors.ErrFinalized, "draft thread is finalized")
		case errors.Is(err, repository.ErrSupersededDraft):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a newer draft exists for this upload")
		case errors.Is(err, repository.ErrStaleDraft):
			return nil, appErrors.Clone(appErrors.ErrConflict, "draft changed while finalizing, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize draft")
	}

	s.invalidateThread(ctx, final.UploadID)
	s.metrics.DraftFinalized()
	s.activity.Record(ctx, actor, models.ActivityDraftFinal, map[string]interface{}{
		"draftId":     final.ID,
		"uploadId":    final.UploadID,
		"draftNumber": final.DraftNumber,
	})
	return final, nil
}

func (s *DraftService) loadDraft(ctx context.Context, id int64) (*models.Draft, error) {
	draft, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	return draft, nil
}

func (s *DraftService) loadUpload(ctx context.Context, id string) (*models.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload")
	}
	return upload, nil
}

func (s *DraftService) invalidateThread(ctx context.Context, uploadID string) {
	_ = s.cache.Invalidate(ctx, draftThreadCacheKey(uploadID))
}

func trimComments(comments *string) *string {
	if comments == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comments)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
