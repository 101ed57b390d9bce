package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/pkg/config"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/jobs"
)

const activityJobType = "activity.persist"

type activityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error)
}

// ActivityService records user actions through a background queue and serves
// the admin activity feed.
type ActivityService struct {
	repo   activityRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewActivityService wires the persistence queue. Call Start before Record
// is expected to run asynchronously.
func NewActivityService(repo activityRepository, cfg config.ActivityConfig, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ActivityService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("activity", s.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *ActivityService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *ActivityService) Stop() {
	s.queue.Stop()
}

// Record queues an activity entry. Failures are logged, never returned.
func (s *ActivityService) Record(ctx context.Context, actor Actor, action string, details map[string]interface{}) {
	entry := &models.ActivityLog{
		ID:        uuid.NewString(),
		Action:    action,
		IPAddress: actor.IP,
		CreatedAt: time.Now().UTC(),
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if len(details) > 0 {
		payload, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("activity details not serialisable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = payload
		}
	}

	err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: activityJobType, Payload: entry})
	if err == nil {
		return
	}
	if !errors.Is(err, jobs.ErrQueueFull) && !errors.Is(err, jobs.ErrQueueStopped) {
		s.logger.Warn("activity enqueue failed", zap.String("action", action), zap.Error(err))
		return
	}
	// Queue unavailable: write inline.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("activity write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *ActivityService) persist(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.ActivityLog)
	if !ok {
		s.logger.Error("unexpected activity payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, entry)
}

// List returns a page of activity entries, newest first.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return entries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
