package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/pkg/config"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type memoryActivityRepo struct {
	mu       sync.Mutex
	entries  []models.ActivityLog
	failures int
	listErr  error
}

func (m *memoryActivityRepo) Create(_ context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("database unavailable")
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(_ context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, len(m.entries), nil
}

func (m *memoryActivityRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestActivityServicePersistsThroughQueue(t *testing.T) {
	repo := &memoryActivityRepo{failures: 1}
	svc := NewActivityService(repo, config.ActivityConfig{Workers: 1, BufferSize: 8, MaxRetries: 2, RetryDelay: 10 * time.Millisecond}, zap.NewNop())
	svc.Start(context.Background())

	svc.Record(context.Background(), Actor{UserID: "admin-1", IP: "10.0.0.1"}, models.ActivityDraftFinal, map[string]interface{}{"draftId": 2})

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	entry := repo.entries[0]
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.JSONEq(t, `{"draftId":2}`, string(entry.Details))
}

func TestActivityServiceWritesInlineWhenStopped(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, config.ActivityConfig{}, nil)

	svc.Record(context.Background(), Actor{}, models.ActivityLogin, nil)
	assert.Equal(t, 1, repo.count())
	assert.Nil(t, repo.entries[0].UserID)
}

func TestActivityServiceList(t *testing.T) {
	repo := &memoryActivityRepo{entries: []models.ActivityLog{{ID: "a1", Action: models.ActivityLogin}}}
	svc := NewActivityService(repo, config.ActivityConfig{}, nil)

	entries, page, err := svc.List(context.Background(), models.ActivityFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 100, page.PageSize)

	repo.listErr = errors.New("boom")
	_, _, err = svc.List(context.Background(), models.ActivityFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
