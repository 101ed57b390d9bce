package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
)

type stubReportRepo struct {
	reports    []models.Report
	lastFilter models.ReportFilter
}

func (s *stubReportRepo) GetByUpload(_ context.Context, uploadID string) (*models.Report, error) {
	for i := range s.reports {
		if s.reports[i].UploadID == uploadID {
			copy := s.reports[i]
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubReportRepo) List(_ context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	s.lastFilter = filter
	var out []models.Report
	for _, r := range s.reports {
		if filter.UserID == "" || r.UserID == filter.UserID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func TestReportServiceScopesUsers(t *testing.T) {
	repo := &stubReportRepo{reports: []models.Report{
		{ID: "r1", UploadID: "upload-1", UserID: "user-1"},
		{ID: "r2", UploadID: "upload-2", UserID: "user-2"},
	}}
	svc := NewReportService(repo, nil)
	ctx := context.Background()

	reports, page, err := svc.List(ctx, models.ReportFilter{UserID: "user-2"}, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "user-1", repo.lastFilter.UserID)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, page.TotalCount)

	reports, _, err = svc.List(ctx, models.ReportFilter{}, testAdmin)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	_, err = svc.GetByUpload(ctx, "upload-2", testOwner)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GetByUpload(ctx, "upload-9", testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
