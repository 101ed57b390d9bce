package service

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

type summaryStub struct {
	lastYear string
}

func (s *summaryStub) ReviewSummary(_ context.Context, financialYear string) ([]models.ReviewSummaryRow, error) {
	s.lastYear = financialYear
	latest := 2
	status := "FINAL"
	return []models.ReviewSummaryRow{
		{UploadID: "upload-1", UserName: "Green Farm", Username: "greenfarm", TemplateName: "Sustainability", TemplateVersion: 2, FinancialYear: "2023-24", UploadStatus: models.UploadStatusApproved, DraftCount: 2, LatestDraftNumber: &latest, LatestDraftStatus: &status, Finalized: true, SubmittedAt: time.Now()},
		{UploadID: "upload-2", UserName: "Hill Dairy", Username: "hill", TemplateName: "Sustainability", TemplateVersion: 2, FinancialYear: "2023-24", UploadStatus: models.UploadStatusPending, SubmittedAt: time.Now()},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage, *summaryStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	source := &summaryStub{}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{PublicBaseURL: "http://portal.test", APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(source, store, signer, cfg, nil, nil, zap.NewNop()), store, source
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _, source := newExportServiceForTest(t)

	result, err := svc.GenerateReviewSummary(context.Background(), ExportRequest{Format: "csv", FinancialYear: "2023-24"}, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "2023-24", source.lastYear)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.URL, "http://portal.test/api/v1/exports/"))

	file, signed, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, result.FileName, signed.Path)

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Upload ID,User,Username"))
	assert.Contains(t, lines[1], "greenfarm")
	assert.Contains(t, lines[1], ",yes,")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)

	result, err := svc.GenerateReviewSummary(context.Background(), ExportRequest{Format: "pdf"}, testAdmin)
	require.NoError(t, err)
	assert.Contains(t, result.FileName, "review_summary_all_")

	path, err := store.Path(result.FileName)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRejectsBadInput(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.GenerateReviewSummary(ctx, ExportRequest{Format: "xlsx"}, testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.GenerateReviewSummary(ctx, ExportRequest{Format: "csv", FinancialYear: "FY23"}, testAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.Resolve("garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestExportServiceCleanup(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)

	result, err := svc.GenerateReviewSummary(context.Background(), ExportRequest{Format: "csv"}, testAdmin)
	require.NoError(t, err)

	path, err := store.Path(result.FileName)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{result.FileName}, removed)

	_, _, err = svc.Resolve(result.Token)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
