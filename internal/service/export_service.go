package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/export"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

type reviewSummarySource interface {
	ReviewSummary(ctx context.Context, financialYear string) ([]models.ReviewSummaryRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	PublicBaseURL string
	APIPrefix     string
	ResultTTL     time.Duration
}

// ExportRequest selects the format and optional financial year.
type ExportRequest struct {
	Format        string `json:"format" validate:"required,oneof=csv pdf"`
	FinancialYear string `json:"financialYear"`
}

// ExportResult describes a generated export and its signed download link.
type ExportResult struct {
	FileName    string    `json:"fileName"`
	Format      string    `json:"format"`
	ContentType string    `json:"contentType"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

var reviewSummaryHeaders = []string{
	"Upload ID", "User", "Username", "Template", "Template Version", "Financial Year",
	"Upload Status", "Drafts", "Latest Draft", "Latest Draft Status", "Finalized", "Submitted At",
}

// ExportService renders the admin review summary and serves it through
// signed, expiring links.
type ExportService struct {
	source   reviewSummarySource
	storage  fileStorage
	signer   *storage.SignedURLSigner
	metrics  *MetricsService
	activity activityRecorder
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(source reviewSummarySource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, activity activityRecorder, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if activity == nil {
		activity = noopActivity{}
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		source:   source,
		storage:  files,
		signer:   signer,
		metrics:  metrics,
		activity: activity,
		logger:   logger,
		cfg:      cfg,
	}
}

// GenerateReviewSummary writes the summary in the requested format and
// returns a signed download link.
func (s *ExportService) GenerateReviewSummary(ctx context.Context, req ExportRequest, actor Actor) (*ExportResult, error) {
	req.FinancialYear = strings.TrimSpace(req.FinancialYear)
	if req.FinancialYear != "" && !financialYearPattern.MatchString(req.FinancialYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "financialYear must look like 2023-24 or 2024")
	}
	renderer, err := export.ForFormat(req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	start := time.Now()
	rows, err := s.source.ReviewSummary(ctx, req.FinancialYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build review summary")
	}

	payload, err := renderer.Render(reviewSummaryDataset(rows, req.FinancialYear))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileName := exportFileName(req.FinancialYear, renderer.Extension(), time.Now().UTC())
	relPath, err := s.storage.Save(fileName, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(uuid.NewString(), relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	s.metrics.ObserveExport(renderer.Extension(), time.Since(start))

	s.activity.Record(ctx, actor, models.ActivityExportGenerate, map[string]interface{}{
		"format":        renderer.Extension(),
		"financialYear": req.FinancialYear,
		"rows":          len(rows),
	})

	return &ExportResult{
		FileName:    fileName,
		Format:      renderer.Extension(),
		ContentType: renderer.ContentType(),
		Rows:        len(rows),
		URL:         s.downloadURL(token),
		Token:       token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Resolve validates a download token and opens the file it points to.
func (s *ExportService) Resolve(token string) (*os.File, *storage.SignedFile, error) {
	signed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return file, signed, nil
}

// Cleanup removes exports older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Cleanup(0)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s%s/exports/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), prefix, token)
}

func reviewSummaryDataset(rows []models.ReviewSummaryRow, financialYear string) export.Dataset {
	title := "Review Summary"
	if financialYear != "" {
		title += " " + financialYear
	}
	data := export.Dataset{Title: title, Headers: reviewSummaryHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		latest, latestStatus := "", ""
		if row.LatestDraftNumber != nil {
			latest = strconv.Itoa(*row.LatestDraftNumber)
		}
		if row.LatestDraftStatus != nil {
			latestStatus = *row.LatestDraftStatus
		}
		finalized := "no"
		if row.Finalized {
			finalized = "yes"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Upload ID":           row.UploadID,
			"User":                row.UserName,
			"Username":            row.Username,
			"Template":            row.TemplateName,
			"Template Version":    strconv.Itoa(row.TemplateVersion),
			"Financial Year":      row.FinancialYear,
			"Upload Status":       string(row.UploadStatus),
			"Drafts":              strconv.Itoa(row.DraftCount),
			"Latest Draft":        latest,
			"Latest Draft Status": latestStatus,
			"Finalized":           finalized,
			"Submitted At":        row.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}

func exportFileName(financialYear, ext string, now time.Time) string {
	scope := "all"
	if financialYear != "" {
		scope = financialYear
	}
	return fmt.Sprintf("review_summary_%s_%s.%s", scope, now.Format("20060102_150405"), ext)
}
