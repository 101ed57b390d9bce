package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dairy-portal-api/internal/models"
)

const uploadColumns = `id, user_id, template_id, financial_year, file_url, file_name, status, comments, reviewed_by, reviewed_at, created_at, updated_at`

// UploadRepository persists user submissions.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository constructs the repository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a submission in PENDING state unless a status is set.
func (r *UploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	upload.UpdatedAt = now
	if upload.Status == "" {
		upload.Status = models.UploadStatusPending
	}
	const query = `INSERT INTO uploads (` + uploadColumns + `)
	VALUES (:id, :user_id, :template_id, :financial_year, :file_url, :file_name, :status, :comments, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

// GetByID returns one upload.
func (r *UploadRepository) GetByID(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.GetContext(ctx, &upload, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return &upload, nil
}

// List returns uploads matching filter, newest first, with the total count.
func (r *UploadRepository) List(ctx context.Context, filter models.UploadFilter) ([]models.Upload, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.TemplateID != "" {
		args = append(args, filter.TemplateID)
		conditions = append(conditions, fmt.Sprintf("template_id = $%d", len(args)))
	}
	if filter.FinancialYear != "" {
		args = append(args, filter.FinancialYear)
		conditions = append(conditions, fmt.Sprintf("financial_year = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM uploads%s ORDER BY created_at DESC LIMIT %d OFFSET %d", uploadColumns, where, limit, offset)

	var uploads []models.Upload
	if err := r.db.SelectContext(ctx, &uploads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM uploads"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}
	return uploads, total, nil
}

// UpdateStatus records an admin review outcome.
func (r *UploadRepository) UpdateStatus(ctx context.Context, id string, status models.UploadStatus, comments *string, reviewerID string, reviewedAt time.Time) (*models.Upload, error) {
	query := `UPDATE uploads SET status = $2, comments = COALESCE($3, comments), reviewed_by = $4, reviewed_at = $5, updated_at = $5
	WHERE id = $1 RETURNING ` + uploadColumns
	var upload models.Upload
	if err := r.db.GetContext(ctx, &upload, query, id, status, comments, reviewerID, reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update upload status: %w", err)
	}
	return &upload, nil
}
