package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dairy-portal-api/internal/models"
)

const reportColumns = `id, upload_id, draft_id, user_id, template_id, financial_year, file_url, created_at`

// ReportRepository reads finalized reports and the review summary.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GetByUpload returns the final report of an upload.
func (r *ReportRepository) GetByUpload(ctx context.Context, uploadID string) (*models.Report, error) {
	var report models.Report
	if err := r.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM reports WHERE upload_id = $1`, uploadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report by upload: %w", err)
	}
	return &report, nil
}

// List returns reports newest first with the total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.FinancialYear != "" {
		args = append(args, filter.FinancialYear)
		conditions = append(conditions, fmt.Sprintf("financial_year = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM reports%s ORDER BY created_at DESC LIMIT %d OFFSET %d", reportColumns, where, limit, offset)

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reports"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// ReviewSummary aggregates every upload with its draft thread state. An
// empty financialYear selects all years.
func (r *ReportRepository) ReviewSummary(ctx context.Context, financialYear string) ([]models.ReviewSummaryRow, error) {
	query := `SELECT u.id AS upload_id, usr.name AS user_name, usr.username, t.name AS template_name, t.version AS template_version,
       u.financial_year, u.status AS upload_status, COUNT(d.id) AS draft_count,
       MAX(d.draft_number) AS latest_draft_number,
       (SELECT ld.status FROM drafts ld WHERE ld.upload_id = u.id ORDER BY ld.draft_number DESC LIMIT 1) AS latest_draft_status,
       COALESCE(BOOL_OR(d.status = 'FINAL'), FALSE) AS finalized,
       u.created_at AS submitted_at
FROM uploads u
JOIN users usr ON usr.id = u.user_id
JOIN templates t ON t.id = u.template_id
LEFT JOIN drafts d ON d.upload_id = u.id`
	args := make([]interface{}, 0, 1)
	if financialYear != "" {
		args = append(args, financialYear)
		query += " WHERE u.financial_year = $1"
	}
	query += `
GROUP BY u.id, usr.name, usr.username, t.name, t.version
ORDER BY u.financial_year DESC, usr.name ASC`

	var rows []models.ReviewSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("review summary: %w", err)
	}
	return rows, nil
}
