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

// ErrThreadFinalized is returned when a draft is added to, or finalized on,
// an upload whose review thread already ended in FINAL.
var ErrThreadFinalized = errors.New("repository: draft thread finalized")

// ErrStaleDraft is returned when a conditional update found the draft in a
// different state than required.
var ErrStaleDraft = errors.New("repository: draft state changed")

// ErrSupersededDraft is returned when finalizing a draft that is no longer
// the latest of its upload.
var ErrSupersededDraft = errors.New("repository: draft superseded")

// ErrDraftFinal is returned by TransitionStatus for a draft already FINAL.
var ErrDraftFinal = errors.New("repository: draft is final")

const draftColumns = `id, upload_id, user_id, template_id, draft_number, draft_type, status, file_url, file_name, comments, created_by,
	user_snapshot, template_snapshot, upload_snapshot, created_at, updated_at`

// DraftRepository stores the admin/user review exchange for uploads.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs the repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create assigns the next draft number for draft.UploadID and inserts the row
// in one transaction. The upload row is locked so concurrent creations for
// the same upload are numbered 1, 2, 3 without gaps or repeats. Status
// defaults to PENDING_REVIEW; the snapshots are stored as given.
func (r *DraftRepository) Create(ctx context.Context, draft *models.Draft) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create draft: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockUpload(ctx, tx, draft.UploadID); err != nil {
		return err
	}

	var finalized bool
	if err = tx.GetContext(ctx, &finalized, `SELECT EXISTS (SELECT 1 FROM drafts WHERE upload_id = $1 AND status = 'FINAL')`, draft.UploadID); err != nil {
		return fmt.Errorf("check draft thread: %w", err)
	}
	if finalized {
		err = ErrThreadFinalized
		return err
	}

	var next int
	if err = tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(draft_number), 0) + 1 FROM drafts WHERE upload_id = $1`, draft.UploadID); err != nil {
		return fmt.Errorf("next draft number: %w", err)
	}

	now := time.Now().UTC()
	draft.DraftNumber = next
	if draft.Status == "" {
		draft.Status = models.DraftStatusPendingReview
	}
	draft.CreatedAt = now
	draft.UpdatedAt = now

	const insert = `INSERT INTO drafts (upload_id, user_id, template_id, draft_number, draft_type, status, file_url, file_name, comments, created_by,
	user_snapshot, template_snapshot, upload_snapshot, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insert,
		draft.UploadID, draft.UserID, draft.TemplateID, draft.DraftNumber, draft.DraftType, draft.Status,
		draft.FileURL, draft.FileName, draft.Comments, draft.CreatedBy,
		draft.UserSnapshot, draft.TemplateSnapshot, draft.UploadSnapshot, draft.CreatedAt, draft.UpdatedAt,
	).Scan(&draft.ID); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("insert draft: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create draft: %w", err)
	}
	return nil
}

func lockUpload(ctx context.Context, tx *sqlx.Tx, uploadID string) error {
	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM uploads WHERE id = $1 FOR UPDATE`, uploadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock upload: %w", err)
	}
	return nil
}

// NextDraftNumber returns 1 for an upload without drafts, otherwise the
// current maximum plus one. It reads the persisted set at call time.
func (r *DraftRepository) NextDraftNumber(ctx context.Context, uploadID string) (int, error) {
	var next int
	if err := r.db.GetContext(ctx, &next, `SELECT COALESCE(MAX(draft_number), 0) + 1 FROM drafts WHERE upload_id = $1`, uploadID); err != nil {
		return 0, fmt.Errorf("next draft number: %w", err)
	}
	return next, nil
}

// GetByID returns one draft or sql.ErrNoRows.
func (r *DraftRepository) GetByID(ctx context.Context, id int64) (*models.Draft, error) {
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return &draft, nil
}

// UpdateStatus overwrites status and, when comments is non-nil, comments.
// Any status string is written; callers validate. Unknown ids yield
// sql.ErrNoRows and nothing is changed.
func (r *DraftRepository) UpdateStatus(ctx context.Context, id int64, status models.DraftStatus, comments *string) (*models.Draft, error) {
	query := `UPDATE drafts SET status = $2, comments = COALESCE($3, comments), updated_at = $4 WHERE id = $1 RETURNING ` + draftColumns
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, id, status, comments, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update draft status: %w", err)
	}
	return &draft, nil
}

// TransitionStatus is UpdateStatus for drafts that are not FINAL. The status
// guard is part of the UPDATE; a FINAL draft yields ErrDraftFinal and unknown
// ids sql.ErrNoRows.
func (r *DraftRepository) TransitionStatus(ctx context.Context, id int64, status models.DraftStatus, comments *string) (*models.Draft, error) {
	query := `UPDATE drafts SET status = $2, comments = COALESCE($3, comments), updated_at = $4 WHERE id = $1 AND status <> 'FINAL' RETURNING ` + draftColumns
	var draft models.Draft
	err := r.db.GetContext(ctx, &draft, query, id, status, comments, time.Now().UTC())
	if err == nil {
		return &draft, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition draft status: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM drafts WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("check draft: %w", err)
	}
	if !exists {
		return nil, sql.ErrNoRows
	}
	return nil, ErrDraftFinal
}

// MarkFinal sets status FINAL unconditionally.
func (r *DraftRepository) MarkFinal(ctx context.Context, id int64) (*models.Draft, error) {
	return r.UpdateStatus(ctx, id, models.DraftStatusFinal, nil)
}

// Finalize moves a PENDING_REVIEW draft to FINAL and records report for its
// upload, atomically. It fails with ErrStaleDraft when the draft is no longer
// pending, ErrSupersededDraft when a later draft exists and
// ErrThreadFinalized when the upload already has a final draft.
func (r *DraftRepository) Finalize(ctx context.Context, id int64, report *models.Report) (draft *models.Draft, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finalize draft: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var uploadID string
	if err = tx.GetContext(ctx, &uploadID, `SELECT upload_id FROM drafts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find draft upload: %w", err)
	}
	if err = lockUpload(ctx, tx, uploadID); err != nil {
		return nil, err
	}

	var finalized bool
	if err = tx.GetContext(ctx, &finalized, `SELECT EXISTS (SELECT 1 FROM drafts WHERE upload_id = $1 AND status = 'FINAL')`, uploadID); err != nil {
		return nil, fmt.Errorf("check draft thread: %w", err)
	}
	if finalized {
		err = ErrThreadFinalized
		return nil, err
	}

	var superseded bool
	const later = `SELECT EXISTS (SELECT 1 FROM drafts WHERE upload_id = $1 AND draft_number > (SELECT draft_number FROM drafts WHERE id = $2))`
	if err = tx.GetContext(ctx, &superseded, later, uploadID, id); err != nil {
		return nil, fmt.Errorf("check later drafts: %w", err)
	}
	if superseded {
		err = ErrSupersededDraft
		return nil, err
	}

	var updated models.Draft
	query := `UPDATE drafts SET status = 'FINAL', updated_at = $2 WHERE id = $1 AND status = 'PENDING_REVIEW' RETURNING ` + draftColumns
	if err = tx.GetContext(ctx, &updated, query, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStaleDraft
			return nil, err
		}
		return nil, fmt.Errorf("finalize draft: %w", err)
	}

	if report != nil {
		if report.ID == "" {
			report.ID = uuid.NewString()
		}
		if report.CreatedAt.IsZero() {
			report.CreatedAt = time.Now().UTC()
		}
		report.DraftID = updated.ID
		report.UploadID = updated.UploadID
		const insert = `INSERT INTO reports (id, upload_id, draft_id, user_id, template_id, financial_year, file_url, created_at)
	VALUES (:id, :upload_id, :draft_id, :user_id, :template_id, :financial_year, :file_url, :created_at)
	ON CONFLICT (upload_id) DO NOTHING`
		if _, err = tx.NamedExecContext(ctx, insert, report); err != nil {
			return nil, fmt.Errorf("record final report: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finalize draft: %w", err)
	}
	return &updated, nil
}

// ListByUser returns a user's drafts in insertion order.
func (r *DraftRepository) ListByUser(ctx context.Context, userID string) ([]models.Draft, error) {
	var drafts []models.Draft
	if err := r.db.SelectContext(ctx, &drafts, `SELECT `+draftColumns+` FROM drafts WHERE user_id = $1 ORDER BY id ASC`, userID); err != nil {
		return nil, fmt.Errorf("list drafts by user: %w", err)
	}
	return drafts, nil
}

// ListByUpload returns an upload's drafts in insertion order.
func (r *DraftRepository) ListByUpload(ctx context.Context, uploadID string) ([]models.Draft, error) {
	var drafts []models.Draft
	if err := r.db.SelectContext(ctx, &drafts, `SELECT `+draftColumns+` FROM drafts WHERE upload_id = $1 ORDER BY id ASC`, uploadID); err != nil {
		return nil, fmt.Errorf("list drafts by upload: %w", err)
	}
	return drafts, nil
}

// LatestByUpload returns the highest numbered draft of an upload or
// sql.ErrNoRows when there is none.
func (r *DraftRepository) LatestByUpload(ctx context.Context, uploadID string) (*models.Draft, error) {
	var draft models.Draft
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE upload_id = $1 ORDER BY draft_number DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &draft, query, uploadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest draft: %w", err)
	}
	return &draft, nil
}

// List returns drafts matching any combination of filter fields, newest
// first, with the total count.
func (r *DraftRepository) List(ctx context.Context, filter models.DraftFilter) ([]models.Draft, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.UploadID != "" {
		args = append(args, filter.UploadID)
		conditions = append(conditions, fmt.Sprintf("upload_id = $%d", len(args)))
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
	query := fmt.Sprintf("SELECT %s FROM drafts%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", draftColumns, where, limit, offset)

	var drafts []models.Draft
	if err := r.db.SelectContext(ctx, &drafts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM drafts"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count drafts: %w", err)
	}
	return drafts, total, nil
}
