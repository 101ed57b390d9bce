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

const templateColumns = `id, family_id, name, description, version, file_url, file_name, mime_type, size_bytes, is_active, uploaded_by, created_at`

// TemplateRepository persists versioned report templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const insertTemplate = `INSERT INTO templates (` + templateColumns + `)
	VALUES (:id, :family_id, :name, :description, :version, :file_url, :file_name, :mime_type, :size_bytes, :is_active, :uploaded_by, :created_at)`

// Create stores the first version of a new template family.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.FamilyID == "" {
		tpl.FamilyID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now().UTC()
	}
	tpl.Version = 1
	tpl.IsActive = true
	if _, err := r.db.NamedExecContext(ctx, insertTemplate, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// CreateVersion appends tpl as the newest version of familyID. The previous
// active row is deactivated in the same transaction. Returns sql.ErrNoRows if
// the family does not exist.
func (r *TemplateRepository) CreateVersion(ctx context.Context, familyID string, tpl *models.Template) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE templates SET is_active = FALSE WHERE family_id = $1 AND is_active`, familyID); err != nil {
		return fmt.Errorf("deactivate template family: %w", err)
	}

	var current int
	if err = tx.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM templates WHERE family_id = $1`, familyID); err != nil {
		return fmt.Errorf("read template version: %w", err)
	}
	if current == 0 {
		err = sql.ErrNoRows
		return err
	}

	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now().UTC()
	}
	tpl.FamilyID = familyID
	tpl.Version = current + 1
	tpl.IsActive = true
	if _, err = tx.NamedExecContext(ctx, insertTemplate, tpl); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("insert template version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit template version: %w", err)
	}
	return nil
}

// GetByID returns one template version.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	var tpl models.Template
	if err := r.db.GetContext(ctx, &tpl, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &tpl, nil
}

// List returns templates, newest first. Inactive versions are skipped unless
// requested.
func (r *TemplateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + templateColumns + ` FROM templates`)
	args := make([]interface{}, 0, 1)
	conditions := make([]string, 0, 2)

	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active")
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset))

	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// History returns every version of a family, newest first.
func (r *TemplateRepository) History(ctx context.Context, familyID string) ([]models.Template, error) {
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, `SELECT `+templateColumns+` FROM templates WHERE family_id = $1 ORDER BY version DESC`, familyID); err != nil {
		return nil, fmt.Errorf("template history: %w", err)
	}
	return templates, nil
}
