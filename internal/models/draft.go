package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DraftType is the direction of a draft in the review exchange.
type DraftType string

const (
	DraftTypeAdminToUser DraftType = "ADMIN_TO_USER"
	DraftTypeUserToAdmin DraftType = "USER_TO_ADMIN"
)

// DraftStatus tracks a draft through review. FINAL is terminal and is the
// only finality marker stored.
type DraftStatus string

const (
	DraftStatusPendingReview DraftStatus = "PENDING_REVIEW"
	DraftStatusApproved      DraftStatus = "APPROVED"
	DraftStatusRejected      DraftStatus = "REJECTED"
	DraftStatusFinal         DraftStatus = "FINAL"
)

// Valid reports whether s is one of the four draft statuses.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftStatusPendingReview, DraftStatusApproved, DraftStatusRejected, DraftStatusFinal:
		return true
	}
	return false
}

// Draft is one file exchanged between admin and user while reviewing an
// upload. The snapshot fields are copied when the draft is created and are
// never refreshed.
type Draft struct {
	ID               int64            `db:"id" json:"id"`
	UploadID         string           `db:"upload_id" json:"uploadId"`
	UserID           string           `db:"user_id" json:"userId"`
	TemplateID       string           `db:"template_id" json:"templateId"`
	DraftNumber      int              `db:"draft_number" json:"draftNumber"`
	DraftType        DraftType        `db:"draft_type" json:"draftType"`
	Status           DraftStatus      `db:"status" json:"status"`
	FileURL          string           `db:"file_url" json:"fileUrl"`
	FileName         string           `db:"file_name" json:"fileName"`
	Comments         *string          `db:"comments" json:"comments,omitempty"`
	CreatedBy        string           `db:"created_by" json:"createdBy"`
	UserSnapshot     UserSnapshot     `db:"user_snapshot" json:"user"`
	TemplateSnapshot TemplateSnapshot `db:"template_snapshot" json:"template"`
	UploadSnapshot   UploadSnapshot   `db:"upload_snapshot" json:"originalUpload"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// IsFinal derives finality from the status.
func (d *Draft) IsFinal() bool {
	return d != nil && d.Status == DraftStatusFinal
}

// DraftFilter narrows draft listings.
type DraftFilter struct {
	UserID   string
	UploadID string
	Status   DraftStatus
	Limit    int
	Offset   int
}

// UserSnapshot is the owning user as of draft creation.
type UserSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// TemplateSnapshot is the template version as of draft creation.
type TemplateSnapshot struct {
	ID       string `json:"id"`
	FamilyID string `json:"familyId"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	FileURL  string `json:"fileUrl"`
}

// UploadSnapshot is the originating upload as of draft creation.
type UploadSnapshot struct {
	ID            string       `json:"id"`
	FinancialYear string       `json:"financialYear"`
	FileURL       string       `json:"fileUrl"`
	FileName      string       `json:"fileName"`
	Status        UploadStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Value marshals the snapshot for a JSONB column.
func (s UserSnapshot) Value() (driver.Value, error) { return jsonValue(s) }

// Scan loads the snapshot from a JSONB column.
func (s *UserSnapshot) Scan(value interface{}) error { return scanJSON(value, s) }

// Value marshals the snapshot for a JSONB column.
func (s TemplateSnapshot) Value() (driver.Value, error) { return jsonValue(s) }

// Scan loads the snapshot from a JSONB column.
func (s *TemplateSnapshot) Scan(value interface{}) error { return scanJSON(value, s) }

// Value marshals the snapshot for a JSONB column.
func (s UploadSnapshot) Value() (driver.Value, error) { return jsonValue(s) }

// Scan loads the snapshot from a JSONB column.
func (s *UploadSnapshot) Scan(value interface{}) error { return scanJSON(value, s) }

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func scanJSON(value interface{}, dest interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported snapshot type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}
