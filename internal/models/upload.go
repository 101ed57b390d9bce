package models

import "time"

// UploadStatus is the admin review outcome of a submission.
type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "PENDING"
	UploadStatusApproved UploadStatus = "APPROVED"
	UploadStatusRejected UploadStatus = "REJECTED"
)

// Valid reports whether s is a known upload status.
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadStatusPending, UploadStatusApproved, UploadStatusRejected:
		return true
	}
	return false
}

// Upload is a user's filled template; it originates a draft thread.
type Upload struct {
	ID            string       `db:"id" json:"id"`
	UserID        string       `db:"user_id" json:"userId"`
	TemplateID    string       `db:"template_id" json:"templateId"`
	FinancialYear string       `db:"financial_year" json:"financialYear"`
	FileURL       string       `db:"file_url" json:"fileUrl"`
	FileName      string       `db:"file_name" json:"fileName"`
	Status        UploadStatus `db:"status" json:"status"`
	Comments      *string      `db:"comments" json:"comments,omitempty"`
	ReviewedBy    *string      `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time   `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

// UploadFilter narrows upload listings.
type UploadFilter struct {
	UserID        string
	TemplateID    string
	FinancialYear string
	Status        UploadStatus
	Limit         int
	Offset        int
}
