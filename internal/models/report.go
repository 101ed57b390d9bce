package models

import "time"

// Report records the finalized draft of an upload. There is at most one per
// upload.
type Report struct {
	ID            string    `db:"id" json:"id"`
	UploadID      string    `db:"upload_id" json:"uploadId"`
	DraftID       int64     `db:"draft_id" json:"draftId"`
	UserID        string    `db:"user_id" json:"userId"`
	TemplateID    string    `db:"template_id" json:"templateId"`
	FinancialYear string    `db:"financial_year" json:"financialYear"`
	FileURL       string    `db:"file_url" json:"fileUrl"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	UserID        string
	FinancialYear string
	Limit         int
	Offset        int
}

// ReviewSummaryRow is one upload's line in the review summary export.
type ReviewSummaryRow struct {
	UploadID          string       `db:"upload_id"`
	UserName          string       `db:"user_name"`
	Username          string       `db:"username"`
	TemplateName      string       `db:"template_name"`
	TemplateVersion   int          `db:"template_version"`
	FinancialYear     string       `db:"financial_year"`
	UploadStatus      UploadStatus `db:"upload_status"`
	DraftCount        int          `db:"draft_count"`
	LatestDraftNumber *int         `db:"latest_draft_number"`
	LatestDraftStatus *string      `db:"latest_draft_status"`
	Finalized         bool         `db:"finalized"`
	SubmittedAt       time.Time    `db:"submitted_at"`
}
