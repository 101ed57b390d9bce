package models

import (
	"encoding/json"
	"time"
)

// Activity actions recorded by the portal.
const (
	ActivityLogin           = "LOGIN"
	ActivityLogout          = "LOGOUT"
	ActivityPasswordChange  = "PASSWORD_CHANGE"
	ActivityUserCreate      = "USER_CREATE"
	ActivityUserUpdate      = "USER_UPDATE"
	ActivityUserDelete      = "USER_DELETE"
	ActivityTemplateUpload  = "TEMPLATE_UPLOAD"
	ActivityTemplateVersion = "TEMPLATE_VERSION"
	ActivityUploadSubmit    = "UPLOAD_SUBMIT"
	ActivityUploadReview    = "UPLOAD_REVIEW"
	ActivityDraftCreate     = "DRAFT_CREATE"
	ActivityDraftRespond    = "DRAFT_RESPOND"
	ActivityDraftStatus     = "DRAFT_STATUS"
	ActivityDraftFinal      = "DRAFT_FINAL"
	ActivityExportGenerate  = "EXPORT_GENERATE"
)

// ActivityLog is an append-only audit record.
type ActivityLog struct {
	ID        string          `db:"id" json:"id"`
	UserID    *string         `db:"user_id" json:"userId,omitempty"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress string          `db:"ip_address" json:"ipAddress,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	UserID   string
	Action   string
	Page     int
	PageSize int
}
