package models

import "time"

// Template is one version of an admin supplied report template. Rows sharing
// a FamilyID form the version history; at most one is active.
type Template struct {
	ID          string    `db:"id" json:"id"`
	FamilyID    string    `db:"family_id" json:"familyId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Version     int       `db:"version" json:"version"`
	FileURL     string    `db:"file_url" json:"fileUrl"`
	FileName    string    `db:"file_name" json:"fileName"`
	MimeType    string    `db:"mime_type" json:"mimeType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	UploadedBy  *string   `db:"uploaded_by" json:"uploadedBy,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	IncludeInactive bool
	Search          string
	Limit           int
	Offset          int
}
