package models

import "time"

// Content is a piece of source material: an uploaded video, an article, a
// transcript, etc.
type Content struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspace_id"`
	OwnerID     string    `gorm:"size:36;index" json:"owner_id"`
	Type        string    `gorm:"size:16;default:text;index" json:"type"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Body        string    `gorm:"type:mediumtext" json:"body,omitempty"`
	Tags        []string  `gorm:"serializer:json;type:text" json:"tags"`
	Category    string    `gorm:"size:64" json:"category,omitempty"`
	Status      string    `gorm:"size:16;default:draft;index" json:"status"`
	FileURL     string    `gorm:"type:text" json:"file_url,omitempty"`
	UploadID    string    `gorm:"size:36" json:"upload_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload records a file received by the upload endpoint.
type Upload struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspace_id"`
	OwnerID     string    `gorm:"size:36;index" json:"owner_id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	StoredPath  string    `gorm:"type:text" json:"-"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	Status      string    `gorm:"size:16;default:initializing;index" json:"status"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
