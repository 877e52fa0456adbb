package models

import "time"

// Project holds the editor state blob for one piece of work in progress.
type Project struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string     `gorm:"size:36;index;not null" json:"workspace_id"`
	OwnerID     string     `gorm:"size:36;index" json:"owner_id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	ContentID   string     `gorm:"size:36;index" json:"content_id,omitempty"`
	FolderID    string     `gorm:"size:36" json:"folder_id,omitempty"`
	EditorState string     `gorm:"type:mediumtext" json:"editor_state,omitempty"`
	StateHash   string     `gorm:"size:64" json:"state_hash"`
	Version     int        `gorm:"default:0" json:"version"`
	SavedAt     *time.Time `json:"saved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Snapshots []ProjectSnapshot `gorm:"foreignKey:ProjectID" json:"-"`
}

// ProjectSnapshot keeps one of the two rolling backups of a project's
// previous editor state. Slot alternates between 0 and 1.
type ProjectSnapshot struct {
	ProjectID   string    `gorm:"primaryKey;size:36" json:"project_id"`
	Slot        int       `gorm:"primaryKey" json:"slot"`
	Version     int       `json:"version"`
	EditorState string    `gorm:"type:mediumtext" json:"editor_state"`
	StateHash   string    `gorm:"size:64" json:"state_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
