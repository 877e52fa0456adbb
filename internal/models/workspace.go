package models

import "time"

// Workspace is the tenant boundary. Every user owns a personal workspace
// created at registration; all tenant data is scoped by WorkspaceID.
type Workspace struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Plan      string    `gorm:"size:16;default:free" json:"plan"`
	OwnerID   string    `gorm:"size:36;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account that can sign in to Click.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"size:128" json:"name"`
	PasswordHash string     `gorm:"size:100;not null" json:"-"`
	Role         string     `gorm:"size:16;default:user" json:"role"`
	WorkspaceID  string     `gorm:"size:36;index" json:"workspace_id"`
	Disabled     bool       `gorm:"default:false" json:"disabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
