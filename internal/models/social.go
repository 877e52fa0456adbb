package models

import "time"

// ScheduledPost is a post queued for publishing to one social platform.
type ScheduledPost struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID    string     `gorm:"size:36;index;not null" json:"workspace_id"`
	OwnerID        string     `gorm:"size:36;index" json:"owner_id"`
	ContentID      string     `gorm:"size:36;index" json:"content_id,omitempty"`
	Platform       string     `gorm:"size:32;index;not null" json:"platform"`
	Text           string     `gorm:"type:text" json:"text"`
	ScheduledAt    *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	Status         string     `gorm:"size:16;default:draft;index" json:"status"`
	Attempts       int        `gorm:"default:0" json:"attempts"`
	LastError      string     `gorm:"type:text" json:"last_error,omitempty"`
	PlatformPostID string     `gorm:"size:128" json:"platform_post_id,omitempty"`
	PostURL        string     `gorm:"type:text" json:"post_url,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	Views          int64      `json:"views"`
	Likes          int64      `json:"likes"`
	Shares         int64      `json:"shares"`
	Comments       int64      `json:"comments"`
	Reach          int64      `json:"reach"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Engagement is the sum of likes, shares and comments.
func (p ScheduledPost) Engagement() int64 {
	return p.Likes + p.Shares + p.Comments
}

// SocialConnection stores OAuth credentials for one user on one platform.
type SocialConnection struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           string     `gorm:"size:36;uniqueIndex:idx_conn_user_platform;not null" json:"user_id"`
	WorkspaceID      string     `gorm:"size:36;index" json:"workspace_id"`
	Platform         string     `gorm:"size:32;uniqueIndex:idx_conn_user_platform;not null" json:"platform"`
	AccessToken      string     `gorm:"type:text" json:"-"`
	RefreshToken     string     `gorm:"type:text" json:"-"`
	TokenExpiry      *time.Time `json:"token_expiry,omitempty"`
	PlatformUserID   string     `gorm:"size:128" json:"platform_user_id,omitempty"`
	PlatformUsername string     `gorm:"size:128" json:"platform_username,omitempty"`
	Active           bool       `gorm:"default:true;index" json:"active"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
