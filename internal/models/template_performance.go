package models

import "time"

// TemplatePerformance aggregates engagement metrics for a content template
// within one workspace.
type TemplatePerformance struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TemplateID     string     `gorm:"size:64;uniqueIndex:idx_tpl_workspace;not null" json:"template_id"`
	WorkspaceID    string     `gorm:"size:36;uniqueIndex:idx_tpl_workspace;not null" json:"workspace_id"`
	TemplateName   string     `gorm:"size:255" json:"template_name"`
	Category       string     `gorm:"size:64;index" json:"category"`
	Uses           int64      `json:"uses"`
	Views          int64      `json:"views"`
	Engagements    int64      `json:"engagements"`
	Conversions    int64      `json:"conversions"`
	EngagementRate float64    `json:"engagement_rate"`
	Score          float64    `gorm:"index" json:"score"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
