package models

import "time"

// ClientLog is a debug log entry reported by a browser or mobile client.
type ClientLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id" bson:"-"`
	Level     string    `gorm:"size:8;index" json:"level" bson:"level"`
	Message   string    `gorm:"type:text" json:"message" bson:"message"`
	Context   string    `gorm:"type:text" json:"context,omitempty" bson:"context,omitempty"`
	UserAgent string    `gorm:"size:512" json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	URL       string    `gorm:"type:text" json:"url,omitempty" bson:"url,omitempty"`
	UserID    string    `gorm:"size:36;index" json:"user_id,omitempty" bson:"user_id,omitempty"`
	SessionID string    `gorm:"size:64" json:"session_id,omitempty" bson:"session_id,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at" bson:"created_at"`
}
