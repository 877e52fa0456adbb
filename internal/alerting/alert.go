// Package alerting delivers operational alerts to Slack, Discord and the
// log, with per-key cooldowns and an hourly cap.
package alerting

import (
	"context"
	"time"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Color constants for alert severity.
const (
	ColorInfo     = "#2196f3"
	ColorWarning  = "#ff9800"
	ColorError    = "#e53935"
	ColorCritical = "#8e24aa"
)

// Alert is one operational event worth telling a human about.
type Alert struct {
	Key      string    `json:"key"` // dedup key for cooldowns, e.g. "publish:twitter"
	Severity string    `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Fields   []Field   `json:"fields,omitempty"`
	Time     time.Time `json:"time"`
}

// Field is a key-value pair shown with an alert.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"` // hint: render side-by-side with another field
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// severityColor maps a severity to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	case SeverityCritical:
		return ColorCritical
	default:
		return ColorInfo
	}
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}
