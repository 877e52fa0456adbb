// Package clientlog stores debug log entries posted by browser and mobile
// clients.
package clientlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/models"
)

const (
	maxMessageBytes = 4 << 10
	maxContextBytes = 16 << 10
	maxFieldBytes   = 512
)

// Sink persists client log entries.
type Sink interface {
	Write(ctx context.Context, entries []models.ClientLog) error
	List(ctx context.Context, q Query) ([]models.ClientLog, error)
	// Prune deletes entries created before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close(ctx context.Context) error
}

// Query filters List.
type Query struct {
	Level     string
	UserID    string
	SessionID string
	Since     time.Time
	Limit     int
}

func (q *Query) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	q.Level = strings.ToLower(q.Level)
}

// Entry is one log line as sent by a client.
type Entry struct {
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Context   json.RawMessage `json:"context,omitempty"`
	URL       string          `json:"url,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// Meta is request information attached to every entry in a batch.
type Meta struct {
	UserAgent string
	UserID    string
}

// Service validates and stores client logs.
type Service struct {
	sink      Sink
	maxBatch  int
	retention time.Duration
	now       func() time.Time
}

// NewService returns a Service writing to sink.
func NewService(sink Sink, maxBatch int, retention time.Duration) *Service {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &Service{sink: sink, maxBatch: maxBatch, retention: retention, now: time.Now}
}

func normalizeLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "debug", "info", "error":
		return l
	case "warn", "warning":
		return "warn"
	case "fatal", "critical":
		return "error"
	default:
		return "info"
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Ingest validates a batch and writes it to the sink. It returns the number
// of entries stored.
func (s *Service) Ingest(ctx context.Context, entries []Entry, meta Meta) (int, error) {
	if len(entries) == 0 {
		return 0, apierr.BadRequest("at least one log entry is required")
	}
	if len(entries) > s.maxBatch {
		return 0, apierr.TooLarge(fmt.Sprintf("at most %d log entries per request", s.maxBatch))
	}

	now := s.now()
	rows := make([]models.ClientLog, 0, len(entries))
	for i, e := range entries {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			return 0, apierr.BadRequest(fmt.Sprintf("entry %d: message is required", i))
		}
		row := models.ClientLog{
			Level:     normalizeLevel(e.Level),
			Message:   truncate(msg, maxMessageBytes),
			UserAgent: truncate(meta.UserAgent, maxFieldBytes),
			URL:       truncate(e.URL, 2048),
			UserID:    meta.UserID,
			SessionID: truncate(e.SessionID, 64),
			CreatedAt: now,
		}
		if len(e.Context) > 0 && string(e.Context) != "null" {
			if !json.Valid(e.Context) {
				return 0, apierr.BadRequest(fmt.Sprintf("entry %d: context is not valid JSON", i))
			}
			if len(e.Context) > maxContextBytes {
				return 0, apierr.TooLarge(fmt.Sprintf("entry %d: context exceeds %d bytes", i, maxContextBytes))
			}
			row.Context = string(e.Context)
		}
		// Client clocks are trusted only within a day of ours.
		if e.Timestamp != nil && e.Timestamp.After(now.Add(-24*time.Hour)) && e.Timestamp.Before(now.Add(time.Minute)) {
			row.CreatedAt = *e.Timestamp
		}
		rows = append(rows, row)
	}

	if err := s.sink.Write(ctx, rows); err != nil {
		return 0, fmt.Errorf("clientlog: write: %w", err)
	}
	for _, r := range rows {
		metrics.RecordClientLog(r.Level)
	}
	return len(rows), nil
}

// List returns recent entries, newest first.
func (s *Service) List(ctx context.Context, q Query) ([]models.ClientLog, error) {
	q.normalize()
	logs, err := s.sink.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("clientlog: list: %w", err)
	}
	return logs, nil
}

// Prune deletes entries older than the retention period. A zero retention
// keeps everything.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	n, err := s.sink.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("clientlog: prune: %w", err)
	}
	return n, nil
}
