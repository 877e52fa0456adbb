package clientlog

import (
	"context"
	"fmt"
	"time"

	"github.com/clickstudio/click/internal/models"
	"gorm.io/gorm"
)

// DBSink stores entries in the client_logs table.
type DBSink struct {
	db *gorm.DB
}

// NewDBSink returns a sink backed by gdb.
func NewDBSink(gdb *gorm.DB) *DBSink {
	return &DBSink{db: gdb}
}

func (s *DBSink) Write(ctx context.Context, entries []models.ClientLog) error {
	if err := s.db.WithContext(ctx).CreateInBatches(entries, 50).Error; err != nil {
		return fmt.Errorf("db sink: insert: %w", err)
	}
	return nil
}

func (s *DBSink) List(ctx context.Context, q Query) ([]models.ClientLog, error) {
	tx := s.db.WithContext(ctx)
	if q.Level != "" {
		tx = tx.Where("level = ?", q.Level)
	}
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.SessionID != "" {
		tx = tx.Where("session_id = ?", q.SessionID)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}
	var out []models.ClientLog
	if err := tx.Order("created_at DESC, id DESC").Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("db sink: list: %w", err)
	}
	return out, nil
}

func (s *DBSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ClientLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("db sink: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *DBSink) Close(context.Context) error { return nil }
