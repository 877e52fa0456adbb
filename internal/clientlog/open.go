package clientlog

import (
	"context"

	"github.com/clickstudio/click/internal/config"
	"gorm.io/gorm"
)

// Open returns the sink selected by cfg.
func Open(ctx context.Context, cfg config.ClientLogConfig, gdb *gorm.DB) (Sink, error) {
	if cfg.Sink == "mongo" {
		return NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Retention)
	}
	return NewDBSink(gdb), nil
}
