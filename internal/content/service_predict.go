package content

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clickstudio/click/internal/cache"
	"github.com/clickstudio/click/internal/models"
	"github.com/rs/zerolog"
)

// PredictionTTL is how long a prediction stays cached.
const PredictionTTL = time.Hour

const (
	historyLimit     = 100
	postingTimeLimit = 50
)

// Predict forecasts the performance of a stored content record on
// platform, which may be empty. Results are cached per content revision.
func (s *Service) Predict(ctx context.Context, workspaceID, id, platform string) (*Prediction, error) {
	c, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	key := cache.Key("prediction", "content", c.ID, strconv.FormatInt(c.UpdatedAt.UnixNano(), 10), platform)
	var cached Prediction
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("content_id", c.ID).Msg("prediction cache read failed")
	} else if ok {
		return &cached, nil
	}

	history, err := s.recentPosted(ctx, workspaceID, "", historyLimit)
	if err != nil {
		return nil, err
	}
	timing := history
	if platform != "" {
		if timing, err = s.recentPosted(ctx, workspaceID, platform, postingTimeLimit); err != nil {
			return nil, err
		}
	} else if len(timing) > postingTimeLimit {
		timing = timing[:postingTimeLimit]
	}

	p := Predict(c, platform, HistoryFromPosts(history), timing)
	log.Debug().
		Str("content_id", c.ID).
		Int64("expected_views", p.Views.Expected).
		Int("score", p.PerformanceScore).
		Msg("content performance predicted")

	if err := s.cache.Set(ctx, key, p, PredictionTTL); err != nil {
		log.Warn().Err(err).Str("content_id", c.ID).Msg("prediction cache write failed")
	}
	return p, nil
}

func (s *Service) recentPosted(ctx context.Context, workspaceID, platform string, limit int) ([]models.ScheduledPost, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ? AND status = ?", workspaceID, "posted")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	var posts []models.ScheduledPost
	if err := q.Order("posted_at DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("content: load posting history: %w", err)
	}
	return posts, nil
}
