package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/logging"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/models"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
)

const maxPublishBackoff = 30 * time.Second

func (s *Service) breaker(platform string) *gobreaker.CircuitBreaker[*Result] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[platform]; ok {
		return cb
	}
	failures := s.opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:    "publish:" + platform,
		Timeout: s.opts.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// A rejected payload says nothing about the platform's health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logging.Component("social")
			log.Warn().
				Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	s.breakers[platform] = cb
	return cb
}

// BreakerState reports the circuit breaker state for platform.
func (s *Service) BreakerState(platform string) gobreaker.State {
	return s.breaker(platform).State()
}

// PublishNow publishes a draft, scheduled or failed post immediately.
func (s *Service) PublishNow(ctx context.Context, workspaceID, id string) (*models.ScheduledPost, error) {
	post, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch post.Status {
	case StatusDraft, StatusFailed:
		res := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
			Where("id = ? AND status = ?", id, post.Status).
			Updates(map[string]interface{}{"status": StatusScheduled, "scheduled_at": now})
		if res.Error != nil {
			return nil, fmt.Errorf("social: publish %s: %w", id, res.Error)
		}
	case StatusScheduled:
	default:
		return nil, transitionError(post.Status, StatusPublishing)
	}

	claimed, err := s.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apierr.Conflict("post is already being published")
	}
	if _, err := s.publishClaimed(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, workspaceID, id)
}

// claim moves a scheduled post to publishing. It reports false when another
// caller won the race.
func (s *Service) claim(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", id, StatusScheduled).
		Updates(map[string]interface{}{"status": StatusPublishing, "updated_at": s.now()})
	if res.Error != nil {
		return false, fmt.Errorf("social: claim post %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// publishClaimed sends a claimed post to its platform and records the
// outcome. A returned error means the outcome could not be stored; a
// failed publish is reported through the post's status.
//
// Once claimed, the outcome is written even if ctx is cancelled, so a post
// never stays in publishing. A publish interrupted by ctx goes back to
// scheduled and is retried on the next run.
func (s *Service) publishClaimed(ctx context.Context, id string) (bool, error) {
	store := s.db.WithContext(context.WithoutCancel(ctx))

	var post models.ScheduledPost
	if err := store.Where("id = ?", id).First(&post).Error; err != nil {
		return false, fmt.Errorf("social: load claimed post %s: %w", id, err)
	}
	log := logging.Ctx(ctx).With().Str("post_id", post.ID).Str("platform", post.Platform).Logger()

	start := time.Now()
	attempts, result, pubErr := s.attempt(ctx, &post)
	post.Attempts += attempts

	if pubErr != nil && ctx.Err() != nil {
		log.Warn().Err(pubErr).Msg("publish interrupted, returning post to schedule")
		err := store.Model(&models.ScheduledPost{}).
			Where("id = ? AND status = ?", id, StatusPublishing).
			Updates(map[string]interface{}{
				"status":     StatusScheduled,
				"attempts":   post.Attempts,
				"last_error": "publish interrupted: " + pubErr.Error(),
			}).Error
		if err != nil {
			return false, fmt.Errorf("social: reschedule post %s: %w", id, err)
		}
		return false, ctx.Err()
	}

	if pubErr != nil {
		metrics.RecordPublish(post.Platform, StatusFailed, time.Since(start))
		log.Warn().Err(pubErr).Int("attempts", post.Attempts).Msg("publish failed")
		err := store.Model(&models.ScheduledPost{}).
			Where("id = ? AND status = ?", id, StatusPublishing).
			Updates(map[string]interface{}{
				"status":     StatusFailed,
				"attempts":   post.Attempts,
				"last_error": pubErr.Error(),
			}).Error
		if err != nil {
			return false, fmt.Errorf("social: mark post %s failed: %w", id, err)
		}
		s.alert(ctx, &post, pubErr)
		return false, nil
	}

	metrics.RecordPublish(post.Platform, StatusPosted, time.Since(start))
	now := s.now()
	err := store.Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", id, StatusPublishing).
		Updates(map[string]interface{}{
			"status":           StatusPosted,
			"attempts":         post.Attempts,
			"last_error":       "",
			"platform_post_id": result.PostID,
			"post_url":         result.URL,
			"posted_at":        now,
		}).Error
	if err != nil {
		return false, fmt.Errorf("social: mark post %s posted: %w", id, err)
	}
	log.Info().Str("platform_post_id", result.PostID).Msg("post published")
	return true, nil
}

// attempt publishes post through the platform breaker, retrying transient
// errors with capped exponential backoff. It returns the number of attempts.
func (s *Service) attempt(ctx context.Context, post *models.ScheduledPost) (int, *Result, error) {
	req := PostRequest{Platform: post.Platform, Text: post.Text}
	if err := s.attachToken(ctx, post, &req); err != nil {
		return 1, nil, err
	}

	pub := s.publisher(post.Platform)
	cb := s.breaker(post.Platform)

	b := retry.NewExponential(s.opts.Backoff)
	b = retry.WithCappedDuration(maxPublishBackoff, b)
	b = retry.WithMaxRetries(uint64(s.opts.MaxRetries), b)

	attempts := 0
	var result *Result
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		r, err := cb.Execute(func() (*Result, error) {
			return pub.Publish(ctx, req)
		})
		switch {
		case err == nil:
			result = r
			return nil
		case IsPermanent(err),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	return attempts, result, err
}

// attachToken loads the owner's connection, refreshing its token when the
// platform supports it. Posts without a connection go out without a token;
// publishers that need one reject the request.
func (s *Service) attachToken(ctx context.Context, post *models.ScheduledPost, req *PostRequest) error {
	if s.oauth == nil {
		return nil
	}
	conn, err := s.oauth.Connection(ctx, post.OwnerID, post.Platform)
	if err != nil {
		if apierr.Status(err) == 404 {
			return nil
		}
		return err
	}
	tok, err := s.oauth.TokenSource(ctx, conn).Token()
	if err != nil {
		return Permanent(fmt.Errorf("refresh %s token: %w", post.Platform, err))
	}
	req.AccessToken = tok.AccessToken

	updates := map[string]interface{}{"last_used_at": s.now()}
	if tok.AccessToken != conn.AccessToken {
		updates["access_token"] = tok.AccessToken
		updates["refresh_token"] = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			updates["token_expiry"] = tok.Expiry
		}
	}
	if err := s.db.WithContext(ctx).Model(conn).Updates(updates).Error; err != nil {
		logging.Ctx(ctx).Warn().Err(err).Uint("connection_id", conn.ID).Msg("failed to update connection")
	}
	return nil
}

func (s *Service) alert(ctx context.Context, post *models.ScheduledPost, cause error) {
	if s.alerts == nil {
		return
	}
	_, err := s.alerts.Send(ctx, alerting.Alert{
		Key:      "publish:" + post.Platform,
		Severity: alerting.SeverityError,
		Title:    "Scheduled post failed",
		Message:  cause.Error(),
		Fields: []alerting.Field{
			{Name: "Post", Value: post.ID, Short: true},
			{Name: "Platform", Value: post.Platform, Short: true},
			{Name: "Workspace", Value: post.WorkspaceID, Short: true},
			{Name: "Attempts", Value: fmt.Sprint(post.Attempts), Short: true},
		},
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("publish alert delivery failed")
	}
}

// RunResult summarises one scheduler pass.
type RunResult struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Recovered int `json:"recovered"`
}

// recoverStale returns posts stuck in publishing for longer than
// Options.StaleAfter to scheduled. Such posts were claimed by a process that
// died before recording the outcome.
func (s *Service) recoverStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.StaleAfter)
	res := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("status = ? AND updated_at < ?", StatusPublishing, cutoff).
		Updates(map[string]interface{}{
			"status":     StatusScheduled,
			"last_error": "publish interrupted: recovered stale claim",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("social: recover stale posts: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logging.Ctx(ctx).Warn().Int64("posts", res.RowsAffected).Msg("recovered stale publishing posts")
	}
	return int(res.RowsAffected), nil
}

// RunDue publishes scheduled posts whose time has come, oldest first. Stale
// claims are recovered first.
func (s *Service) RunDue(ctx context.Context) (RunResult, error) {
	var res RunResult
	recovered, err := s.recoverStale(ctx)
	if err != nil {
		return res, err
	}
	res.Recovered = recovered

	var ids []string
	err = s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("status = ? AND scheduled_at <= ?", StatusScheduled, s.now()).
		Order("scheduled_at ASC").
		Limit(s.opts.BatchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return res, fmt.Errorf("social: find due posts: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ok, err := s.claim(ctx, id)
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		res.Claimed++
		posted, err := s.publishClaimed(ctx, id)
		if err != nil {
			return res, err
		}
		if posted {
			res.Published++
		} else {
			res.Failed++
		}
	}
	return res, nil
}
