package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"
)

// Post statuses.
const (
	StatusDraft      = "draft"
	StatusScheduled  = "scheduled"
	StatusPublishing = "publishing"
	StatusPosted     = "posted"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ValidTransitions maps each post status to its valid next statuses.
var ValidTransitions = map[string][]string{
	StatusDraft:      {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusPublishing, StatusCancelled},
	StatusPublishing: {StatusPosted, StatusFailed},
	StatusFailed:     {StatusScheduled},
}

func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

func transitionError(from, to string) error {
	return apierr.Conflict(fmt.Sprintf("invalid status transition from %q to %q; valid transitions: %v",
		from, to, ValidTransitions[from]))
}

// Alerter raises operational alerts. *alerting.Alerter satisfies it.
type Alerter interface {
	Send(ctx context.Context, a alerting.Alert) (bool, error)
}

// Options tunes publishing.
type Options struct {
	MaxRetries int           // retries after the first attempt
	Backoff    time.Duration // base delay between attempts
	// BreakerFailures consecutive failures open a platform's breaker for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	BatchSize       int // posts claimed per scheduler run
	// StaleAfter is how long a post may sit in publishing before a
	// scheduler run returns it to scheduled.
	StaleAfter time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 15 * time.Minute
	}
}

// Service manages scheduled posts and publishes them.
type Service struct {
	db     *gorm.DB
	oauth  *OAuth
	alerts Alerter
	opts   Options

	mu         sync.Mutex
	publishers map[string]Publisher
	breakers   map[string]*gobreaker.CircuitBreaker[*Result]

	now func() time.Time
}

// NewService returns a post service. GitHub posts go to gists; every other
// platform uses MockPublisher until replaced with SetPublisher.
func NewService(gdb *gorm.DB, oauth *OAuth, alerts Alerter, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		db:     gdb,
		oauth:  oauth,
		alerts: alerts,
		opts:   opts,
		publishers: map[string]Publisher{
			"github": &GistPublisher{},
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Result]),
		now:      time.Now,
	}
}

// SetPublisher replaces the publisher for platform.
func (s *Service) SetPublisher(platform string, p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers[platform] = p
}

func (s *Service) publisher(platform string) Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.publishers[platform]; ok {
		return p
	}
	return MockPublisher{}
}

// PostInput is the payload for creating a post.
type PostInput struct {
	ContentID   string     `json:"content_id"`
	Platform    string     `json:"platform" binding:"required"`
	Text        string     `json:"text"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Status      string     `json:"status"`
}

// PostUpdate carries optional changes to a post.
type PostUpdate struct {
	Text        *string    `json:"text"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Status      *string    `json:"status"`
}

// PostFilters narrows List.
type PostFilters struct {
	Status   string
	Platform string
	Limit    int
	Offset   int
}

// Engagement is a platform metrics snapshot for a posted post.
type Engagement struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Shares   int64 `json:"shares"`
	Comments int64 `json:"comments"`
	Reach    int64 `json:"reach"`
}

func validateText(platform, text string) error {
	p, ok := Lookup(platform)
	if !ok {
		return apierr.BadRequest(fmt.Sprintf("unknown platform %q", platform))
	}
	if strings.TrimSpace(text) == "" {
		return apierr.BadRequest("text is required")
	}
	if n := utf8.RuneCountInString(text); n > p.MaxTextLen {
		return apierr.BadRequest(fmt.Sprintf("text is %d characters; %s allows %d", n, p.DisplayName, p.MaxTextLen))
	}
	return nil
}

// Create stores a new post. Posts with a ScheduledAt default to scheduled,
// others to draft.
func (s *Service) Create(ctx context.Context, workspaceID, ownerID string, in PostInput) (*models.ScheduledPost, error) {
	if err := validateText(in.Platform, in.Text); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusDraft
		if in.ScheduledAt != nil {
			status = StatusScheduled
		}
	}
	if status != StatusDraft && status != StatusScheduled {
		return nil, apierr.BadRequest("status must be draft or scheduled")
	}
	if status == StatusScheduled && in.ScheduledAt == nil {
		return nil, apierr.BadRequest("scheduled_at is required for scheduled posts")
	}
	if in.ContentID != "" {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Content{}).
			Where("id = ? AND workspace_id = ?", in.ContentID, workspaceID).
			Count(&n).Error; err != nil {
			return nil, fmt.Errorf("social: create post: check content: %w", err)
		}
		if n == 0 {
			return nil, apierr.NotFound("content")
		}
	}

	post := models.ScheduledPost{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		ContentID:   in.ContentID,
		Platform:    in.Platform,
		Text:        in.Text,
		ScheduledAt: in.ScheduledAt,
		Status:      status,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("social: create post: %w", err)
	}
	return &post, nil
}

// Get returns a post in the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("post")
		}
		return nil, fmt.Errorf("social: get post %s: %w", id, err)
	}
	return &post, nil
}

// List returns the workspace's posts, soonest scheduled first.
func (s *Service) List(ctx context.Context, workspaceID string, f PostFilters) ([]models.ScheduledPost, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var posts []models.ScheduledPost
	err := q.Order("scheduled_at IS NULL, scheduled_at ASC, created_at DESC").
		Limit(limit).Offset(f.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("social: list posts: %w", err)
	}
	return posts, nil
}

// Update edits a draft, scheduled or failed post and optionally moves it
// along ValidTransitions. publishing is reserved for the publisher.
func (s *Service) Update(ctx context.Context, workspaceID, id string, in PostUpdate) (*models.ScheduledPost, error) {
	post, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case StatusDraft, StatusScheduled, StatusFailed:
	default:
		return nil, apierr.Conflict(fmt.Sprintf("cannot edit a %s post", post.Status))
	}

	if in.Text != nil {
		if err := validateText(post.Platform, *in.Text); err != nil {
			return nil, err
		}
		post.Text = *in.Text
	}
	if in.ScheduledAt != nil {
		post.ScheduledAt = in.ScheduledAt
	}
	if in.Status != nil && *in.Status != post.Status {
		to := *in.Status
		if to == StatusPublishing || !isValidTransition(post.Status, to) {
			return nil, transitionError(post.Status, to)
		}
		post.Status = to
	}
	if post.Status == StatusScheduled && post.ScheduledAt == nil {
		return nil, apierr.BadRequest("scheduled_at is required for scheduled posts")
	}
	if post.Status == StatusScheduled {
		post.LastError = ""
	}
	if err := s.db.WithContext(ctx).Save(post).Error; err != nil {
		return nil, fmt.Errorf("social: update post %s: %w", id, err)
	}
	return post, nil
}

// Cancel moves a draft or scheduled post to cancelled.
func (s *Service) Cancel(ctx context.Context, workspaceID, id string) (*models.ScheduledPost, error) {
	post, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(post.Status, StatusCancelled) {
		return nil, transitionError(post.Status, StatusCancelled)
	}
	res := s.db.WithContext(ctx).Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", id, post.Status).
		Update("status", StatusCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("social: cancel post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apierr.Conflict("post changed while cancelling; reload and retry")
	}
	post.Status = StatusCancelled
	return post, nil
}

// RecordEngagement stores the latest platform metrics for a posted post.
func (s *Service) RecordEngagement(ctx context.Context, workspaceID, id string, e Engagement) (*models.ScheduledPost, error) {
	post, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if post.Status != StatusPosted {
		return nil, apierr.Conflict("engagement can only be recorded for posted posts")
	}
	if e.Views < 0 || e.Likes < 0 || e.Shares < 0 || e.Comments < 0 || e.Reach < 0 {
		return nil, apierr.BadRequest("engagement counts must not be negative")
	}
	post.Views, post.Likes, post.Shares, post.Comments, post.Reach = e.Views, e.Likes, e.Shares, e.Comments, e.Reach
	if err := s.db.WithContext(ctx).Model(post).Select("views", "likes", "shares", "comments", "reach").
		Updates(post).Error; err != nil {
		return nil, fmt.Errorf("social: record engagement %s: %w", id, err)
	}
	return post, nil
}
