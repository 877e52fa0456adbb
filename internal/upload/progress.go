package upload

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/cache"
	"github.com/rs/zerolog"
)

// Upload statuses.
const (
	StatusInitializing = "initializing"
	StatusUploading    = "uploading"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
	StatusCancelled    = "cancelled"
)

// MirrorTTL is how long progress entries live in Redis.
const MirrorTTL = time.Hour

// mirrorInterval throttles Redis writes for byte-count updates. Status
// changes are always mirrored.
const mirrorInterval = time.Second

// sweepInterval bounds how often a write scans the map for expired entries.
const sweepInterval = time.Minute

// Progress is the live state of one upload.
type Progress struct {
	UploadID       string     `json:"upload_id"`
	Filename       string     `json:"filename"`
	Status         string     `json:"status"`
	Percent        int        `json:"progress"`
	BytesUploaded  int64      `json:"bytes_uploaded"`
	TotalBytes     int64      `json:"total_bytes"`
	BytesPerSecond float64    `json:"bytes_per_second"`
	ETASeconds     int64      `json:"estimated_time_remaining"`
	Error          string     `json:"error,omitempty"`
	FileURL        string     `json:"file_url,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`

	mirroredAt time.Time
}

// Terminal reports whether no further updates are expected.
func (p *Progress) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed || p.Status == StatusCancelled
}

// Tracker holds upload progress in memory, optionally mirrored to Redis so
// other instances can serve progress reads. Entries older than the TTL are
// evicted whenever the tracker is written to.
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*Progress
	ttl       time.Duration
	lastSweep time.Time
	cache     *cache.Cache
	now       func() time.Time
}

// NewTracker returns a Tracker. c may be nil.
func NewTracker(ttl time.Duration, c *cache.Cache) *Tracker {
	return &Tracker{
		entries: make(map[string]*Progress),
		ttl:     ttl,
		cache:   c,
		now:     time.Now,
	}
}

func mirrorKey(id string) string {
	return "upload:" + id
}

// sweepLocked drops entries started more than ttl ago, at most once per
// sweepInterval. t.mu must be held.
func (t *Tracker) sweepLocked(now time.Time) {
	if t.ttl <= 0 || now.Sub(t.lastSweep) < sweepInterval {
		return
	}
	t.lastSweep = now
	for id, p := range t.entries {
		if now.Sub(p.StartedAt) > t.ttl {
			delete(t.entries, id)
		}
	}
}

// Len returns the number of entries held in memory.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) mirror(ctx context.Context, p Progress) {
	if err := t.cache.Set(ctx, mirrorKey(p.UploadID), p, MirrorTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("upload_id", p.UploadID).Msg("upload progress mirror failed")
	}
}

// Initialize starts tracking an upload.
func (t *Tracker) Initialize(ctx context.Context, id, filename string, totalBytes int64) Progress {
	now := t.now()
	p := &Progress{
		UploadID:   id,
		Filename:   filename,
		Status:     StatusInitializing,
		TotalBytes: max(totalBytes, 0),
		StartedAt:  now,
		UpdatedAt:  now,
		mirroredAt: now,
	}
	t.mu.Lock()
	t.sweepLocked(now)
	t.entries[id] = p
	out := *p
	t.mu.Unlock()

	t.mirror(ctx, out)
	return out
}

// fill makes sure the entry for id is in memory, loading it from the Redis
// mirror on a miss. Redis is read without holding t.mu.
func (t *Tracker) fill(ctx context.Context, id string) error {
	t.mu.Lock()
	_, ok := t.entries[id]
	t.mu.Unlock()
	if ok {
		return nil
	}

	var p Progress
	found, err := t.cache.Get(ctx, mirrorKey(id), &p)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("upload_id", id).Msg("upload progress mirror read failed")
	}
	if !found {
		return apierr.NotFound("upload")
	}
	t.mu.Lock()
	if _, ok := t.entries[id]; !ok {
		p.mirroredAt = t.now()
		t.entries[id] = &p
	}
	t.mu.Unlock()
	return nil
}

// update applies fn to the entry for id under the lock. Status changes and
// terminal states are always mirrored; byte counts at most once per
// mirrorInterval.
func (t *Tracker) update(ctx context.Context, id string, fn func(p *Progress, now time.Time) error) (Progress, error) {
	if err := t.fill(ctx, id); err != nil {
		return Progress{}, err
	}
	now := t.now()
	t.mu.Lock()
	t.sweepLocked(now)
	p, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return Progress{}, apierr.NotFound("upload")
	}
	before := p.Status
	if err := fn(p, now); err != nil {
		t.mu.Unlock()
		return Progress{}, err
	}
	p.UpdatedAt = now
	doMirror := p.Status != before || p.Terminal() || now.Sub(p.mirroredAt) >= mirrorInterval
	if doMirror {
		p.mirroredAt = now
	}
	out := *p
	t.mu.Unlock()

	if doMirror {
		t.mirror(ctx, out)
	}
	return out, nil
}

// Update records bytesUploaded. A totalBytes >= 0 replaces the known total.
func (t *Tracker) Update(ctx context.Context, id string, bytesUploaded, totalBytes int64) (Progress, error) {
	return t.update(ctx, id, func(p *Progress, now time.Time) error {
		if p.Status == StatusFailed || p.Status == StatusCancelled {
			return apierr.Conflict(fmt.Sprintf("upload is %s", p.Status))
		}
		p.BytesUploaded = bytesUploaded
		if totalBytes >= 0 {
			p.TotalBytes = totalBytes
		}
		if p.TotalBytes > 0 {
			p.Percent = int(math.Round(float64(bytesUploaded) / float64(p.TotalBytes) * 100))
		} else {
			p.Percent = 0
		}
		if p.Percent >= 100 {
			p.Percent = 100
			p.Status = StatusCompleted
		} else {
			p.Status = StatusUploading
		}
		if elapsed := now.Sub(p.StartedAt).Seconds(); elapsed > 0 {
			p.BytesPerSecond = float64(bytesUploaded) / elapsed
			p.ETASeconds = 0
			if p.TotalBytes > bytesUploaded && p.BytesPerSecond > 0 {
				p.ETASeconds = int64(math.Round(float64(p.TotalBytes-bytesUploaded) / p.BytesPerSecond))
			}
		}
		return nil
	})
}

// Get returns the current progress for id.
func (t *Tracker) Get(ctx context.Context, id string) (Progress, error) {
	if err := t.fill(ctx, id); err != nil {
		return Progress{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok {
		return Progress{}, apierr.NotFound("upload")
	}
	return *p, nil
}

// Complete marks an upload as finished.
func (t *Tracker) Complete(ctx context.Context, id, fileURL string) (Progress, error) {
	return t.update(ctx, id, func(p *Progress, now time.Time) error {
		if p.Status == StatusFailed || p.Status == StatusCancelled {
			return apierr.Conflict(fmt.Sprintf("upload is %s", p.Status))
		}
		p.Status = StatusCompleted
		p.Percent = 100
		if p.TotalBytes == 0 {
			p.TotalBytes = p.BytesUploaded
		}
		p.ETASeconds = 0
		p.FileURL = fileURL
		p.FinishedAt = &now
		return nil
	})
}

// Fail marks an upload as failed with a message.
func (t *Tracker) Fail(ctx context.Context, id, message string) (Progress, error) {
	return t.update(ctx, id, func(p *Progress, now time.Time) error {
		p.Status = StatusFailed
		p.Error = message
		p.FinishedAt = &now
		return nil
	})
}

// Cancel marks an upload as cancelled.
func (t *Tracker) Cancel(ctx context.Context, id string) (Progress, error) {
	return t.update(ctx, id, func(p *Progress, now time.Time) error {
		if p.Status == StatusCompleted {
			return apierr.Conflict("upload already completed")
		}
		p.Status = StatusCancelled
		p.FinishedAt = &now
		return nil
	})
}
