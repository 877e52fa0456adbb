package upload

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(ttl time.Duration, c *cache.Cache) (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(ttl, c)
	tr.now = clock.now
	return tr, clock
}

func TestTracker_Lifecycle(t *testing.T) {
	tr, clock := newTestTracker(24*time.Hour, nil)
	ctx := context.Background()

	p := tr.Initialize(ctx, "u1", "clip.mp4", 1000)
	assert.Equal(t, StatusInitializing, p.Status)
	assert.Equal(t, 0, p.Percent)

	clock.advance(2 * time.Second)
	p, err := tr.Update(ctx, "u1", 250, -1)
	require.NoError(t, err)
	assert.Equal(t, StatusUploading, p.Status)
	assert.Equal(t, 25, p.Percent)
	assert.InDelta(t, 125.0, p.BytesPerSecond, 0.001)
	assert.Equal(t, int64(6), p.ETASeconds)

	clock.advance(2 * time.Second)
	p, err = tr.Update(ctx, "u1", 1000, -1)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, int64(0), p.ETASeconds)

	p, err = tr.Complete(ctx, "u1", "/files/ws/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/files/ws/x.mp4", p.FileURL)
	require.NotNil(t, p.FinishedAt)
	assert.True(t, p.Terminal())

	_, err = tr.Cancel(ctx, "u1")
	assert.Equal(t, http.StatusConflict, apierr.Status(err))
}

func TestTracker_UnknownTotal(t *testing.T) {
	tr, clock := newTestTracker(time.Hour, nil)
	ctx := context.Background()
	tr.Initialize(ctx, "u1", "a.mp3", -1)

	clock.advance(time.Second)
	p, err := tr.Update(ctx, "u1", 500, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Percent)
	assert.Equal(t, StatusUploading, p.Status)

	p, err = tr.Update(ctx, "u1", 500, 2000)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Percent)
}

func TestTracker_FailAndCancelBlockUpdates(t *testing.T) {
	tr, _ := newTestTracker(time.Hour, nil)
	ctx := context.Background()

	tr.Initialize(ctx, "f", "a.mp4", 10)
	p, err := tr.Fail(ctx, "f", "disk full")
	require.NoError(t, err)
	assert.Equal(t, "disk full", p.Error)
	_, err = tr.Update(ctx, "f", 5, -1)
	assert.Equal(t, http.StatusConflict, apierr.Status(err))
	_, err = tr.Complete(ctx, "f", "")
	assert.Equal(t, http.StatusConflict, apierr.Status(err))

	tr.Initialize(ctx, "c", "b.mp4", 10)
	_, err = tr.Cancel(ctx, "c")
	require.NoError(t, err)
	_, err = tr.Update(ctx, "c", 5, -1)
	assert.Equal(t, http.StatusConflict, apierr.Status(err))
}

func TestTracker_NotFound(t *testing.T) {
	tr, _ := newTestTracker(time.Hour, nil)
	_, err := tr.Get(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, apierr.Status(err))
	_, err = tr.Update(context.Background(), "missing", 1, -1)
	assert.Equal(t, http.StatusNotFound, apierr.Status(err))
}

func TestTracker_SweepOnWrite(t *testing.T) {
	tr, clock := newTestTracker(time.Hour, nil)
	ctx := context.Background()

	tr.Initialize(ctx, "old", "a.mp4", 10)
	clock.advance(90 * time.Minute)

	// Reads do not sweep.
	_, err := tr.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Len())

	tr.Initialize(ctx, "new", "b.mp4", 10)
	assert.Equal(t, 1, tr.Len())
	_, err = tr.Get(ctx, "old")
	assert.Equal(t, http.StatusNotFound, apierr.Status(err))
}

func TestTracker_RedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	c := cache.New(rc, "click:cache:")
	ctx := context.Background()

	a, clock := newTestTracker(24*time.Hour, c)
	a.Initialize(ctx, "u1", "clip.mp4", 100)
	clock.advance(time.Second)
	_, err := a.Update(ctx, "u1", 40, -1)
	require.NoError(t, err)

	assert.True(t, mr.Exists("click:cache:upload:u1"))
	assert.Equal(t, MirrorTTL, mr.TTL("click:cache:upload:u1"))

	// A second instance reads progress from the mirror and can continue it.
	b, _ := newTestTracker(24*time.Hour, c)
	p, err := b.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Percent)
	assert.Equal(t, "clip.mp4", p.Filename)

	p, err = b.Update(ctx, "u1", 100, -1)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
}

func TestTracker_MirrorThrottled(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	c := cache.New(rc, "click:cache:")
	ctx := context.Background()

	a, clock := newTestTracker(24*time.Hour, c)
	b, _ := newTestTracker(24*time.Hour, c)
	a.Initialize(ctx, "u1", "clip.mp4", 100)
	clock.advance(100 * time.Millisecond)
	_, err := a.Update(ctx, "u1", 10, -1)
	require.NoError(t, err)

	// Byte-only updates inside the interval stay local.
	clock.advance(100 * time.Millisecond)
	_, err = a.Update(ctx, "u1", 30, -1)
	require.NoError(t, err)
	p, err := b.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Percent)

	clock.advance(time.Second)
	_, err = a.Update(ctx, "u1", 50, -1)
	require.NoError(t, err)
	b2, _ := newTestTracker(24*time.Hour, c)
	p, err = b2.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Percent)
}
