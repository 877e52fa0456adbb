package templates

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/db/dbtest"
	"github.com/clickstudio/click/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusOf(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(0, 10))
	assert.Equal(t, 0.05, EngagementRate(200, 10))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		p    models.TemplatePerformance
		want float64
	}{
		{"empty", models.TemplatePerformance{}, 0},
		{"saturated", models.TemplatePerformance{Uses: 1000, Views: 100, Engagements: 50, Conversions: 10}, 100},
		{"half engagement only", models.TemplatePerformance{Views: 100, Engagements: 5}, 25},
		{"conversions without views", models.TemplatePerformance{Conversions: 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.p))
		})
	}

	few := Score(models.TemplatePerformance{Uses: 10})
	many := Score(models.TemplatePerformance{Uses: 100})
	assert.Greater(t, many, few)
	assert.Less(t, many, 20.0)
}

func TestRecord(t *testing.T) {
	s := NewService(dbtest.Open(t))
	fixed := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	p, err := s.Record(ctx, "ws", "hook-list", Event{Type: EventUse, TemplateName: "Listicle hook", Category: "Hooks"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Uses)
	assert.Equal(t, "Listicle hook", p.TemplateName)
	assert.Equal(t, "hooks", p.Category)
	require.NotNil(t, p.LastUsedAt)
	assert.True(t, p.LastUsedAt.Equal(fixed))

	s.Record(ctx, "ws", "hook-list", Event{Type: EventView, Count: 200})
	p, err = s.Record(ctx, "ws", "hook-list", Event{Type: EventEngagement, Count: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.05, p.EngagementRate)
	assert.Equal(t, "Listicle hook", p.TemplateName, "name survives events without one")
	assert.Greater(t, p.Score, 25.0)

	got, err := s.Get(ctx, "ws", "hook-list")
	require.NoError(t, err)
	assert.EqualValues(t, 200, got.Views)
	assert.EqualValues(t, 10, got.Engagements)

	_, err = s.Get(ctx, "other", "hook-list")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	var n int64
	s.db.Model(&models.TemplatePerformance{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestRecord_Validation(t *testing.T) {
	s := NewService(dbtest.Open(t))
	ctx := context.Background()

	_, err := s.Record(ctx, "ws", " ", Event{Type: EventUse})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	_, err = s.Record(ctx, "ws", "t", Event{Type: "share"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	_, err = s.Record(ctx, "ws", "t", Event{Type: EventView, Count: -3})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestTop(t *testing.T) {
	s := NewService(dbtest.Open(t))
	ctx := context.Background()

	record := func(ws, id, category string, views, engagements int64) {
		t.Helper()
		_, err := s.Record(ctx, ws, id, Event{Type: EventView, Count: views, Category: category})
		require.NoError(t, err)
		_, err = s.Record(ctx, ws, id, Event{Type: EventEngagement, Count: engagements})
		require.NoError(t, err)
	}
	record("ws", "weak", "hooks", 100, 1)
	record("ws", "strong", "hooks", 100, 9)
	record("ws", "middle", "outros", 100, 5)
	record("other", "best", "hooks", 100, 50)

	top, err := s.Top(ctx, "ws", "", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "strong", top[0].TemplateID)
	assert.Equal(t, "middle", top[1].TemplateID)

	hooks, err := s.Top(ctx, "ws", "HOOKS", 0)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	assert.Equal(t, "weak", hooks[1].TemplateID)
}
