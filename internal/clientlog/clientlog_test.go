package clientlog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func statusOf(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func newTestService(t *testing.T, maxBatch int) *Service {
	t.Helper()
	s := NewService(NewDBSink(dbtest.Open(t)), maxBatch, 7*24*time.Hour)
	s.now = func() time.Time { return now }
	return s
}

func TestIngestAndList(t *testing.T) {
	s := newTestService(t, 50)
	ctx := context.Background()

	clientTime := now.Add(-time.Hour)
	n, err := s.Ingest(ctx, []Entry{
		{Level: "WARNING", Message: " slow render ", Context: json.RawMessage(`{"ms":1200}`), SessionID: "s1"},
		{Level: "error", Message: "crash", Timestamp: &clientTime},
		{Level: "trace", Message: "odd level"},
	}, Meta{UserAgent: "Mozilla/5.0", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "crash", all[2].Message, "client timestamp within a day is kept")

	warns, err := s.List(ctx, Query{Level: "WARN"})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "slow render", warns[0].Message)
	assert.Equal(t, `{"ms":1200}`, warns[0].Context)
	assert.Equal(t, "Mozilla/5.0", warns[0].UserAgent)
	assert.Equal(t, "u1", warns[0].UserID)

	infos, _ := s.List(ctx, Query{Level: "info"})
	assert.Len(t, infos, 1, "unknown levels become info")

	bySession, _ := s.List(ctx, Query{SessionID: "s1"})
	assert.Len(t, bySession, 1)

	limited, _ := s.List(ctx, Query{Limit: 2})
	assert.Len(t, limited, 2)
}

func TestIngest_Validation(t *testing.T) {
	s := newTestService(t, 2)
	ctx := context.Background()

	_, err := s.Ingest(ctx, nil, Meta{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = s.Ingest(ctx, make([]Entry, 3), Meta{})
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(err))

	_, err = s.Ingest(ctx, []Entry{{Message: "  "}}, Meta{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = s.Ingest(ctx, []Entry{{Message: "x", Context: json.RawMessage(`{broken`)}}, Meta{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	big := json.RawMessage(`"` + strings.Repeat("a", maxContextBytes) + `"`)
	_, err = s.Ingest(ctx, []Entry{{Message: "x", Context: big}}, Meta{})
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(err))
}

func TestIngest_TruncatesAndIgnoresBadClocks(t *testing.T) {
	s := newTestService(t, 50)
	ctx := context.Background()

	future := now.Add(48 * time.Hour)
	long := strings.Repeat("é", maxMessageBytes)
	_, err := s.Ingest(ctx, []Entry{{Message: long, Timestamp: &future}}, Meta{})
	require.NoError(t, err)

	logs, _ := s.List(ctx, Query{})
	require.Len(t, logs, 1)
	assert.LessOrEqual(t, len(logs[0].Message), maxMessageBytes)
	assert.True(t, strings.HasPrefix(long, logs[0].Message))
	assert.True(t, logs[0].CreatedAt.Equal(now))
}

func TestPrune(t *testing.T) {
	s := newTestService(t, 50)
	ctx := context.Background()

	old := now.Add(-20 * time.Hour)
	s.Ingest(ctx, []Entry{{Message: "old", Timestamp: &old}, {Message: "new"}}, Meta{})

	s.retention = 10 * time.Hour
	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	logs, _ := s.List(ctx, Query{})
	require.Len(t, logs, 1)
	assert.Equal(t, "new", logs[0].Message)

	s.retention = 0
	n, _ = s.Prune(ctx)
	assert.Zero(t, n)
}

func TestNormalizeLevel(t *testing.T) {
	for in, want := range map[string]string{
		"debug": "debug", "INFO": "info", "warning": "warn", "warn": "warn",
		"fatal": "error", "error": "error", "": "info", "verbose": "info",
	} {
		assert.Equal(t, want, normalizeLevel(in), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "a", truncate("aé", 2), "never splits a rune")
}

func TestMongoFilter(t *testing.T) {
	since := now.Add(-time.Hour)
	f := mongoFilter(Query{Level: "error", UserID: "u1", Since: since})
	assert.Equal(t, "error", f["level"])
	assert.Equal(t, "u1", f["user_id"])
	assert.Equal(t, bson.M{"$gte": since}, f["created_at"])
	assert.NotContains(t, f, "session_id")
	assert.Empty(t, mongoFilter(Query{}))
}

func TestIndexModels(t *testing.T) {
	models := indexModels(24 * time.Hour)
	require.Len(t, models, 3)
	assert.Equal(t, bson.D{{Key: "created_at", Value: 1}}, models[0].Keys)
}

// TestMongoSink runs against a live server when CLICK_TEST_MONGO_URI is set.
func TestMongoSink(t *testing.T) {
	uri := os.Getenv("CLICK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CLICK_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	sink, err := NewMongoSink(ctx, uri, "click_test_"+strings.ReplaceAll(t.Name(), "/", "_"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() {
		sink.coll.Database().Drop(ctx)
		sink.Close(ctx)
	})

	s := NewService(sink, 50, time.Hour)
	_, err = s.Ingest(ctx, []Entry{{Level: "error", Message: "boom"}, {Message: "hi"}}, Meta{UserID: "u1"})
	require.NoError(t, err)

	logs, err := s.List(ctx, Query{Level: "error"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].Message)
}
