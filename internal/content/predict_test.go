package content

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/clickstudio/click/internal/models"
)

func TestScore(t *testing.T) {
	title50 := strings.Repeat("a", 50)
	longDesc := strings.Repeat("d", 120)

	tests := []struct {
		name string
		c    models.Content
		h    History
		want int
	}{
		{"empty text content", models.Content{Type: "text"}, History{}, 55},
		{"ideal video no history", models.Content{Type: "video", Title: title50, Description: longDesc, Tags: []string{"a", "b", "c"}}, History{}, 100},
		{"short title article", models.Content{Type: "article", Title: "Hi", Description: "short", Tags: []string{"x"}}, History{}, 50 + 10 + 5 + 5 + 8},
		{"strong history", models.Content{Type: "podcast", Title: "Hi"}, History{Count: 3, AvgViews: 100, AvgEngagement: 20}, 50 + 10 + 15 + 7},
		{"medium history", models.Content{Type: "podcast", Title: "Hi"}, History{Count: 3, AvgViews: 100, AvgEngagement: 7}, 50 + 10 + 10 + 7},
		{"weak history", models.Content{Type: "transcript"}, History{Count: 3, AvgViews: 100, AvgEngagement: 1}, 50 + 5 + 5},
		{"clamped at 100", models.Content{Type: "video", Title: title50, Description: longDesc, Tags: []string{"a", "b", "c"}}, History{Count: 1, AvgViews: 10, AvgEngagement: 5}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(&tt.c, tt.h); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPredictViews(t *testing.T) {
	c := &models.Content{Type: "video", Title: strings.Repeat("t", 45)}

	noHistory := PredictViews(c, History{})
	if noHistory.Expected != 200 || noHistory.Min != 50 || noHistory.Max != 500 {
		t.Errorf("default views = %+v", noHistory)
	}

	got := PredictViews(c, History{Count: 5, AvgViews: 1000})
	// 1000 * 1.5 (video) * 1.2 (ideal title) = 1800, variance 300.
	if got.Expected != 1800 || math.Round(got.Min) != 1500 || math.Round(got.Max) != 2100 {
		t.Errorf("views = %+v", got)
	}

	untitled := PredictViews(&models.Content{Type: "transcript"}, History{Count: 1, AvgViews: 1000})
	// 1000 * 0.6 * 0.8 = 480
	if untitled.Expected != 480 {
		t.Errorf("untitled expected = %d, want 480", untitled.Expected)
	}
}

func TestPredictEngagementAndReach(t *testing.T) {
	c := &models.Content{Type: "article", Description: strings.Repeat("d", 150), Tags: []string{"go"}}
	h := History{Count: 10, AvgViews: 1000, AvgEngagement: 100, AvgReach: 900}

	e := PredictEngagement(c, h)
	// 100 * 1.1 * 1.1 = 121
	if e.Expected != 121 {
		t.Errorf("engagement expected = %d, want 121", e.Expected)
	}
	if e.Rate < 0.1209 || e.Rate > 0.1211 {
		t.Errorf("engagement rate = %v, want 0.121", e.Rate)
	}

	r := PredictReach(c, h)
	// views: 1000 * 1.0 * 0.8 = 800 → 560 from views; historical 900 wins.
	if r.Expected != 900 {
		t.Errorf("reach expected = %d, want 900", r.Expected)
	}

	if d := PredictEngagement(c, History{}); d.Expected != 20 || d.Rate != 0.05 {
		t.Errorf("default engagement = %+v", d)
	}
	if d := PredictReach(c, History{}); d.Expected != 150 {
		t.Errorf("default reach = %+v", d)
	}
}

func TestConfidence(t *testing.T) {
	for count, want := range map[int]string{0: "low", 19: "low", 20: "medium", 49: "medium", 50: "high"} {
		if got := Confidence(History{Count: count}); got != want {
			t.Errorf("Confidence(%d) = %q, want %q", count, got, want)
		}
	}
}

func TestOptimalPostingTime(t *testing.T) {
	if got := OptimalPostingTime("tiktok", nil); got.Hour != 19 || got.Confidence != "low" {
		t.Errorf("tiktok default = %+v", got)
	}
	if got := OptimalPostingTime("youtube", nil); got.Hour != 12 {
		t.Errorf("unknown platform default = %+v", got)
	}

	at := func(hour int) *time.Time {
		ts := time.Date(2026, 3, 1, hour, 30, 0, 0, time.UTC)
		return &ts
	}
	posts := []models.ScheduledPost{
		{PostedAt: at(9), Likes: 10},
		{PostedAt: at(9), Likes: 20},
		{PostedAt: at(17), Likes: 40, Comments: 5},
		{ScheduledAt: at(6), Shares: 1},
	}
	got := OptimalPostingTime("twitter", posts)
	if got.Hour != 17 {
		t.Errorf("best hour = %d, want 17", got.Hour)
	}
	if got.Confidence != "medium" {
		t.Errorf("confidence = %q, want medium", got.Confidence)
	}
}

func TestSignals(t *testing.T) {
	c := &models.Content{
		Title:       "5 ways to edit faster?",
		Description: "Follow for more #editing",
	}
	got := strings.Join(Signals(c), ",")
	if got != "question,number,call_to_action,hashtag" {
		t.Errorf("Signals = %q", got)
	}
	if s := Signals(&models.Content{Title: "Plain title"}); len(s) != 0 {
		t.Errorf("Signals(plain) = %v, want none", s)
	}
}

func TestRecommend(t *testing.T) {
	recs := Recommend(&models.Content{Title: "short"}, History{Count: 2, AvgEngagement: 3})
	types := make([]string, 0, len(recs))
	for _, r := range recs {
		types = append(types, r.Type)
	}
	if got := strings.Join(types, ","); got != "title,description,tags,timing" {
		t.Errorf("recommendation types = %q", got)
	}

	good := &models.Content{
		Title:       strings.Repeat("t", 50),
		Description: strings.Repeat("d", 120),
		Tags:        []string{"a", "b", "c"},
	}
	if recs := Recommend(good, History{}); len(recs) != 0 {
		t.Errorf("expected no recommendations, got %+v", recs)
	}
}

func TestHistoryFromPosts(t *testing.T) {
	h := HistoryFromPosts([]models.ScheduledPost{
		{Views: 100, Likes: 10, Reach: 80},
		{Views: 300, Shares: 5, Comments: 5, Reach: 120},
	})
	if h.Count != 2 || h.AvgViews != 200 || h.AvgEngagement != 10 || h.AvgReach != 100 {
		t.Errorf("History = %+v", h)
	}
	if r := h.EngagementRate(); r != 0.05 {
		t.Errorf("EngagementRate = %v", r)
	}
}
