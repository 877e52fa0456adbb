package content

import (
	"math"
	"regexp"
	"strings"

	"github.com/clickstudio/click/internal/models"
)

// History summarises a workspace's posted content.
type History struct {
	Count         int
	AvgViews      float64
	AvgEngagement float64
	AvgReach      float64
}

// EngagementRate is average engagement over average views.
func (h History) EngagementRate() float64 {
	if h.AvgViews <= 0 {
		return 0
	}
	return h.AvgEngagement / h.AvgViews
}

// HistoryFromPosts averages the metrics of posted posts.
func HistoryFromPosts(posts []models.ScheduledPost) History {
	h := History{Count: len(posts)}
	if h.Count == 0 {
		return h
	}
	var views, eng, reach float64
	for _, p := range posts {
		views += float64(p.Views)
		eng += float64(p.Engagement())
		reach += float64(p.Reach)
	}
	n := float64(h.Count)
	h.AvgViews = views / n
	h.AvgEngagement = eng / n
	h.AvgReach = reach / n
	return h
}

// Range is a predicted interval with an expected value.
type Range struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Expected int64   `json:"expected"`
}

// EngagementRange adds the predicted engagement rate.
type EngagementRange struct {
	Range
	Rate float64 `json:"rate"`
}

// PostingTime is a recommended hour of day (UTC) to publish.
type PostingTime struct {
	Hour       int    `json:"hour"`
	Minute     int    `json:"minute"`
	Confidence string `json:"confidence"`
}

// Recommendation is one suggestion for improving content.
type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Prediction is the full heuristic forecast for one piece of content.
type Prediction struct {
	ContentID          string           `json:"content_id"`
	Platform           string           `json:"platform,omitempty"`
	Views              Range            `json:"estimated_views"`
	Engagement         EngagementRange  `json:"estimated_engagement"`
	Reach              Range            `json:"estimated_reach"`
	OptimalPostingTime PostingTime      `json:"optimal_posting_time"`
	PerformanceScore   int              `json:"performance_score"`
	Confidence         string           `json:"confidence"`
	Signals            []string         `json:"signals"`
	Recommendations    []Recommendation `json:"recommendations"`
}

var typeMultiplier = map[string]float64{
	"video":      1.5,
	"article":    1.0,
	"podcast":    0.8,
	"transcript": 0.6,
}

var typeScore = map[string]int{
	"video":      10,
	"article":    8,
	"podcast":    7,
	"transcript": 5,
}

// DefaultPostingHour is the fallback hour per platform when there is no
// posting history.
var DefaultPostingHour = map[string]int{
	"instagram": 11,
	"twitter":   9,
	"linkedin":  8,
	"facebook":  13,
	"tiktok":    19,
}

var hookPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"question", regexp.MustCompile(`\?\s*$|^(?i:how|why|what|when|who|which|can|should|is|are|do|does)\b`)},
	{"number", regexp.MustCompile(`(?i)^\s*\d+\b|\b\d+\s+(ways|tips|reasons|things|steps|mistakes|secrets|ideas)\b`)},
	{"call_to_action", regexp.MustCompile(`(?i)\b(comment|share|follow|subscribe|sign up|link in bio|save this|tag a friend|click)\b`)},
	{"hashtag", regexp.MustCompile(`(^|\s)#\w+`)},
}

// Signals returns the names of the engagement hooks found in the title,
// description or body.
func Signals(c *models.Content) []string {
	text := []string{strings.TrimSpace(c.Title), c.Description, c.Body}
	out := []string{}
	for _, h := range hookPatterns {
		for _, t := range text {
			if t != "" && h.re.MatchString(t) {
				out = append(out, h.name)
				break
			}
		}
	}
	return out
}

func titleLen(c *models.Content) int {
	return len([]rune(c.Title))
}

func descLen(c *models.Content) int {
	return len([]rune(c.Description))
}

func typeMult(t string) float64 {
	if m, ok := typeMultiplier[t]; ok {
		return m
	}
	return 1.0
}

// PredictViews estimates views from history, content type and title length.
func PredictViews(c *models.Content, h History) Range {
	if h.Count == 0 {
		return Range{Min: 50, Max: 500, Expected: 200}
	}
	variance := h.AvgViews * 0.3
	titleMult := 0.8
	switch n := titleLen(c); {
	case n >= 40 && n <= 60:
		titleMult = 1.2
	case n > 0:
		titleMult = 1.0
	}
	expected := h.AvgViews * typeMult(c.Type) * titleMult
	return Range{
		Min:      math.Max(0, expected-variance),
		Max:      expected + variance,
		Expected: int64(math.Round(expected)),
	}
}

// PredictEngagement estimates engagement and its rate.
func PredictEngagement(c *models.Content, h History) EngagementRange {
	if h.Count == 0 {
		return EngagementRange{Range: Range{Min: 5, Max: 50, Expected: 20}, Rate: 0.05}
	}
	baseRate := 0.05
	if h.AvgViews > 0 {
		baseRate = h.AvgEngagement / h.AvgViews
	}
	quality := 1.0
	if descLen(c) > 100 {
		quality *= 1.1
	}
	if len(c.Tags) > 0 {
		quality *= 1.1
	}
	expected := h.AvgEngagement * quality
	return EngagementRange{
		Range: Range{
			Min:      math.Max(0, expected*0.7),
			Max:      expected * 1.3,
			Expected: int64(math.Round(expected)),
		},
		Rate: math.Min(1.0, baseRate*quality),
	}
}

// PredictReach estimates reach as the larger of historical reach and 70%
// of predicted views.
func PredictReach(c *models.Content, h History) Range {
	if h.Count == 0 {
		return Range{Min: 30, Max: 400, Expected: 150}
	}
	variance := h.AvgReach * 0.25
	fromViews := float64(PredictViews(c, h).Expected) * 0.7
	expected := math.Max(h.AvgReach, fromViews)
	return Range{
		Min:      math.Max(0, expected-variance),
		Max:      expected + variance,
		Expected: int64(math.Round(expected)),
	}
}

// Score computes the 0-100 performance score.
func Score(c *models.Content, h History) int {
	score := 50

	switch n := titleLen(c); {
	case n >= 40 && n <= 60:
		score += 20
	case n > 0:
		score += 10
	}

	switch {
	case descLen(c) > 100:
		score += 15
	case c.Description != "":
		score += 5
	}

	switch {
	case len(c.Tags) >= 3:
		score += 10
	case len(c.Tags) > 0:
		score += 5
	}

	if h.Count > 0 {
		switch rate := h.EngagementRate(); {
		case rate > 0.1:
			score += 15
		case rate > 0.05:
			score += 10
		default:
			score += 5
		}
	}

	if ts, ok := typeScore[c.Type]; ok {
		score += ts
	} else {
		score += 5
	}

	return min(100, max(0, score))
}

// Confidence grades a prediction by the amount of history behind it.
func Confidence(h History) string {
	switch {
	case h.Count >= 50:
		return "high"
	case h.Count >= 20:
		return "medium"
	default:
		return "low"
	}
}

// OptimalPostingTime picks the hour with the best average engagement among
// posted posts, or the platform default when there are none.
func OptimalPostingTime(platform string, posts []models.ScheduledPost) PostingTime {
	if len(posts) == 0 {
		hour, ok := DefaultPostingHour[platform]
		if !ok {
			hour = 12
		}
		return PostingTime{Hour: hour, Confidence: "low"}
	}

	type bucket struct {
		total float64
		count int
	}
	var hours [24]bucket
	for _, p := range posts {
		at := p.PostedAt
		if at == nil {
			at = p.ScheduledAt
		}
		if at == nil {
			continue
		}
		b := &hours[at.UTC().Hour()]
		b.total += float64(p.Engagement())
		b.count++
	}

	best, bestAvg := 12, 0.0
	for hour, b := range hours {
		if b.count == 0 {
			continue
		}
		if avg := b.total / float64(b.count); avg > bestAvg {
			best, bestAvg = hour, avg
		}
	}

	conf := "medium"
	if len(posts) >= 10 {
		conf = "high"
	}
	return PostingTime{Hour: best, Confidence: conf}
}

// Recommend lists concrete improvements for the content.
func Recommend(c *models.Content, h History) []Recommendation {
	recs := []Recommendation{}
	switch n := titleLen(c); {
	case n < 40:
		recs = append(recs, Recommendation{"title", "Consider making your title longer (40-60 characters for optimal engagement)", "medium"})
	case n > 60:
		recs = append(recs, Recommendation{"title", "Consider shortening your title (40-60 characters is optimal)", "low"})
	}
	if descLen(c) < 100 {
		recs = append(recs, Recommendation{"description", "Add a detailed description (100+ characters) to improve engagement", "high"})
	}
	if len(c.Tags) < 3 {
		recs = append(recs, Recommendation{"tags", "Add at least 3-5 relevant tags to improve discoverability", "high"})
	}
	if h.Count > 0 && h.AvgEngagement < 10 {
		recs = append(recs, Recommendation{"timing", "Consider posting at different times based on your audience activity", "medium"})
	}
	return recs
}

// Predict runs every heuristic for c. posts are the recently posted posts
// used for the posting-time estimate.
func Predict(c *models.Content, platform string, h History, posts []models.ScheduledPost) *Prediction {
	return &Prediction{
		ContentID:          c.ID,
		Platform:           platform,
		Views:              PredictViews(c, h),
		Engagement:         PredictEngagement(c, h),
		Reach:              PredictReach(c, h),
		OptimalPostingTime: OptimalPostingTime(platform, posts),
		PerformanceScore:   Score(c, h),
		Confidence:         Confidence(h),
		Signals:            Signals(c),
		Recommendations:    Recommend(c, h),
	}
}
