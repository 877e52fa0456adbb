// Package templates tracks how content templates perform per workspace.
package templates

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event types.
const (
	EventUse        = "use"
	EventView       = "view"
	EventEngagement = "engagement"
	EventConversion = "conversion"
)

// Score weights. They sum to 1 so Score stays within 0 to 100.
const (
	weightEngagement = 0.5
	weightConversion = 0.3
	weightUsage      = 0.2

	// Rates at or above these count as a full score for their component.
	fullEngagementRate = 0.10
	fullConversionRate = 0.05
	// Uses at which the usage component saturates (log scale).
	fullUsage = 1000
)

// Event is one batch of activity for a template.
type Event struct {
	Type         string `json:"type" binding:"required"`
	Count        int64  `json:"count"`
	TemplateName string `json:"template_name"`
	Category     string `json:"category"`
}

// Service records template events.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService returns a template performance service.
func NewService(gdb *gorm.DB) *Service {
	return &Service{db: gdb, now: time.Now}
}

// EngagementRate is engagements per view, 0 without views.
func EngagementRate(views, engagements int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(engagements) / float64(views)
}

// Score combines engagement rate, conversion rate and usage into a 0 to 100
// ranking value.
func Score(p models.TemplatePerformance) float64 {
	eng := math.Min(EngagementRate(p.Views, p.Engagements)/fullEngagementRate, 1)
	conv := 0.0
	if p.Views > 0 {
		conv = math.Min(float64(p.Conversions)/float64(p.Views)/fullConversionRate, 1)
	}
	usage := math.Min(math.Log10(1+float64(p.Uses))/math.Log10(1+fullUsage), 1)
	s := 100 * (weightEngagement*eng + weightConversion*conv + weightUsage*usage)
	return math.Round(s*100) / 100
}

// Record applies an event to the template's counters and recomputes its
// rate and score. The row is created on first use.
func (s *Service) Record(ctx context.Context, workspaceID, templateID string, ev Event) (*models.TemplatePerformance, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return nil, apierr.BadRequest("template id is required")
	}
	if ev.Count == 0 {
		ev.Count = 1
	}
	if ev.Count < 0 {
		return nil, apierr.BadRequest("count must be positive")
	}
	switch ev.Type {
	case EventUse, EventView, EventEngagement, EventConversion:
	default:
		return nil, apierr.BadRequest(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	var out models.TemplatePerformance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.TemplatePerformance{TemplateID: templateID, WorkspaceID: workspaceID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("templates: create %s: %w", templateID, err)
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("template_id = ? AND workspace_id = ?", templateID, workspaceID).
			First(&out).Error; err != nil {
			return fmt.Errorf("templates: load %s: %w", templateID, err)
		}

		switch ev.Type {
		case EventUse:
			out.Uses += ev.Count
			now := s.now()
			out.LastUsedAt = &now
		case EventView:
			out.Views += ev.Count
		case EventEngagement:
			out.Engagements += ev.Count
		case EventConversion:
			out.Conversions += ev.Count
		}
		if ev.TemplateName != "" {
			out.TemplateName = ev.TemplateName
		}
		if ev.Category != "" {
			out.Category = strings.ToLower(ev.Category)
		}
		out.EngagementRate = EngagementRate(out.Views, out.Engagements)
		out.Score = Score(out)
		if err := tx.Save(&out).Error; err != nil {
			return fmt.Errorf("templates: save %s: %w", templateID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns a template's performance in the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, templateID string) (*models.TemplatePerformance, error) {
	var p models.TemplatePerformance
	err := s.db.WithContext(ctx).
		Where("template_id = ? AND workspace_id = ?", templateID, workspaceID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("template")
	}
	if err != nil {
		return nil, fmt.Errorf("templates: get %s: %w", templateID, err)
	}
	return &p, nil
}

// Top returns the workspace's best-scoring templates, optionally limited to
// one category. n defaults to 10 and is capped at 100.
func (s *Service) Top(ctx context.Context, workspaceID, category string, n int) ([]models.TemplatePerformance, error) {
	if n <= 0 {
		n = 10
	}
	if n > 100 {
		n = 100
	}
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if category != "" {
		q = q.Where("category = ?", strings.ToLower(category))
	}
	var out []models.TemplatePerformance
	if err := q.Order("score DESC, uses DESC, template_id ASC").Limit(n).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("templates: top: %w", err)
	}
	return out, nil
}
