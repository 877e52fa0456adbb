// Package content manages source content records and predicts how a piece
// of content will perform once posted.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/cache"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidTypes lists the accepted content types.
var ValidTypes = []string{"video", "article", "podcast", "transcript", "image", "text"}

// ValidStatuses lists the accepted content statuses.
var ValidStatuses = []string{"draft", "processing", "ready", "failed", "archived"}

// Input holds the writable fields of a content record.
type Input struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	FileURL     string   `json:"file_url"`
	UploadID    string   `json:"upload_id"`
}

// ListFilters holds optional filters for listing content.
type ListFilters struct {
	Type   string
	Status string
	Tag    string
	Limit  int
	Offset int
}

// Service implements content operations.
type Service struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewService returns a content Service. c may be nil.
func NewService(gdb *gorm.DB, c *cache.Cache) *Service {
	return &Service{db: gdb, cache: c}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// normalizeTags trims, lowercases and de-duplicates tags, dropping empties
// and a leading '#'.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (in *Input) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apierr.BadRequest("title is required")
	}
	if in.Type == "" {
		in.Type = "text"
	}
	if !contains(ValidTypes, in.Type) {
		return apierr.BadRequest(fmt.Sprintf("invalid type %q", in.Type))
	}
	if in.Status == "" {
		in.Status = "draft"
	}
	if !contains(ValidStatuses, in.Status) {
		return apierr.BadRequest(fmt.Sprintf("invalid status %q", in.Status))
	}
	in.Tags = normalizeTags(in.Tags)
	return nil
}

// Create stores a new content record.
func (s *Service) Create(ctx context.Context, workspaceID, ownerID string, in Input) (*models.Content, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &models.Content{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Body:        in.Body,
		Tags:        in.Tags,
		Category:    in.Category,
		Status:      in.Status,
		FileURL:     in.FileURL,
		UploadID:    in.UploadID,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("content: create: %w", err)
	}
	return c, nil
}

// Get retrieves a content record by ID within the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*models.Content, error) {
	var c models.Content
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("content")
	}
	if err != nil {
		return nil, fmt.Errorf("content: get %s: %w", id, err)
	}
	return &c, nil
}

// List returns content matching the filters, newest first.
func (s *Service) List(ctx context.Context, workspaceID string, f ListFilters) ([]models.Content, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Tag != "" {
		tag := normalizeTags([]string{f.Tag})
		if len(tag) == 1 {
			q = q.Where("tags LIKE ?", `%"`+tag[0]+`"%`)
		}
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	var items []models.Content
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("content: list: %w", err)
	}
	return items, nil
}

// Update replaces the writable fields of a content record.
func (s *Service) Update(ctx context.Context, workspaceID, id string, in Input) (*models.Content, error) {
	c, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c.Type = in.Type
	c.Title = in.Title
	c.Description = in.Description
	c.Body = in.Body
	c.Tags = in.Tags
	c.Category = in.Category
	c.Status = in.Status
	c.FileURL = in.FileURL
	c.UploadID = in.UploadID
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("content: update %s: %w", id, err)
	}
	return c, nil
}

// Delete removes a content record.
func (s *Service) Delete(ctx context.Context, workspaceID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).Delete(&models.Content{})
	if res.Error != nil {
		return fmt.Errorf("content: delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("content")
	}
	return nil
}
