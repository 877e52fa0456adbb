// Package project stores editor projects and implements autosave with two
// rolling snapshot slots.
package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotSlots is the number of rolling backups kept per project.
const SnapshotSlots = 2

// DefaultName is used when a project is created without a name.
const DefaultName = "Untitled project"

// CreateOpts holds parameters for creating a project.
type CreateOpts struct {
	Name        string          `json:"name"`
	ContentID   string          `json:"content_id"`
	FolderID    string          `json:"folder_id"`
	EditorState json.RawMessage `json:"editor_state"`
}

// UpdateOpts holds the mutable project fields. Nil fields are left alone.
type UpdateOpts struct {
	Name     *string `json:"name"`
	FolderID *string `json:"folder_id"`
}

// ListFilters holds optional filters for listing projects.
type ListFilters struct {
	FolderID  string
	ContentID string
}

// AutosaveRequest is one autosave from the editor. ProjectID may be empty on
// the first save, in which case the project is found by ContentID or
// created. BaseVersion, when non-zero, must match the stored version.
type AutosaveRequest struct {
	ProjectID   string          `json:"project_id"`
	ContentID   string          `json:"content_id"`
	Name        string          `json:"name"`
	State       json.RawMessage `json:"state" binding:"required"`
	BaseVersion int             `json:"base_version"`
}

// AutosaveResult reports what an autosave did.
type AutosaveResult struct {
	ProjectID string     `json:"project_id"`
	Version   int        `json:"version"`
	Unchanged bool       `json:"unchanged"`
	Created   bool       `json:"created"`
	SavedAt   *time.Time `json:"saved_at"`
}

// Service implements project operations.
type Service struct {
	db            *gorm.DB
	maxStateBytes int
	now           func() time.Time
}

// NewService returns a project Service that rejects editor states larger
// than maxStateBytes.
func NewService(gdb *gorm.DB, maxStateBytes int) *Service {
	return &Service{db: gdb, maxStateBytes: maxStateBytes, now: time.Now}
}

// HashState returns the hex sha256 of an editor state.
func HashState(state []byte) string {
	sum := sha256.Sum256(state)
	return hex.EncodeToString(sum[:])
}

func (s *Service) checkState(state []byte) error {
	if s.maxStateBytes > 0 && len(state) > s.maxStateBytes {
		return apierr.TooLarge(fmt.Sprintf("editor state exceeds %d bytes", s.maxStateBytes))
	}
	if len(state) > 0 && !json.Valid(state) {
		return apierr.BadRequest("editor state must be valid JSON")
	}
	return nil
}

// Create creates a new project in the workspace.
func (s *Service) Create(ctx context.Context, workspaceID, ownerID string, opts CreateOpts) (*models.Project, error) {
	if err := s.checkState(opts.EditorState); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = DefaultName
	}
	p := &models.Project{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		Name:        name,
		ContentID:   opts.ContentID,
		FolderID:    opts.FolderID,
	}
	if len(opts.EditorState) > 0 {
		now := s.now()
		p.EditorState = string(opts.EditorState)
		p.StateHash = HashState(opts.EditorState)
		p.Version = 1
		p.SavedAt = &now
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("project: create: %w", err)
	}
	return p, nil
}

// Get retrieves a project by ID within the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*models.Project, error) {
	return s.get(s.db.WithContext(ctx), workspaceID, id)
}

func (s *Service) get(tx *gorm.DB, workspaceID, id string) (*models.Project, error) {
	var p models.Project
	err := tx.Where("id = ? AND workspace_id = ?", id, workspaceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("project")
	}
	if err != nil {
		return nil, fmt.Errorf("project: get %s: %w", id, err)
	}
	return &p, nil
}

// List returns the workspace's projects, most recently updated first.
// Editor state is omitted from list results.
func (s *Service) List(ctx context.Context, workspaceID string, f ListFilters) ([]models.Project, error) {
	q := s.db.WithContext(ctx).
		Omit("editor_state").
		Where("workspace_id = ?", workspaceID)
	if f.FolderID != "" {
		q = q.Where("folder_id = ?", f.FolderID)
	}
	if f.ContentID != "" {
		q = q.Where("content_id = ?", f.ContentID)
	}
	var projects []models.Project
	if err := q.Order("updated_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return projects, nil
}

// Update changes a project's name or folder.
func (s *Service) Update(ctx context.Context, workspaceID, id string, opts UpdateOpts) (*models.Project, error) {
	p, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return nil, apierr.BadRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if opts.FolderID != nil {
		updates["folder_id"] = *opts.FolderID
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project: update %s: %w", id, err)
	}
	return s.Get(ctx, workspaceID, id)
}

// Delete removes a project and its snapshots.
func (s *Service) Delete(ctx context.Context, workspaceID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.get(tx, workspaceID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", p.ID).Delete(&models.ProjectSnapshot{}).Error; err != nil {
			return fmt.Errorf("project: delete snapshots %s: %w", id, err)
		}
		if err := tx.Delete(p).Error; err != nil {
			return fmt.Errorf("project: delete %s: %w", id, err)
		}
		return nil
	})
}

// Snapshots returns the stored backups for a project ordered by slot.
func (s *Service) Snapshots(ctx context.Context, workspaceID, id string) ([]models.ProjectSnapshot, error) {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return nil, err
	}
	var snaps []models.ProjectSnapshot
	if err := s.db.WithContext(ctx).Where("project_id = ?", id).Order("slot ASC").Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("project: list snapshots %s: %w", id, err)
	}
	return snaps, nil
}
