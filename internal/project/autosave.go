package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Autosave stores a new editor state. An identical state is a no-op. A
// changed state pushes the previous one into snapshot slot Version%2 and
// bumps the version.
func (s *Service) Autosave(ctx context.Context, userID, workspaceID string, req AutosaveRequest) (*AutosaveResult, error) {
	if len(req.State) == 0 {
		return nil, apierr.BadRequest("state is required")
	}
	if err := s.checkState(req.State); err != nil {
		return nil, err
	}
	hash := HashState(req.State)

	var res *AutosaveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.findForAutosave(tx, workspaceID, req)
		if err != nil {
			return err
		}
		if p == nil {
			p, err = s.createFromAutosave(tx, userID, workspaceID, req, hash)
			if err != nil {
				return err
			}
			res = &AutosaveResult{ProjectID: p.ID, Version: p.Version, Created: true, SavedAt: p.SavedAt}
			return nil
		}
		if req.BaseVersion != 0 && req.BaseVersion != p.Version {
			return apierr.Conflict(fmt.Sprintf("project was saved elsewhere (version %d, have %d)", p.Version, req.BaseVersion))
		}
		if p.StateHash == hash {
			res = &AutosaveResult{ProjectID: p.ID, Version: p.Version, Unchanged: true, SavedAt: p.SavedAt}
			return nil
		}
		if err := s.storeState(tx, p, string(req.State), hash); err != nil {
			return err
		}
		res = &AutosaveResult{ProjectID: p.ID, Version: p.Version, SavedAt: p.SavedAt}
		return nil
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, fmt.Errorf("project: autosave: %w", err)
	}
	return res, nil
}

// findForAutosave resolves the target project, or returns nil when a new
// one should be created.
func (s *Service) findForAutosave(tx *gorm.DB, workspaceID string, req AutosaveRequest) (*models.Project, error) {
	if req.ProjectID != "" {
		return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), workspaceID, req.ProjectID)
	}
	if req.ContentID == "" {
		return nil, nil
	}
	var p models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("workspace_id = ? AND content_id = ?", workspaceID, req.ContentID).
		Order("created_at ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) createFromAutosave(tx *gorm.DB, userID, workspaceID string, req AutosaveRequest, hash string) (*models.Project, error) {
	now := s.now()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultName
	}
	p := &models.Project{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     userID,
		Name:        name,
		ContentID:   req.ContentID,
		EditorState: string(req.State),
		StateHash:   hash,
		Version:     1,
		SavedAt:     &now,
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// storeState snapshots the current state of p and replaces it.
func (s *Service) storeState(tx *gorm.DB, p *models.Project, state, hash string) error {
	if p.Version > 0 && p.StateHash != "" {
		snap := models.ProjectSnapshot{
			ProjectID:   p.ID,
			Slot:        p.Version % SnapshotSlots,
			Version:     p.Version,
			EditorState: p.EditorState,
			StateHash:   p.StateHash,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "editor_state", "state_hash", "updated_at"}),
		}).Create(&snap).Error
		if err != nil {
			return fmt.Errorf("snapshot slot %d: %w", snap.Slot, err)
		}
	}

	// Update through a bare model so gorm does not write the assigned
	// columns back into p; p is updated once below.
	now := s.now()
	next := p.Version + 1
	err := tx.Model(&models.Project{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"editor_state": state,
		"state_hash":   hash,
		"version":      next,
		"saved_at":     now,
	}).Error
	if err != nil {
		return err
	}
	p.EditorState = state
	p.StateHash = hash
	p.Version = next
	p.SavedAt = &now
	return nil
}

// Restore makes the state in a snapshot slot current again, as a new
// version. The state being replaced is itself snapshotted.
func (s *Service) Restore(ctx context.Context, workspaceID, id string, slot int) (*models.Project, error) {
	if slot < 0 || slot >= SnapshotSlots {
		return nil, apierr.BadRequest(fmt.Sprintf("slot must be between 0 and %d", SnapshotSlots-1))
	}
	var out *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), workspaceID, id)
		if err != nil {
			return err
		}
		var snap models.ProjectSnapshot
		err = tx.Where("project_id = ? AND slot = ?", id, slot).First(&snap).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("snapshot")
		}
		if err != nil {
			return err
		}
		if snap.StateHash != p.StateHash {
			if err := s.storeState(tx, p, snap.EditorState, snap.StateHash); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, fmt.Errorf("project: restore %s slot %d: %w", id, slot, err)
	}
	return out, nil
}
