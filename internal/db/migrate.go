package db

import (
	"fmt"

	"github.com/clickstudio/click/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model, in dependency order, for migration
// and backup.
func AllModels() []interface{} {
	return []interface{}{
		&models.Workspace{},
		&models.User{},
		&models.Project{},
		&models.ProjectSnapshot{},
		&models.Content{},
		&models.Upload{},
		&models.ScheduledPost{},
		&models.SocialConnection{},
		&models.TemplatePerformance{},
		&models.ClientLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every Click table. Used by `click db reset`.
func DropAll(gdb *gorm.DB) error {
	all := AllModels()
	// Reverse order so dependents go first.
	for i := len(all) - 1; i >= 0; i-- {
		if err := gdb.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return nil
}

// StarterTemplate describes a template row seeded for every workspace.
type StarterTemplate struct {
	ID       string
	Name     string
	Category string
}

// StarterTemplates are the built-in content templates.
var StarterTemplates = []StarterTemplate{
	{ID: "hook-question", Name: "Question Hook", Category: "hook"},
	{ID: "listicle", Name: "Numbered List", Category: "educational"},
	{ID: "behind-the-scenes", Name: "Behind the Scenes", Category: "story"},
	{ID: "before-after", Name: "Before / After", Category: "transformation"},
	{ID: "quick-tip", Name: "Quick Tip", Category: "educational"},
}

// SeedTemplates upserts the starter template rows for a workspace without
// touching accumulated metrics.
func SeedTemplates(gdb *gorm.DB, workspaceID string) error {
	for _, st := range StarterTemplates {
		row := models.TemplatePerformance{
			TemplateID:   st.ID,
			WorkspaceID:  workspaceID,
			TemplateName: st.Name,
			Category:     st.Category,
		}
		result := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "workspace_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"template_name", "category"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed template %q: %w", st.ID, result.Error)
		}
	}
	return nil
}
