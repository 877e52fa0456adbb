package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/clickstudio/click/internal/db"
	"github.com/clickstudio/click/internal/models"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Click schema",
		Long:  "Connects to the configured database and migrates every Click table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create every Click table",
		Long: `Drops every Click table and migrates the schema again.

All accounts, projects, posts and logs are deleted. Take a backup first with
"click backup create".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if !skipConfirm && !confirm(cmd, fmt.Sprintf("This will permanently delete all data in the %s database.", cfg.Database.Driver)) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := db.DropAll(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped %d tables\n", len(db.AllModels()))

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintln(out, "\nDatabase reset successfully.")
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var (
		configPath  string
		workspaceID string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed starter templates",
		Long:  "Upserts the starter content templates into one workspace, or every workspace when --workspace is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, workspaceID)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID to seed (default: all)")
	return cmd
}

func runDBSeed(cmd *cobra.Command, configPath, workspaceID string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	ids := []string{workspaceID}
	if workspaceID == "" {
		ids = nil
		if err := gormDB.Model(&models.Workspace{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list workspaces: %w", err)
		}
	}
	for _, id := range ids {
		if err := db.SeedTemplates(gormDB, id); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Seeded %d templates into %d workspace(s)\n", len(db.StarterTemplates), len(ids))
	return nil
}

// confirm prints warning and asks the user to type "yes".
func confirm(cmd *cobra.Command, warning string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: %s\n", warning)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
