package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/clickstudio/click/internal/backup"
	"github.com/clickstudio/click/internal/db"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and import the Click database",
	}

	cmd.AddCommand(newBackupCreateCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	var (
		configPath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a compressed backup archive",
		Long: `Exports every Click table into a gzipped JSON archive with per-table
checksums. Archives are portable between sqlite and MySQL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = fmt.Sprintf("click-backup-%s.json.gz", time.Now().UTC().Format("20060102-150405"))
			}
			return runBackupCreate(cmd, configPath, outPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "archive path (default click-backup-<timestamp>.json.gz)")
	return cmd
}

func runBackupCreate(cmd *cobra.Command, configPath, outPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	m, err := backup.Create(cmd.Context(), gormDB, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close archive: %w", cerr)
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}

	out := cmd.OutOrStdout()
	printManifest(cmd, m)
	fmt.Fprintf(out, "\nWrote %d rows to %s\n", m.Total(), outPath)
	return nil
}

func newBackupRestoreCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Replace the database contents with a backup archive",
		Long: `Verifies the archive checksums, then replaces the contents of every
Click table inside a single transaction. Nothing is changed if the archive is
corrupt or the restore fails part way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(cmd, configPath, args[0], yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runBackupRestore(cmd *cobra.Command, configPath, archivePath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if !skipConfirm && !confirm(cmd, fmt.Sprintf("This will replace all data in the %s database with %s.", cfg.Database.Driver, archivePath)) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	m, err := backup.Restore(cmd.Context(), gormDB, f)
	if err != nil {
		return err
	}
	printManifest(cmd, m)
	fmt.Fprintf(out, "\nRestored %d rows from backup taken %s\n", m.Total(), m.CreatedAt.Format(time.RFC3339))
	return nil
}

func printManifest(cmd *cobra.Command, m *backup.Manifest) {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, m.Tables[name])
	}
	w.Flush()
}
