package main

import (
	"fmt"

	"github.com/clickstudio/click/internal/config"
	"github.com/spf13/cobra"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Environment inspection commands",
	}
	cmd.AddCommand(newEnvCheckCmd())
	return cmd
}

func newEnvCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration for deployment",
		Long: `Loads the config and environment and reports problems that would break or
weaken a deployment: development secrets, sqlite in production, enabled OAuth
platforms without secrets, a missing ffmpeg binary or an unwritable upload
directory. Exits non-zero when any error is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvCheck(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runEnvCheck(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Environment: %s\n", cfg.Environment)

	r := config.CheckEnvironment(cfg)
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  [FAIL] %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  [WARN] %s\n", w)
	}
	if r.OK() {
		fmt.Fprintf(out, "\nOK (%d warning(s))\n", len(r.Warnings))
		return nil
	}
	return fmt.Errorf("%d configuration error(s)", len(r.Errors))
}
