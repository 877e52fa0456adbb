package main

import (
	"fmt"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/db"
	"github.com/clickstudio/click/internal/logging"
	"github.com/clickstudio/click/internal/social"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Scheduled post commands",
	}
	cmd.AddCommand(newPublishDueCmd())
	return cmd
}

func newPublishDueCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "Publish every scheduled post whose time has come",
		Long: `Runs one publishing pass immediately, the same pass "click serve" runs on
its scheduler. Useful from an external cron when serve runs with
--no-scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublishDue(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runPublishDue(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	oauth := social.NewOAuth(gormDB, tokens, cfg.Social)
	posts := social.NewService(gormDB, oauth,
		alerting.FromConfig(cfg.Alerts, logging.Component("alerting")),
		social.Options{MaxRetries: cfg.Social.MaxRetries})
	sched, err := social.NewScheduler(posts, cfg.Social.SchedulerSpec, logging.Component("scheduler"))
	if err != nil {
		return err
	}

	res, err := sched.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Recovered > 0 {
		fmt.Fprintf(out, "Recovered %d post(s) stuck in publishing\n", res.Recovered)
	}
	fmt.Fprintf(out, "Claimed %d post(s): %d published, %d failed\n", res.Claimed, res.Published, res.Failed)
	return nil
}
