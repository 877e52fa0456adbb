package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/audio"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/cache"
	"github.com/clickstudio/click/internal/clientlog"
	"github.com/clickstudio/click/internal/config"
	"github.com/clickstudio/click/internal/content"
	"github.com/clickstudio/click/internal/db"
	"github.com/clickstudio/click/internal/logging"
	"github.com/clickstudio/click/internal/project"
	"github.com/clickstudio/click/internal/server"
	"github.com/clickstudio/click/internal/social"
	"github.com/clickstudio/click/internal/templates"
	"github.com/clickstudio/click/internal/upload"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// maintenanceSpec schedules housekeeping jobs such as client log pruning.
const maintenanceSpec = "@daily"

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		port        int
		noMigrate   bool
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Click API server",
		Long: `Starts the REST API together with the scheduled-post publisher and
daily maintenance jobs. The schema is migrated on startup unless --no-migrate
is given. SIGINT or SIGTERM shuts the server down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, !noMigrate, !noScheduler)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip schema migration on startup")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the scheduled-post publisher in this process")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, migrate, runScheduler bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if port > 0 {
		cfg.Server.Port = port
	}

	logger := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := db.AutoMigrate(gormDB); err != nil {
			return err
		}
		logger.Info().Int("tables", len(db.AllModels())).Msg("schema migrated")
	}

	app, err := buildApp(ctx, cfg, gormDB, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if runScheduler {
		if err := app.scheduler.Start(ctx); err != nil {
			return err
		}
		defer app.scheduler.Stop()
	}
	maint, err := startMaintenance(app.services.ClientLogs, logging.Component("maintenance"))
	if err != nil {
		return err
	}
	defer maint.Stop()

	return server.Start(ctx, server.Opts{
		Services:      app.services,
		Logger:        logger,
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigins:   cfg.Server.CORSOrigins,
		AuthRateLimit: cfg.Server.AuthRateLimit,
		ShutdownGrace: cfg.Server.ShutdownGrace,
		Out:           cmd.OutOrStdout(),
	})
}

// app is the fully wired set of services behind the API.
type app struct {
	services  server.Services
	scheduler *social.Scheduler
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp constructs every service from config. Redis and the mongo log
// sink are optional and connected only when configured.
func buildApp(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger zerolog.Logger) (*app, error) {
	a := &app{}

	c, err := cache.Open(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
	if err != nil {
		return nil, err
	}
	if c != nil {
		a.closers = append(a.closers, func() { c.Close() })
		logger.Info().Msg("redis cache enabled")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	store, err := upload.NewOSStorage(cfg.Uploads.Dir)
	if err != nil {
		return nil, err
	}
	uploads := upload.NewService(gormDB, store,
		upload.NewTracker(cfg.Uploads.ProgressTTL, c),
		upload.Options{MaxBytes: cfg.Uploads.MaxBytes, AllowedTypes: cfg.Uploads.AllowedTypes})

	alerter := alerting.FromConfig(cfg.Alerts, logging.Component("alerting"))
	oauth := social.NewOAuth(gormDB, tokens, cfg.Social)
	posts := social.NewService(gormDB, oauth, alerter, social.Options{MaxRetries: cfg.Social.MaxRetries})
	a.scheduler, err = social.NewScheduler(posts, cfg.Social.SchedulerSpec, logging.Component("scheduler"))
	if err != nil {
		return nil, err
	}

	sink, err := clientlog.Open(ctx, cfg.ClientLog, gormDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sink.Close(cctx)
	})

	runner := audio.NewExecRunner(cfg.Audio.FFmpegPath)
	if !runner.Available() {
		logger.Warn().Str("ffmpeg", cfg.Audio.FFmpegPath).Msg("ffmpeg not found; audio mastering disabled")
	}

	a.services = server.Services{
		DB:         gormDB,
		Cache:      c,
		Auth:       auth.NewService(gormDB, tokens, cfg.Auth.BcryptCost),
		Projects:   project.NewService(gormDB, cfg.Projects.MaxStateBytes),
		Content:    content.NewService(gormDB, c),
		Uploads:    uploads,
		OAuth:      oauth,
		Posts:      posts,
		Audio:      audio.NewService(runner, uploads),
		Templates:  templates.NewService(gormDB),
		ClientLogs: clientlog.NewService(sink, cfg.ClientLog.MaxBatch, cfg.ClientLog.Retention),
		Alerts:     alerter,
	}
	return a, nil
}

// startMaintenance schedules daily housekeeping on its own cron.
func startMaintenance(logs *clientlog.Service, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(maintenanceSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := logs.Prune(ctx)
		if err != nil {
			log.Error().Err(err).Msg("prune client logs")
			return
		}
		log.Info().Int64("deleted", n).Msg("pruned client logs")
	})
	if err != nil {
		return nil, fmt.Errorf("schedule maintenance: %w", err)
	}
	c.Start()
	return c, nil
}
