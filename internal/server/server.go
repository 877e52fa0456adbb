// Package server exposes the Click HTTP API over gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/audio"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/cache"
	"github.com/clickstudio/click/internal/clientlog"
	"github.com/clickstudio/click/internal/content"
	"github.com/clickstudio/click/internal/logging"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/project"
	"github.com/clickstudio/click/internal/social"
	"github.com/clickstudio/click/internal/templates"
	"github.com/clickstudio/click/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Services holds the domain services the API routes to.
type Services struct {
	DB         *gorm.DB
	Cache      *cache.Cache
	Auth       *auth.Service
	Projects   *project.Service
	Content    *content.Service
	Uploads    *upload.Service
	OAuth      *social.OAuth
	Posts      *social.Service
	Audio      *audio.Service
	Templates  *templates.Service
	ClientLogs *clientlog.Service
	// Alerts is optional; when set, admins can read the delivery history.
	Alerts *alerting.Alerter
}

func (s Services) validate() error {
	switch {
	case s.DB == nil:
		return errors.New("db is required")
	case s.Auth == nil:
		return errors.New("auth service is required")
	case s.Projects == nil, s.Content == nil, s.Uploads == nil:
		return errors.New("project, content and upload services are required")
	case s.OAuth == nil, s.Posts == nil:
		return errors.New("social services are required")
	case s.Audio == nil, s.Templates == nil, s.ClientLogs == nil:
		return errors.New("audio, template and client log services are required")
	}
	return nil
}

// Opts holds configuration for the API server.
type Opts struct {
	Services Services
	Logger   zerolog.Logger

	Host string
	Port int
	// CORSOrigins lists allowed browser origins. Empty allows none.
	CORSOrigins []string
	// AuthRateLimit is the per-IP request budget per minute for sign-up and
	// login.
	AuthRateLimit int
	// LogRateLimit is the per-IP budget per minute for client log ingest.
	LogRateLimit int
	// EventInterval is how often upload event streams poll for progress.
	EventInterval time.Duration
	ShutdownGrace time.Duration
	Out           io.Writer

	// streams is cancelled on shutdown so long-lived event streams end
	// instead of holding the drain open.
	streams context.Context
}

func (o *Opts) applyDefaults() {
	if o.Port <= 0 {
		o.Port = 5001
	}
	if o.AuthRateLimit <= 0 {
		o.AuthRateLimit = 20
	}
	if o.LogRateLimit <= 0 {
		o.LogRateLimit = 120
	}
	if o.EventInterval <= 0 {
		o.EventInterval = time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 10 * time.Second
	}
	if o.streams == nil {
		o.streams = context.Background()
	}
}

// NewHandler builds the full HTTP handler: the gin router wrapped in CORS.
func NewHandler(opts Opts) (http.Handler, error) {
	if err := opts.Services.validate(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	opts.applyDefaults()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.CustomRecovery(recoverJSON))
	router.Use(requestID())
	router.Use(logging.Middleware(opts.Logger))
	router.Use(metrics.Middleware())

	registerRoutes(router, opts)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return corsHandler(router), nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully, waiting up to ShutdownGrace for requests to drain.
func Start(ctx context.Context, opts Opts) error {
	streams, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()
	opts.streams = streams

	handler, err := NewHandler(opts)
	if err != nil {
		return err
	}
	opts.applyDefaults()

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(stopStreams)

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownGrace)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Click API listening on %s\n", addr)
	}
	opts.Logger.Info().Str("addr", addr).Msg("api server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	opts.Logger.Info().Msg("api server stopped")
	return nil
}
