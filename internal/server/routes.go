package server

import (
	"net/http"
	"strconv"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	svc := opts.Services
	required := auth.Required(svc.Auth.Tokens())

	router.GET("/healthz", handleHealth(svc))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/files/*filepath", handlePublicFile(svc.Uploads.Storage()))

	api := router.Group("/api", noCache())

	authLimit := newIPLimiter(opts.AuthRateLimit).middleware()
	api.POST("/auth/register", authLimit, handleRegister(svc.Auth))
	api.POST("/auth/login", authLimit, handleLogin(svc.Auth))
	api.GET("/auth/me", required, handleMe(svc.Auth))

	// OAuth providers redirect here without a bearer token; the signed
	// state identifies the user.
	api.GET("/social/:platform/callback", handleSocialCallback(svc.OAuth))

	logLimit := newIPLimiter(opts.LogRateLimit).middleware()
	api.POST("/logs", logLimit, auth.Optional(svc.Auth.Tokens()), handleLogIngest(svc.ClientLogs))

	authed := api.Group("", required)

	authed.GET("/projects", handleProjectList(svc.Projects))
	authed.POST("/projects", handleProjectCreate(svc.Projects))
	authed.POST("/projects/autosave", handleAutosave(svc.Projects))
	authed.GET("/projects/:id", handleProjectGet(svc.Projects))
	authed.PUT("/projects/:id", handleProjectUpdate(svc.Projects))
	authed.DELETE("/projects/:id", handleProjectDelete(svc.Projects))
	authed.GET("/projects/:id/snapshots", handleSnapshots(svc.Projects))
	authed.POST("/projects/:id/restore/:slot", handleRestore(svc.Projects))

	authed.GET("/content", handleContentList(svc.Content))
	authed.POST("/content", handleContentCreate(svc.Content))
	authed.GET("/content/:id", handleContentGet(svc.Content))
	authed.PUT("/content/:id", handleContentUpdate(svc.Content))
	authed.DELETE("/content/:id", handleContentDelete(svc.Content))
	authed.GET("/content/:id/predict", handlePredict(svc.Content))

	authed.POST("/uploads", handleUpload(svc.Uploads))
	authed.GET("/uploads/:id", handleUploadProgress(svc.Uploads))
	authed.GET("/uploads/:id/events", handleUploadEvents(svc.Uploads, opts))
	authed.GET("/uploads/:id/file", handleUploadFile(svc.Uploads))
	authed.DELETE("/uploads/:id", handleUploadCancel(svc.Uploads))

	authed.GET("/social/platforms", handlePlatforms(svc.OAuth))
	authed.GET("/social/connections", handleConnections(svc.OAuth))
	authed.DELETE("/social/connections/:platform", handleDisconnect(svc.OAuth))
	authed.GET("/social/:platform/connect", handleSocialConnect(svc.OAuth))

	authed.GET("/posts", handlePostList(svc.Posts))
	authed.POST("/posts", handlePostCreate(svc.Posts))
	authed.GET("/posts/:id", handlePostGet(svc.Posts))
	authed.PUT("/posts/:id", handlePostUpdate(svc.Posts))
	authed.POST("/posts/:id/cancel", handlePostCancel(svc.Posts))
	authed.POST("/posts/:id/publish", handlePostPublish(svc.Posts))
	authed.POST("/posts/:id/metrics", handlePostMetrics(svc.Posts))

	authed.POST("/audio/master", handleAudioMaster(svc.Audio))
	authed.GET("/audio/presets", handleAudioPresets())

	authed.POST("/templates/:id/events", handleTemplateEvent(svc.Templates))
	authed.GET("/templates/top", handleTemplateTop(svc.Templates))

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/logs", handleLogList(svc.ClientLogs))
	if svc.Alerts != nil {
		admin.GET("/admin/alerts", handleAlertHistory(svc.Alerts))
	}
}

func handleHealth(svc Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{"database": "ok"}
		status := http.StatusOK

		sqlDB, err := svc.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if svc.Cache.Enabled() {
			checks["redis"] = "ok"
			if err := svc.Cache.Ping(c.Request.Context()); err != nil {
				// Redis is an optional mirror; report but stay healthy.
				checks["redis"] = err.Error()
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "unavailable"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}

// bindJSON decodes the request body into dst, aborting with 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apierr.Abort(c, apierr.BadRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apierr.Abort(c, apierr.BadRequest(name+" must be a non-negative integer"))
		return 0, false
	}
	return n, true
}
