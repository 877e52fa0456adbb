package server

import (
	"net/http"
	"time"

	"github.com/clickstudio/click/internal/alerting"
	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/audio"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/clientlog"
	"github.com/clickstudio/click/internal/templates"
	"github.com/gin-gonic/gin"
)

func handleAudioMaster(svc *audio.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req audio.MasterRequest
		if !bindJSON(c, &req) {
			return
		}
		p := auth.MustPrincipal(c)
		up, err := svc.Master(c.Request.Context(), p.WorkspaceID, p.UserID, req)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusCreated, "audio mastered", up)
	}
}

func handleAudioPresets() gin.HandlerFunc {
	return func(c *gin.Context) {
		apierr.OK(c, http.StatusOK, "", audio.PresetList())
	}
}

func handleTemplateEvent(svc *templates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev templates.Event
		if !bindJSON(c, &ev) {
			return
		}
		p := auth.MustPrincipal(c)
		perf, err := svc.Record(c.Request.Context(), p.WorkspaceID, c.Param("id"), ev)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "event recorded", perf)
	}
}

func handleTemplateTop(svc *templates.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		p := auth.MustPrincipal(c)
		top, err := svc.Top(c.Request.Context(), p.WorkspaceID, c.Query("category"), n)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", top)
	}
}

type logBatch struct {
	Logs []clientlog.Entry `json:"logs"`
}

// handleLogIngest accepts client logs from signed-in and anonymous callers.
func handleLogIngest(svc *clientlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var batch logBatch
		if !bindJSON(c, &batch) {
			return
		}
		meta := clientlog.Meta{UserAgent: c.Request.UserAgent()}
		if p, ok := auth.PrincipalFrom(c); ok {
			meta.UserID = p.UserID
		}
		n, err := svc.Ingest(c.Request.Context(), batch.Logs, meta)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusAccepted, "logs received", gin.H{"received": n})
	}
}

func handleLogList(svc *clientlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		q := clientlog.Query{
			Level:     c.Query("level"),
			UserID:    c.Query("user_id"),
			SessionID: c.Query("session_id"),
			Limit:     limit,
		}
		if raw := c.Query("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				apierr.Abort(c, apierr.BadRequest("since must be an RFC 3339 timestamp"))
				return
			}
			q.Since = since
		}
		entries, err := svc.List(c.Request.Context(), q)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", entries)
	}
}

func handleAlertHistory(a *alerting.Alerter) gin.HandlerFunc {
	return func(c *gin.Context) {
		apierr.OK(c, http.StatusOK, "", a.History())
	}
}
