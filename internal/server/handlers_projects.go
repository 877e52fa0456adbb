package server

import (
	"net/http"
	"strconv"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/project"
	"github.com/gin-gonic/gin"
)

func handleProjectList(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		list, err := svc.List(c.Request.Context(), p.WorkspaceID, project.ListFilters{
			FolderID:  c.Query("folder_id"),
			ContentID: c.Query("content_id"),
		})
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", list)
	}
}

func handleProjectCreate(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in project.CreateOpts
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		proj, err := svc.Create(c.Request.Context(), p.WorkspaceID, p.UserID, in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusCreated, "project created", proj)
	}
}

func handleProjectGet(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		proj, err := svc.Get(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", proj)
	}
}

func handleProjectUpdate(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in project.UpdateOpts
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		proj, err := svc.Update(c.Request.Context(), p.WorkspaceID, c.Param("id"), in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "project updated", proj)
	}
}

func handleProjectDelete(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		if err := svc.Delete(c.Request.Context(), p.WorkspaceID, c.Param("id")); err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "project deleted", nil)
	}
}

func handleSnapshots(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		snaps, err := svc.Snapshots(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", snaps)
	}
}

func handleAutosave(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req project.AutosaveRequest
		if !bindJSON(c, &req) {
			return
		}
		p := auth.MustPrincipal(c)
		res, err := svc.Autosave(c.Request.Context(), p.UserID, p.WorkspaceID, req)
		if err != nil {
			metrics.RecordAutosave("error", len(req.State))
			apierr.Abort(c, err)
			return
		}
		msg := "saved"
		if res.Unchanged {
			msg = "no changes"
			metrics.RecordAutosave("unchanged", len(req.State))
		} else {
			metrics.RecordAutosave("saved", len(req.State))
		}
		apierr.OK(c, http.StatusOK, msg, res)
	}
}

func handleRestore(svc *project.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		slot, err := strconv.Atoi(c.Param("slot"))
		if err != nil {
			apierr.Abort(c, apierr.BadRequest("slot must be an integer"))
			return
		}
		p := auth.MustPrincipal(c)
		proj, err := svc.Restore(c.Request.Context(), p.WorkspaceID, c.Param("id"), slot)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "project restored", proj)
	}
}
