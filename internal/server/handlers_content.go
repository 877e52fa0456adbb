package server

import (
	"net/http"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/content"
	"github.com/gin-gonic/gin"
)

func handleContentList(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return
		}
		p := auth.MustPrincipal(c)
		list, err := svc.List(c.Request.Context(), p.WorkspaceID, content.ListFilters{
			Type:   c.Query("type"),
			Status: c.Query("status"),
			Tag:    c.Query("tag"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", list)
	}
}

func handleContentCreate(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in content.Input
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		item, err := svc.Create(c.Request.Context(), p.WorkspaceID, p.UserID, in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusCreated, "content created", item)
	}
}

func handleContentGet(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		item, err := svc.Get(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", item)
	}
}

func handleContentUpdate(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in content.Input
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		item, err := svc.Update(c.Request.Context(), p.WorkspaceID, c.Param("id"), in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "content updated", item)
	}
}

func handleContentDelete(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		if err := svc.Delete(c.Request.Context(), p.WorkspaceID, c.Param("id")); err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "content deleted", nil)
	}
}

func handlePredict(svc *content.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		pred, err := svc.Predict(c.Request.Context(), p.WorkspaceID, c.Param("id"), c.Query("platform"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", pred)
	}
}
