package server

import (
	"net/http"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/social"
	"github.com/gin-gonic/gin"
)

func handlePostList(svc *social.Service) gin.HandlerFunc {
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
		posts, err := svc.List(c.Request.Context(), p.WorkspaceID, social.PostFilters{
			Status:   c.Query("status"),
			Platform: c.Query("platform"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", posts)
	}
}

func handlePostCreate(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in social.PostInput
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		post, err := svc.Create(c.Request.Context(), p.WorkspaceID, p.UserID, in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusCreated, "post created", post)
	}
}

func handlePostGet(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		post, err := svc.Get(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", post)
	}
}

func handlePostUpdate(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in social.PostUpdate
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		post, err := svc.Update(c.Request.Context(), p.WorkspaceID, c.Param("id"), in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "post updated", post)
	}
}

func handlePostCancel(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		post, err := svc.Cancel(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "post cancelled", post)
	}
}

// handlePostPublish publishes immediately. A failed publish still returns
// the post, now in the failed state with its last error.
func handlePostPublish(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		post, err := svc.PublishNow(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		msg := "post published"
		if post.Status == social.StatusFailed {
			msg = "publish failed"
		}
		apierr.OK(c, http.StatusOK, msg, post)
	}
}

func handlePostMetrics(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in social.Engagement
		if !bindJSON(c, &in) {
			return
		}
		p := auth.MustPrincipal(c)
		post, err := svc.RecordEngagement(c.Request.Context(), p.WorkspaceID, c.Param("id"), in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "metrics recorded", post)
	}
}
