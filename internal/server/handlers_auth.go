package server

import (
	"net/http"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func handleRegister(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.RegisterInput
		if !bindJSON(c, &in) {
			return
		}
		sess, err := svc.Register(c.Request.Context(), in)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusCreated, "account created", sess)
	}
}

func handleLogin(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in loginRequest
		if !bindJSON(c, &in) {
			return
		}
		sess, err := svc.Login(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "logged in", sess)
	}
}

func handleMe(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		user, err := svc.Get(c.Request.Context(), p.UserID)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", user)
	}
}
