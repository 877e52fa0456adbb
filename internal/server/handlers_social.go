package server

import (
	"net/http"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/social"
	"github.com/gin-gonic/gin"
)

// verifierCookieTTL bounds how long a user has to finish a PKCE connect.
const verifierCookieTTL = 600

func verifierCookie(platform string) string {
	return "click_pkce_" + platform
}

type platformView struct {
	social.Platform
	Enabled bool `json:"enabled"`
}

func handlePlatforms(oauth *social.OAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		var out []platformView
		for _, name := range social.Names() {
			p, _ := social.Lookup(name)
			out = append(out, platformView{Platform: p, Enabled: oauth.Enabled(name)})
		}
		apierr.OK(c, http.StatusOK, "", out)
	}
}

func handleConnections(oauth *social.OAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		conns, err := oauth.Connections(c.Request.Context(), p.UserID)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", conns)
	}
}

func handleDisconnect(oauth *social.OAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		if err := oauth.Disconnect(c.Request.Context(), p.UserID, c.Param("platform")); err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "disconnected", nil)
	}
}

// handleSocialConnect returns the provider authorization URL. For PKCE
// platforms the verifier is kept in a short-lived cookie scoped to the
// callback path.
func handleSocialConnect(oauth *social.OAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		platform := c.Param("platform")
		req, err := oauth.AuthURL(p.UserID, platform)
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		if req.Verifier != "" {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(verifierCookie(platform), req.Verifier, verifierCookieTTL,
				"/api/social/"+platform, "", c.Request.TLS != nil, true)
		}
		apierr.OK(c, http.StatusOK, "", gin.H{"auth_url": req.URL, "state": req.State})
	}
}

func handleSocialCallback(oauth *social.OAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform := c.Param("platform")
		if denied := c.Query("error"); denied != "" {
			msg := c.Query("error_description")
			if msg == "" {
				msg = denied
			}
			apierr.Abort(c, apierr.New(http.StatusBadRequest, "OAUTH_DENIED", msg))
			return
		}

		verifier, _ := c.Cookie(verifierCookie(platform))
		conn, err := oauth.Exchange(c.Request.Context(), platform, c.Query("code"), c.Query("state"), verifier)
		if verifier != "" {
			c.SetCookie(verifierCookie(platform), "", -1, "/api/social/"+platform, "", c.Request.TLS != nil, true)
		}
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, platform+" connected", conn)
	}
}
