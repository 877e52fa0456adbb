package auth

import (
	"errors"
	"strings"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/logging"
	"github.com/gin-gonic/gin"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID      string
	WorkspaceID string
	Role        string
}

// IsAdmin reports whether the caller has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

const principalKey = "click.principal"

// TokenCookie is the cookie consulted when no Authorization header is sent.
const TokenCookie = "token"

// BearerToken extracts a token from the Authorization header or the token
// cookie.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// Required rejects requests without a valid access token.
func Required(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			apierr.Abort(c, apierr.Unauthorized("authentication required"))
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "token expired"
			}
			apierr.Abort(c, apierr.Unauthorized(msg))
			return
		}
		p := Principal{UserID: claims.UserID(), WorkspaceID: claims.WorkspaceID, Role: claims.Role}
		c.Set(principalKey, p)
		c.Set(logging.UserIDKey, p.UserID)
		c.Next()
	}
}

// Optional attaches the caller when a valid token is present. Anonymous
// requests and requests with a bad token pass through unauthenticated.
func Optional(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := BearerToken(c); raw != "" {
			if claims, err := tokens.Parse(raw); err == nil {
				p := Principal{UserID: claims.UserID(), WorkspaceID: claims.WorkspaceID, Role: claims.Role}
				c.Set(principalKey, p)
				c.Set(logging.UserIDKey, p.UserID)
			}
		}
		c.Next()
	}
}

// RequireRole rejects authenticated callers without role. It must run
// after Required.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			apierr.Abort(c, apierr.Unauthorized("authentication required"))
			return
		}
		if p.Role != role {
			apierr.Abort(c, apierr.Forbidden("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// MustPrincipal returns the caller set by Required. Handlers mounted behind
// Required may rely on it being present.
func MustPrincipal(c *gin.Context) Principal {
	p, _ := PrincipalFrom(c)
	return p
}
