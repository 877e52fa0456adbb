package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OK writes the success envelope.
func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// Abort writes the error envelope for err and stops the handler chain.
// Server errors are logged; their cause is never sent to the client.
func Abort(c *gin.Context, err error) {
	ae := From(err)
	if ae.Status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("code", ae.Code).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ae.Status, gin.H{
		"success": false,
		"error":   ae.Message,
		"code":    ae.Code,
	})
}
