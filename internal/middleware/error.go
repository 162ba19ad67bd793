package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// ErrorHandler logs the errors handlers attached with c.Error. Handlers
// write the response themselves; server side failures are logged at error
// level, client mistakes at debug.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			event := log.Debug()
			switch apperrors.CodeOf(e.Err) {
			case apperrors.ErrInternal, apperrors.ErrConfiguration, apperrors.ErrUnavailable:
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}
	}
}
