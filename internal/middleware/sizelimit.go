package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	DefaultMaxBodySize   int64 = 1 << 20
	DefaultMaxUploadSize int64 = 10 << 20
)

const contextRawBody = "size_limit_raw_body"

// SizeLimit caps the request body at max bytes. Reading past the cap fails
// with *http.MaxBytesError, which httputil reports as 413. When routes stack
// several limits the one closest to the handler wins, so upload routes can
// raise the group default.
func SizeLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}
		raw, ok := c.Get(contextRawBody)
		if !ok {
			raw = c.Request.Body
			c.Set(contextRawBody, raw)
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, raw.(io.ReadCloser), max)
		c.Next()
	}
}
