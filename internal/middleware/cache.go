package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CacheConfig struct {
	MaxAge  int
	Private bool
	NoStore bool
	Vary    []string
}

// PublicReferenceCache fits the public lists (specializations,
// governorates) that change only through the admin dashboard.
func PublicReferenceCache() CacheConfig {
	return CacheConfig{MaxAge: 300, Vary: []string{"Accept"}}
}

// NoStoreCache is for verification results and admin data.
func NoStoreCache() CacheConfig {
	return CacheConfig{NoStore: true}
}

func Cache(config CacheConfig) gin.HandlerFunc {
	var directives []string
	switch {
	case config.NoStore:
		directives = append(directives, "no-store")
	case config.Private:
		directives = append(directives, "private")
	default:
		directives = append(directives, "public")
	}
	if !config.NoStore && config.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
	}
	value := strings.Join(directives, ", ")
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}
		c.Header("Cache-Control", value)
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()
	}
}
