package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routePath is the matched route template, falling back to the raw path
// for unmatched requests so 404s stay visible.
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// RequestLogger logs one gateway.Request line per HTTP request. Server
// errors log at error, client errors at warn. The /events stream logs when
// the subscriber disconnects.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case c.Request.Method != "GET":
			event = logger.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msgf("gateway.Request method=%s path=%q status=%d dur=%s ip=%s bytes=%d",
			c.Request.Method, routePath(c), status, time.Since(start).Round(time.Microsecond),
			c.ClientIP(), c.Writer.Size())
	}
}

// RequestMetricsMiddleware records every request under the node label.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}
