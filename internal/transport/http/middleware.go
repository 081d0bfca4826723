package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggerMiddleware logs each request with the same remote field the relay
// sessions use. WebSocket upgrades are logged once the session has ended.
// Server errors log at error, client errors at warn.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}

		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("remote", c.Request.RemoteAddr).
			Str("user_agent", c.Request.UserAgent()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Bool("ws", upgrade).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
