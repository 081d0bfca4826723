package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/config"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/session"
)

// ErrorResponse is the JSON body of a failed admin request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the admin HTTP server: health, stats and the WebSocket
// gateway. WebSocket clients share the hub with TCP clients.
func NewServer(hub *core.Hub, handler *session.Handler, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/stats", statsHandler(hub, logger))
	router.GET("/ws", gin.WrapH(NewWSHandler(handler, cfg.MaxFrameBytes, cfg.WriteTimeout, logger)))

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

func statsHandler(hub *core.Hub, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := hub.Stats(c.Request.Context())
		if err != nil {
			logger.Error().Err(err).Msg("failed to collect stats")
			c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to collect stats"})
			return
		}
		c.JSON(stdhttp.StatusOK, stats)
	}
}
