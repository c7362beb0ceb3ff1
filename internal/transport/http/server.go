package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// NewServer builds the HTTP server: health, metrics, the websocket endpoint
// and the REST API. A nil gatherer leaves /metrics unmounted.
func NewServer(
	hub *core.Hub,
	authService *auth.Service,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
	gatherer prometheus.Gatherer,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, hub.Registry(), logger)
	roomHandlers := NewRoomHandlers(st, cfg.Store.HistoryLimit, logger)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)
		authGroup.GET("/users", AuthMiddleware(authService, logger), userHandlers.ListUsers)

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService, logger))
		protected.GET("/messages/:room", roomHandlers.History)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
