package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/auth"
	"github.com/vovakirdan/wirethread/internal/config"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/service/history"
	"github.com/vovakirdan/wirethread/internal/service/messages"
	"github.com/vovakirdan/wirethread/internal/service/notify"
	"github.com/vovakirdan/wirethread/internal/service/threads"
	"github.com/vovakirdan/wirethread/internal/service/unread"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth          *auth.Service
	Users         store.UserStore
	Messages      *messages.Service
	Threads       *threads.Service
	Unread        *unread.Service
	History       *history.Service
	Notifications *notify.Service
}

// NewServer builds an HTTP server with REST API and WebSocket routes.
func NewServer(hub *core.Hub, svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiHandlers := NewAPIHandlers(svc.Auth, logger)
	userHandlers := NewUserHandlers(svc.Users, logger)
	messageHandlers := NewMessageHandlers(svc.Messages, svc.Threads, svc.Unread, svc.History, logger)
	notificationHandlers := NewNotificationHandlers(svc.Notifications, logger)
	createLimiter := newIPRateLimiter(cfg.MessagesPerMinute)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(svc.Auth, logger))
		{
			protected.GET("/me", apiHandlers.Me)
			protected.DELETE("/me", apiHandlers.DeleteAccount)

			protected.GET("/users/search", userHandlers.SearchUsers)

			protected.POST("/messages", RateLimitMiddleware(createLimiter, "create_message"), messageHandlers.Create)
			protected.GET("/messages", messageHandlers.List)
			protected.GET("/messages/unread", messageHandlers.ListUnread)
			protected.GET("/messages/unread/count", messageHandlers.CountUnread)
			protected.GET("/messages/:id", messageHandlers.Get)
			protected.PATCH("/messages/:id", messageHandlers.Edit)
			protected.DELETE("/messages/:id", messageHandlers.Delete)
			protected.GET("/messages/:id/thread", messageHandlers.Thread)
			protected.POST("/messages/:id/read", messageHandlers.MarkRead)
			protected.GET("/messages/:id/history", messageHandlers.History)

			protected.GET("/notifications", notificationHandlers.List)
			protected.POST("/notifications/:id/read", notificationHandlers.MarkRead)
		}
	}

	// The websocket endpoint bypasses gin so the hijacked connection is left untouched.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, svc.Auth, cfg.MaxWSMessageBytes, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
