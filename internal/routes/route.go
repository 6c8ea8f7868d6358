package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/invites/internal/container"
	"github.com/joshua-takyi/invites/internal/handlers"
	"github.com/joshua-takyi/invites/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Origins.Origins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Add middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", handlers.Health(container.Status))
		v1.GET("/realtime/status", handlers.RealtimeStatus(container.Status))

		// Template frames are public; every message is checked by the router.
		v1.GET("/frames/:eventId/ws", container.Bridge.GuestSocket())
	}

	var refresher middleware.TokenRefresher
	if container.SupabaseClient != nil {
		refresher = container.SupabaseClient.Auth
	}
	host := v1.Group("/host")
	host.Use(middleware.AuthMiddleware(refresher, container.Tokens.Validate, container.Config.IsProduction(), container.Logger))
	{
		host.GET("/events", handlers.ListHostEvents(container.Dashboard, container.Logger))

		events := host.Group("/events/:eventId")
		events.GET("/analytics", handlers.EventAnalytics(container.Dashboard, container.Logger))
		events.GET("/wishes", handlers.EventWishes(container.Dashboard, container.Logger))
		events.GET("/stream", handlers.EventStream(container.Dashboard, container.Hub, container.Status, container.Logger))
		events.GET("/frames/ws", container.Bridge.AdminSocket())
		events.POST("/guests/:guestId/reset", handlers.ResetGuest(container.Dashboard, container.Logger))
		events.PATCH("/guests", handlers.BulkUpdateGuests(container.Dashboard, container.Logger))
	}

	return r
}
