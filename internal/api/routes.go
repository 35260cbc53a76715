package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/api/handlers"
	"dispatch/internal/api/middleware"
	"dispatch/internal/auth"
	"dispatch/internal/session"
)

type Router struct {
	adminHandler *handlers.AdminHandler
	riderHandler *handlers.RiderHandler
	geoHandler   *handlers.GeoHandler
	gate         *auth.AdminGate
	sessions     *session.Manager
	logger       *zap.Logger
	corsOrigins  []string
}

func NewRouter(
	adminHandler *handlers.AdminHandler,
	riderHandler *handlers.RiderHandler,
	geoHandler *handlers.GeoHandler,
	gate *auth.AdminGate,
	sessions *session.Manager,
	logger *zap.Logger,
	corsOrigins []string,
) *Router {
	return &Router{
		adminHandler: adminHandler,
		riderHandler: riderHandler,
		geoHandler:   geoHandler,
		gate:         gate,
		sessions:     sessions,
		logger:       logger,
		corsOrigins:  corsOrigins,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.logger))
	if len(r.corsOrigins) > 0 {
		engine.Use(cors.New(r.corsConfig()))
	}

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/geo/distance", r.geoHandler.Distance)
	engine.GET("/geo/coordinates", r.geoHandler.Coordinates)

	engine.POST("/admin/login", r.adminHandler.Login)
	admin := engine.Group("/admin")
	admin.Use(middleware.RequireAdmin(r.gate))
	{
		admin.GET("/riders", r.adminHandler.ListRiders)
		admin.POST("/riders", r.adminHandler.AddRider)
		admin.GET("/orders", r.adminHandler.ListOrders)
		admin.POST("/orders", r.adminHandler.CreateOrder)
	}

	rider := engine.Group("/rider")
	rider.Use(middleware.RequireDevice(r.sessions))
	{
		rider.POST("/login", r.riderHandler.Login)
		rider.POST("/logout", r.riderHandler.Logout)

		// Signed-in endpoints
		signedIn := rider.Group("/")
		signedIn.Use(middleware.RequireRider())
		{
			signedIn.GET("/me", r.riderHandler.Me)
			signedIn.GET("/view", r.riderHandler.View)
			signedIn.GET("/history", r.riderHandler.History)
			signedIn.POST("/orders/:id/accept", r.riderHandler.Accept)
			signedIn.POST("/orders/:id/decline", r.riderHandler.Decline)
			signedIn.POST("/orders/:id/deliver", r.riderHandler.Deliver)
		}
	}
}

func (r *Router) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.DeviceHeader},
	}
	for _, origin := range r.corsOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = r.corsOrigins
	return cfg
}
