package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-marketplace-sync/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Transaction reads (public read access)
		v1.GET("/transactions/:id", handler.GetTransaction)

		// Lifecycle changes (require authentication when credentials are configured)
		mutations := v1.Group("", middleware.OptionalAuth(authCfg))
		mutations.POST("/transactions", handler.ReserveTransaction)
		mutations.PUT("/transactions/:id/hash", handler.AttachTransactionHash)
		mutations.POST("/transactions/:id/cancel", handler.CancelTransaction)
	}
}
