package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/protardio/treasury-swap/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1/swap")
	{
		// Quote and treasury browsing (public read access)
		v1.POST("/quote", handler.GetQuote)
		v1.GET("/treasury", handler.ListTreasury)
		v1.GET("/treasury/stats", handler.GetTreasuryStats)

		// Intent lifecycle
		v1.POST("/intents", handler.CreateIntent)
		v1.GET("/intents/:id", handler.GetIntent)

		// Settlement callbacks from the vault watcher (require authentication)
		v1.POST("/intents/:id/nft-received", middleware.Auth(authCfg), handler.NFTReceived)
		v1.POST("/intents/:id/fee-received", middleware.Auth(authCfg), handler.FeeReceived)
		v1.POST("/intents/:id/execute", middleware.Auth(authCfg), handler.Execute)
		v1.POST("/intents/:id/complete", middleware.Auth(authCfg), handler.Complete)
		v1.POST("/intents/:id/fail", middleware.Auth(authCfg), handler.Fail)

		// User-facing reads (public read access)
		v1.GET("/history", handler.GetHistory)
		v1.GET("/refunds", handler.GetRefunds)
	}
}
