package api

import (
	"github.com/gin-gonic/gin"

	"pulse-reports/internal/middleware"
	"pulse-reports/internal/services"
)

// SetupRoutes registers all HTTP and websocket routes
func SetupRoutes(router *gin.Engine, handler *Handler, jwtService *services.JWTService) {
	router.Use(middleware.CORS())

	router.GET("/health", handler.HealthCheck)

	// Websocket auth happens in-band via the $AUTH handshake
	router.GET("/ws/progress", handler.HandleProgressSocket)

	api := router.Group("/api")
	api.Use(middleware.AuthRequired(jwtService))
	{
		reports := api.Group("/reports")
		{
			reports.POST("", handler.CreateReport)
			reports.GET("", handler.ListReports)
			reports.GET("/:id", handler.GetReport)
			reports.PUT("/:id", handler.UpdateReport)
			reports.DELETE("/:id", handler.DeleteReport)
			reports.POST("/:id/generate", handler.GenerateReport)
			reports.POST("/:id/email", handler.EmailReport)
		}

		digest := api.Group("/digest")
		{
			digest.POST("/subscribe", handler.SubscribeDigest)
			digest.DELETE("/subscribe", handler.UnsubscribeDigest)
			digest.GET("/subscription", handler.GetDigestSubscription)
		}

		assistant := api.Group("/assistant")
		{
			assistant.GET("/tools", handler.ListAssistantTools)
			assistant.POST("/execute", handler.ExecuteAssistantTool)
		}
	}
}
