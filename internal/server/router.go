package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/skylerye/yuquesync-backend/internal/handlers"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/middleware"
)

type RouterConfig struct {
	Log            *logger.Logger
	SyncHandler    *handlers.SyncHandler
	WebhookHandler *handlers.WebhookHandler
	ReadHandler    *handlers.ReadHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		// Triggers
		api.POST("/sync", cfg.SyncHandler.TriggerFullSync)
		api.POST("/sync/members", cfg.SyncHandler.TriggerMemberSync)
		api.POST("/repos/:id/sync", cfg.SyncHandler.TriggerRepoSync)
		api.POST("/repos/:id/sync/structure", cfg.SyncHandler.TriggerStructureSync)
		// Webhook
		api.POST("/webhook/yuque", cfg.WebhookHandler.Receive)
		// Mirrored data
		api.GET("/repos", cfg.ReadHandler.ListRepos)
		api.GET("/members", cfg.ReadHandler.ListMembers)
		api.GET("/docs", cfg.ReadHandler.ListDocs)
		api.GET("/docs/:slug", cfg.ReadHandler.GetDoc)
	}

	return router
}
