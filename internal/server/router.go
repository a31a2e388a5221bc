package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sevanet-labs/sevabot-backend/internal/handlers"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	ArchiveHandler  *handlers.ArchiveHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

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

	router.GET("/healthcheck", handlers.Healthcheck)

	api := router.Group("/api")
	{
		// Documents
		api.POST("/documents", cfg.DocumentHandler.Upload)
		api.GET("/documents", cfg.DocumentHandler.List)
		api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
		api.GET("/scopes/:scope/stats", cfg.DocumentHandler.Stats)

		// Conversations
		api.POST("/conversations", cfg.ChatHandler.CreateConversation)
		api.GET("/conversations", cfg.ChatHandler.ListConversations)
		api.GET("/conversations/:id", cfg.ChatHandler.GetConversation)
		api.POST("/conversations/:id/messages", cfg.ChatHandler.Ask)
		api.DELETE("/conversations/:id", cfg.ArchiveHandler.DeleteConversation)
		api.POST("/messages/:id/feedback", cfg.ChatHandler.SetFeedback)

		// Archive
		api.GET("/archive/status", cfg.ArchiveHandler.Status)
		api.GET("/archive/conversations", cfg.ArchiveHandler.ListArchived)
		api.GET("/archive/conversations/:id", cfg.ArchiveHandler.GetArchived)
		api.DELETE("/archive/conversations/:id", cfg.ArchiveHandler.PurgeArchived)
	}

	return router
}
