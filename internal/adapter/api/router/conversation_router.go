package router

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/adapter/api/handler"
	"jiranbackend/internal/adapter/api/middleware"
)

// SetupConversationRouter sets up all conversation routes (excluding WebSocket)
func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("", conversationHandler.CreateConversation)
	group.GET("", conversationHandler.ListConversations)
	group.GET("/:id", conversationHandler.GetConversation)
	group.PUT("/:id/read", conversationHandler.MarkRead)
	group.PUT("/:id/archive", conversationHandler.ArchiveConversation)
	group.GET("/:id/typing", conversationHandler.TypingUsers)

	group.POST("/:id/messages", conversationHandler.SendMessage)
	group.GET("/:id/messages", conversationHandler.ListMessages)
}
