package router

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/adapter/api/handler"
	"jiranbackend/internal/adapter/api/middleware"
)

func SetupStreamRouter(e *echo.Echo, streamHandler *handler.StreamHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/streams")
	group.Use(authMiddleware.Authenticate)

	group.POST("", streamHandler.StartStream)
	group.GET("", streamHandler.ListLiveStreams)
	group.GET("/:id", streamHandler.GetStream)
	group.POST("/:id/end", streamHandler.EndStream)
	group.GET("/:id/stats", streamHandler.GetStats)
	group.GET("/:id/chat", streamHandler.RecentChat)
}
