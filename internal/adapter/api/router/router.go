package router

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/adapter/api/handler"
	"jiranbackend/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	healthHandler *handler.HealthHandler,
	conversationHandler *handler.ConversationHandler,
	offerHandler *handler.OfferHandler,
	streamHandler *handler.StreamHandler,
	wsHandler *handler.WebSocketHandler,
) {
	SetupHealthRouter(e, healthHandler)
	SetupConversationRouter(e, conversationHandler, authMiddleware)
	SetupOfferRouter(e, offerHandler, authMiddleware)
	SetupStreamRouter(e, streamHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}

func SetupHealthRouter(e *echo.Echo, healthHandler *handler.HealthHandler) {
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/store-health", healthHandler.CheckStoreHealth)
}
