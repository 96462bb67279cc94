package router

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/adapter/api/handler"
)

// SetupWebSocketRouter wires the realtime endpoint. The handler verifies the
// credential from the token query parameter itself, so no middleware here.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
