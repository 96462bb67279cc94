package handler

import (
	"net/http"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/usecase"
	"jiranbackend/pkg/logger"
	"jiranbackend/pkg/response"
)

type WebSocketHandler struct {
	registry   *realtime.Registry
	hub        *realtime.Hub
	messaging  *usecase.MessagingUsecase
	engagement *usecase.EngagementUsecase
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(
	registry *realtime.Registry,
	hub *realtime.Hub,
	messaging *usecase.MessagingUsecase,
	engagement *usecase.EngagementUsecase,
) *WebSocketHandler {
	return &WebSocketHandler{
		registry:   registry,
		hub:        hub,
		messaging:  messaging,
		engagement: engagement,
	}
}

// HandleWebSocket authenticates the credential, upgrades the connection,
// and registers the session. Verification happens before the upgrade so a
// bad credential is an HTTP error, never a half-open socket.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, err := h.registry.Authenticate(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("failed to upgrade connection for user %s: %v", userID, err)
		return nil
	}

	client := realtime.NewClient(uuid.New().String(), userID, conn)

	if err := h.registry.Register(c.Request().Context(), client); err != nil {
		logger.Error("failed to register session for user %s: %v", userID, err)
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump(h.registry, h.dispatch)

	return nil
}
