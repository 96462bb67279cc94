package handler

import (
	"context"
	"encoding/json"

	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/pkg/errors"
	"jiranbackend/pkg/logger"
)

// clientEvent is the envelope every inbound frame must carry.
type clientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomPayload struct {
	RoomType string `json:"room_type"` // conversation, stream, product
	RoomID   string `json:"room_id"`
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type streamPayload struct {
	StreamID string `json:"stream_id"`
}

type streamChatPayload struct {
	StreamID string `json:"stream_id"`
	Text     string `json:"text"`
}

type reactionPayload struct {
	StreamID string `json:"stream_id"`
	Emoji    string `json:"emoji"`
}

// dispatch routes one inbound frame. Every rejection goes back to the
// initiating session as an error event; a bad frame never kills the
// connection.
func (h *WebSocketHandler) dispatch(client *realtime.Client, raw []byte) {
	ctx := context.Background()

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.sendError(client, errors.BadRequest("Malformed event", err))
		return
	}

	switch event.Type {
	case "ping":
		h.sendEvent(client, "pong", nil)

	case "heartbeat":
		if err := h.registry.Heartbeat(ctx, client.SessionID); err != nil {
			h.sendError(client, err)
		}

	case "join_room":
		var p roomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed join_room payload", err))
			return
		}
		h.joinRoom(ctx, client, p)

	case "leave_room":
		var p roomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed leave_room payload", err))
			return
		}
		roomID, err := qualifiedRoom(p)
		if err != nil {
			h.sendError(client, err)
			return
		}
		if err := h.hub.Leave(ctx, roomID, client); err != nil {
			h.sendError(client, err)
		}

	case "typing_start", "typing_stop":
		var p conversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed typing payload", err))
			return
		}
		active := event.Type == "typing_start"
		if err := h.messaging.Typing(ctx, client.UserID, p.ConversationID, active); err != nil {
			h.sendError(client, err)
		}

	case "mark_read":
		var p conversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed mark_read payload", err))
			return
		}
		if _, err := h.messaging.MarkRead(ctx, client.UserID, p.ConversationID); err != nil {
			h.sendError(client, err)
		}

	case "stream_chat":
		var p streamChatPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed stream_chat payload", err))
			return
		}
		if _, err := h.engagement.ChatSend(ctx, client.UserID, p.StreamID, p.Text); err != nil {
			h.sendError(client, err)
		}

	case "reaction":
		var p reactionPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed reaction payload", err))
			return
		}
		if err := h.engagement.React(ctx, client.UserID, p.StreamID, p.Emoji); err != nil {
			h.sendError(client, err)
		}

	case "viewer_join":
		var p streamPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed viewer_join payload", err))
			return
		}
		if err := h.hub.Join(ctx, realtime.StreamRoom(p.StreamID), client); err != nil {
			h.sendError(client, err)
			return
		}
		if err := h.engagement.ViewerJoin(ctx, client.UserID, p.StreamID); err != nil {
			h.sendError(client, err)
		}

	case "viewer_leave":
		var p streamPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			h.sendError(client, errors.BadRequest("Malformed viewer_leave payload", err))
			return
		}
		if err := h.hub.Leave(ctx, realtime.StreamRoom(p.StreamID), client); err != nil {
			h.sendError(client, err)
			return
		}
		if err := h.engagement.ViewerLeave(ctx, client.UserID, p.StreamID); err != nil {
			h.sendError(client, err)
		}

	default:
		h.sendError(client, errors.BadRequest("Unknown event type: "+event.Type, nil))
	}
}

// joinRoom applies per-kind authorization before membership. Conversation
// rooms are participant-only; stream and product-feed rooms are open.
func (h *WebSocketHandler) joinRoom(ctx context.Context, client *realtime.Client, p roomPayload) {
	if p.RoomType == "conversation" {
		if err := h.messaging.AuthorizeConversationRoom(ctx, client.UserID, p.RoomID); err != nil {
			h.sendError(client, err)
			return
		}
	}

	roomID, err := qualifiedRoom(p)
	if err != nil {
		h.sendError(client, err)
		return
	}
	if err := h.hub.Join(ctx, roomID, client); err != nil {
		h.sendError(client, err)
	}
}

func qualifiedRoom(p roomPayload) (string, error) {
	switch p.RoomType {
	case "conversation":
		return realtime.ConversationRoom(p.RoomID), nil
	case "stream":
		return realtime.StreamRoom(p.RoomID), nil
	case "product":
		return realtime.ProductRoom(p.RoomID), nil
	}
	return "", errors.BadRequest("Unknown room type: "+p.RoomType, nil)
}

func (h *WebSocketHandler) sendEvent(client *realtime.Client, eventType string, payload interface{}) {
	data, err := realtime.NewEvent(eventType, payload).Marshal()
	if err != nil {
		logger.Error("failed to marshal %s event for session %s: %v", eventType, client.SessionID, err)
		return
	}
	select {
	case client.Send <- data:
	default:
		logger.Warn("dropping %s event for slow session %s", eventType, client.SessionID)
	}
}

func (h *WebSocketHandler) sendError(client *realtime.Client, err error) {
	code := "INTERNAL_ERROR"
	message := "An unexpected error occurred"
	if appErr, ok := err.(*errors.AppError); ok {
		code = appErr.Code
		message = appErr.Message
	}
	h.sendEvent(client, realtime.EventError, map[string]string{
		"code":    code,
		"message": message,
	})
}
