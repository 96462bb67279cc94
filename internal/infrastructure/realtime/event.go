package realtime

import (
	"encoding/json"
	"time"
)

// Event names emitted by the server.
const (
	EventUserOnline    = "user:online"
	EventUserOffline   = "user:offline"
	EventMessageNew    = "message:new"
	EventMessageRead   = "message:read"
	EventTyping        = "typing"
	EventOfferNew      = "offer:new"
	EventOfferUpdate   = "offer:update"
	EventViewerJoined  = "viewer:joined"
	EventViewerLeft    = "viewer:left"
	EventChatMessage   = "chat:message"
	EventReactionNew   = "reaction:new"
	EventStreamStats   = "stream:stats"
	EventStreamEnded   = "stream:ended"
	EventError         = "error"
)

// Event is the wire envelope for everything pushed to a session.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
