package realtime

import (
	"context"
	"sync"

	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/logger"
)

// PushDispatcher delivers a notification out-of-band when a user has no
// live session anywhere.
type PushDispatcher interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Room identifiers are namespaced by kind so a conversation and a stream
// with the same underlying ID never collide.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

func StreamRoom(streamID string) string {
	return "stream:" + streamID
}

func ProductRoom(productID string) string {
	return "product:" + productID
}

func roomMembersKey(roomID string) string {
	return "room:" + roomID + ":members"
}

func sessionRoomsKey(sessionID string) string {
	return "session:" + sessionID + ":rooms"
}

// Hub routes events to rooms. Room membership lives in the shared store,
// keyed by session, so a dead session's memberships can be reclaimed by
// whichever process notices the session is gone.
type Hub struct {
	registry *Registry
	store    store.Store
	push     PushDispatcher

	mu    sync.RWMutex
	rooms map[string]map[string]*Client // roomID -> sessionID -> client
}

func NewHub(registry *Registry, st store.Store, push PushDispatcher) *Hub {
	hub := &Hub{
		registry: registry,
		store:    st,
		push:     push,
		rooms:    make(map[string]map[string]*Client),
	}
	registry.hub = hub
	return hub
}

// Join adds the session to a room. Joining twice is a no-op.
func (h *Hub) Join(ctx context.Context, roomID string, client *Client) error {
	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[client.SessionID] = client
	h.mu.Unlock()

	if _, err := h.store.SAdd(ctx, roomMembersKey(roomID), client.SessionID); err != nil {
		return err
	}
	if _, err := h.store.SAdd(ctx, sessionRoomsKey(client.SessionID), roomID); err != nil {
		return err
	}
	return nil
}

// Leave removes the session from a room. Leaving a room the session never
// joined is a no-op.
func (h *Hub) Leave(ctx context.Context, roomID string, client *Client) error {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.SessionID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	if err := h.store.SRem(ctx, roomMembersKey(roomID), client.SessionID); err != nil {
		return err
	}
	return h.store.SRem(ctx, sessionRoomsKey(client.SessionID), roomID)
}

// Broadcast fans an event out to every session in the room, optionally
// excluding the originating session. A room with no members is a silent
// no-op. A session whose send buffer is full is skipped, not waited on.
func (h *Hub) Broadcast(roomID, eventType string, payload interface{}, excludeSessionID string) {
	data, err := NewEvent(eventType, payload).Marshal()
	if err != nil {
		logger.Error("failed to marshal %s event for room %s: %v", eventType, roomID, err)
		return
	}

	h.mu.RLock()
	members := h.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for sessionID, client := range members {
		if sessionID == excludeSessionID {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			logger.Warn("dropping %s event for slow session %s", eventType, client.SessionID)
		}
	}
}

// RoomSize reports the room's membership across all processes.
func (h *Hub) RoomSize(ctx context.Context, roomID string) (int64, error) {
	return h.store.SCard(ctx, roomMembersKey(roomID))
}

// SendToUser delivers an event to every live session of a user. When the
// user has no session anywhere, exactly one push notification is dispatched
// instead.
func (h *Hub) SendToUser(ctx context.Context, userID, eventType string, payload interface{}, title, body string, pushData map[string]string) {
	data, err := NewEvent(eventType, payload).Marshal()
	if err != nil {
		logger.Error("failed to marshal %s event for user %s: %v", eventType, userID, err)
		return
	}

	for _, client := range h.registry.ClientsForUser(userID) {
		select {
		case client.Send <- data:
		default:
			logger.Warn("dropping %s event for slow session %s", eventType, client.SessionID)
		}
	}

	online, err := h.registry.IsOnline(ctx, userID)
	if err != nil {
		logger.Error("failed to check presence of user %s: %v", userID, err)
		return
	}
	if !online && h.push != nil {
		h.push.Notify(ctx, userID, title, body, pushData)
	}
}

// dropSession removes a dead session from every room it joined. Called by
// the registry during unregister, before the session record is deleted.
func (h *Hub) dropSession(ctx context.Context, sessionID string) {
	roomIDs, err := h.store.SMembers(ctx, sessionRoomsKey(sessionID))
	if err != nil {
		logger.Error("failed to list rooms for session %s: %v", sessionID, err)
		return
	}

	h.mu.Lock()
	for _, roomID := range roomIDs {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	for _, roomID := range roomIDs {
		if err := h.store.SRem(ctx, roomMembersKey(roomID), sessionID); err != nil {
			logger.Error("failed to remove session %s from room %s: %v", sessionID, roomID, err)
		}
	}
	if err := h.store.Del(ctx, sessionRoomsKey(sessionID)); err != nil {
		logger.Error("failed to clear room index for session %s: %v", sessionID, err)
	}
}
