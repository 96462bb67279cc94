package realtime

import (
	"context"
	"strconv"
	"sync"
	"time"

	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/errors"
	"jiranbackend/pkg/logger"
)

// TokenVerifier validates a bearer credential and resolves the owning user.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// PresenceNotifier is told when a user transitions between zero and at least
// one active session, so interested conversation rooms can be informed.
type PresenceNotifier interface {
	NotifyPresence(ctx context.Context, userID string, online bool)
}

const sessionIndexKey = "sessions"

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func sessionHeartbeatKey(sessionID string) string {
	return "session:" + sessionID + ":hb"
}

func userSessionsKey(userID string) string {
	return "user:" + userID + ":sessions"
}

// Registry tracks which user is reachable on which session. Local clients
// hold the actual sockets; the shared store carries the session and presence
// index so any process can answer is-online queries.
type Registry struct {
	store    store.Store
	verifier TokenVerifier
	presence PresenceNotifier
	hub      *Hub

	mu          sync.RWMutex
	clients     map[string]*Client            // sessionID -> client
	userClients map[string]map[string]*Client // userID -> sessionID -> client
}

func NewRegistry(st store.Store, verifier TokenVerifier) *Registry {
	return &Registry{
		store:       st,
		verifier:    verifier,
		clients:     make(map[string]*Client),
		userClients: make(map[string]map[string]*Client),
	}
}

func (r *Registry) SetPresenceNotifier(notifier PresenceNotifier) {
	r.presence = notifier
}

// Authenticate validates the credential of a connection attempt. Failure
// means no session is created.
func (r *Registry) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", errors.InvalidCredential(nil)
	}
	return r.verifier.Verify(ctx, credential)
}

// Register records the session. Idempotent: re-registering a known session
// only refreshes its heartbeat.
func (r *Registry) Register(ctx context.Context, client *Client) error {
	r.mu.Lock()
	if _, known := r.clients[client.SessionID]; known {
		r.mu.Unlock()
		return r.Heartbeat(ctx, client.SessionID)
	}
	r.clients[client.SessionID] = client
	sessions, ok := r.userClients[client.UserID]
	if !ok {
		sessions = make(map[string]*Client)
		r.userClients[client.UserID] = sessions
	}
	sessions[client.SessionID] = client
	r.mu.Unlock()

	if err := r.store.Set(ctx, sessionKey(client.SessionID), client.UserID, 0); err != nil {
		return err
	}
	if err := r.touchHeartbeat(ctx, client.SessionID); err != nil {
		return err
	}
	if _, err := r.store.SAdd(ctx, sessionIndexKey, client.SessionID); err != nil {
		return err
	}
	if _, err := r.store.SAdd(ctx, userSessionsKey(client.UserID), client.SessionID); err != nil {
		return err
	}

	count, err := r.store.SCard(ctx, userSessionsKey(client.UserID))
	if err != nil {
		return err
	}
	if count == 1 && r.presence != nil {
		go r.presence.NotifyPresence(context.WithoutCancel(ctx), client.UserID, true)
	}

	logger.Info("session %s registered for user %s", client.SessionID, client.UserID)
	return nil
}

// Unregister removes the session, its room memberships, and, if it was the
// user's last session, announces the user offline.
func (r *Registry) Unregister(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	client, known := r.clients[sessionID]
	if known {
		delete(r.clients, sessionID)
		if sessions, ok := r.userClients[client.UserID]; ok {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(r.userClients, client.UserID)
			}
		}
	}
	r.mu.Unlock()

	userID := ""
	if known {
		userID = client.UserID
	} else {
		// Session may belong to a process that died; resolve the owner
		// from the store so the sweep can clean it up.
		owner, ok, err := r.store.Get(ctx, sessionKey(sessionID))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		userID = owner
	}

	if r.hub != nil {
		r.hub.dropSession(ctx, sessionID)
	}

	if err := r.store.SRem(ctx, userSessionsKey(userID), sessionID); err != nil {
		return err
	}
	if err := r.store.SRem(ctx, sessionIndexKey, sessionID); err != nil {
		return err
	}
	if err := r.store.Del(ctx, sessionKey(sessionID), sessionHeartbeatKey(sessionID)); err != nil {
		return err
	}

	if known {
		close(client.Send)
	}

	count, err := r.store.SCard(ctx, userSessionsKey(userID))
	if err != nil {
		return err
	}
	if count == 0 && r.presence != nil {
		go r.presence.NotifyPresence(context.WithoutCancel(ctx), userID, false)
	}

	logger.Info("session %s unregistered for user %s", sessionID, userID)
	return nil
}

// UnregisterClient is the ReadPump teardown path.
func (r *Registry) UnregisterClient(client *Client) {
	if err := r.Unregister(context.Background(), client.SessionID); err != nil {
		logger.Error("failed to unregister session %s: %v", client.SessionID, err)
	}
}

// Heartbeat refreshes the session's liveness timestamp. An unknown session
// yields NOT_FOUND so the transport can force a re-authenticate.
func (r *Registry) Heartbeat(ctx context.Context, sessionID string) error {
	_, ok, err := r.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("Session", nil)
	}
	return r.touchHeartbeat(ctx, sessionID)
}

func (r *Registry) touchHeartbeat(ctx context.Context, sessionID string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	return r.store.Set(ctx, sessionHeartbeatKey(sessionID), now, 0)
}

func (r *Registry) IsOnline(ctx context.Context, userID string) (bool, error) {
	count, err := r.store.SCard(ctx, userSessionsKey(userID))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SweepStale unregisters every session whose last heartbeat is older than
// maxAge. One session's failure never stops the pass.
func (r *Registry) SweepStale(ctx context.Context, maxAge time.Duration) int {
	sessionIDs, err := r.store.SMembers(ctx, sessionIndexKey)
	if err != nil {
		logger.Error("registry sweep: failed to list sessions: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge).Unix()
	removed := 0
	for _, sessionID := range sessionIDs {
		raw, ok, err := r.store.Get(ctx, sessionHeartbeatKey(sessionID))
		if err != nil {
			logger.Error("registry sweep: failed to read heartbeat for %s: %v", sessionID, err)
			continue
		}
		stale := !ok
		if ok {
			beat, parseErr := strconv.ParseInt(raw, 10, 64)
			stale = parseErr != nil || beat < cutoff
		}
		if !stale {
			continue
		}
		if err := r.Unregister(ctx, sessionID); err != nil {
			logger.Error("registry sweep: failed to unregister %s: %v", sessionID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("registry sweep removed %d stale sessions", removed)
	}
	return removed
}

// StartSweeper runs SweepStale on an interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.SweepStale(ctx, maxAge)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ClientsForUser returns the user's sessions connected to this process.
func (r *Registry) ClientsForUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.userClients[userID]
	clients := make([]*Client, 0, len(sessions))
	for _, client := range sessions {
		clients = append(clients, client)
	}
	return clients
}

// LocalClient returns the client for a session connected to this process.
func (r *Registry) LocalClient(sessionID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[sessionID]
	return client, ok
}
