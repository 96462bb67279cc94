package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/errors"
)

const liveStreamsKey = "streams:live"

// reactionEmojis is the accepted reaction vocabulary.
var reactionEmojis = map[string]bool{
	"like":  true,
	"heart": true,
	"fire":  true,
	"clap":  true,
	"laugh": true,
}

type EngagementUsecase struct {
	streamRepo repository.StreamRepository
	hub        *realtime.Hub
	store      store.Store

	chatSize       int
	chatRateLimit  int
	chatRateWindow time.Duration
}

func NewEngagementUsecase(
	streamRepo repository.StreamRepository,
	hub *realtime.Hub,
	st store.Store,
	chatSize, chatRateLimit int,
	chatRateWindow time.Duration,
) *EngagementUsecase {
	return &EngagementUsecase{
		streamRepo:     streamRepo,
		hub:            hub,
		store:          st,
		chatSize:       chatSize,
		chatRateLimit:  chatRateLimit,
		chatRateWindow: chatRateWindow,
	}
}

func streamKey(streamID, suffix string) string {
	return "stream:" + streamID + ":" + suffix
}

func streamChatRateKey(streamID, userID string) string {
	return "stream:" + streamID + ":chat:" + userID
}

type StartStreamInput struct {
	Title     string
	ProductID string
}

// StartStream registers a live stream and its ephemeral counter keys.
func (uc *EngagementUsecase) StartStream(ctx context.Context, hostID string, input StartStreamInput) (*entity.Stream, error) {
	if input.Title == "" {
		return nil, errors.BadRequest("Stream title cannot be empty", nil)
	}

	stream := &entity.Stream{
		ID:        uuid.New().String(),
		HostID:    hostID,
		ProductID: input.ProductID,
		Title:     input.Title,
		Status:    entity.StreamStatusLive,
		StartedAt: time.Now(),
	}
	if err := uc.streamRepo.Create(ctx, stream); err != nil {
		return nil, err
	}

	if err := uc.store.Set(ctx, streamKey(stream.ID, "live"), "1", 0); err != nil {
		return nil, err
	}
	if _, err := uc.store.SAdd(ctx, liveStreamsKey, stream.ID); err != nil {
		return nil, err
	}

	log.Printf("StartStream: Stream %s started by host %s", stream.ID, hostID)
	return stream, nil
}

// EndStream finalizes the stream: the ephemeral counters are read once,
// persisted as the stream's aggregates, and deleted.
func (uc *EngagementUsecase) EndStream(ctx context.Context, hostID, streamID string) (*entity.StreamStats, error) {
	stream, err := uc.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.HostID != hostID {
		return nil, errors.Forbidden("Only the host can end the stream", nil)
	}
	if stream.Status != entity.StreamStatusLive {
		return nil, errors.InvalidState("end stream", stream.Status)
	}

	stats, err := uc.Stats(ctx, streamID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stream.Status = entity.StreamStatusEnded
	stream.EndedAt = &now
	stream.PeakViewers = stats.PeakViewers
	stream.UniqueViewers = stats.UniqueViewers
	stream.TotalLikes = stats.TotalLikes
	stream.ChatCount = stats.ChatCount
	if err := uc.streamRepo.Update(ctx, stream); err != nil {
		return nil, err
	}

	if err := uc.store.SRem(ctx, liveStreamsKey, streamID); err != nil {
		log.Printf("EndStream: Failed to remove stream %s from live set: %v", streamID, err)
	}
	if err := uc.store.Del(ctx,
		streamKey(streamID, "live"),
		streamKey(streamID, "viewers:current"),
		streamKey(streamID, "viewers:unique"),
		streamKey(streamID, "viewers:peak"),
		streamKey(streamID, "likes"),
		streamKey(streamID, "chats"),
		streamKey(streamID, "chat"),
	); err != nil {
		log.Printf("EndStream: Failed to clear counters for stream %s: %v", streamID, err)
	}
	for emoji := range reactionEmojis {
		if err := uc.store.Del(ctx, streamKey(streamID, "likes:"+emoji)); err != nil {
			log.Printf("EndStream: Failed to clear %s counter for stream %s: %v", emoji, streamID, err)
		}
	}

	uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventStreamEnded, stats, "")
	log.Printf("EndStream: Stream %s ended, peak %d viewers", streamID, stats.PeakViewers)
	return stats, nil
}

func (uc *EngagementUsecase) requireLive(ctx context.Context, streamID string) error {
	_, ok, err := uc.store.Get(ctx, streamKey(streamID, "live"))
	if err != nil {
		return err
	}
	if !ok {
		return errors.InvalidState("interact with stream", entity.StreamStatusEnded)
	}
	return nil
}

type ViewerPayload struct {
	StreamID       string `json:"stream_id"`
	UserID         string `json:"user_id"`
	CurrentViewers int64  `json:"current_viewers"`
}

// ViewerJoin counts the viewer in: current goes up, the unique set grows if
// this user was never here, and the peak follows the current high-water mark.
func (uc *EngagementUsecase) ViewerJoin(ctx context.Context, userID, streamID string) error {
	if err := uc.requireLive(ctx, streamID); err != nil {
		return err
	}

	if _, err := uc.store.SAdd(ctx, streamKey(streamID, "viewers:unique"), userID); err != nil {
		return err
	}
	current, err := uc.store.Incr(ctx, streamKey(streamID, "viewers:current"))
	if err != nil {
		return err
	}
	if _, err := uc.store.SetMax(ctx, streamKey(streamID, "viewers:peak"), current); err != nil {
		return err
	}

	uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventViewerJoined, &ViewerPayload{
		StreamID:       streamID,
		UserID:         userID,
		CurrentViewers: current,
	}, "")
	return nil
}

// ViewerLeave counts the viewer out. The counter floors at zero, so a stray
// duplicate leave can never drive it negative. A leave arriving after the
// stream ended is rejected before it can resurrect a deleted counter key.
func (uc *EngagementUsecase) ViewerLeave(ctx context.Context, userID, streamID string) error {
	if err := uc.requireLive(ctx, streamID); err != nil {
		return err
	}

	current, err := uc.store.DecrFloor(ctx, streamKey(streamID, "viewers:current"))
	if err != nil {
		return err
	}

	uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventViewerLeft, &ViewerPayload{
		StreamID:       streamID,
		UserID:         userID,
		CurrentViewers: current,
	}, "")
	return nil
}

// ChatSend appends to the stream's bounded chat buffer and fans the message
// out. A fixed per-user window caps the send rate; over the cap the sender
// gets a rejection, not a disconnect.
func (uc *EngagementUsecase) ChatSend(ctx context.Context, userID, streamID, text string) (*entity.StreamChatMessage, error) {
	if text == "" {
		return nil, errors.BadRequest("Chat message cannot be empty", nil)
	}
	if err := uc.requireLive(ctx, streamID); err != nil {
		return nil, err
	}

	rateKey := streamChatRateKey(streamID, userID)
	count, err := uc.store.Incr(ctx, rateKey)
	if err != nil {
		return nil, err
	}
	if count == 1 {
		if err := uc.store.Expire(ctx, rateKey, uc.chatRateWindow); err != nil {
			return nil, err
		}
	}
	if count > int64(uc.chatRateLimit) {
		return nil, errors.TooManyRequests("Chat rate limit reached, slow down")
	}

	message := &entity.StreamChatMessage{
		StreamID:  streamID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		return nil, errors.Internal("Failed to encode chat message", err)
	}
	if err := uc.store.LPushTrim(ctx, streamKey(streamID, "chat"), string(data), int64(uc.chatSize)); err != nil {
		return nil, err
	}
	if _, err := uc.store.Incr(ctx, streamKey(streamID, "chats")); err != nil {
		return nil, err
	}

	uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventChatMessage, message, "")
	return message, nil
}

type ReactionPayload struct {
	StreamID   string `json:"stream_id"`
	UserID     string `json:"user_id"`
	Emoji      string `json:"emoji"`
	TotalLikes int64  `json:"total_likes"`
}

// React bumps the per-emoji and total reaction counters.
func (uc *EngagementUsecase) React(ctx context.Context, userID, streamID, emoji string) error {
	if !reactionEmojis[emoji] {
		return errors.BadRequest(fmt.Sprintf("Unknown reaction %q", emoji), nil)
	}
	if err := uc.requireLive(ctx, streamID); err != nil {
		return err
	}

	if _, err := uc.store.Incr(ctx, streamKey(streamID, "likes:"+emoji)); err != nil {
		return err
	}
	total, err := uc.store.Incr(ctx, streamKey(streamID, "likes"))
	if err != nil {
		return err
	}

	uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventReactionNew, &ReactionPayload{
		StreamID:   streamID,
		UserID:     userID,
		Emoji:      emoji,
		TotalLikes: total,
	}, "")
	return nil
}

// Stats snapshots the stream's live counters.
func (uc *EngagementUsecase) Stats(ctx context.Context, streamID string) (*entity.StreamStats, error) {
	current, err := uc.store.GetInt(ctx, streamKey(streamID, "viewers:current"))
	if err != nil {
		return nil, err
	}
	peak, err := uc.store.GetInt(ctx, streamKey(streamID, "viewers:peak"))
	if err != nil {
		return nil, err
	}
	unique, err := uc.store.SCard(ctx, streamKey(streamID, "viewers:unique"))
	if err != nil {
		return nil, err
	}
	likes, err := uc.store.GetInt(ctx, streamKey(streamID, "likes"))
	if err != nil {
		return nil, err
	}
	chats, err := uc.store.GetInt(ctx, streamKey(streamID, "chats"))
	if err != nil {
		return nil, err
	}

	return &entity.StreamStats{
		StreamID:       streamID,
		CurrentViewers: current,
		PeakViewers:    peak,
		UniqueViewers:  unique,
		TotalLikes:     likes,
		ChatCount:      chats,
	}, nil
}

// RecentChat returns the stream's bounded chat buffer, newest first.
func (uc *EngagementUsecase) RecentChat(ctx context.Context, streamID string) ([]*entity.StreamChatMessage, error) {
	raw, err := uc.store.LRange(ctx, streamKey(streamID, "chat"), 0, int64(uc.chatSize)-1)
	if err != nil {
		return nil, err
	}

	messages := make([]*entity.StreamChatMessage, 0, len(raw))
	for _, item := range raw {
		var message entity.StreamChatMessage
		if err := json.Unmarshal([]byte(item), &message); err != nil {
			log.Printf("RecentChat: Skipping malformed chat entry for stream %s: %v", streamID, err)
			continue
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (uc *EngagementUsecase) GetStream(ctx context.Context, streamID string) (*entity.Stream, error) {
	return uc.streamRepo.GetByID(ctx, streamID)
}

// LiveStreams lists the IDs of currently live streams.
func (uc *EngagementUsecase) LiveStreams(ctx context.Context) ([]string, error) {
	return uc.store.SMembers(ctx, liveStreamsKey)
}

// StartStatsBroadcaster pushes a stream:stats snapshot to every live
// stream's room on an interval. A failed snapshot is logged and retried on
// the next tick.
func (uc *EngagementUsecase) StartStatsBroadcaster(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				uc.broadcastStats(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (uc *EngagementUsecase) broadcastStats(ctx context.Context) {
	streamIDs, err := uc.store.SMembers(ctx, liveStreamsKey)
	if err != nil {
		log.Printf("broadcastStats: Failed to list live streams: %v", err)
		return
	}

	for _, streamID := range streamIDs {
		stats, err := uc.Stats(ctx, streamID)
		if err != nil {
			log.Printf("broadcastStats: Failed to snapshot stream %s: %v", streamID, err)
			continue
		}
		uc.hub.Broadcast(realtime.StreamRoom(streamID), realtime.EventStreamStats, stats, "")
	}
}
