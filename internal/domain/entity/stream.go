package entity

import "time"

const (
	StreamStatusLive  = "live"
	StreamStatusEnded = "ended"
)

type Stream struct {
	ID        string     `json:"id" firestore:"id"`
	HostID    string     `json:"host_id" firestore:"hostId"`
	ProductID string     `json:"product_id,omitempty" firestore:"productId,omitempty"`
	Title     string     `json:"title" firestore:"title"`
	Status    string     `json:"status" firestore:"status"`
	StartedAt time.Time  `json:"started_at" firestore:"startedAt"`
	EndedAt   *time.Time `json:"ended_at,omitempty" firestore:"endedAt,omitempty"`

	// Aggregates written once on finalize; live values stay in the shared
	// store while the stream runs.
	PeakViewers   int64 `json:"peak_viewers" firestore:"peakViewers"`
	UniqueViewers int64 `json:"unique_viewers" firestore:"uniqueViewers"`
	TotalLikes    int64 `json:"total_likes" firestore:"totalLikes"`
	ChatCount     int64 `json:"chat_count" firestore:"chatCount"`
}

// StreamStats is the snapshot returned by finalize and by the periodic
// stats broadcast.
type StreamStats struct {
	StreamID       string `json:"stream_id"`
	CurrentViewers int64  `json:"current_viewers"`
	PeakViewers    int64  `json:"peak_viewers"`
	UniqueViewers  int64  `json:"unique_viewers"`
	TotalLikes     int64  `json:"total_likes"`
	ChatCount      int64  `json:"chat_count"`
}

// StreamChatMessage lives only in the stream's bounded recent-chat buffer.
type StreamChatMessage struct {
	StreamID  string    `json:"stream_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
