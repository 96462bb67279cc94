package entity

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeOffer  = "offer"
	MessageTypeSystem = "system"
)

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	Type           string    `json:"type" firestore:"type"`
	Content        string    `json:"content" firestore:"content"`
	OfferID        string    `json:"offer_id,omitempty" firestore:"offerId,omitempty"` // set for offer-reference messages
	Read           bool      `json:"read" firestore:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}
