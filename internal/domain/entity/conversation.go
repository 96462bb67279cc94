package entity

import "time"

// Conversation ties a buyer and a seller together, optionally around a
// product. At most one non-archived conversation exists per
// (buyer, seller, product) triple.
type Conversation struct {
	ID            string          `json:"id" firestore:"id"`
	BuyerID       string          `json:"buyer_id" firestore:"buyerId"`
	SellerID      string          `json:"seller_id" firestore:"sellerId"`
	ProductID     string          `json:"product_id,omitempty" firestore:"productId,omitempty"`
	LastMessage   string          `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount   map[string]int  `json:"unread_count" firestore:"unreadCount"` // userID -> unread messages
	Archived      map[string]bool `json:"archived,omitempty" firestore:"archived,omitempty"`
	CreatedAt     time.Time       `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time       `json:"updated_at" firestore:"updatedAt"`
}

func (c *Conversation) Participants() []string {
	return []string{c.BuyerID, c.SellerID}
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// OtherParticipant returns the counterparty of userID, or "" if userID is not
// a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.BuyerID:
		return c.SellerID
	case c.SellerID:
		return c.BuyerID
	}
	return ""
}

func (c *Conversation) ArchivedFor(userID string) bool {
	return c.Archived != nil && c.Archived[userID]
}
