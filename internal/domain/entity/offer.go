package entity

import "time"

const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusDeclined  = "declined"
	OfferStatusCountered = "countered"
	OfferStatusExpired   = "expired"
	OfferStatusCancelled = "cancelled"
)

// Offer is a price negotiation on a product. Only pending and countered
// offers are live; all other statuses are terminal.
type Offer struct {
	ID             string     `json:"id" firestore:"id"`
	ProductID      string     `json:"product_id" firestore:"productId"`
	BuyerID        string     `json:"buyer_id" firestore:"buyerId"`
	SellerID       string     `json:"seller_id" firestore:"sellerId"`
	ConversationID string     `json:"conversation_id" firestore:"conversationId"`
	OfferedPrice   float64    `json:"offered_price" firestore:"offeredPrice"`
	OriginalPrice  float64    `json:"original_price" firestore:"originalPrice"`
	CounterPrice   float64    `json:"counter_price,omitempty" firestore:"counterPrice,omitempty"`
	Status         string     `json:"status" firestore:"status"`
	// RespondingParty is the user who must act next. Seller for pending
	// offers, buyer after a counter. Kept explicit so repeated counters
	// never leave the "whose turn" question implicit.
	RespondingParty string     `json:"responding_party" firestore:"respondingParty"`
	ExpiresAt       time.Time  `json:"expires_at" firestore:"expiresAt"`
	RespondedAt     *time.Time `json:"responded_at,omitempty" firestore:"respondedAt,omitempty"`
	CreatedAt       time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// Live reports whether the offer can still transition.
func (o *Offer) Live() bool {
	return o.Status == OfferStatusPending || o.Status == OfferStatusCountered
}

// EffectivePrice is the price a buyer accepts: the seller's counter if one
// was made, otherwise the buyer's own offer. Keyed off CounterPrice rather
// than status, since the counter survives the transition to accepted.
func (o *Offer) EffectivePrice() float64 {
	if o.CounterPrice > 0 {
		return o.CounterPrice
	}
	return o.OfferedPrice
}

// WaitingParty is the participant waiting on the responding party, i.e. the
// one to notify when the offer expires.
func (o *Offer) WaitingParty() string {
	if o.RespondingParty == o.SellerID {
		return o.BuyerID
	}
	return o.SellerID
}

// OfferEvent is a compact entry for a product's rolling offer feed. Lossy and
// presentational; the Offer rows remain the record of negotiation history.
type OfferEvent struct {
	OfferID      string    `json:"offer_id"`
	ProductID    string    `json:"product_id"`
	BuyerID      string    `json:"buyer_id"`
	OfferedPrice float64   `json:"offered_price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
