package entity

import "time"

type Transaction struct {
	ID        string    `json:"id" firestore:"id"`
	ProductID string    `json:"product_id" firestore:"productId"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	BuyerID   string    `json:"buyer_id" firestore:"buyerId"`
	OfferID   string    `json:"offer_id,omitempty" firestore:"offerId,omitempty"`
	Amount    float64   `json:"amount" firestore:"amount"`
	Status    string    `json:"status" firestore:"status"` // payment_pending, completed, cancelled
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
