package entity

import "time"

const (
	ProductStatusAvailable = "available"
	ProductStatusReserved  = "reserved"
	ProductStatusSold      = "sold"
)

type Product struct {
	ID          string     `json:"id" firestore:"id"`
	SellerID    string     `json:"seller_id" firestore:"sellerId"`
	Title       string     `json:"title" firestore:"title"`
	Description string     `json:"description" firestore:"description"`
	Price       float64    `json:"price" firestore:"price"`
	Status      string     `json:"status" firestore:"status"`
	CreatedAt   time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updatedAt"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" firestore:"deletedAt,omitempty"`
}

func (p *Product) Available() bool {
	return p.Status == ProductStatusAvailable && p.DeletedAt == nil
}
