package repository

import (
	"context"
	"time"

	"jiranbackend/internal/domain/entity"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *entity.Offer) error
	GetByID(ctx context.Context, id string) (*entity.Offer, error)
	// UpdateStatus transitions the offer to updated.Status only if its
	// current status is still fromStatus. On a lost race it returns an
	// INVALID_STATE error carrying the status found instead. This is the
	// compare-and-swap that keeps transitions on one offer linearizable.
	UpdateStatus(ctx context.Context, fromStatus string, updated *entity.Offer) error
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.Offer, int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Offer, int64, error)
	// ListExpiring returns live (pending/countered) offers whose expiry
	// precedes cutoff.
	ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Offer, error)
}
