package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/pkg/errors"
)

type firestoreOfferRepository struct {
	client *firestore.Client
}

func NewFirestoreOfferRepository(client *firestore.Client) repository.OfferRepository {
	return &firestoreOfferRepository{
		client: client,
	}
}

func (r *firestoreOfferRepository) Create(ctx context.Context, offer *entity.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}

	now := time.Now()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}
	offer.UpdatedAt = now

	_, err := r.client.Collection("offers").Doc(offer.ID).Set(ctx, offer)
	if err != nil {
		return errors.Internal("Failed to create offer", err)
	}

	return nil
}

func (r *firestoreOfferRepository) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	doc, err := r.client.Collection("offers").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Offer", err)
		}
		return nil, errors.Internal("Failed to get offer", err)
	}

	var offer entity.Offer
	if err := doc.DataTo(&offer); err != nil {
		return nil, errors.Internal("Failed to parse offer data", err)
	}
	return &offer, nil
}

// UpdateStatus writes the new offer state only if the stored status still
// equals fromStatus. Running inside a transaction makes concurrent
// responses to the same offer resolve to exactly one winner.
func (r *firestoreOfferRepository) UpdateStatus(ctx context.Context, fromStatus string, updated *entity.Offer) error {
	docRef := r.client.Collection("offers").Doc(updated.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Offer", err)
			}
			return errors.Internal("Failed to get offer", err)
		}

		var current entity.Offer
		if err := doc.DataTo(&current); err != nil {
			return errors.Internal("Failed to parse offer data", err)
		}
		if current.Status != fromStatus {
			return errors.InvalidState("update offer", current.Status)
		}

		return tx.Set(docRef, updated)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return appErr
		}
		return errors.Internal("Failed to update offer status", err)
	}

	return nil
}

func (r *firestoreOfferRepository) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.Offer, int64, error) {
	query := r.client.Collection("offers").
		Where("productId", "==", productID).
		OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count offers", err)
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	var offers []*entity.Offer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate offers", err)
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return nil, 0, errors.Internal("Failed to parse offer data", err)
		}
		offers = append(offers, &offer)
	}

	return offers, total, nil
}

func (r *firestoreOfferRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Offer, int64, error) {
	var offers []*entity.Offer
	for _, field := range []string{"buyerId", "sellerId"} {
		iter := r.client.Collection("offers").Where(field, "==", userID).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, 0, errors.Internal("Failed to list offers", err)
			}

			var offer entity.Offer
			if err := doc.DataTo(&offer); err != nil {
				return nil, 0, errors.Internal("Failed to parse offer data", err)
			}
			offers = append(offers, &offer)
		}
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})

	total := int64(len(offers))
	if offset > 0 {
		if offset >= len(offers) {
			return []*entity.Offer{}, total, nil
		}
		offers = offers[offset:]
	}
	if limit > 0 && limit < len(offers) {
		offers = offers[:limit]
	}

	return offers, total, nil
}

func (r *firestoreOfferRepository) ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Offer, error) {
	query := r.client.Collection("offers").
		Where("status", "in", []string{entity.OfferStatusPending, entity.OfferStatusCountered}).
		Where("expiresAt", "<", cutoff)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var offers []*entity.Offer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list expiring offers", err)
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return nil, errors.Internal("Failed to parse offer data", err)
		}
		offers = append(offers, &offer)
	}

	return offers, nil
}
