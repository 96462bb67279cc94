package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/pkg/errors"
)

// TradeService settles an accepted negotiation: the product leaves the
// marketplace and a transaction row records the agreed price.
type TradeService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
}

func NewTradeService(productRepo repository.ProductRepository, transactionRepo repository.TransactionRepository) *TradeService {
	return &TradeService{
		productRepo:     productRepo,
		transactionRepo: transactionRepo,
	}
}

// MarkProductSold flips the product to sold and creates the transaction
// referencing the accepted offer. Returns the created transaction.
func (s *TradeService) MarkProductSold(ctx context.Context, offer *entity.Offer) (*entity.Transaction, error) {
	product, err := s.productRepo.GetByID(ctx, offer.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Status == entity.ProductStatusSold {
		return nil, errors.InvalidState("sell product", product.Status)
	}

	now := time.Now()
	product.Status = entity.ProductStatusSold
	product.UpdatedAt = now
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	transaction := &entity.Transaction{
		ID:        uuid.New().String(),
		ProductID: offer.ProductID,
		SellerID:  offer.SellerID,
		BuyerID:   offer.BuyerID,
		OfferID:   offer.ID,
		Amount:    offer.EffectivePrice(),
		Status:    "payment_pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.transactionRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	return transaction, nil
}
