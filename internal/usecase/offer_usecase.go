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
	"jiranbackend/internal/domain/service"
	"jiranbackend/internal/infrastructure/ratelimit"
	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/errors"
)

type OfferUsecase struct {
	offerRepo   repository.OfferRepository
	productRepo repository.ProductRepository
	messaging   *MessagingUsecase
	trade       *service.TradeService
	hub         *realtime.Hub
	store       store.Store
	rateLimiter *ratelimit.RateLimiter
	offerTTL    time.Duration
	feedSize    int
}

func NewOfferUsecase(
	offerRepo repository.OfferRepository,
	productRepo repository.ProductRepository,
	messaging *MessagingUsecase,
	trade *service.TradeService,
	hub *realtime.Hub,
	st store.Store,
	rateLimiter *ratelimit.RateLimiter,
	offerTTL time.Duration,
	feedSize int,
) *OfferUsecase {
	return &OfferUsecase{
		offerRepo:   offerRepo,
		productRepo: productRepo,
		messaging:   messaging,
		trade:       trade,
		hub:         hub,
		store:       st,
		rateLimiter: rateLimiter,
		offerTTL:    offerTTL,
		feedSize:    feedSize,
	}
}

type CreateOfferInput struct {
	ProductID    string
	OfferedPrice float64
	Message      string
}

type CounterOfferInput struct {
	OfferID      string
	CounterPrice float64
}

func offerFeedKey(productID string) string {
	return "product:" + productID + ":offers"
}

// Create opens a negotiation: validates price and product, attaches the
// buyer-seller conversation, records the offer, and announces it on the
// product feed.
func (uc *OfferUsecase) Create(ctx context.Context, buyerID string, input CreateOfferInput) (*entity.Offer, error) {
	allowed, waitTime := uc.rateLimiter.Allow(buyerID, "create_offer")
	if !allowed {
		log.Printf("CreateOffer Rate Limited: User %s must wait %v", buyerID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before making another offer")
	}

	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, errors.NotFound("Product", err)
	}
	if buyerID == product.SellerID {
		return nil, errors.BadRequest("You cannot make an offer on your own product", nil)
	}
	if !product.Available() {
		return nil, errors.InvalidState("make an offer", product.Status)
	}
	if input.OfferedPrice <= 0 || input.OfferedPrice >= product.Price {
		return nil, errors.BadRequest("Offered price must be above zero and below the asking price", nil)
	}

	conversation, err := uc.messaging.findOrCreate(ctx, buyerID, product.SellerID, product.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	offer := &entity.Offer{
		ID:              uuid.New().String(),
		ProductID:       product.ID,
		BuyerID:         buyerID,
		SellerID:        product.SellerID,
		ConversationID:  conversation.ID,
		OfferedPrice:    input.OfferedPrice,
		OriginalPrice:   product.Price,
		Status:          entity.OfferStatusPending,
		RespondingParty: product.SellerID,
		ExpiresAt:       now.Add(uc.offerTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.offerRepo.Create(ctx, offer); err != nil {
		return nil, err
	}

	content := input.Message
	if content == "" {
		content = fmt.Sprintf("Offered %.2f for %s", input.OfferedPrice, product.Title)
	}
	if _, err := uc.messaging.SendMessage(ctx, buyerID, SendMessageInput{
		ConversationID: conversation.ID,
		Content:        content,
		Type:           entity.MessageTypeOffer,
		OfferID:        offer.ID,
	}); err != nil {
		log.Printf("CreateOffer: Failed to post offer message for offer %s: %v", offer.ID, err)
	}

	uc.pushFeedEntry(ctx, offer)
	uc.hub.Broadcast(realtime.ProductRoom(product.ID), realtime.EventOfferNew, offer, "")
	uc.hub.SendToUser(ctx, product.SellerID, realtime.EventOfferNew, offer,
		"New offer", fmt.Sprintf("%.2f offered on %s", input.OfferedPrice, product.Title),
		map[string]string{"offer_id": offer.ID, "product_id": product.ID})

	return offer, nil
}

// Accept closes the negotiation at the effective price. Only the responding
// party may accept; the durable side effects (product sold, transaction row)
// land before anyone hears about the acceptance.
func (uc *OfferUsecase) Accept(ctx context.Context, userID, offerID string) (*entity.Offer, error) {
	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Live() {
		return nil, errors.InvalidState("accept offer", offer.Status)
	}
	if userID != offer.RespondingParty {
		return nil, errors.Forbidden("It is not your turn to respond to this offer", nil)
	}

	fromStatus := offer.Status
	now := time.Now()
	offer.Status = entity.OfferStatusAccepted
	offer.RespondedAt = &now
	offer.UpdatedAt = now
	if err := uc.offerRepo.UpdateStatus(ctx, fromStatus, offer); err != nil {
		return nil, err
	}

	transaction, err := uc.trade.MarkProductSold(ctx, offer)
	if err != nil {
		// The offer is accepted; settlement has to be retried out of band.
		log.Printf("AcceptOffer: Offer %s accepted but settlement failed: %v", offer.ID, err)
		return nil, err
	}
	log.Printf("AcceptOffer: Offer %s settled as transaction %s", offer.ID, transaction.ID)

	uc.announceUpdate(ctx, userID, offer, "Offer accepted")
	return offer, nil
}

// Decline closes the negotiation without a sale.
func (uc *OfferUsecase) Decline(ctx context.Context, userID, offerID string) (*entity.Offer, error) {
	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Live() {
		return nil, errors.InvalidState("decline offer", offer.Status)
	}
	if userID != offer.RespondingParty {
		return nil, errors.Forbidden("It is not your turn to respond to this offer", nil)
	}

	fromStatus := offer.Status
	now := time.Now()
	offer.Status = entity.OfferStatusDeclined
	offer.RespondedAt = &now
	offer.UpdatedAt = now
	if err := uc.offerRepo.UpdateStatus(ctx, fromStatus, offer); err != nil {
		return nil, err
	}

	uc.announceUpdate(ctx, userID, offer, "Offer declined")
	return offer, nil
}

// Counter proposes a new price back. The negotiation stays live: the expiry
// window restarts and the other party becomes the one who must act.
func (uc *OfferUsecase) Counter(ctx context.Context, userID string, input CounterOfferInput) (*entity.Offer, error) {
	offer, err := uc.offerRepo.GetByID(ctx, input.OfferID)
	if err != nil {
		return nil, err
	}
	if !offer.Live() {
		return nil, errors.InvalidState("counter offer", offer.Status)
	}
	if userID != offer.RespondingParty {
		return nil, errors.Forbidden("It is not your turn to respond to this offer", nil)
	}
	if input.CounterPrice <= 0 {
		return nil, errors.BadRequest("Counter price must be above zero", nil)
	}

	fromStatus := offer.Status
	now := time.Now()
	offer.Status = entity.OfferStatusCountered
	offer.CounterPrice = input.CounterPrice
	offer.RespondingParty = offer.WaitingParty()
	offer.ExpiresAt = now.Add(uc.offerTTL)
	offer.RespondedAt = &now
	offer.UpdatedAt = now
	if err := uc.offerRepo.UpdateStatus(ctx, fromStatus, offer); err != nil {
		return nil, err
	}

	uc.announceUpdate(ctx, userID, offer, fmt.Sprintf("Countered at %.2f", input.CounterPrice))
	return offer, nil
}

// Cancel withdraws a pending offer. Only the buyer may cancel, and only
// before anyone responded.
func (uc *OfferUsecase) Cancel(ctx context.Context, userID, offerID string) (*entity.Offer, error) {
	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if userID != offer.BuyerID {
		return nil, errors.Forbidden("Only the buyer can cancel an offer", nil)
	}
	if offer.Status != entity.OfferStatusPending {
		return nil, errors.InvalidState("cancel offer", offer.Status)
	}

	now := time.Now()
	offer.Status = entity.OfferStatusCancelled
	offer.RespondedAt = &now
	offer.UpdatedAt = now
	if err := uc.offerRepo.UpdateStatus(ctx, entity.OfferStatusPending, offer); err != nil {
		return nil, err
	}

	uc.announceUpdate(ctx, userID, offer, "Offer cancelled")
	return offer, nil
}

func (uc *OfferUsecase) GetByID(ctx context.Context, userID, offerID string) (*entity.Offer, error) {
	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if userID != offer.BuyerID && userID != offer.SellerID {
		return nil, errors.Forbidden("You are not a party of this offer", nil)
	}
	return offer, nil
}

func (uc *OfferUsecase) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Offer, int64, error) {
	return uc.offerRepo.ListByUser(ctx, userID, limit, offset)
}

// SweepExpired transitions every overdue live offer to expired. A lost
// status race means someone responded first; that offer is simply skipped.
// One offer's failure never stops the pass.
func (uc *OfferUsecase) SweepExpired(ctx context.Context) int {
	offers, err := uc.offerRepo.ListExpiring(ctx, time.Now(), 100)
	if err != nil {
		log.Printf("SweepExpired: Failed to list expiring offers: %v", err)
		return 0
	}

	expired := 0
	for _, offer := range offers {
		fromStatus := offer.Status
		now := time.Now()
		offer.Status = entity.OfferStatusExpired
		offer.UpdatedAt = now
		if err := uc.offerRepo.UpdateStatus(ctx, fromStatus, offer); err != nil {
			if errors.Is(err, "INVALID_STATE") {
				// A response landed between the listing and the sweep.
				continue
			}
			log.Printf("SweepExpired: Failed to expire offer %s: %v", offer.ID, err)
			continue
		}
		expired++

		uc.pushFeedEntry(ctx, offer)
		uc.hub.Broadcast(realtime.ProductRoom(offer.ProductID), realtime.EventOfferUpdate, offer, "")
		uc.hub.SendToUser(ctx, offer.WaitingParty(), realtime.EventOfferUpdate, offer,
			"Offer expired", "Your offer expired without a response",
			map[string]string{"offer_id": offer.ID, "product_id": offer.ProductID})
	}
	if expired > 0 {
		log.Printf("SweepExpired: Expired %d offers", expired)
	}
	return expired
}

// StartSweeper expires overdue offers on an interval until ctx is done.
func (uc *OfferUsecase) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				uc.SweepExpired(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ProductFeed returns the product's rolling offer feed, newest first. The
// feed is presentational: bounded, lossy, rebuilt from nothing after a store
// restart.
func (uc *OfferUsecase) ProductFeed(ctx context.Context, productID string) ([]*entity.OfferEvent, error) {
	raw, err := uc.store.LRange(ctx, offerFeedKey(productID), 0, int64(uc.feedSize)-1)
	if err != nil {
		return nil, err
	}

	feed := make([]*entity.OfferEvent, 0, len(raw))
	for _, item := range raw {
		var event entity.OfferEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			log.Printf("ProductFeed: Skipping malformed feed entry for product %s: %v", productID, err)
			continue
		}
		feed = append(feed, &event)
	}
	return feed, nil
}

func (uc *OfferUsecase) pushFeedEntry(ctx context.Context, offer *entity.Offer) {
	event := entity.OfferEvent{
		OfferID:      offer.ID,
		ProductID:    offer.ProductID,
		BuyerID:      offer.BuyerID,
		OfferedPrice: offer.EffectivePrice(),
		Status:       offer.Status,
		CreatedAt:    time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("pushFeedEntry: Failed to marshal feed entry for offer %s: %v", offer.ID, err)
		return
	}
	if err := uc.store.LPushTrim(ctx, offerFeedKey(offer.ProductID), string(data), int64(uc.feedSize)); err != nil {
		log.Printf("pushFeedEntry: Failed to push feed entry for offer %s: %v", offer.ID, err)
	}
}

// announceUpdate posts the status change to the conversation, the product
// feed room, and the actor's counterparty.
func (uc *OfferUsecase) announceUpdate(ctx context.Context, actorID string, offer *entity.Offer, summary string) {
	if _, err := uc.messaging.SendMessage(ctx, actorID, SendMessageInput{
		ConversationID: offer.ConversationID,
		Content:        summary,
		Type:           entity.MessageTypeSystem,
		OfferID:        offer.ID,
	}); err != nil {
		log.Printf("announceUpdate: Failed to post system message for offer %s: %v", offer.ID, err)
	}

	counterparty := offer.SellerID
	if actorID == offer.SellerID {
		counterparty = offer.BuyerID
	}

	uc.pushFeedEntry(ctx, offer)
	uc.hub.Broadcast(realtime.ProductRoom(offer.ProductID), realtime.EventOfferUpdate, offer, "")
	uc.hub.SendToUser(ctx, counterparty, realtime.EventOfferUpdate, offer,
		"Offer update", summary,
		map[string]string{"offer_id": offer.ID, "product_id": offer.ProductID})
}
