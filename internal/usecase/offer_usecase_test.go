package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/service"
	"jiranbackend/internal/infrastructure/ratelimit"
	"jiranbackend/pkg/errors"
)

type offerEnv struct {
	*testEnv
	offerRepo       *fakeOfferRepo
	transactionRepo *fakeTransactionRepo
	offers          *OfferUsecase
}

func newOfferEnv(feedSize int, userIDs []string, products ...*entity.Product) *offerEnv {
	base := newTestEnv(userIDs, products...)
	offerRepo := newFakeOfferRepo()
	transactionRepo := newFakeTransactionRepo()
	trade := service.NewTradeService(base.productRepo, transactionRepo)
	offers := NewOfferUsecase(offerRepo, base.productRepo, base.messaging, trade,
		base.hub, base.store, ratelimit.NewRateLimiter(), 24*time.Hour, feedSize)
	return &offerEnv{
		testEnv:         base,
		offerRepo:       offerRepo,
		transactionRepo: transactionRepo,
		offers:          offers,
	}
}

func (env *offerEnv) makeOffer(t *testing.T, buyerID, productID string, price float64) *entity.Offer {
	t.Helper()
	offer, err := env.offers.Create(context.Background(), buyerID, CreateOfferInput{
		ProductID:    productID,
		OfferedPrice: price,
	})
	require.NoError(t, err)
	return offer
}

func TestCreateOfferValidations(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100),
		&entity.Product{ID: "product-2", SellerID: "seller-1", Title: "Gone", Price: 50, Status: entity.ProductStatusSold})
	ctx := context.Background()

	_, err := env.offers.Create(ctx, "buyer-1", CreateOfferInput{ProductID: "ghost", OfferedPrice: 10})
	assert.True(t, errors.Is(err, "NOT_FOUND"))

	_, err = env.offers.Create(ctx, "seller-1", CreateOfferInput{ProductID: "product-1", OfferedPrice: 80})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = env.offers.Create(ctx, "buyer-1", CreateOfferInput{ProductID: "product-2", OfferedPrice: 40})
	assert.True(t, errors.Is(err, "INVALID_STATE"))

	_, err = env.offers.Create(ctx, "buyer-1", CreateOfferInput{ProductID: "product-1", OfferedPrice: 0})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = env.offers.Create(ctx, "buyer-1", CreateOfferInput{ProductID: "product-1", OfferedPrice: 100})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestCreateOfferOpensConversation(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 80)
	assert.Equal(t, entity.OfferStatusPending, offer.Status)
	assert.Equal(t, "seller-1", offer.RespondingParty)
	assert.Equal(t, float64(100), offer.OriginalPrice)
	require.NotEmpty(t, offer.ConversationID)

	messages, _, err := env.messaging.ListMessages(ctx, "buyer-1", offer.ConversationID, 20, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, entity.MessageTypeOffer, messages[0].Type)
	assert.Equal(t, offer.ID, messages[0].OfferID)

	feed, err := env.offers.ProductFeed(ctx, "product-1")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, offer.ID, feed[0].OfferID)
	assert.Equal(t, entity.OfferStatusPending, feed[0].Status)
}

func TestAcceptSettlesAtOfferedPrice(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 80)

	accepted, err := env.offers.Accept(ctx, "seller-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	product, err := env.productRepo.GetByID(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ProductStatusSold, product.Status)

	transactions := env.transactionRepo.all()
	require.Len(t, transactions, 1)
	assert.Equal(t, offer.ID, transactions[0].OfferID)
	assert.Equal(t, float64(80), transactions[0].Amount)
}

func TestAcceptOnlyByRespondingParty(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))

	offer := env.makeOffer(t, "buyer-1", "product-1", 80)

	_, err := env.offers.Accept(context.Background(), "buyer-1", offer.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestDeclineIsTerminal(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 80)

	declined, err := env.offers.Decline(ctx, "seller-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusDeclined, declined.Status)

	_, err = env.offers.Accept(ctx, "seller-1", offer.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))
	_, err = env.offers.Counter(ctx, "seller-1", CounterOfferInput{OfferID: offer.ID, CounterPrice: 90})
	assert.True(t, errors.Is(err, "INVALID_STATE"))

	// Declining leaves the product on the market.
	product, err := env.productRepo.GetByID(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ProductStatusAvailable, product.Status)
}

func TestCounterFlipsTurnAndResetsExpiry(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 70)
	originalExpiry := offer.ExpiresAt

	countered, err := env.offers.Counter(ctx, "seller-1", CounterOfferInput{OfferID: offer.ID, CounterPrice: 85})
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusCountered, countered.Status)
	assert.Equal(t, float64(85), countered.CounterPrice)
	assert.Equal(t, "buyer-1", countered.RespondingParty)
	assert.False(t, countered.ExpiresAt.Before(originalExpiry))

	// The seller just countered; it is the buyer's turn now.
	_, err = env.offers.Accept(ctx, "seller-1", offer.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	accepted, err := env.offers.Accept(ctx, "buyer-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusAccepted, accepted.Status)

	transactions := env.transactionRepo.all()
	require.Len(t, transactions, 1)
	assert.Equal(t, float64(85), transactions[0].Amount)
}

func TestCancelBuyerOnlyAndPendingOnly(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 70)

	_, err := env.offers.Cancel(ctx, "seller-1", offer.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	cancelled, err := env.offers.Cancel(ctx, "buyer-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusCancelled, cancelled.Status)

	second := env.makeOffer(t, "buyer-1", "product-1", 75)
	_, err = env.offers.Counter(ctx, "seller-1", CounterOfferInput{OfferID: second.ID, CounterPrice: 90})
	require.NoError(t, err)

	// A countered offer is past the point of unilateral withdrawal.
	_, err = env.offers.Cancel(ctx, "buyer-1", second.ID)
	assert.True(t, errors.Is(err, "INVALID_STATE"))
}

func TestGetByIDPartyGated(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1", "lurker"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 70)

	_, err := env.offers.GetByID(ctx, "buyer-1", offer.ID)
	require.NoError(t, err)
	_, err = env.offers.GetByID(ctx, "seller-1", offer.ID)
	require.NoError(t, err)
	_, err = env.offers.GetByID(ctx, "lurker", offer.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSweepExpiredIsExactlyOnce(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "buyer-2", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	stale := env.makeOffer(t, "buyer-1", "product-1", 70)
	fresh := env.makeOffer(t, "buyer-2", "product-1", 75)
	env.offerRepo.setExpiry(stale.ID, time.Now().Add(-time.Minute))

	assert.Equal(t, 1, env.offers.SweepExpired(ctx))

	got, err := env.offers.GetByID(ctx, "buyer-1", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusExpired, got.Status)

	got, err = env.offers.GetByID(ctx, "buyer-2", fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusPending, got.Status)

	// Second pass finds nothing left to expire.
	assert.Equal(t, 0, env.offers.SweepExpired(ctx))
}

func TestSweepSkipsSettledOffer(t *testing.T) {
	env := newOfferEnv(20, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	offer := env.makeOffer(t, "buyer-1", "product-1", 70)
	env.offerRepo.setExpiry(offer.ID, time.Now().Add(-time.Minute))

	// Acceptance can land after the deadline but before the sweep runs.
	_, err := env.offers.Accept(ctx, "seller-1", offer.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, env.offers.SweepExpired(ctx))
	got, err := env.offers.GetByID(ctx, "buyer-1", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusAccepted, got.Status)
}

func TestProductFeedIsBounded(t *testing.T) {
	env := newOfferEnv(3, []string{"buyer-1", "seller-1"},
		availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	var last *entity.Offer
	for i := 0; i < 5; i++ {
		last = env.makeOffer(t, "buyer-1", "product-1", float64(50+i))
	}

	feed, err := env.offers.ProductFeed(ctx, "product-1")
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, last.ID, feed[0].OfferID) // newest first
}
