package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/pkg/errors"
)

// In-memory repository fakes mirroring the Firestore adapters' semantics.

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message // conversationID -> messages
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func (r *fakeConversationRepo) Create(_ context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *conversation
	r.conversations[conversation.ID] = &clone
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	clone := *conversation
	return &clone, nil
}

func (r *fakeConversationRepo) GetByTriple(_ context.Context, buyerID, sellerID, productID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conversation := range r.conversations {
		if conversation.BuyerID == buyerID && conversation.SellerID == sellerID && conversation.ProductID == productID {
			if conversation.ArchivedFor(buyerID) && conversation.ArchivedFor(sellerID) {
				continue
			}
			clone := *conversation
			return &clone, nil
		}
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *fakeConversationRepo) Update(_ context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conversation.ID]; !ok {
		return errors.NotFound("Conversation", nil)
	}
	clone := *conversation
	r.conversations[conversation.ID] = &clone
	return nil
}

func (r *fakeConversationRepo) Mutate(_ context.Context, id string, fn func(conversation *entity.Conversation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	clone := *conversation
	if err := fn(&clone); err != nil {
		return err
	}
	clone.UpdatedAt = time.Now()
	r.conversations[id] = &clone
	return nil
}

func (r *fakeConversationRepo) ListByUserID(_ context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Conversation
	for _, conversation := range r.conversations {
		if conversation.HasParticipant(userID) {
			clone := *conversation
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})
	total := int64(len(result))
	if offset > 0 {
		if offset >= len(result) {
			return nil, total, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

func (r *fakeConversationRepo) CreateMessage(_ context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *message
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], &clone)
	return nil
}

func (r *fakeConversationRepo) ListMessages(_ context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := r.messages[conversationID]
	result := make([]*entity.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- { // newest first
		clone := *messages[i]
		result = append(result, &clone)
	}
	total := int64(len(result))
	if offset > 0 {
		if offset >= len(result) {
			return nil, total, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

func (r *fakeConversationRepo) MarkMessagesRead(_ context.Context, conversationID, readerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	flipped := 0
	for _, message := range r.messages[conversationID] {
		if message.Read || message.SenderID == readerID {
			continue
		}
		message.Read = true
		message.ReadAt = &now
		flipped++
	}
	return flipped, nil
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[string]*entity.Offer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[string]*entity.Offer)}
}

func (r *fakeOfferRepo) Create(_ context.Context, offer *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *offer
	r.offers[offer.ID] = &clone
	return nil
}

func (r *fakeOfferRepo) GetByID(_ context.Context, id string) (*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[id]
	if !ok {
		return nil, errors.NotFound("Offer", nil)
	}
	clone := *offer
	return &clone, nil
}

func (r *fakeOfferRepo) UpdateStatus(_ context.Context, fromStatus string, updated *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.offers[updated.ID]
	if !ok {
		return errors.NotFound("Offer", nil)
	}
	if current.Status != fromStatus {
		return errors.InvalidState("update offer", current.Status)
	}
	clone := *updated
	r.offers[updated.ID] = &clone
	return nil
}

func (r *fakeOfferRepo) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.Offer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Offer
	for _, offer := range r.offers {
		if offer.ProductID == productID {
			clone := *offer
			result = append(result, &clone)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeOfferRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*entity.Offer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Offer
	for _, offer := range r.offers {
		if offer.BuyerID == userID || offer.SellerID == userID {
			clone := *offer
			result = append(result, &clone)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeOfferRepo) ListExpiring(_ context.Context, cutoff time.Time, limit int) ([]*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Offer
	for _, offer := range r.offers {
		if offer.Live() && offer.ExpiresAt.Before(cutoff) {
			clone := *offer
			result = append(result, &clone)
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// setExpiry backdates an offer directly, bypassing the CAS.
func (r *fakeOfferRepo) setExpiry(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer, ok := r.offers[id]; ok {
		offer.ExpiresAt = expiresAt
	}
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*entity.Product
}

func newFakeProductRepo(products ...*entity.Product) *fakeProductRepo {
	repo := &fakeProductRepo{products: make(map[string]*entity.Product)}
	for _, product := range products {
		clone := *product
		repo.products[product.ID] = &clone
	}
	return repo
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok || product.DeletedAt != nil {
		return nil, errors.NotFound("Product", nil)
	}
	clone := *product
	return &clone, nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.ID]; !ok {
		return errors.NotFound("Product", nil)
	}
	clone := *product
	r.products[product.ID] = &clone
	return nil
}

type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]*entity.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{transactions: make(map[string]*entity.Transaction)}
}

func (r *fakeTransactionRepo) Create(_ context.Context, transaction *entity.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *transaction
	r.transactions[transaction.ID] = &clone
	return nil
}

func (r *fakeTransactionRepo) GetByID(_ context.Context, id string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	transaction, ok := r.transactions[id]
	if !ok {
		return nil, errors.NotFound("Transaction", nil)
	}
	clone := *transaction
	return &clone, nil
}

func (r *fakeTransactionRepo) all() []*entity.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Transaction
	for _, transaction := range r.transactions {
		clone := *transaction
		result = append(result, &clone)
	}
	return result
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func newFakeUserRepo(ids ...string) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, id := range ids {
		repo.users[id] = &entity.User{ID: id, Username: id}
	}
	return repo
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	clone := *user
	return &clone, nil
}

type fakeStreamRepo struct {
	mu      sync.Mutex
	streams map[string]*entity.Stream
}

func newFakeStreamRepo() *fakeStreamRepo {
	return &fakeStreamRepo{streams: make(map[string]*entity.Stream)}
}

func (r *fakeStreamRepo) Create(_ context.Context, stream *entity.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *stream
	r.streams[stream.ID] = &clone
	return nil
}

func (r *fakeStreamRepo) GetByID(_ context.Context, id string) (*entity.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stream, ok := r.streams[id]
	if !ok {
		return nil, errors.NotFound("Stream", nil)
	}
	clone := *stream
	return &clone, nil
}

func (r *fakeStreamRepo) Update(_ context.Context, stream *entity.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[stream.ID]; !ok {
		return errors.NotFound("Stream", nil)
	}
	clone := *stream
	r.streams[stream.ID] = &clone
	return nil
}

var (
	_ repository.ConversationRepository = (*fakeConversationRepo)(nil)
	_ repository.OfferRepository        = (*fakeOfferRepo)(nil)
	_ repository.ProductRepository      = (*fakeProductRepo)(nil)
	_ repository.TransactionRepository  = (*fakeTransactionRepo)(nil)
	_ repository.UserRepository         = (*fakeUserRepo)(nil)
	_ repository.StreamRepository       = (*fakeStreamRepo)(nil)
)
