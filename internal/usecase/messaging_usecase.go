package usecase

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/internal/infrastructure/ratelimit"
	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/errors"
)

// conversationLockTTL bounds how long a crashed creator can hold the
// find-or-create lock for a (buyer, seller, product) triple.
const (
	conversationLockTTL = 10 * time.Second

	// How long a lock loser polls for the winner's row before giving up.
	lockWaitAttempts = 5
	lockWaitInterval = 100 * time.Millisecond
)

type MessagingUsecase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	productRepo      repository.ProductRepository
	hub              *realtime.Hub
	store            store.Store
	rateLimiter      *ratelimit.RateLimiter
	typingTTL        time.Duration
}

func NewMessagingUsecase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	hub *realtime.Hub,
	st store.Store,
	rateLimiter *ratelimit.RateLimiter,
	typingTTL time.Duration,
) *MessagingUsecase {
	return &MessagingUsecase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		productRepo:      productRepo,
		hub:              hub,
		store:            st,
		rateLimiter:      rateLimiter,
		typingTTL:        typingTTL,
	}
}

type CreateConversationInput struct {
	SellerID       string
	ProductID      string
	InitialMessage string
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Type           string // "text", "image", "system", "offer"
	OfferID        string // set for offer-reference messages
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

func conversationLockKey(buyerID, sellerID, productID string) string {
	return "lock:conversation:" + buyerID + ":" + sellerID + ":" + productID
}

func typingKey(conversationID, userID string) string {
	return "typing:" + conversationID + ":" + userID
}

// CreateConversation finds or creates the conversation for the
// (buyer, seller, product) triple. Concurrent calls for the same triple
// converge on one conversation: a store lock serializes creators, and the
// loser of the lock re-reads what the winner wrote.
func (uc *MessagingUsecase) CreateConversation(ctx context.Context, buyerID string, input CreateConversationInput) (*entity.Conversation, error) {
	allowed, waitTime := uc.rateLimiter.Allow(buyerID, "create_conversation")
	if !allowed {
		log.Printf("CreateConversation Rate Limited: User %s must wait %v", buyerID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation")
	}

	if buyerID == input.SellerID {
		return nil, errors.BadRequest("You cannot start a conversation with yourself", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, input.SellerID); err != nil {
		return nil, errors.NotFound("Seller", err)
	}

	if input.ProductID != "" {
		product, err := uc.productRepo.GetByID(ctx, input.ProductID)
		if err != nil {
			return nil, errors.NotFound("Product", err)
		}
		if product.SellerID != input.SellerID {
			return nil, errors.BadRequest("Product does not belong to this seller", nil)
		}
	}

	conversation, err := uc.findOrCreate(ctx, buyerID, input.SellerID, input.ProductID)
	if err != nil {
		return nil, err
	}

	if input.InitialMessage != "" {
		if _, err := uc.SendMessage(ctx, buyerID, SendMessageInput{
			ConversationID: conversation.ID,
			Content:        input.InitialMessage,
			Type:           entity.MessageTypeText,
		}); err != nil {
			log.Printf("CreateConversation: Failed to send initial message for conversation %s: %v", conversation.ID, err)
			return nil, err
		}
		// Re-read so the returned conversation carries the message pointer
		// SendMessage just wrote.
		conversation, err = uc.conversationRepo.GetByID(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
	}

	return conversation, nil
}

func (uc *MessagingUsecase) findOrCreate(ctx context.Context, buyerID, sellerID, productID string) (*entity.Conversation, error) {
	existing, err := uc.conversationRepo.GetByTriple(ctx, buyerID, sellerID, productID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	lockKey := conversationLockKey(buyerID, sellerID, productID)
	won, err := uc.store.SetNX(ctx, lockKey, buyerID, conversationLockTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another request is creating this conversation right now. Poll
		// for its row so the caller gets the winner's id, not an error.
		for attempt := 0; attempt < lockWaitAttempts; attempt++ {
			time.Sleep(lockWaitInterval)
			existing, err := uc.conversationRepo.GetByTriple(ctx, buyerID, sellerID, productID)
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, "NOT_FOUND") {
				return nil, err
			}
		}
		return nil, errors.Conflict("Conversation is being created, retry")
	}
	defer func() {
		if err := uc.store.Del(ctx, lockKey); err != nil {
			log.Printf("findOrCreate: Failed to release lock %s: %v", lockKey, err)
		}
	}()

	// Double-check inside the lock: the previous holder may have created it
	// between our lookup and our lock.
	existing, err = uc.conversationRepo.GetByTriple(ctx, buyerID, sellerID, productID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	now := time.Now()
	conversation := &entity.Conversation{
		ID:            uuid.New().String(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		UnreadCount:   make(map[string]int),
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// SendMessage appends a message, advances the conversation's last-message
// pointer and the recipient's unread counter, and fans the message out.
func (uc *MessagingUsecase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		log.Printf("SendMessage Rate Limited: User %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please slow down")
	}

	if input.Content == "" {
		return nil, errors.BadRequest("Message content cannot be empty", nil)
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}

	messageType := input.Type
	if messageType == "" {
		messageType = entity.MessageTypeText
	}

	now := time.Now()
	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversation.ID,
		SenderID:       senderID,
		Type:           messageType,
		Content:        input.Content,
		OfferID:        input.OfferID,
		CreatedAt:      now,
	}
	if err := uc.conversationRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	recipientID := conversation.OtherParticipant(senderID)
	if err := uc.conversationRepo.Mutate(ctx, conversation.ID, func(current *entity.Conversation) error {
		// Concurrent sends both land here in turn; a stale pointer never
		// masks a newer message.
		if !now.Before(current.LastMessageAt) {
			current.LastMessage = input.Content
			current.LastMessageAt = now
		}
		if current.UnreadCount == nil {
			current.UnreadCount = make(map[string]int)
		}
		current.UnreadCount[recipientID]++
		// A new message surfaces the conversation for a recipient who had
		// archived it.
		if current.ArchivedFor(recipientID) {
			current.Archived[recipientID] = false
		}
		return nil
	}); err != nil {
		return nil, err
	}

	uc.hub.Broadcast(realtime.ConversationRoom(conversation.ID), realtime.EventMessageNew, message, "")
	uc.hub.SendToUser(ctx, recipientID, realtime.EventMessageNew, message,
		"New message", truncate(input.Content, 80),
		map[string]string{"conversation_id": conversation.ID})

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		log.Printf("SendMessage: Failed to load sender %s: %v", senderID, err)
		sender = nil
	}

	return &MessageResponse{Message: message, Sender: sender}, nil
}

type ReadReceipt struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	MessagesRead   int    `json:"messages_read"`
}

// MarkRead zeroes the reader's unread counter, flips the read flag on every
// message the counterparty sent, and tells the room.
func (uc *MessagingUsecase) MarkRead(ctx context.Context, readerID, conversationID string) (*ReadReceipt, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(readerID) {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}

	flipped, err := uc.conversationRepo.MarkMessagesRead(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}

	if err := uc.conversationRepo.Mutate(ctx, conversationID, func(current *entity.Conversation) error {
		if current.UnreadCount == nil {
			current.UnreadCount = make(map[string]int)
		}
		current.UnreadCount[readerID] = 0
		return nil
	}); err != nil {
		return nil, err
	}

	receipt := &ReadReceipt{
		ConversationID: conversationID,
		ReaderID:       readerID,
		MessagesRead:   flipped,
	}
	uc.hub.Broadcast(realtime.ConversationRoom(conversationID), realtime.EventMessageRead, receipt, "")
	return receipt, nil
}

type TypingNotice struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Typing flags the user as typing in the conversation. The marker carries a
// TTL so a vanished client stops "typing" on its own.
func (uc *MessagingUsecase) Typing(ctx context.Context, userID, conversationID string, active bool) error {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	if !allowed {
		return errors.TooManyRequests("Too many typing events")
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this conversation", nil)
	}

	notice := &TypingNotice{
		ConversationID: conversationID,
		UserID:         userID,
		Active:         active,
	}
	if active {
		expiresAt := time.Now().Add(uc.typingTTL)
		notice.ExpiresAt = &expiresAt
		if err := uc.store.Set(ctx, typingKey(conversationID, userID), "1", uc.typingTTL); err != nil {
			return err
		}
	} else {
		if err := uc.store.Del(ctx, typingKey(conversationID, userID)); err != nil {
			return err
		}
	}

	uc.hub.Broadcast(realtime.ConversationRoom(conversationID), realtime.EventTyping, notice, "")
	return nil
}

// TypingUsers returns the participants whose typing marker is still live.
func (uc *MessagingUsecase) TypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var typing []string
	for _, participantID := range conversation.Participants() {
		_, ok, err := uc.store.Get(ctx, typingKey(conversationID, participantID))
		if err != nil {
			return nil, err
		}
		if ok {
			typing = append(typing, participantID)
		}
	}
	return typing, nil
}

// ArchiveConversation hides the conversation from the user's list until the
// counterparty writes again.
func (uc *MessagingUsecase) ArchiveConversation(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this conversation", nil)
	}

	return uc.conversationRepo.Mutate(ctx, conversationID, func(current *entity.Conversation) error {
		if current.Archived == nil {
			current.Archived = make(map[string]bool)
		}
		current.Archived[userID] = true
		return nil
	})
}

func (uc *MessagingUsecase) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	return uc.conversationRepo.ListByUserID(ctx, userID, limit, offset)
}

func (uc *MessagingUsecase) GetConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return conversation, nil
}

func (uc *MessagingUsecase) ListMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return uc.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
}

// AuthorizeConversationRoom gates join_room requests for conversation rooms.
func (uc *MessagingUsecase) AuthorizeConversationRoom(ctx context.Context, userID, conversationID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant of this conversation", nil)
	}
	return nil
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// NotifyPresence tells every conversation the user participates in that the
// user came online or went offline. Wired as the registry's presence hook.
func (uc *MessagingUsecase) NotifyPresence(ctx context.Context, userID string, online bool) {
	conversations, _, err := uc.conversationRepo.ListByUserID(ctx, userID, 100, 0)
	if err != nil {
		log.Printf("NotifyPresence: Failed to list conversations for user %s: %v", userID, err)
		return
	}

	event := realtime.EventUserOffline
	if online {
		event = realtime.EventUserOnline
	}
	payload := &PresencePayload{UserID: userID, Online: online}
	for _, conversation := range conversations {
		uc.hub.Broadcast(realtime.ConversationRoom(conversation.ID), event, payload, "")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
