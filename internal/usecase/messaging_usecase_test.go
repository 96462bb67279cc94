package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/infrastructure/ratelimit"
	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/errors"
)

type mapVerifier struct {
	users map[string]string // token -> userID
}

func (v *mapVerifier) Verify(_ context.Context, credential string) (string, error) {
	userID, ok := v.users[credential]
	if !ok {
		return "", errors.InvalidCredential(nil)
	}
	return userID, nil
}

type recordingPush struct {
	notified []string // userIDs
}

func (p *recordingPush) Notify(_ context.Context, userID, _, _ string, _ map[string]string) {
	p.notified = append(p.notified, userID)
}

type testEnv struct {
	store            store.Store
	registry         *realtime.Registry
	hub              *realtime.Hub
	push             *recordingPush
	conversationRepo *fakeConversationRepo
	userRepo         *fakeUserRepo
	productRepo      *fakeProductRepo
	messaging        *MessagingUsecase
}

func newTestEnv(userIDs []string, products ...*entity.Product) *testEnv {
	st := store.NewMemoryStore()
	registry := realtime.NewRegistry(st, &mapVerifier{users: map[string]string{}})
	push := &recordingPush{}
	hub := realtime.NewHub(registry, st, push)

	conversationRepo := newFakeConversationRepo()
	userRepo := newFakeUserRepo(userIDs...)
	productRepo := newFakeProductRepo(products...)
	messaging := NewMessagingUsecase(conversationRepo, userRepo, productRepo,
		hub, st, ratelimit.NewRateLimiter(), 5*time.Second)

	return &testEnv{
		store:            st,
		registry:         registry,
		hub:              hub,
		push:             push,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		productRepo:      productRepo,
		messaging:        messaging,
	}
}

// connect registers an in-process client for userID so broadcasts can be
// observed on its send channel.
func (env *testEnv) connect(t *testing.T, sessionID, userID string) *realtime.Client {
	t.Helper()
	client := realtime.NewClient(sessionID, userID, nil)
	require.NoError(t, env.registry.Register(context.Background(), client))
	return client
}

func drainEvents(client *realtime.Client) []realtime.Event {
	var events []realtime.Event
	for {
		select {
		case data := <-client.Send:
			var event realtime.Event
			if err := json.Unmarshal(data, &event); err == nil {
				events = append(events, event)
			}
		default:
			return events
		}
	}
}

func eventTypes(events []realtime.Event) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}

func availableProduct(id, sellerID string, price float64) *entity.Product {
	return &entity.Product{
		ID:       id,
		SellerID: sellerID,
		Title:    "Product " + id,
		Price:    price,
		Status:   entity.ProductStatusAvailable,
	}
}

func TestCreateConversationReusesTriple(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"}, availableProduct("product-1", "seller-1", 100))
	ctx := context.Background()

	first, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{
		SellerID:  "seller-1",
		ProductID: "product-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{
		SellerID:  "seller-1",
		ProductID: "product-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateConversationLockLoserGetsWinnersRow(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	// Another request holds the creation lock for this triple.
	won, err := env.store.SetNX(ctx, conversationLockKey("buyer-1", "seller-1", ""), "buyer-1", conversationLockTTL)
	require.NoError(t, err)
	require.True(t, won)

	// The lock holder finishes slower than one poll interval.
	winner := &entity.Conversation{
		ID:            "conversation-winner",
		BuyerID:       "buyer-1",
		SellerID:      "seller-1",
		UnreadCount:   make(map[string]int),
		LastMessageAt: time.Now(),
		CreatedAt:     time.Now(),
	}
	go func() {
		time.Sleep(250 * time.Millisecond)
		_ = env.conversationRepo.Create(context.Background(), winner)
	}()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)
	assert.Equal(t, "conversation-winner", conversation.ID)
}

func TestCreateConversationLockLoserConflictsWhenWinnerStalls(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	won, err := env.store.SetNX(ctx, conversationLockKey("buyer-1", "seller-1", ""), "buyer-1", conversationLockTTL)
	require.NoError(t, err)
	require.True(t, won)

	_, err = env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestCreateConversationRejectsSelf(t *testing.T) {
	env := newTestEnv([]string{"buyer-1"})

	_, err := env.messaging.CreateConversation(context.Background(), "buyer-1", CreateConversationInput{
		SellerID: "buyer-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestCreateConversationChecksProductOwnership(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1", "seller-2"},
		availableProduct("product-1", "seller-2", 100))

	_, err := env.messaging.CreateConversation(context.Background(), "buyer-1", CreateConversationInput{
		SellerID:  "seller-1",
		ProductID: "product-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestCreateConversationUnknownSeller(t *testing.T) {
	env := newTestEnv([]string{"buyer-1"})

	_, err := env.messaging.CreateConversation(context.Background(), "buyer-1", CreateConversationInput{
		SellerID: "ghost",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestCreateConversationSendsInitialMessage(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{
		SellerID:       "seller-1",
		InitialMessage: "Hi, is this still available?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, is this still available?", conversation.LastMessage)
	assert.Equal(t, 1, conversation.UnreadCount["seller-1"])

	messages, total, err := env.messaging.ListMessages(ctx, "buyer-1", conversation.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "buyer-1", messages[0].SenderID)
}

func TestSendMessageUpdatesUnreadAndMarkReadResets(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := env.messaging.SendMessage(ctx, "buyer-1", SendMessageInput{
			ConversationID: conversation.ID,
			Content:        "ping",
		})
		require.NoError(t, err)
	}

	got, err := env.messaging.GetConversation(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnreadCount["seller-1"])
	assert.Equal(t, "ping", got.LastMessage)

	receipt, err := env.messaging.MarkRead(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.MessagesRead)

	got, err = env.messaging.GetConversation(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount["seller-1"])
}

func TestConcurrentSendsLoseNoIncrements(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	const sends = 5
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := env.messaging.SendMessage(ctx, "buyer-1", SendMessageInput{
				ConversationID: conversation.ID,
				Content:        fmt.Sprintf("msg %d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	close(start)
	wg.Wait()

	got, err := env.messaging.GetConversation(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, sends, got.UnreadCount["seller-1"])

	_, total, err := env.messaging.ListMessages(ctx, "seller-1", conversation.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(sends), total)
}

func TestSendMessageRejectsOutsider(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1", "lurker"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	_, err = env.messaging.SendMessage(ctx, "lurker", SendMessageInput{
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	_, err = env.messaging.SendMessage(ctx, "buyer-1", SendMessageInput{ConversationID: conversation.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageUnarchivesRecipient(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	require.NoError(t, env.messaging.ArchiveConversation(ctx, "seller-1", conversation.ID))
	got, err := env.messaging.GetConversation(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.True(t, got.ArchivedFor("seller-1"))

	_, err = env.messaging.SendMessage(ctx, "buyer-1", SendMessageInput{
		ConversationID: conversation.ID,
		Content:        "still interested?",
	})
	require.NoError(t, err)

	got, err = env.messaging.GetConversation(ctx, "seller-1", conversation.ID)
	require.NoError(t, err)
	assert.False(t, got.ArchivedFor("seller-1"))
}

func TestSendMessageBroadcastsToRoomAndPushesOffline(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	buyer := env.connect(t, "session-buyer", "buyer-1")
	require.NoError(t, env.hub.Join(ctx, realtime.ConversationRoom(conversation.ID), buyer))
	drainEvents(buyer)

	// Seller has no active session: the message should go out as a push.
	_, err = env.messaging.SendMessage(ctx, "buyer-1", SendMessageInput{
		ConversationID: conversation.ID,
		Content:        "hello there",
	})
	require.NoError(t, err)

	events := drainEvents(buyer)
	assert.Contains(t, eventTypes(events), realtime.EventMessageNew)
	assert.Equal(t, []string{"seller-1"}, env.push.notified)
}

func TestTypingMarkers(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	require.NoError(t, env.messaging.Typing(ctx, "buyer-1", conversation.ID, true))
	typing, err := env.messaging.TypingUsers(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer-1"}, typing)

	require.NoError(t, env.messaging.Typing(ctx, "buyer-1", conversation.ID, false))
	typing, err = env.messaging.TypingUsers(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, typing)
}

func TestTypingRejectsOutsider(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1", "lurker"})
	ctx := context.Background()

	conversation, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	err = env.messaging.Typing(ctx, "lurker", conversation.ID, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestListConversationsScopedToParticipant(t *testing.T) {
	env := newTestEnv([]string{"buyer-1", "seller-1", "buyer-2"})
	ctx := context.Background()

	_, err := env.messaging.CreateConversation(ctx, "buyer-1", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)
	_, err = env.messaging.CreateConversation(ctx, "buyer-2", CreateConversationInput{SellerID: "seller-1"})
	require.NoError(t, err)

	mine, total, err := env.messaging.ListConversations(ctx, "buyer-1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)

	sellers, total, err := env.messaging.ListConversations(ctx, "seller-1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, sellers, 2)
}
