package repository

import (
	"context"

	"jiranbackend/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	// GetByTriple returns the non-archived conversation for the
	// (buyer, seller, product) triple, or a NOT_FOUND error.
	GetByTriple(ctx context.Context, buyerID, sellerID, productID string) (*entity.Conversation, error)
	Update(ctx context.Context, conversation *entity.Conversation) error
	// Mutate applies fn to the conversation's current state and persists
	// the result atomically. Concurrent mutations of the same conversation
	// serialize, so counter updates and last-message pointers never lose a
	// write to a stale read.
	Mutate(ctx context.Context, id string, fn func(conversation *entity.Conversation) error) error
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error)

	CreateMessage(ctx context.Context, message *entity.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkMessagesRead flips the read flag on every unread message in the
	// conversation not authored by readerID and returns how many it flipped.
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error)
}
