package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jiranbackend/internal/domain/entity"
	"jiranbackend/internal/domain/repository"
	"jiranbackend/pkg/errors"
)

type firestoreStreamRepository struct {
	client *firestore.Client
}

func NewFirestoreStreamRepository(client *firestore.Client) repository.StreamRepository {
	return &firestoreStreamRepository{
		client: client,
	}
}

func (r *firestoreStreamRepository) Create(ctx context.Context, stream *entity.Stream) error {
	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}

	_, err := r.client.Collection("streams").Doc(stream.ID).Set(ctx, stream)
	if err != nil {
		return errors.Internal("Failed to create stream", err)
	}

	return nil
}

func (r *firestoreStreamRepository) GetByID(ctx context.Context, id string) (*entity.Stream, error) {
	doc, err := r.client.Collection("streams").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Stream", err)
		}
		return nil, errors.Internal("Failed to get stream", err)
	}

	var stream entity.Stream
	if err := doc.DataTo(&stream); err != nil {
		return nil, errors.Internal("Failed to parse stream data", err)
	}
	return &stream, nil
}

func (r *firestoreStreamRepository) Update(ctx context.Context, stream *entity.Stream) error {
	_, err := r.client.Collection("streams").Doc(stream.ID).Set(ctx, stream)
	if err != nil {
		return errors.Internal("Failed to update stream", err)
	}

	return nil
}
