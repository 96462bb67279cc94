package repository

import (
	"context"

	"jiranbackend/internal/domain/entity"
)

type StreamRepository interface {
	Create(ctx context.Context, stream *entity.Stream) error
	GetByID(ctx context.Context, id string) (*entity.Stream, error)
	// Update persists the finalized aggregates and end state.
	Update(ctx context.Context, stream *entity.Stream) error
}
