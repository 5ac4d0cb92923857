package provenance

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows the audit read side.
type ListFilter struct {
	ActorID    *uuid.UUID
	Action     *string
	EntityType *string
	EntityID   *uuid.UUID
}

type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error)
}
