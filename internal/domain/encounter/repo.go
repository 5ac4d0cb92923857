package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// Update persists the mutable non-status fields. Status changes go
	// through BeginVisit or SetStatus so transitions stay atomic.
	Update(ctx context.Context, enc *Encounter) error
	// BeginVisit moves the encounter to in_progress if it is not already
	// there. Returns true only when this call changed the row; concurrent
	// callers see true exactly once.
	BeginVisit(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*ListItem, int, error)
}
