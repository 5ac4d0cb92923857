package progressnote

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	// UpdateDraftContent persists content fields and bumps autosaved_at,
	// guarded on status still being draft. Returns false when the guard
	// matched no row.
	UpdateDraftContent(ctx context.Context, n *Note) (bool, error)
	// Finalize signs the note in one conditional update guarded on
	// status='draft'. Returns false when the note was not a draft, in which
	// case nothing changed.
	Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Note, int, error)
}
