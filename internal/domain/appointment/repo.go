package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// MarkInProgress flips a scheduled or confirmed appointment to
	// in_progress. Returns false when the appointment is absent or already
	// past that state; callers treat the flip as best-effort.
	MarkInProgress(ctx context.Context, id uuid.UUID) (bool, error)
}
