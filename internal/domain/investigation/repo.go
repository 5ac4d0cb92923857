package investigation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetResult(ctx context.Context, id uuid.UUID) (*Result, error)
	// MarkReviewed signs off a result in one conditional update guarded on
	// reviewed=false. Returns false when the result was already reviewed,
	// leaving the original reviewer and timestamp untouched.
	MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, reviewedAt time.Time) (bool, error)
	// ClearReview un-reviews a result, clearing reviewer and timestamp
	// together so the pair never goes out of sync.
	ClearReview(ctx context.Context, id uuid.UUID) error
	ListResults(ctx context.Context, f ListFilter, limit, offset int) ([]*Result, int, error)
}
