package investigation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chartd/chartd/internal/domain/provenance"
	"github.com/chartd/chartd/internal/platform/apperror"
)

type Service struct {
	repo  Repository
	audit *provenance.Recorder
}

func NewService(repo Repository, audit *provenance.Recorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// Review signs off or un-reviews a result. Signing an already-reviewed
// result is an idempotent no-op returning the current row: the original
// reviewer and timestamp are never reassigned. Un-reviewing clears reviewer
// and timestamp together.
func (s *Service) Review(ctx context.Context, actorID, resultID uuid.UUID, in ReviewInput) (*Result, error) {
	if in.Reviewed == nil {
		return nil, apperror.Validation(apperror.Issue{Field: "reviewed", Message: "is required"})
	}

	res, err := s.repo.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}

	if *in.Reviewed {
		reviewedAt := time.Now().UTC()
		if in.ReviewedAt != nil {
			reviewedAt = in.ReviewedAt.UTC()
		}

		changed, err := s.repo.MarkReviewed(ctx, resultID, actorID, reviewedAt)
		if err != nil {
			return nil, apperror.Unexpected(err)
		}
		if changed {
			res.Reviewed = true
			res.ReviewerID = &actorID
			res.ReviewedAt = &reviewedAt
		}
		// Not changed: already reviewed, res keeps the original sign-off.
	} else {
		if err := s.repo.ClearReview(ctx, resultID); err != nil {
			return nil, apperror.Unexpected(err)
		}
		res.Reviewed = false
		res.ReviewerID = nil
		res.ReviewedAt = nil
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionReview,
		EntityType: "investigation_result",
		EntityID:   &res.ID,
		Source:     "api",
		Metadata:   provenance.ReviewMetadata{Reviewed: res.Reviewed},
	})

	return res, nil
}

func (s *Service) GetResult(ctx context.Context, actorID, id uuid.UUID) (*Result, error) {
	res, err := s.repo.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionView,
		EntityType: "investigation_result",
		EntityID:   &res.ID,
		Source:     "api",
		Metadata:   provenance.ViewMetadata{Count: 1},
	})

	return res, nil
}

func (s *Service) ListResults(ctx context.Context, actorID uuid.UUID, f ListFilter, limit, offset int) ([]*Result, int, error) {
	results, total, err := s.repo.ListResults(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperror.Unexpected(err)
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionView,
		EntityType: "investigation_result",
		Source:     "api",
		Metadata:   provenance.ViewMetadata{Filters: filterMetadata(f), Count: total},
	})

	return results, total, nil
}

func filterMetadata(f ListFilter) map[string]string {
	m := make(map[string]string)
	if f.OrderID != nil {
		m["orderId"] = f.OrderID.String()
	}
	if f.PatientID != nil {
		m["patientId"] = f.PatientID.String()
	}
	if f.Reviewed != nil {
		if *f.Reviewed {
			m["reviewed"] = "true"
		} else {
			m["reviewed"] = "false"
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
