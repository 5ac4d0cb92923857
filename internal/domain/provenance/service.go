package provenance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Recorder appends activity records. A failed append is logged and swallowed:
// the audit trail must never fail the domain write it describes. Callers
// issue the domain write first, then Record, so the log can miss a change but
// never describe one that did not happen.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record appends one entry. EntityID nil means a batch read; the record gets
// the list scope sentinel instead of an entity id.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	rec := &Record{
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Source:     e.Source,
		RecordedAt: time.Now().UTC(),
	}
	if e.EntityID == nil {
		scope := EntityScopeList
		rec.EntityScope = &scope
	}

	if e.Metadata != nil {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			r.logger.Error().Err(err).
				Str("action", e.Action).
				Str("entity_type", e.EntityType).
				Msg("marshal audit metadata")
		} else {
			rec.Metadata = meta
		}
	}

	if err := r.repo.Insert(ctx, rec); err != nil {
		r.logger.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Msg("append audit record")
	}
}

// Service is the audit read side.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListRecords(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
