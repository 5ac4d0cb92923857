package progressnote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chartd/chartd/internal/domain/provenance"
	"github.com/chartd/chartd/internal/platform/apperror"
	"github.com/chartd/chartd/internal/platform/events"
)

// EncounterDirectory resolves an encounter to its patient so drafts can be
// checked against the visit they document. Implemented by an adapter over
// the encounter repository, wired in main.
type EncounterDirectory interface {
	PatientForEncounter(ctx context.Context, encounterID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo       Repository
	encounters EncounterDirectory
	audit      *provenance.Recorder
	bus        *events.Bus
	minSigLen  int
	logger     zerolog.Logger
}

func NewService(repo Repository, encounters EncounterDirectory, audit *provenance.Recorder, bus *events.Bus, signatureMinLength int, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		encounters: encounters,
		audit:      audit,
		bus:        bus,
		minSigLen:  signatureMinLength,
		logger:     logger,
	}
}

// CreateDraft opens a new draft note. When the draft references an encounter,
// the encounter must exist and belong to the same patient.
func (s *Service) CreateDraft(ctx context.Context, actorID uuid.UUID, in CreateInput) (*Note, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperror.Validation(apperror.Issue{Field: "patientId", Message: "is required"})
	}

	if in.EncounterID != nil {
		patientID, err := s.encounters.PatientForEncounter(ctx, *in.EncounterID)
		if err != nil {
			return nil, err
		}
		if patientID != in.PatientID {
			return nil, apperror.Conflict("note patient does not match encounter patient")
		}
	}

	n := &Note{
		EncounterID: in.EncounterID,
		PatientID:   in.PatientID,
		AuthorID:    actorID,
		Status:      StatusDraft,
		Subjective:  in.Subjective,
		Objective:   in.Objective,
		Assessment:  in.Assessment,
		Plan:        in.Plan,
		Summary:     in.Summary,
		Attachments: in.Attachments,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperror.Unexpected(err)
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionCreate,
		EntityType: "progress_note",
		EntityID:   &n.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: []string{"status"}},
	})

	return n, nil
}

// CreateDraftForEncounter opens an empty draft as a begin-visit side effect.
// It satisfies the encounter package's NoteCreator port.
func (s *Service) CreateDraftForEncounter(ctx context.Context, authorID, encounterID, patientID uuid.UUID) (uuid.UUID, error) {
	n := &Note{
		EncounterID: &encounterID,
		PatientID:   patientID,
		AuthorID:    authorID,
		Status:      StatusDraft,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return uuid.Nil, err
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    authorID,
		Action:     provenance.ActionCreate,
		EntityType: "progress_note",
		EntityID:   &n.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: []string{"status"}},
	})

	return n.ID, nil
}

// UpdateDraft merges the supplied fields into a draft. Finalized and amended
// notes are locked and reject the update with a conflict.
func (s *Service) UpdateDraft(ctx context.Context, actorID uuid.UUID, patch UpdatePatch) (*Note, error) {
	if patch.ID == uuid.Nil {
		return nil, apperror.Validation(apperror.Issue{Field: "id", Message: "is required"})
	}

	n, err := s.repo.GetByID(ctx, patch.ID)
	if err != nil {
		return nil, err
	}
	if n.Locked() {
		return nil, apperror.Conflict("note is " + n.Status + " and can no longer be edited")
	}

	fields := applyPatch(n, patch)

	changed, err := s.repo.UpdateDraftContent(ctx, n)
	if err != nil {
		return nil, apperror.Unexpected(err)
	}
	if !changed {
		// Lost the race against a concurrent finalize.
		return nil, apperror.Conflict("note is no longer a draft")
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionUpdate,
		EntityType: "progress_note",
		EntityID:   &n.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: fields},
	})

	return n, nil
}

// Finalize signs a draft and locks it. The transition happens in one
// conditional update; a note that is already finalized or amended is
// rejected, never silently re-signed.
func (s *Service) Finalize(ctx context.Context, actorID uuid.UUID, in FinalizeInput) (*Note, error) {
	var issues []apperror.Issue
	if in.ID == uuid.Nil {
		issues = append(issues, apperror.Issue{Field: "id", Message: "is required"})
	}
	if in.SignatureHash == "" {
		issues = append(issues, apperror.Issue{Field: "signatureHash", Message: "is required"})
	} else if len(in.SignatureHash) < s.minSigLen {
		issues = append(issues, apperror.Issue{
			Field:   "signatureHash",
			Message: fmt.Sprintf("must be at least %d characters", s.minSigLen),
		})
	}
	if len(issues) > 0 {
		return nil, apperror.Validation(issues...)
	}

	n, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	finalizedAt := time.Now().UTC()
	if in.FinalizedAt != nil {
		finalizedAt = in.FinalizedAt.UTC()
	}

	changed, err := s.repo.Finalize(ctx, in.ID, in.SignatureHash, finalizedAt)
	if err != nil {
		return nil, apperror.Unexpected(err)
	}
	if !changed {
		// The guard missed: another finalize won between the fetch and the
		// update. Re-read so the conflict names the status that beat us.
		current, ferr := s.repo.GetByID(ctx, in.ID)
		if ferr != nil {
			return nil, apperror.Conflict("note is no longer a draft")
		}
		return nil, apperror.Conflict("note is already " + current.Status)
	}

	n.Status = StatusFinalized
	n.SignatureHash = &in.SignatureHash
	n.FinalizedAt = &finalizedAt

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionUpdate,
		EntityType: "progress_note",
		EntityID:   &n.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: []string{"status", "finalizedAt", "signatureHash"}},
	})

	s.logger.Info().
		Str("note_id", n.ID.String()).
		Str("author_id", n.AuthorID.String()).
		Msg("progress note finalized")

	s.bus.Publish(ctx, events.TopicNoteFinalized, events.NoteFinalized{
		NoteID:        n.ID,
		EncounterID:   n.EncounterID,
		PatientID:     n.PatientID,
		AuthorID:      n.AuthorID,
		FinalizedAt:   finalizedAt,
		SignatureHash: in.SignatureHash,
	})

	return n, nil
}

func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionView,
		EntityType: "progress_note",
		EntityID:   &n.ID,
		Source:     "api",
		Metadata:   provenance.ViewMetadata{Count: 1},
	})

	return n, nil
}

func (s *Service) List(ctx context.Context, actorID uuid.UUID, f ListFilter, limit, offset int) ([]*Note, int, error) {
	notes, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperror.Unexpected(err)
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionView,
		EntityType: "progress_note",
		Source:     "api",
		Metadata:   provenance.ViewMetadata{Filters: filterMetadata(f), Count: total},
	})

	return notes, total, nil
}

func applyPatch(n *Note, patch UpdatePatch) []string {
	var fields []string
	if patch.Subjective != nil {
		n.Subjective = patch.Subjective
		fields = append(fields, "subjective")
	}
	if patch.Objective != nil {
		n.Objective = patch.Objective
		fields = append(fields, "objective")
	}
	if patch.Assessment != nil {
		n.Assessment = patch.Assessment
		fields = append(fields, "assessment")
	}
	if patch.Plan != nil {
		n.Plan = patch.Plan
		fields = append(fields, "plan")
	}
	if patch.Summary != nil {
		n.Summary = patch.Summary
		fields = append(fields, "summary")
	}
	if patch.Attachments != nil {
		n.Attachments = patch.Attachments
		fields = append(fields, "attachments")
	}
	return fields
}

func filterMetadata(f ListFilter) map[string]string {
	m := make(map[string]string)
	if f.EncounterID != nil {
		m["encounterId"] = f.EncounterID.String()
	}
	if f.PatientID != nil {
		m["patientId"] = f.PatientID.String()
	}
	if f.Status != nil {
		m["status"] = *f.Status
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
