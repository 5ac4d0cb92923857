package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chartd/chartd/internal/domain/appointment"
	"github.com/chartd/chartd/internal/domain/provenance"
	"github.com/chartd/chartd/internal/platform/apperror"
)

// NoteCreator opens a draft progress note when a visit begins. Implemented by
// the progress note service through an adapter wired in main, which keeps the
// two packages decoupled.
type NoteCreator interface {
	CreateDraftForEncounter(ctx context.Context, authorID, encounterID, patientID uuid.UUID) (uuid.UUID, error)
}

// Result pairs an encounter with the draft note id produced by a begin-visit
// transition. DraftNoteID is null when no transition fired.
type Result struct {
	Encounter   *Encounter `json:"encounter"`
	DraftNoteID *uuid.UUID `json:"draftNoteId"`
}

type Service struct {
	repo   Repository
	notes  NoteCreator
	appts  appointment.Repository
	audit  *provenance.Recorder
	logger zerolog.Logger
}

func NewService(repo Repository, notes NoteCreator, appts appointment.Repository, audit *provenance.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, notes: notes, appts: appts, audit: audit, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in CreateInput) (*Result, error) {
	var issues []apperror.Issue
	if in.PatientID == uuid.Nil {
		issues = append(issues, apperror.Issue{Field: "patientId", Message: "is required"})
	}
	if in.ProviderID == uuid.Nil {
		issues = append(issues, apperror.Issue{Field: "providerId", Message: "is required"})
	}
	if in.Type == "" {
		issues = append(issues, apperror.Issue{Field: "type", Message: "is required"})
	}
	if in.StartTime.IsZero() {
		issues = append(issues, apperror.Issue{Field: "startTime", Message: "is required"})
	}
	if in.Mode == "" {
		in.Mode = ModeInPerson
	} else if !validModes[in.Mode] {
		issues = append(issues, apperror.Issue{Field: "mode", Message: "unknown mode"})
	}
	if in.Status == "" {
		in.Status = StatusScheduled
	} else if !validStatuses[in.Status] {
		issues = append(issues, apperror.Issue{Field: "status", Message: "unknown status"})
	}
	if len(issues) > 0 {
		return nil, apperror.Validation(issues...)
	}

	enc := &Encounter{
		PatientID:           in.PatientID,
		ProviderID:          in.ProviderID,
		AppointmentID:       in.AppointmentID,
		Type:                in.Type,
		Mode:                in.Mode,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		Location:            in.Location,
		RenderingProviderID: in.RenderingProviderID,
		Status:              in.Status,
	}
	if err := s.repo.Create(ctx, enc); err != nil {
		return nil, apperror.Unexpected(err)
	}

	var draftID *uuid.UUID
	if enc.Status == StatusInProgress {
		draftID = s.beginVisitSideEffects(ctx, actorID, enc)
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionCreate,
		EntityType: "encounter",
		EntityID:   &enc.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: []string{"status", "type", "mode", "startTime"}},
	})

	return &Result{Encounter: enc, DraftNoteID: draftID}, nil
}

func (s *Service) Update(ctx context.Context, actorID uuid.UUID, patch UpdatePatch) (*Result, error) {
	if patch.ID == uuid.Nil {
		return nil, apperror.Validation(apperror.Issue{Field: "id", Message: "is required"})
	}

	var issues []apperror.Issue
	if patch.Mode != nil && !validModes[*patch.Mode] {
		issues = append(issues, apperror.Issue{Field: "mode", Message: "unknown mode"})
	}
	if patch.Status != nil && !validStatuses[*patch.Status] {
		issues = append(issues, apperror.Issue{Field: "status", Message: "unknown status"})
	}
	if patch.Type != nil && *patch.Type == "" {
		issues = append(issues, apperror.Issue{Field: "type", Message: "must not be empty"})
	}
	if len(issues) > 0 {
		return nil, apperror.Validation(issues...)
	}

	enc, err := s.repo.GetByID(ctx, patch.ID)
	if err != nil {
		return nil, err
	}

	fields := applyPatch(enc, patch)
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, enc); err != nil {
			return nil, apperror.Unexpected(err)
		}
	}

	var draftID *uuid.UUID
	if patch.Status != nil {
		switch *patch.Status {
		case StatusInProgress:
			changed, err := s.repo.BeginVisit(ctx, enc.ID)
			if err != nil {
				return nil, apperror.Unexpected(err)
			}
			if changed {
				enc.Status = StatusInProgress
				fields = append(fields, "status")
				draftID = s.beginVisitSideEffects(ctx, actorID, enc)
			}
		default:
			if *patch.Status != enc.Status {
				if err := s.repo.SetStatus(ctx, enc.ID, *patch.Status); err != nil {
					return nil, apperror.Unexpected(err)
				}
				enc.Status = *patch.Status
				fields = append(fields, "status")
			}
		}
	}

	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionUpdate,
		EntityType: "encounter",
		EntityID:   &enc.ID,
		Source:     "api",
		Metadata:   provenance.ChangeMetadata{Fields: fields},
	})

	return &Result{Encounter: enc, DraftNoteID: draftID}, nil
}

func (s *Service) List(ctx context.Context, actorID uuid.UUID, f ListFilter, limit, offset int) ([]*ListItem, int, error) {
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperror.Unexpected(err)
	}

	// One aggregate view record per listing, never one per row.
	s.audit.Record(ctx, provenance.Entry{
		ActorID:    actorID,
		Action:     provenance.ActionView,
		EntityType: "encounter",
		Source:     "api",
		Metadata:   provenance.ViewMetadata{Filters: filterMetadata(f), Count: total},
	})

	return items, total, nil
}

// beginVisitSideEffects opens the draft note and flips the linked
// appointment. Both are best-effort: the encounter transition has already
// committed and is never rolled back here.
func (s *Service) beginVisitSideEffects(ctx context.Context, actorID uuid.UUID, enc *Encounter) *uuid.UUID {
	var draftID *uuid.UUID
	noteID, err := s.notes.CreateDraftForEncounter(ctx, actorID, enc.ID, enc.PatientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("encounter_id", enc.ID.String()).
			Msg("open draft note on begin visit")
	} else {
		draftID = &noteID
	}

	if enc.AppointmentID != nil {
		if _, err := s.appts.MarkInProgress(ctx, *enc.AppointmentID); err != nil {
			s.logger.Warn().Err(err).
				Str("appointment_id", enc.AppointmentID.String()).
				Msg("flip appointment on begin visit")
		}
	}

	return draftID
}

func applyPatch(enc *Encounter, patch UpdatePatch) []string {
	var fields []string
	if patch.AppointmentID != nil {
		enc.AppointmentID = patch.AppointmentID
		fields = append(fields, "appointmentId")
	}
	if patch.Type != nil {
		enc.Type = *patch.Type
		fields = append(fields, "type")
	}
	if patch.Mode != nil {
		enc.Mode = *patch.Mode
		fields = append(fields, "mode")
	}
	if patch.StartTime != nil {
		enc.StartTime = *patch.StartTime
		fields = append(fields, "startTime")
	}
	if patch.EndTime != nil {
		enc.EndTime = patch.EndTime
		fields = append(fields, "endTime")
	}
	if patch.Location != nil {
		enc.Location = patch.Location
		fields = append(fields, "location")
	}
	if patch.RenderingProviderID != nil {
		enc.RenderingProviderID = patch.RenderingProviderID
		fields = append(fields, "renderingProviderId")
	}
	return fields
}

func filterMetadata(f ListFilter) map[string]string {
	m := make(map[string]string)
	if f.PatientID != nil {
		m["patientId"] = f.PatientID.String()
	}
	if f.ProviderID != nil {
		m["providerId"] = f.ProviderID.String()
	}
	if f.Status != nil {
		m["status"] = *f.Status
	}
	if f.DateFrom != nil {
		m["dateFrom"] = f.DateFrom.UTC().Format(time.RFC3339)
	}
	if f.DateTo != nil {
		m["dateTo"] = f.DateTo.UTC().Format(time.RFC3339)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
