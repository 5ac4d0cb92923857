package progressnote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chartd/chartd/internal/domain/provenance"
	"github.com/chartd/chartd/internal/platform/apperror"
	"github.com/chartd/chartd/internal/platform/events"
)

// -- Mock Repository --

type mockRepo struct {
	notes map[uuid.UUID]*Note
}

func newMockRepo() *mockRepo {
	return &mockRepo{notes: make(map[uuid.UUID]*Note)}
}

func (m *mockRepo) Create(_ context.Context, n *Note) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, apperror.NotFound("progress note")
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) UpdateDraftContent(_ context.Context, n *Note) (bool, error) {
	stored, ok := m.notes[n.ID]
	if !ok || stored.Status != StatusDraft {
		return false, nil
	}
	now := time.Now()
	n.AutosavedAt = &now
	n.UpdatedAt = now
	cp := *n
	m.notes[n.ID] = &cp
	return true, nil
}

func (m *mockRepo) Finalize(_ context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error) {
	stored, ok := m.notes[id]
	if !ok || stored.Status != StatusDraft {
		return false, nil
	}
	stored.Status = StatusFinalized
	stored.SignatureHash = &signatureHash
	stored.FinalizedAt = &finalizedAt
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Note, int, error) {
	var out []*Note
	for _, n := range m.notes {
		if f.PatientID != nil && n.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.EncounterID != nil && (n.EncounterID == nil || *n.EncounterID != *f.EncounterID) {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

// -- Collaborator mocks --

type mockDirectory struct {
	patients map[uuid.UUID]uuid.UUID
}

func (m *mockDirectory) PatientForEncounter(_ context.Context, encounterID uuid.UUID) (uuid.UUID, error) {
	pid, ok := m.patients[encounterID]
	if !ok {
		return uuid.Nil, apperror.NotFound("encounter")
	}
	return pid, nil
}

type memAuditRepo struct {
	records []*provenance.Record
}

func (m *memAuditRepo) Insert(_ context.Context, rec *provenance.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memAuditRepo) List(_ context.Context, _ provenance.ListFilter, _, _ int) ([]*provenance.Record, int, error) {
	return m.records, len(m.records), nil
}

const testMinSigLen = 16

func newTestService() (*Service, *mockRepo, *mockDirectory, *events.Bus, *memAuditRepo) {
	repo := newMockRepo()
	dir := &mockDirectory{patients: make(map[uuid.UUID]uuid.UUID)}
	bus := events.NewBus(zerolog.Nop())
	audit := &memAuditRepo{}
	svc := NewService(repo, dir, provenance.NewRecorder(audit, zerolog.Nop()), bus, testMinSigLen, zerolog.Nop())
	return svc, repo, dir, bus, audit
}

func seedDraft(t *testing.T, svc *Service, dir *mockDirectory) *Note {
	t.Helper()
	encID, patientID := uuid.New(), uuid.New()
	dir.patients[encID] = patientID

	n, err := svc.CreateDraft(context.Background(), uuid.New(), CreateInput{
		EncounterID: &encID,
		PatientID:   patientID,
	})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return n
}

// -- Tests --

func TestService_CreateDraft_EncounterMissing(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	encID := uuid.New()
	_, err := svc.CreateDraft(context.Background(), uuid.New(), CreateInput{
		EncounterID: &encID,
		PatientID:   uuid.New(),
	})
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_CreateDraft_PatientMismatch(t *testing.T) {
	svc, _, dir, _, _ := newTestService()

	encID := uuid.New()
	dir.patients[encID] = uuid.New()

	_, err := svc.CreateDraft(context.Background(), uuid.New(), CreateInput{
		EncounterID: &encID,
		PatientID:   uuid.New(),
	})
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_CreateDraft_AlwaysDraft(t *testing.T) {
	svc, _, dir, _, audit := newTestService()

	n := seedDraft(t, svc, dir)
	if n.Status != StatusDraft {
		t.Errorf("expected draft status, got %s", n.Status)
	}
	if len(audit.records) != 1 || audit.records[0].Action != provenance.ActionCreate {
		t.Errorf("expected 1 create audit record, got %+v", audit.records)
	}
}

func TestService_UpdateDraft_MergesAndAutosaves(t *testing.T) {
	svc, _, dir, _, _ := newTestService()

	n := seedDraft(t, svc, dir)

	subj := "patient reports improvement"
	updated, err := svc.UpdateDraft(context.Background(), uuid.New(), UpdatePatch{ID: n.ID, Subjective: &subj})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Subjective == nil || *updated.Subjective != subj {
		t.Error("subjective not merged")
	}
	if updated.AutosavedAt == nil {
		t.Error("autosavedAt not bumped")
	}

	plan := "continue current regimen"
	updated, err = svc.UpdateDraft(context.Background(), uuid.New(), UpdatePatch{ID: n.ID, Plan: &plan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Subjective == nil || *updated.Subjective != subj {
		t.Error("earlier field lost by later partial update")
	}
	if updated.Plan == nil || *updated.Plan != plan {
		t.Error("plan not merged")
	}
}

func TestService_UpdateDraft_LockedNote(t *testing.T) {
	svc, _, dir, _, _ := newTestService()

	n := seedDraft(t, svc, dir)
	if _, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "abcdef0123456789",
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	subj := "late edit"
	_, err := svc.UpdateDraft(context.Background(), uuid.New(), UpdatePatch{ID: n.ID, Subjective: &subj})
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict editing a finalized note, got %v", err)
	}
}

func TestService_Finalize_ShortSignature(t *testing.T) {
	svc, _, dir, _, _ := newTestService()

	n := seedDraft(t, svc, dir)
	_, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{ID: n.ID, SignatureHash: "tooshort"})
	ae := apperror.As(err)
	if ae == nil || ae.Status != 400 {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_Finalize_SignsAndPublishes(t *testing.T) {
	svc, repo, dir, bus, _ := newTestService()

	published := make(chan events.NoteFinalized, 1)
	bus.Subscribe(events.TopicNoteFinalized, func(_ context.Context, payload interface{}) {
		if evt, ok := payload.(events.NoteFinalized); ok {
			published <- evt
		}
	})

	n := seedDraft(t, svc, dir)
	signed, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "abcdef0123456789",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signed.Status != StatusFinalized {
		t.Errorf("expected finalized, got %s", signed.Status)
	}
	if signed.FinalizedAt == nil || signed.SignatureHash == nil {
		t.Fatal("finalizedAt and signatureHash must be set together")
	}

	stored, _ := repo.GetByID(context.Background(), n.ID)
	if stored.Status != StatusFinalized {
		t.Errorf("expected stored note finalized, got %s", stored.Status)
	}

	select {
	case evt := <-published:
		if evt.NoteID != n.ID {
			t.Errorf("published wrong note id: %s", evt.NoteID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("note.finalized event was not published")
	}
}

func TestService_Finalize_IsOneWay(t *testing.T) {
	svc, repo, dir, _, _ := newTestService()

	n := seedDraft(t, svc, dir)
	first, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "abcdef0123456789",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "fedcba9876543210",
	})
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict on second finalize, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), n.ID)
	if *stored.SignatureHash != *first.SignatureHash {
		t.Error("second finalize must not replace the original signature")
	}
	if !stored.FinalizedAt.Equal(*first.FinalizedAt) {
		t.Error("second finalize must not move the original timestamp")
	}
}

// racingRepo simulates a concurrent finalize landing between the service's
// read and its guarded update: the caller's update matches no row.
type racingRepo struct {
	*mockRepo
}

func (r *racingRepo) Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error) {
	if _, err := r.mockRepo.Finalize(ctx, id, "0123456789abcdef", time.Now()); err != nil {
		return false, err
	}
	return false, nil
}

func TestService_Finalize_LostRaceReportsCurrentStatus(t *testing.T) {
	repo := newMockRepo()
	dir := &mockDirectory{patients: make(map[uuid.UUID]uuid.UUID)}
	bus := events.NewBus(zerolog.Nop())
	audit := &memAuditRepo{}
	svc := NewService(&racingRepo{mockRepo: repo}, dir, provenance.NewRecorder(audit, zerolog.Nop()), bus, testMinSigLen, zerolog.Nop())

	n := seedDraft(t, svc, dir)
	_, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            n.ID,
		SignatureHash: "abcdef0123456789",
	})
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict after losing the race, got %v", err)
	}

	// The conflict must name the state that won, not the stale pre-read draft.
	ae := apperror.As(err)
	if ae.Detail != "note is already "+StatusFinalized {
		t.Errorf("conflict detail reports a stale status: %q", ae.Detail)
	}
}

func TestService_Finalize_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	_, err := svc.Finalize(context.Background(), uuid.New(), FinalizeInput{
		ID:            uuid.New(),
		SignatureHash: "abcdef0123456789",
	})
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
