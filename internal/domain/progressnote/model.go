// Package progressnote manages SOAP progress notes. A note is freely
// editable while in draft; finalizing signs it and locks it for good, and an
// amended copy is the only path to further changes.
package progressnote

import (
	"time"

	"github.com/google/uuid"
)

// Note statuses. finalized and amended are both locked; only draft accepts
// content changes.
const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
	StatusAmended   = "amended"
)

var validStatuses = map[string]bool{
	StatusDraft:     true,
	StatusFinalized: true,
	StatusAmended:   true,
}

// Note maps to the progress_note table.
type Note struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	EncounterID   *uuid.UUID `db:"encounter_id" json:"encounterId,omitempty"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	AuthorID      uuid.UUID  `db:"author_id" json:"authorId"`
	Status        string     `db:"status" json:"status"`
	Subjective    *string    `db:"subjective" json:"subjective,omitempty"`
	Objective     *string    `db:"objective" json:"objective,omitempty"`
	Assessment    *string    `db:"assessment" json:"assessment,omitempty"`
	Plan          *string    `db:"plan" json:"plan,omitempty"`
	Summary       *string    `db:"summary" json:"summary,omitempty"`
	Attachments   []string   `db:"attachments" json:"attachments,omitempty"`
	AutosavedAt   *time.Time `db:"autosaved_at" json:"autosavedAt,omitempty"`
	FinalizedAt   *time.Time `db:"finalized_at" json:"finalizedAt,omitempty"`
	SignatureHash *string    `db:"signature_hash" json:"signatureHash,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// Locked reports whether the note no longer accepts content changes.
func (n *Note) Locked() bool {
	return n.Status != StatusDraft
}

// CreateInput carries the fields accepted when opening a draft.
type CreateInput struct {
	EncounterID *uuid.UUID `json:"encounterId"`
	PatientID   uuid.UUID  `json:"patientId"`
	Subjective  *string    `json:"subjective"`
	Objective   *string    `json:"objective"`
	Assessment  *string    `json:"assessment"`
	Plan        *string    `json:"plan"`
	Summary     *string    `json:"summary"`
	Attachments []string   `json:"attachments"`
}

// UpdatePatch is a partial draft update. Nil means "leave unchanged"; the
// merge is last-write-wins so rapid autosaves stay safe.
type UpdatePatch struct {
	ID          uuid.UUID `json:"id"`
	Subjective  *string   `json:"subjective"`
	Objective   *string   `json:"objective"`
	Assessment  *string   `json:"assessment"`
	Plan        *string   `json:"plan"`
	Summary     *string   `json:"summary"`
	Attachments []string  `json:"attachments"`
}

// FinalizeInput signs a draft. FinalizedAt defaults to the server clock.
type FinalizeInput struct {
	ID            uuid.UUID  `json:"id"`
	SignatureHash string     `json:"signatureHash"`
	FinalizedAt   *time.Time `json:"finalizedAt"`
}

// ListFilter narrows note listings.
type ListFilter struct {
	EncounterID *uuid.UUID
	PatientID   *uuid.UUID
	Status      *string
}
