// Package appointment is the narrow port onto the scheduling aggregate.
// The documentation workflow only ever flips a linked appointment into
// in-progress when a visit begins; everything else about appointments is
// owned elsewhere.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table.
type Appointment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patientId"`
	ProviderID uuid.UUID  `db:"provider_id" json:"providerId"`
	Status     string     `db:"status" json:"status"`
	StartTime  time.Time  `db:"start_time" json:"startTime"`
	EndTime    *time.Time `db:"end_time" json:"endTime,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// Appointment statuses this package touches. The scheduling system spells
// its in-progress status with a hyphen, unlike the encounter state machine;
// the wire values here must match that external vocabulary, not ours.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
)
