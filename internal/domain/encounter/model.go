// Package encounter manages the clinical visit lifecycle. An encounter moves
// scheduled -> in_progress -> completed (or cancelled); entering in_progress
// is the one transition with side effects and happens at most once.
package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Encounter modes.
const (
	ModeInPerson     = "in_person"
	ModeTelemedicine = "telemedicine"
	ModePhone        = "phone"
	ModeMessaging    = "messaging"
)

var validStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

var validModes = map[string]bool{
	ModeInPerson:     true,
	ModeTelemedicine: true,
	ModePhone:        true,
	ModeMessaging:    true,
}

// Encounter maps to the encounter table.
type Encounter struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patientId"`
	ProviderID          uuid.UUID  `db:"provider_id" json:"providerId"`
	AppointmentID       *uuid.UUID `db:"appointment_id" json:"appointmentId,omitempty"`
	Type                string     `db:"type" json:"type"`
	Mode                string     `db:"mode" json:"mode"`
	StartTime           time.Time  `db:"start_time" json:"startTime"`
	EndTime             *time.Time `db:"end_time" json:"endTime,omitempty"`
	Location            *string    `db:"location" json:"location,omitempty"`
	RenderingProviderID *uuid.UUID `db:"rendering_provider_id" json:"renderingProviderId,omitempty"`
	Status              string     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// NoteProjection is the latest-note annotation attached to list rows. It
// carries no clinical narrative beyond the short summary.
type NoteProjection struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Summary   *string   `json:"summary,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListItem is one encounter row in a listing, annotated with its most
// recently updated progress note, if any.
type ListItem struct {
	Encounter
	LatestNote *NoteProjection `json:"latestNote"`
}

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	PatientID           uuid.UUID  `json:"patientId"`
	ProviderID          uuid.UUID  `json:"providerId"`
	AppointmentID       *uuid.UUID `json:"appointmentId"`
	Type                string     `json:"type"`
	Mode                string     `json:"mode"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	Location            *string    `json:"location"`
	RenderingProviderID *uuid.UUID `json:"renderingProviderId"`
	Status              string     `json:"status"`
}

// UpdatePatch is a partial update. Nil pointer means "leave unchanged";
// callers cannot clear a field back to null through this struct.
type UpdatePatch struct {
	ID                  uuid.UUID  `json:"id"`
	AppointmentID       *uuid.UUID `json:"appointmentId"`
	Type                *string    `json:"type"`
	Mode                *string    `json:"mode"`
	StartTime           *time.Time `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	Location            *string    `json:"location"`
	RenderingProviderID *uuid.UUID `json:"renderingProviderId"`
	Status              *string    `json:"status"`
}

// ListFilter narrows encounter listings.
type ListFilter struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	Status     *string
	DateFrom   *time.Time
	DateTo     *time.Time
}
