// Package investigation manages lab and imaging orders and the clinician
// sign-off on their results. Review is idempotent: the first reviewer wins
// and repeat sign-offs change nothing.
package investigation

import (
	"time"

	"github.com/google/uuid"
)

// Result interpretations.
const (
	InterpretationNormal   = "normal"
	InterpretationAbnormal = "abnormal"
	InterpretationCritical = "critical"
)

// Order maps to the investigation_order table.
type Order struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patientId"`
	EncounterID *uuid.UUID `db:"encounter_id" json:"encounterId,omitempty"`
	Code        *string    `db:"code" json:"code,omitempty"`
	Name        *string    `db:"name" json:"name,omitempty"`
	Status      string     `db:"status" json:"status"`
	OrderedBy   uuid.UUID  `db:"ordered_by" json:"orderedBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Result maps to the investigation_result table.
type Result struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrderID        uuid.UUID  `db:"order_id" json:"orderId"`
	Code           *string    `db:"code" json:"code,omitempty"`
	Name           *string    `db:"name" json:"name,omitempty"`
	Value          *string    `db:"value" json:"value,omitempty"`
	Units          *string    `db:"units" json:"units,omitempty"`
	ReferenceLow   *float64   `db:"reference_low" json:"referenceLow,omitempty"`
	ReferenceHigh  *float64   `db:"reference_high" json:"referenceHigh,omitempty"`
	Interpretation *string    `db:"interpretation" json:"interpretation,omitempty"`
	Performer      *string    `db:"performer" json:"performer,omitempty"`
	ObservedAt     *time.Time `db:"observed_at" json:"observedAt,omitempty"`
	Reviewed       bool       `db:"reviewed" json:"reviewed"`
	ReviewerID     *uuid.UUID `db:"reviewer_id" json:"reviewerId,omitempty"`
	ReviewedAt     *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	Attachments    []string   `db:"attachments" json:"attachments,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// ReviewInput is the PATCH body for a result review.
type ReviewInput struct {
	Reviewed   *bool      `json:"reviewed"`
	ReviewedAt *time.Time `json:"reviewedAt"`
}

// ListFilter narrows result listings.
type ListFilter struct {
	OrderID   *uuid.UUID
	PatientID *uuid.UUID
	Reviewed  *bool
}
