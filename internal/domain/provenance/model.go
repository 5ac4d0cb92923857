// Package provenance is the append-only activity log. Every domain mutation
// and read writes one record here; records are never updated or deleted.
package provenance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions. Closed set.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionReview = "review"
)

// EntityScopeList marks records describing a batch read rather than a single
// entity. EntityID is nil on such records.
const EntityScopeList = "list"

// Record maps to the audit_record table.
type Record struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ActorID     uuid.UUID       `db:"actor_id" json:"actorId"`
	Action      string          `db:"action" json:"action"`
	EntityType  string          `db:"entity_type" json:"entityType"`
	EntityID    *uuid.UUID      `db:"entity_id" json:"entityId,omitempty"`
	EntityScope *string         `db:"entity_scope" json:"entityScope,omitempty"`
	Source      string          `db:"source" json:"source"`
	RecordedAt  time.Time       `db:"recorded_at" json:"recordedAt"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// ViewMetadata describes a batch read: the filters applied and how many rows
// matched. Clinical free text never enters audit metadata.
type ViewMetadata struct {
	Filters map[string]string `json:"filters,omitempty"`
	Count   int               `json:"count"`
}

// ChangeMetadata names the fields touched by a create or update.
type ChangeMetadata struct {
	Fields []string `json:"fields"`
}

// ReviewMetadata captures the resulting review state of a sign-off.
type ReviewMetadata struct {
	Reviewed bool `json:"reviewed"`
}

// Entry is one activity to be recorded. Metadata must be one of the closed
// metadata types above.
type Entry struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Source     string
	Metadata   interface{}
}
