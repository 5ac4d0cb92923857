// Package auth authenticates bearer tokens and gates handlers on the
// capability vocabulary. Every route except /health sits behind Middleware;
// capability checks carry no side effects and fail closed.
package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/chartd/chartd/internal/platform/apperror"
)

type contextKey string

const actorKey contextKey = "actor"

// Capability vocabulary. The set is closed: guards compare against these
// exact strings, no wildcarding or hierarchy.
const (
	CapEncounterRead       = "encounter.read"
	CapEncounterCreate     = "encounter.create"
	CapEncounterUpdate     = "encounter.update"
	CapNoteRead            = "note.read"
	CapNoteCreate          = "note.create"
	CapNoteUpdate          = "note.update"
	CapNoteFinalize        = "note.finalize"
	CapInvestigationRead   = "investigation.read"
	CapInvestigationReview = "investigation.review"
	CapAuditRead           = "audit.read"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID           uuid.UUID
	Capabilities []string
}

// Can reports whether the actor holds the exact capability.
func (a *Actor) Can(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the authenticated actor, or an Unauthenticated
// error when the request never passed the session middleware.
func ActorFromContext(ctx context.Context) (*Actor, error) {
	a, ok := ctx.Value(actorKey).(*Actor)
	if !ok || a == nil {
		return nil, apperror.Unauthenticated("no authenticated session")
	}
	return a, nil
}
