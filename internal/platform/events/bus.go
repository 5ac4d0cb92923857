// Package events is the in-process publish/subscribe port used for
// fire-and-forget domain notifications. Publishers never block on or observe
// subscriber failure; delivery is at-least-once within the process lifetime.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Topic names.
const TopicNoteFinalized = "note.finalized"

// NoteFinalized is the payload published when a progress note is signed.
type NoteFinalized struct {
	NoteID        uuid.UUID  `json:"noteId"`
	EncounterID   *uuid.UUID `json:"encounterId,omitempty"`
	PatientID     uuid.UUID  `json:"patientId"`
	AuthorID      uuid.UUID  `json:"authorId"`
	FinalizedAt   time.Time  `json:"finalizedAt"`
	SignatureHash string     `json:"signatureHash"`
}

// Handler consumes one published event.
type Handler func(ctx context.Context, payload interface{})

// Bus fans each published event out to its topic's subscribers, one goroutine
// per handler. A panicking handler is recovered and logged, never crashing
// the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers fn for topic. Not safe to call concurrently with
// Publish on the same topic only in the sense of ordering; registration
// itself is mutex-guarded.
func (b *Bus) Subscribe(topic string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], fn)
}

// Publish delivers payload to every subscriber of topic and returns
// immediately. The context is detached from the request lifecycle so that
// subscribers outlive the originating request.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) {
	b.mu.RLock()
	subs := make([]Handler, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, fn := range subs {
		go b.dispatch(detached, topic, fn, payload)
	}
}

func (b *Bus) dispatch(ctx context.Context, topic string, fn Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("topic", topic).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	fn(ctx, payload)
}
