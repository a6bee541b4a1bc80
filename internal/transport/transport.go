package transport

import (
	"context"

	"hiive-relay/internal/event"

	"github.com/google/uuid"
)

// Result reports the per-event outcome of one delivery, keyed by event ID.
// Remotes that answer all-or-nothing collapse to every ID in one bucket.
type Result struct {
	Succeeded []uuid.UUID
	Failed    []uuid.UUID
}

// Deliverer turns a batch of events into one remote delivery. The variants
// are HiiveConnection (the real endpoint) and DebugSink (local logging).
//
// Implementations return either a Result or an error wrapping
// ErrConnection; they never panic and never leave the caller with an
// ambiguous outcome.
type Deliverer interface {
	Deliver(ctx context.Context, events []event.Event) (Result, error)
}
