package queue

import (
	"context"
	"time"

	"hiive-relay/internal/event"
)

// Record is one stored event awaiting delivery.
type Record struct {
	ID          int64
	Event       event.Event
	Attempts    int
	ReservedAt  *time.Time
	AvailableAt time.Time
	CreatedAt   time.Time
}

// Reserved reports whether a delivery attempt currently owns the record.
func (r Record) Reserved() bool {
	return r.ReservedAt != nil
}

// DurableQueue is crash-durable staging for events awaiting delivery.
//
// A record is visible to Pull iff it is unreserved and due. Reserve is the
// sole mutual-exclusion point: no caller may assume exclusive access to a
// record without holding its lease, and overlapping Reserve calls must never
// both succeed for the same record.
type DurableQueue interface {
	// Push bulk-inserts events with attempts=1 and available_at=now.
	// An empty batch is rejected with ErrEmptyBatch before reaching storage.
	Push(ctx context.Context, events []event.Event) error

	// Pull returns up to count unreserved, due records, oldest available_at
	// first. Read-only; an empty result is normal, not an error.
	Pull(ctx context.Context, count int) ([]Record, error)

	// Reserve leases the given records. All-or-nothing: it returns false
	// without leasing anything when any of the records is already reserved
	// (or gone).
	Reserve(ctx context.Context, ids []int64) (bool, error)

	// Release clears the lease, returning records to eligibility.
	Release(ctx context.Context, ids []int64) error

	// Remove permanently deletes records.
	Remove(ctx context.Context, ids []int64) error

	// IncrementAttempt bumps the attempt counter by one.
	IncrementAttempt(ctx context.Context, ids []int64) error

	// RemoveExceedingAttempts evicts records with attempts > limit,
	// reserved or not. Idempotent.
	RemoveExceedingAttempts(ctx context.Context, limit int) error

	// ReleaseStale reclaims leases older than olderThan, so a crash between
	// Reserve and Release cannot strand records forever.
	ReleaseStale(ctx context.Context, olderThan time.Duration) error

	// Count returns the number of unreserved, due records.
	Count(ctx context.Context) (int, error)
}
