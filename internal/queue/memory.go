package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"hiive-relay/internal/event"
	relay_errors "hiive-relay/pkg/errors"
)

// MemoryQueue is an in-process DurableQueue with the same visibility and
// lease semantics as the Postgres implementation. It backs tests and
// storage-less local runs; it is not durable across restarts.
type MemoryQueue struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*Record
	clock   func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		records: make(map[int64]*Record),
		clock:   time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (q *MemoryQueue) SetClock(clock func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clock = clock
}

func (q *MemoryQueue) Push(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return relay_errors.ErrEmptyBatch
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	for _, e := range events {
		q.nextID++
		q.records[q.nextID] = &Record{
			ID:          q.nextID,
			Event:       e,
			Attempts:    1,
			AvailableAt: now,
			CreatedAt:   now,
		}
	}
	return nil
}

func (q *MemoryQueue) Pull(ctx context.Context, count int) ([]Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	var due []Record
	for _, r := range q.records {
		if r.ReservedAt == nil && !r.AvailableAt.After(now) {
			due = append(due, *r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].AvailableAt.Equal(due[j].AvailableAt) {
			return due[i].AvailableAt.Before(due[j].AvailableAt)
		}
		return due[i].ID < due[j].ID
	})
	if count > 0 && len(due) > count {
		due = due[:count]
	}
	return due, nil
}

func (q *MemoryQueue) Reserve(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range ids {
		r, ok := q.records[id]
		if !ok || r.ReservedAt != nil {
			return false, nil
		}
	}
	now := q.clock()
	for _, id := range ids {
		ts := now
		q.records[id].ReservedAt = &ts
	}
	return true, nil
}

func (q *MemoryQueue) Release(ctx context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if r, ok := q.records[id]; ok {
			r.ReservedAt = nil
		}
	}
	return nil
}

func (q *MemoryQueue) Remove(ctx context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		delete(q.records, id)
	}
	return nil
}

func (q *MemoryQueue) IncrementAttempt(ctx context.Context, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if r, ok := q.records[id]; ok {
			r.Attempts++
		}
	}
	return nil
}

func (q *MemoryQueue) RemoveExceedingAttempts(ctx context.Context, limit int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, r := range q.records {
		if r.Attempts > limit {
			delete(q.records, id)
		}
	}
	return nil
}

func (q *MemoryQueue) ReleaseStale(ctx context.Context, olderThan time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.clock().Add(-olderThan)
	for _, r := range q.records {
		if r.ReservedAt != nil && r.ReservedAt.Before(cutoff) {
			r.ReservedAt = nil
		}
	}
	return nil
}

func (q *MemoryQueue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	n := 0
	for _, r := range q.records {
		if r.ReservedAt == nil && !r.AvailableAt.After(now) {
			n++
		}
	}
	return n, nil
}
