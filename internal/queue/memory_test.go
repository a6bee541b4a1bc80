package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiive-relay/internal/event"
	"hiive-relay/internal/queue"
	relay_errors "hiive-relay/pkg/errors"
)

func makeEvent(key string) event.Event {
	return event.New(event.StaticSource{}, "test", key, nil)
}

func TestPushRejectsEmptyBatch(t *testing.T) {
	q := queue.NewMemoryQueue()
	err := q.Push(context.Background(), nil)
	assert.ErrorIs(t, err, relay_errors.ErrEmptyBatch)
}

func TestPullFIFOFairness(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	// Push with a moving clock so available_at values are distinct.
	now := time.Now()
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Second
		q.SetClock(func() time.Time { return now.Add(offset) })
		require.NoError(t, q.Push(ctx, []event.Event{makeEvent("e")}))
	}
	q.SetClock(func() time.Time { return now.Add(time.Minute) })

	records, err := q.Pull(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{records[0].ID, records[1].ID, records[2].ID},
		"pull returns the oldest-due records first")
}

func TestPullIsReadOnly(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("e")}))

	first, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	second, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestNoDoubleReservation(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a"), makeEvent("b")}))

	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	ids := []int64{records[0].ID, records[1].ID}

	var wg sync.WaitGroup
	wins := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := q.Reserve(ctx, ids)
			if err == nil && ok {
				wins[n] = true
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent caller may lease the set")
}

func TestReserveFailsOnPartialOverlap(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a"), makeEvent("b")}))

	ok, err := q.Reserve(ctx, []int64{1})
	require.NoError(t, err)
	require.True(t, ok)

	// The overlapping set must not acquire anything, including record 2.
	ok, err = q.Reserve(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Reserve(ctx, []int64{2})
	require.NoError(t, err)
	assert.True(t, ok, "record 2 was not leased by the failed overlapping call")
}

func TestReservedRecordsInvisibleToPull(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a")}))

	ok, err := q.Reserve(ctx, []int64{1})
	require.NoError(t, err)
	require.True(t, ok)

	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Release(ctx, []int64{1}))
	records, err = q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAtLeastOnceUntilEviction(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a")}))

	// Simulate failed attempts while staying under the limit.
	for i := 0; i < 2; i++ {
		require.NoError(t, q.IncrementAttempt(ctx, []int64{1}))
		require.NoError(t, q.RemoveExceedingAttempts(ctx, 3))
		records, err := q.Pull(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, records, 1, "record stays retrievable while attempts <= limit")
	}

	// Fourth attempt pushes past the limit.
	require.NoError(t, q.IncrementAttempt(ctx, []int64{1}))
	require.NoError(t, q.RemoveExceedingAttempts(ctx, 3))
	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records, "record is permanently absent past the attempt limit")
}

func TestEvictionIsIdempotent(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a"), makeEvent("b")}))
	require.NoError(t, q.IncrementAttempt(ctx, []int64{1, 1, 1, 1}))

	require.NoError(t, q.RemoveExceedingAttempts(ctx, 3))
	n1, err := q.Count(ctx)
	require.NoError(t, err)

	require.NoError(t, q.RemoveExceedingAttempts(ctx, 3))
	n2, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
}

func TestReleaseStaleReclaimsAbandonedLeases(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	start := time.Now()
	q.SetClock(func() time.Time { return start })
	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a")}))
	ok, err := q.Reserve(ctx, []int64{1})
	require.NoError(t, err)
	require.True(t, ok)

	// Ten minutes later the lease is stale.
	q.SetClock(func() time.Time { return start.Add(10 * time.Minute) })
	require.NoError(t, q.ReleaseStale(ctx, 5*time.Minute))

	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
