package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiive-relay/internal/event"
	"hiive-relay/internal/repository"
	relay_errors "hiive-relay/pkg/errors"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set (integration test)")
	}
	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, repository.InitSchema(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE hiive_events_queue`)
	require.NoError(t, err)
	return db
}

func makeEvent(key string) event.Event {
	return event.New(event.StaticSource{}, "test", key, nil)
}

func TestQueueLifecycle(t *testing.T) {
	db := testDB(t)
	q := repository.NewQueueRepository(db)
	ctx := context.Background()

	require.ErrorIs(t, q.Push(ctx, nil), relay_errors.ErrEmptyBatch)

	pushed := []event.Event{makeEvent("login"), makeEvent("pageview")}
	require.NoError(t, q.Push(ctx, pushed))

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, pushed[0].ID, records[0].Event.ID, "oldest first")
	assert.Equal(t, 1, records[0].Attempts)
	assert.False(t, records[0].Reserved())

	ids := []int64{records[0].ID, records[1].ID}
	ok, err := q.Reserve(ctx, ids)
	require.NoError(t, err)
	require.True(t, ok)

	// Reserved records are invisible and cannot be re-leased.
	invisible, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, invisible)
	ok, err = q.Reserve(ctx, ids[:1])
	require.NoError(t, err)
	assert.False(t, ok)

	// Success removes, failure releases with a bumped attempt counter.
	require.NoError(t, q.Remove(ctx, ids[:1]))
	require.NoError(t, q.IncrementAttempt(ctx, ids[1:]))
	require.NoError(t, q.Release(ctx, ids[1:]))

	records, err = q.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pushed[1].ID, records[0].Event.ID)
	assert.Equal(t, 2, records[0].Attempts)
}

func TestReserveIsAllOrNothing(t *testing.T) {
	db := testDB(t)
	q := repository.NewQueueRepository(db)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a"), makeEvent("b")}))
	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ok, err := q.Reserve(ctx, []int64{records[0].ID})
	require.NoError(t, err)
	require.True(t, ok)

	// Overlapping set must fail without leasing the free record.
	ok, err = q.Reserve(ctx, []int64{records[0].ID, records[1].ID})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = q.Reserve(ctx, []int64{records[1].ID})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvictionPastAttemptLimit(t *testing.T) {
	db := testDB(t)
	q := repository.NewQueueRepository(db)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("poison")}))
	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	id := records[0].ID

	for i := 0; i < 3; i++ {
		require.NoError(t, q.IncrementAttempt(ctx, []int64{id}))
	}
	require.NoError(t, q.RemoveExceedingAttempts(ctx, 3))
	require.NoError(t, q.RemoveExceedingAttempts(ctx, 3)) // idempotent

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReleaseStale(t *testing.T) {
	db := testDB(t)
	q := repository.NewQueueRepository(db)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []event.Event{makeEvent("a")}))
	records, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	id := records[0].ID

	ok, err := q.Reserve(ctx, []int64{id})
	require.NoError(t, err)
	require.True(t, ok)

	// A fresh lease is not stale.
	require.NoError(t, q.ReleaseStale(ctx, time.Hour))
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// With a zero TTL every lease is stale.
	require.NoError(t, q.ReleaseStale(ctx, 0))
	n, err = q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
