package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hiive-relay/internal/event"
	"hiive-relay/internal/queue"
	relay_errors "hiive-relay/pkg/errors"
)

type queueRepository struct {
	db DBTX
}

// NewQueueRepository returns the Postgres-backed DurableQueue. The
// hiive_events_queue table must exist (see InitSchema).
func NewQueueRepository(db DBTX) queue.DurableQueue {
	return &queueRepository{db: db}
}

func (r *queueRepository) Push(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return relay_errors.ErrEmptyBatch
	}

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*2)
	for i, e := range events {
		raw, err := e.Encode()
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.Key, err)
		}
		values = append(values, fmt.Sprintf("($%d,$%d)", i*2+1, i*2+2))
		args = append(args, raw, event.EncodingVersion)
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO hiive_events_queue (event, encoding_version)
        VALUES `+strings.Join(values, ","),
		args...,
	)
	return err
}

func (r *queueRepository) Pull(ctx context.Context, count int) ([]queue.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, event, encoding_version, attempts, reserved_at, available_at, created_at
        FROM hiive_events_queue
        WHERE reserved_at IS NULL AND available_at <= now()
        ORDER BY available_at ASC, id ASC
        LIMIT $1
    `, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []queue.Record
	for rows.Next() {
		var (
			rec     queue.Record
			raw     []byte
			version int
		)
		if err := rows.Scan(
			&rec.ID,
			&raw,
			&version,
			&rec.Attempts,
			&rec.ReservedAt,
			&rec.AvailableAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Event, err = event.Decode(version, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Reserve flips reserved_at only on rows still NULL, inside one transaction.
// A partial match means another worker holds part of the set; the update is
// rolled back and the lease is not acquired.
func (r *queueRepository) Reserve(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	err := WithTx(ctx, r.db, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE hiive_events_queue
            SET reserved_at = now()
            WHERE id IN (`+buildPlaceholders(1, len(ids))+`) AND reserved_at IS NULL
        `, idArgs(ids)...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return relay_errors.ErrReservationConflict
		}
		return nil
	})
	if errors.Is(err, relay_errors.ErrReservationConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *queueRepository) Release(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE hiive_events_queue
        SET reserved_at = NULL
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, idArgs(ids)...)
	return err
}

func (r *queueRepository) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM hiive_events_queue
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, idArgs(ids)...)
	return err
}

func (r *queueRepository) IncrementAttempt(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE hiive_events_queue
        SET attempts = attempts + 1
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, idArgs(ids)...)
	return err
}

func (r *queueRepository) RemoveExceedingAttempts(ctx context.Context, limit int) error {
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM hiive_events_queue
        WHERE attempts > $1
    `, limit)
	return err
}

func (r *queueRepository) ReleaseStale(ctx context.Context, olderThan time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE hiive_events_queue
        SET reserved_at = NULL
        WHERE reserved_at IS NOT NULL AND reserved_at < $1
    `, time.Now().Add(-olderThan))
	return err
}

func (r *queueRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM hiive_events_queue
        WHERE reserved_at IS NULL AND available_at <= now()
    `).Scan(&n)
	return n, err
}
