package manager

import (
	"context"
	"sync"
	"time"

	"hiive-relay/internal/event"
	"hiive-relay/internal/queue"
	"hiive-relay/internal/transport"
	"hiive-relay/pkg/logger"

	"github.com/google/uuid"
)

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	BatchSize     int
	AttemptsLimit int
	SyncTimeout   time.Duration
	BatchTimeout  time.Duration
	LeaseTTL      time.Duration

	// DeferredKeys are event keys excluded from the synchronous
	// end-of-request send and persisted straight to the durable queue.
	DeferredKeys []string

	// DeferredOverride, when set, decides deferral instead of DeferredKeys.
	DeferredOverride func(event.Event) bool

	// MaxBuffered caps the request-scoped buffer; pushes past it are
	// dropped rather than failing the request.
	MaxBuffered int
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.AttemptsLimit <= 0 {
		o.AttemptsLimit = 3
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 750 * time.Millisecond
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 10 * time.Second
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 5 * time.Minute
	}
	if o.DeferredKeys == nil {
		o.DeferredKeys = []string{"pageview"}
	}
	if o.MaxBuffered <= 0 {
		o.MaxBuffered = 100
	}
}

// Manager is the single intake point for events during a request lifecycle
// and the driver of the periodic retry-queue flush. The intake layer creates
// one per request; the background runner reuses one for batch flushes.
type Manager struct {
	queue     queue.DurableQueue
	transport transport.Deliverer
	log       *logger.Logger
	opts      Options
	deferred  map[string]bool

	mu     sync.Mutex
	buffer []event.Event
}

func New(q queue.DurableQueue, t transport.Deliverer, log *logger.Logger, opts Options) *Manager {
	opts.applyDefaults()
	deferred := make(map[string]bool, len(opts.DeferredKeys))
	for _, k := range opts.DeferredKeys {
		deferred[k] = true
	}
	return &Manager{
		queue:     q,
		transport: t,
		log:       log,
		opts:      opts,
		deferred:  deferred,
	}
}

// Push appends the event to the request-scoped buffer. No I/O, never fails
// the caller: past the buffer cap the event is dropped and logged.
func (m *Manager) Push(e event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buffer) >= m.opts.MaxBuffered {
		m.log.Warnf("request buffer full, dropping event %s/%s", e.Category, e.Key)
		return
	}
	m.buffer = append(m.buffer, e)
}

// isDeferred reports whether the event skips the synchronous send.
func (m *Manager) isDeferred(e event.Event) bool {
	if m.opts.DeferredOverride != nil {
		return m.opts.DeferredOverride(e)
	}
	return m.deferred[e.Key]
}

// Shutdown flushes the request buffer once at end-of-request. Deferred
// events are persisted to the durable queue; the rest go out in one
// synchronous delivery bounded by the sync timeout. A failed synchronous
// send falls back into the durable queue so interactive events keep the
// at-least-once guarantee.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	buffered := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if len(buffered) == 0 {
		return
	}

	var deferred, immediate []event.Event
	for _, e := range buffered {
		if m.isDeferred(e) {
			deferred = append(deferred, e)
		} else {
			immediate = append(immediate, e)
		}
	}

	if len(deferred) > 0 {
		if err := m.queue.Push(ctx, deferred); err != nil {
			m.log.Errorf("failed to queue %d deferred events: %s", len(deferred), err)
		}
	}

	if len(immediate) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.opts.SyncTimeout)
	defer cancel()

	result, err := m.transport.Deliver(sendCtx, immediate)
	if err != nil {
		m.log.Warnf("synchronous send of %d events failed, queueing for retry: %s", len(immediate), err)
		if qErr := m.queue.Push(ctx, immediate); qErr != nil {
			m.log.Errorf("failed to queue fallback events: %s", qErr)
		}
		return
	}

	if failed := selectByID(immediate, result.Failed); len(failed) > 0 {
		m.log.Warnf("remote rejected %d events, queueing for retry", len(failed))
		if qErr := m.queue.Push(ctx, failed); qErr != nil {
			m.log.Errorf("failed to queue rejected events: %s", qErr)
		}
	}
}

// SendSavedEventsBatch runs one retry-queue flush cycle. Invoked by the
// periodic runner; also safe to call ad hoc. Overlapping cycles coordinate
// through the queue's reservation: losing the lease race means nothing to do.
func (m *Manager) SendSavedEventsBatch(ctx context.Context) {
	// Purge poison records before they consume batch capacity, and reclaim
	// leases stranded by a crashed worker.
	if err := m.queue.RemoveExceedingAttempts(ctx, m.opts.AttemptsLimit); err != nil {
		m.log.Errorf("failed to evict poison records: %s", err)
	}
	if err := m.queue.ReleaseStale(ctx, m.opts.LeaseTTL); err != nil {
		m.log.Errorf("failed to release stale leases: %s", err)
	}

	records, err := m.queue.Pull(ctx, m.opts.BatchSize)
	if err != nil {
		m.log.Errorf("failed to pull queued events: %s", err)
		return
	}
	if len(records) == 0 {
		return
	}

	ids := make([]int64, len(records))
	events := make([]event.Event, len(records))
	for i, r := range records {
		ids[i] = r.ID
		events[i] = r.Event
	}

	ok, err := m.queue.Reserve(ctx, ids)
	if err != nil {
		m.log.Errorf("failed to reserve queued events: %s", err)
		return
	}
	if !ok {
		// Another flush cycle holds (part of) the batch. Normal, not an error.
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.opts.BatchTimeout)
	defer cancel()

	result, err := m.transport.Deliver(sendCtx, events)
	if err != nil {
		m.log.Warnf("batch delivery of %d events failed: %s", len(events), err)
		m.retryLater(ctx, ids)
		return
	}

	succeededIDs := recordIDsByEvent(records, result.Succeeded)
	if err := m.queue.Remove(ctx, succeededIDs); err != nil {
		m.log.Errorf("failed to remove delivered events: %s", err)
	}

	failedIDs := difference(ids, succeededIDs)
	if len(failedIDs) > 0 {
		m.retryLater(ctx, failedIDs)
	}
}

// retryLater counts the failed attempt, returns the records to eligibility
// and evicts any that just ran out of attempts. The counter is bumped on
// every failed attempt regardless of failure kind, so transport-level errors
// and per-event rejections age records at the same rate.
func (m *Manager) retryLater(ctx context.Context, ids []int64) {
	if err := m.queue.IncrementAttempt(ctx, ids); err != nil {
		m.log.Errorf("failed to increment attempts: %s", err)
	}
	if err := m.queue.Release(ctx, ids); err != nil {
		m.log.Errorf("failed to release queued events: %s", err)
	}
	if err := m.queue.RemoveExceedingAttempts(ctx, m.opts.AttemptsLimit); err != nil {
		m.log.Errorf("failed to evict poison records: %s", err)
	}
}

func selectByID(events []event.Event, ids []uuid.UUID) []event.Event {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []event.Event
	for _, e := range events {
		if wanted[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

func recordIDsByEvent(records []queue.Record, eventIDs []uuid.UUID) []int64 {
	if len(eventIDs) == 0 {
		return nil
	}
	wanted := make(map[uuid.UUID]bool, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = true
	}
	var out []int64
	for _, r := range records {
		if wanted[r.Event.ID] {
			out = append(out, r.ID)
		}
	}
	return out
}

func difference(all, exclude []int64) []int64 {
	if len(exclude) == 0 {
		return all
	}
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []int64
	for _, id := range all {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
