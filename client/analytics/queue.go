// Package analytics implements the telemetry batching pipeline: events are
// buffered in memory, coalesced by a debounce timer, and flushed in batches
// to a remote sink with bounded re-queueing on failure.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/identity"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

// Defaults for queue behavior.
const (
	// DefaultFlushDelay is the debounce window: bursts of enqueues within
	// it coalesce into a single flush.
	DefaultFlushDelay = 2 * time.Second

	// DefaultMaxRequeue bounds how many failed events are retained for
	// retry. Events beyond the bound are dropped; sustained sink outage
	// degrades to data loss, never to unbounded memory growth.
	DefaultMaxRequeue = 100
)

// Queue buffers analytics events and flushes them in batches. Each Queue is
// an independent instance with injected configuration; create one per page
// lifetime (or one per test).
type Queue struct {
	sink    Sink
	ids     *identity.Provider
	pageURL string
	log     logger.Logger

	flushDelay time.Duration
	maxRequeue int
	now        func() time.Time

	mu      sync.Mutex
	pending []events.AnalyticsEvent
	timer   *time.Timer
	closed  bool
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithFlushDelay overrides the debounce window.
func WithFlushDelay(d time.Duration) QueueOption {
	return func(q *Queue) { q.flushDelay = d }
}

// WithMaxRequeue overrides the failed-event retention bound.
func WithMaxRequeue(n int) QueueOption {
	return func(q *Queue) { q.maxRequeue = n }
}

// WithClock overrides the timestamp source. Tests use this to pin capture
// times.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// NewQueue creates a Queue sending batches to sink. ids supplies the visitor
// and session tokens stamped on tracked events; pageURL is the page the
// events originate from.
func NewQueue(sink Sink, ids *identity.Provider, pageURL string, log logger.Logger, opts ...QueueOption) *Queue {
	if log == nil {
		log = logger.NewNop()
	}
	q := &Queue{
		sink:       sink,
		ids:        ids,
		pageURL:    pageURL,
		log:        log,
		flushDelay: DefaultFlushDelay,
		maxRequeue: DefaultMaxRequeue,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Track builds an event carrying the queue's identity and page context and
// enqueues it. experiment_id and variant_id entries in data are lifted into
// the event's dedicated columns as well.
func (q *Queue) Track(eventType events.EventType, data map[string]any) {
	evt := events.AnalyticsEvent{
		EventType: eventType,
		EventData: data,
		SessionID: q.ids.SessionID(),
		VisitorID: q.ids.VisitorID(),
		PageURL:   q.pageURL,
	}
	if id, ok := data["experiment_id"].(int); ok {
		evt.ExperimentID = id
	}
	if id, ok := data["variant_id"].(string); ok {
		evt.VariantID = id
	}
	q.Enqueue(evt)
}

// Enqueue appends a fully-formed event (stamping capture time if unset) and
// schedules a debounced flush.
func (q *Queue) Enqueue(evt events.AnalyticsEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.pending = append(q.pending, evt)
	q.scheduleFlushLocked()
}

// scheduleFlushLocked arms the debounce timer if none is pending. Callers
// must hold q.mu.
func (q *Queue) scheduleFlushLocked() {
	if q.timer != nil {
		return
	}
	q.timer = time.AfterFunc(q.flushDelay, func() {
		q.mu.Lock()
		q.timer = nil
		q.mu.Unlock()

		if err := q.Flush(context.Background()); err != nil {
			q.log.Warn("Analytics flush failed", logger.Error(err))
		}
	})
}

// Flush swaps the pending events out and sends them as one batch. Events
// enqueued while the send is in flight land in the fresh queue, not the
// in-flight batch. On failure the batch is re-queued at the front, bounded
// by the retention limit (newest events win). No retry is self-scheduled;
// the next enqueue or lifecycle flush retries.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := q.sink.Send(ctx, batch)
	if err == nil {
		return nil
	}

	q.mu.Lock()
	room := q.maxRequeue - len(q.pending)
	if room > 0 {
		if len(batch) > room {
			// Drop the oldest overflow silently.
			batch = batch[len(batch)-room:]
		}
		q.pending = append(batch, q.pending...)
	}
	q.mu.Unlock()

	return err
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the debounce timer, performs a final best-effort flush, and
// rejects further enqueues. This is the page-unload analog: a synchronous
// delivery guarantee is not achievable, so remaining events are sent best
// effort and anything the sink rejects is lost.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	return q.Flush(context.Background())
}
