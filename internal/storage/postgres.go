// Package storage manages buffered batch writes of analytics events and
// access to the experiments catalog in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

const (
	// columnsPerRow is the number of columns inserted per event row.
	columnsPerRow = 10

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	// flushTimeout is the context timeout for each flush operation.
	flushTimeout = 5 * time.Second
)

// Buffer is a channel-based event buffer for non-blocking ingestion. The
// HTTP handlers send into it; the Store drains it in the background so a
// slow database never blocks request handling.
type Buffer struct {
	events chan events.AnalyticsEvent
	closed chan struct{}
	once   sync.Once
}

// NewBuffer creates a buffer with a buffered channel of the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		events: make(chan events.AnalyticsEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Send performs a non-blocking send of an event into the buffer.
// It returns false if the buffer channel is full.
func (b *Buffer) Send(event events.AnalyticsEvent) bool {
	select {
	case b.events <- event:
		return true
	default:
		return false
	}
}

// Len returns the number of events currently in the buffer channel.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Close signals the buffer to stop accepting events.
// It is safe to call multiple times.
func (b *Buffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// Store manages buffered writes of analytics events to PostgreSQL.
type Store struct {
	db             *sql.DB
	buffer         *Buffer
	log            logger.Logger
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

// NewStore creates a Store that reads events from buffer and batch-inserts
// them.
func NewStore(
	db *sql.DB,
	buffer *Buffer,
	log logger.Logger,
	flushInterval time.Duration,
	flushThreshold int,
) *Store {
	return &Store{
		db:             db,
		buffer:         buffer,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Start launches the background goroutine that reads events and flushes batches.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop signals the buffer to close and waits for the flush goroutine to finish.
func (s *Store) Stop() {
	s.buffer.Close()
	s.wg.Wait()
}

// flushLoop reads events from the buffer, accumulates a batch, and flushes
// when the batch reaches flushThreshold or the flushInterval ticker fires.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]events.AnalyticsEvent, 0, s.flushThreshold)

	for {
		select {
		case event := <-s.buffer.events:
			batch = append(batch, event)
			if len(batch) >= s.flushThreshold {
				s.flush(batch)
				batch = make([]events.AnalyticsEvent, 0, s.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]events.AnalyticsEvent, 0, s.flushThreshold)
			}

		case <-s.buffer.closed:
			s.drain(&batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

// drain reads all remaining events from the buffer channel into the batch.
func (s *Store) drain(batch *[]events.AnalyticsEvent) {
	for {
		select {
		case event := <-s.buffer.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

// flush writes a batch of events to PostgreSQL in chunks of insertBatchSize.
func (s *Store) flush(batch []events.AnalyticsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for start := 0; start < len(batch); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		if err := s.BatchInsert(ctx, batch[start:end]); err != nil {
			s.log.Error("Failed to insert analytics events",
				logger.Error(err),
				logger.Int("batch_size", end-start),
			)
		}
	}

	s.log.Debug("Flushed analytics events",
		logger.Int("total", len(batch)),
	)
}

// BatchInsert builds and executes a single INSERT statement with multiple
// value tuples.
func (s *Store) BatchInsert(ctx context.Context, batch []events.AnalyticsEvent) error {
	if len(batch) == 0 {
		return nil
	}

	args := make([]any, 0, len(batch)*columnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO analytics_events (event_type, event_data, session_id, " +
		"visitor_id, page_url, referrer, user_agent, experiment_id, variant_id, created_at) VALUES ")

	for i := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}

		writeValueTuple(&sb, i)

		args = append(args, rowArgs(batch[i])...)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}

	return nil
}

// rowArgs converts one event into its positional insert arguments.
func rowArgs(evt events.AnalyticsEvent) []any {
	var data any
	if len(evt.EventData) > 0 {
		if raw, err := json.Marshal(evt.EventData); err == nil {
			data = raw
		}
	}

	var experimentID any
	if evt.ExperimentID != 0 {
		experimentID = evt.ExperimentID
	}

	var variantID any
	if evt.VariantID != "" {
		variantID = evt.VariantID
	}

	createdAt := evt.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return []any{
		string(evt.EventType), data, evt.SessionID, evt.VisitorID,
		evt.PageURL, evt.Referrer, evt.UserAgent, experimentID, variantID,
		createdAt,
	}
}

// writeValueTuple writes a single ($1, ..., $10) placeholder tuple to the
// builder, offset by the row index.
func writeValueTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * columnsPerRow
	sb.WriteString("(")
	for col := 1; col <= columnsPerRow; col++ {
		if col > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteString(")")
}
