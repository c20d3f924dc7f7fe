package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/internal/storage"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

func newTestEvent(t *testing.T) events.AnalyticsEvent {
	t.Helper()

	return events.AnalyticsEvent{
		EventType:    events.CTAClick,
		EventData:    map[string]any{"cta": "book_demo"},
		SessionID:    "s_test",
		VisitorID:    "v_test",
		PageURL:      "https://example.com/pricing",
		UserAgent:    "Mozilla/5.0",
		ExperimentID: 7,
		VariantID:    "bold",
		Timestamp:    time.Now(),
	}
}

func TestBuffer_Send(t *testing.T) {
	buf := storage.NewBuffer(10)
	defer buf.Close()

	if !buf.Send(newTestEvent(t)) {
		t.Fatal("expected Send to succeed on non-full buffer")
	}
	if buf.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", buf.Len())
	}
}

func TestBuffer_SendFull(t *testing.T) {
	buf := storage.NewBuffer(1)
	defer buf.Close()

	if !buf.Send(newTestEvent(t)) {
		t.Fatal("expected first Send to succeed")
	}

	// Second send must fail non-blocking.
	if buf.Send(newTestEvent(t)) {
		t.Fatal("expected Send to return false when buffer is full")
	}
}

func TestBuffer_CloseIdempotent(t *testing.T) {
	buf := storage.NewBuffer(1)
	buf.Close()
	buf.Close()
}

func TestStore_BatchInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	buf := storage.NewBuffer(10)
	store := storage.NewStore(db, buf, logger.NewNop(), time.Second, 10)

	mock.ExpectExec("INSERT INTO analytics_events").
		WillReturnResult(sqlmock.NewResult(0, 2))

	batch := []events.AnalyticsEvent{newTestEvent(t), newTestEvent(t)}
	if err := store.BatchInsert(context.Background(), batch); err != nil {
		t.Fatalf("BatchInsert() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStore_BatchInsertEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	buf := storage.NewBuffer(10)
	store := storage.NewStore(db, buf, logger.NewNop(), time.Second, 10)

	if err := store.BatchInsert(context.Background(), nil); err != nil {
		t.Fatalf("BatchInsert(nil) error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database calls: %v", err)
	}
}

func TestStore_FlushOnThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO analytics_events").
		WillReturnResult(sqlmock.NewResult(0, 2))

	buf := storage.NewBuffer(10)
	store := storage.NewStore(db, buf, logger.NewNop(), time.Hour, 2)
	store.Start()

	buf.Send(newTestEvent(t))
	buf.Send(newTestEvent(t))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mock.ExpectationsWereMet() == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.Stop()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("threshold flush never happened: %v", err)
	}
}

func TestStore_StopDrainsBuffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO analytics_events").
		WillReturnResult(sqlmock.NewResult(0, 3))

	buf := storage.NewBuffer(10)
	store := storage.NewStore(db, buf, logger.NewNop(), time.Hour, 100)
	store.Start()

	buf.Send(newTestEvent(t))
	buf.Send(newTestEvent(t))
	buf.Send(newTestEvent(t))

	store.Stop()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("stop did not flush buffered events: %v", err)
	}
}
