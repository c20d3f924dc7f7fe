package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/analytics"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

func sampleBatch(n int) []events.AnalyticsEvent {
	batch := make([]events.AnalyticsEvent, n)
	for i := range batch {
		batch[i] = events.AnalyticsEvent{
			EventType: events.PageView,
			SessionID: "s_test",
			VisitorID: "v_test",
			PageURL:   testPageURL,
		}
	}
	return batch
}

func TestHTTPSink_SendPostsBatch(t *testing.T) {
	var got struct {
		Events []events.AnalyticsEvent `json:"events"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/analytics/batch" {
			t.Errorf("path = %s, want /api/analytics/batch", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode error: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := analytics.NewHTTPSink(server.URL)
	if err := sink.Send(context.Background(), sampleBatch(3)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(got.Events) != 3 {
		t.Errorf("server received %d events, want 3", len(got.Events))
	}
}

func TestHTTPSink_ConvertPostsConversion(t *testing.T) {
	var got events.ConversionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/experiments/convert" {
			t.Errorf("path = %s, want /api/experiments/convert", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode error: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := analytics.NewHTTPSink(server.URL)
	err := sink.Convert(context.Background(), events.ConversionRequest{
		ExperimentID:   7,
		VariantID:      "bold",
		ConversionType: "demo_request",
	})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if got.ExperimentID != 7 || got.VariantID != "bold" {
		t.Errorf("conversion = %+v", got)
	}
}

func TestHTTPSink_ErrorStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := analytics.NewHTTPSink(server.URL)
	if err := sink.Send(context.Background(), sampleBatch(1)); err == nil {
		t.Error("expected an error from a 500 response")
	}
}

func TestHTTPSink_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := analytics.NewHTTPSink(server.URL)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := sink.Send(ctx, sampleBatch(1)); err == nil {
			t.Fatalf("send %d: expected error", i)
		}
	}

	if !sink.CircuitOpen() {
		t.Fatal("expected circuit to open after 5 consecutive failures")
	}

	err := sink.Send(ctx, sampleBatch(1))
	if !errors.Is(err, analytics.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if hits.Load() != 5 {
		t.Errorf("server hits = %d, want 5 (open circuit blocks requests)", hits.Load())
	}
}

func TestHTTPSink_DisabledWithoutURL(t *testing.T) {
	sink := analytics.NewHTTPSink("")

	if sink.IsEnabled() {
		t.Error("empty base URL should disable the sink")
	}
	if err := sink.Send(context.Background(), sampleBatch(1)); err != nil {
		t.Errorf("disabled Send() error = %v, want nil", err)
	}
}

func TestHTTPSink_EmptyBatchIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("empty batch should not reach the server")
	}))
	defer server.Close()

	sink := analytics.NewHTTPSink(server.URL)
	if err := sink.Send(context.Background(), nil); err != nil {
		t.Errorf("Send(nil) error = %v", err)
	}
}
