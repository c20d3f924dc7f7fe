package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

// ErrCircuitOpen is returned while the sink's circuit breaker is open and
// blocking requests.
var ErrCircuitOpen = errors.New("analytics sink circuit breaker open")

const (
	defaultSinkTimeout = 2 * time.Second

	breakerThreshold   = 5
	breakerHalfOpenAge = 30 * time.Second
	breakerCloseAfter  = 2

	batchPath   = "/api/analytics/batch"
	trackPath   = "/api/analytics/track"
	convertPath = "/api/experiments/convert"
)

// Sink receives flushed event batches.
type Sink interface {
	Send(ctx context.Context, batch []events.AnalyticsEvent) error
}

type batchRequest struct {
	Events []events.AnalyticsEvent `json:"events"`
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type circuitBreaker struct {
	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	lastFailure         time.Time
	successesSinceOpen  int
}

// HTTPSink posts event batches to the ingestion endpoint. It is
// fire-and-forget with a circuit breaker: after repeated failures it stops
// hammering the sink until a half-open probe succeeds. An empty base URL
// makes every method a no-op, so integration stays optional.
type HTTPSink struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitBreaker
}

// NewHTTPSink creates an HTTPSink for the given server base URL.
func NewHTTPSink(baseURL string) *HTTPSink {
	return &HTTPSink{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultSinkTimeout},
		breaker:    &circuitBreaker{},
	}
}

// IsEnabled returns true if the sink is configured with a URL.
func (s *HTTPSink) IsEnabled() bool {
	return s.baseURL != ""
}

// CircuitOpen returns true if the circuit breaker is open.
func (s *HTTPSink) CircuitOpen() bool {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()

	return s.breaker.state == circuitOpen
}

// Send posts a batch of events to the batch ingestion endpoint.
func (s *HTTPSink) Send(ctx context.Context, batch []events.AnalyticsEvent) error {
	if !s.IsEnabled() || len(batch) == 0 {
		return nil
	}

	if !s.breakerAllow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(batchRequest{Events: batch})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	return s.doPost(ctx, batchPath, body)
}

// SendOne posts a single event to the single-event ingestion endpoint.
func (s *HTTPSink) SendOne(ctx context.Context, evt events.AnalyticsEvent) error {
	if !s.IsEnabled() {
		return nil
	}

	if !s.breakerAllow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.doPost(ctx, trackPath, body)
}

// Convert posts a conversion to the dedicated conversion endpoint. Most
// callers track conversions through the queue instead; this exists for
// hosts that record conversions server-side.
func (s *HTTPSink) Convert(ctx context.Context, req events.ConversionRequest) error {
	if !s.IsEnabled() {
		return nil
	}

	if !s.breakerAllow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal conversion: %w", err)
	}

	return s.doPost(ctx, convertPath, body)
}

// doPost performs an HTTP POST and records circuit breaker results.
func (s *HTTPSink) doPost(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		s.breakerRecordFailure()

		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.breakerRecordFailure()

		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.breakerRecordFailure()

		return fmt.Errorf("analytics sink error: status %d", resp.StatusCode)
	}

	s.breakerRecordSuccess()

	return nil
}

func (s *HTTPSink) breakerAllow() bool {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()

	switch s.breaker.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(s.breaker.lastFailure) > breakerHalfOpenAge {
			s.breaker.state = circuitHalfOpen
			s.breaker.successesSinceOpen = 0

			return true
		}

		return false
	case circuitHalfOpen:
		return true
	}

	return true
}

func (s *HTTPSink) breakerRecordFailure() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()

	s.breaker.consecutiveFailures++
	s.breaker.lastFailure = time.Now()
	s.breaker.successesSinceOpen = 0

	if s.breaker.consecutiveFailures >= breakerThreshold {
		s.breaker.state = circuitOpen
	}
}

func (s *HTTPSink) breakerRecordSuccess() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()

	if s.breaker.state == circuitHalfOpen {
		s.breaker.successesSinceOpen++

		if s.breaker.successesSinceOpen >= breakerCloseAfter {
			s.breaker.state = circuitClosed
			s.breaker.consecutiveFailures = 0
		}
	} else {
		s.breaker.consecutiveFailures = 0
	}
}

// SinkFunc adapts a function to the Sink interface. Tests use it to count
// and fail flushes.
type SinkFunc func(ctx context.Context, batch []events.AnalyticsEvent) error

// Send calls the function.
func (f SinkFunc) Send(ctx context.Context, batch []events.AnalyticsEvent) error {
	return f(ctx, batch)
}
