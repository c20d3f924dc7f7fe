package experiments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

const (
	defaultCatalogTimeout = 2 * time.Second
	defaultCatalogTTL     = 5 * time.Minute

	activeExperimentsPath = "/api/experiments/active"
)

// CatalogSource supplies the active experiment definitions.
type CatalogSource interface {
	ActiveExperiments(ctx context.Context) ([]events.Experiment, error)
}

// activeResponse is the catalog endpoint's envelope.
type activeResponse struct {
	Success bool                `json:"success"`
	Data    []events.Experiment `json:"data"`
}

// Catalog fetches active experiments over HTTP and caches them for a short
// window so repeated page loads within the TTL share one fetch.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	cached    []events.Experiment
	fetchedAt time.Time
}

// CatalogOption customizes a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogTTL overrides the cache window.
func WithCatalogTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithCatalogHTTPClient overrides the HTTP client.
func WithCatalogHTTPClient(client *http.Client) CatalogOption {
	return func(c *Catalog) { c.httpClient = client }
}

// NewCatalog creates a Catalog for the given server base URL.
func NewCatalog(baseURL string, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultCatalogTimeout},
		ttl:        defaultCatalogTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveExperiments returns the active experiment definitions, serving the
// cached copy while it is fresh.
func (c *Catalog) ActiveExperiments(ctx context.Context) ([]events.Experiment, error) {
	c.mu.Lock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	fetched, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = fetched
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return fetched, nil
}

func (c *Catalog) fetch(ctx context.Context) ([]events.Experiment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+activeExperimentsPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch experiments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch experiments: status %d", resp.StatusCode)
	}

	var body activeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode experiments: %w", err)
	}

	return body.Data, nil
}

// StaticCatalog is a CatalogSource over a fixed experiment list. Useful for
// tests and for embedding experiment definitions directly.
type StaticCatalog []events.Experiment

// ActiveExperiments returns the fixed list.
func (s StaticCatalog) ActiveExperiments(context.Context) ([]events.Experiment, error) {
	return s, nil
}
