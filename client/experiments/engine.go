// Package experiments implements the deterministic variant assignment engine:
// it maps each (visitor, active experiment) pair to exactly one weighted
// variant, persists the assignment, and exposes content lookups keyed by
// experiment name.
package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/identity"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/kv"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/logger"
)

// assignmentsKey is the kv key holding the persisted assignment map
// (experiment id → variant id, JSON-encoded).
const assignmentsKey = "ab_assignments"

// Recorder receives telemetry emitted by the engine. analytics.Queue
// satisfies it.
type Recorder interface {
	Track(eventType events.EventType, data map[string]any)
}

// Engine resolves variant assignments for one visitor. Failures never
// surface to callers: a broken catalog fetch degrades to zero experiments
// and a broken store degrades to in-memory assignments for this page view.
type Engine struct {
	catalog  CatalogSource
	store    kv.Store
	recorder Recorder
	ids      *identity.Provider
	log      logger.Logger

	// resolveMu serializes Resolve so concurrent callers wait for the
	// first resolution instead of racing it and double-emitting views.
	resolveMu sync.Mutex

	mu       sync.RWMutex
	resolved map[string]events.Assigned // keyed by experiment name
	done     bool
}

// NewEngine creates an Engine. recorder may be nil when telemetry is not
// wired (assignments still resolve; view events are dropped).
func NewEngine(
	catalog CatalogSource,
	store kv.Store,
	recorder Recorder,
	ids *identity.Provider,
	log logger.Logger,
) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		catalog:  catalog,
		store:    store,
		recorder: recorder,
		ids:      ids,
		log:      log,
		resolved: make(map[string]events.Assigned),
	}
}

// Resolve assigns a variant for every active, well-formed experiment and
// returns the resolved records. Resolution runs at most once per Engine;
// later calls (including concurrent ones) wait for and return the first
// result. New assignments are persisted
// best-effort and emit exactly one experiment_view event each; assignments
// served from the store emit nothing.
func (e *Engine) Resolve(ctx context.Context) []events.Assigned {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()

	e.mu.RLock()
	if e.done {
		assigned := assignedList(e.resolved)
		e.mu.RUnlock()
		return assigned
	}
	e.mu.RUnlock()

	exps, err := e.catalog.ActiveExperiments(ctx)
	if err != nil {
		// Degrade to zero experiments: content lookups fall through to
		// their defaults and no assignments are made.
		e.log.Warn("Experiment catalog fetch failed", logger.Error(err))
		e.mu.Lock()
		e.done = true
		e.mu.Unlock()
		return nil
	}

	visitorID := e.ids.VisitorID()
	stored := e.loadStored()
	dirty := false

	resolved := make(map[string]events.Assigned, len(exps))
	for _, exp := range exps {
		assigned, fresh, ok := e.assign(exp, visitorID, stored)
		if !ok {
			continue
		}
		if fresh {
			stored[strconv.Itoa(exp.ID)] = assigned.VariantID
			dirty = true
			e.trackView(assigned)
		}
		resolved[exp.Name] = assigned
	}

	if dirty {
		e.persistStored(stored)
	}

	e.mu.Lock()
	e.resolved = resolved
	e.done = true
	assigned := assignedList(resolved)
	e.mu.Unlock()

	return assigned
}

// assign resolves one experiment. fresh reports whether a new assignment was
// computed (as opposed to reusing a stored one); ok is false when the
// experiment must be skipped.
func (e *Engine) assign(
	exp events.Experiment,
	visitorID string,
	stored map[string]string,
) (assigned events.Assigned, fresh, ok bool) {
	if !exp.IsActive || len(exp.Variants) == 0 {
		return events.Assigned{}, false, false
	}

	// A stored assignment takes priority over re-computation as long as
	// its variant still exists: reshaping the variant set must not move
	// visitors who were already bucketed.
	if variantID, found := stored[strconv.Itoa(exp.ID)]; found {
		for _, v := range exp.Variants {
			if v.ID == variantID {
				return toAssigned(exp, v), false, true
			}
		}
	}

	variant, valid := Bucket(visitorID, exp.ID, exp.Variants)
	if !valid {
		// Malformed configuration (non-positive total weight). Treated as
		// inactive, not as a runtime fault.
		e.log.Warn("Skipping malformed experiment",
			logger.Int("experiment_id", exp.ID),
			logger.String("experiment_name", exp.Name),
		)
		return events.Assigned{}, false, false
	}

	return toAssigned(exp, variant), true, true
}

// Content returns the assigned variant's value for contentKey in the named
// experiment, or defaultValue when the experiment, assignment, or key is
// missing. It never fails.
func (e *Engine) Content(experimentName, contentKey, defaultValue string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	assigned, ok := e.resolved[experimentName]
	if !ok {
		return defaultValue
	}
	if value, ok := assigned.Content[contentKey]; ok && value != "" {
		return value
	}
	return defaultValue
}

// Assignment returns the resolved record for the named experiment.
func (e *Engine) Assignment(experimentName string) (events.Assigned, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	assigned, ok := e.resolved[experimentName]
	return assigned, ok
}

// TrackConversion emits an experiment_conversion event for the named
// experiment. It is a silent no-op when no assignment is resolved for that
// name: the experiment may be inactive or not yet resolved.
func (e *Engine) TrackConversion(experimentName, conversionType string) {
	assigned, ok := e.Assignment(experimentName)
	if !ok || e.recorder == nil {
		return
	}

	e.recorder.Track(events.Conversion, map[string]any{
		"experiment_id":   assigned.ExperimentID,
		"variant_id":      assigned.VariantID,
		"conversion_type": conversionType,
	})
}

func (e *Engine) trackView(assigned events.Assigned) {
	if e.recorder == nil {
		return
	}
	e.recorder.Track(events.ExperimentView, map[string]any{
		"experiment_id": assigned.ExperimentID,
		"variant_id":    assigned.VariantID,
	})
}

// loadStored reads the persisted assignment map. Any read or decode failure
// degrades to an empty map.
func (e *Engine) loadStored() map[string]string {
	raw, err := e.store.Get(assignmentsKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			e.log.Warn("Assignment store read failed", logger.Error(err))
		}
		return make(map[string]string)
	}

	stored := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		e.log.Warn("Assignment store corrupt, resetting", logger.Error(err))
		return make(map[string]string)
	}
	return stored
}

// persistStored writes the assignment map back. A failed write means the
// assignment is not durable for the next page load; resolution for the
// current page still stands.
func (e *Engine) persistStored(stored map[string]string) {
	raw, err := json.Marshal(stored)
	if err != nil {
		e.log.Warn("Assignment map encode failed", logger.Error(err))
		return
	}
	if err := e.store.Set(assignmentsKey, string(raw)); err != nil {
		e.log.Warn("Assignment store write failed", logger.Error(err))
	}
}

func toAssigned(exp events.Experiment, v events.Variant) events.Assigned {
	return events.Assigned{
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		VariantID:      v.ID,
		VariantName:    v.Name,
		Content:        v.Content,
	}
}

func assignedList(resolved map[string]events.Assigned) []events.Assigned {
	out := make([]events.Assigned, 0, len(resolved))
	for _, a := range resolved {
		out = append(out, a)
	}
	return out
}
