package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

// Recorder is the reporting dependency of the derived trackers. *Queue
// satisfies it.
type Recorder interface {
	Track(eventType events.EventType, data map[string]any)
}

// scrollMilestones are the fixed depth percentages worth reporting.
var scrollMilestones = []int{25, 50, 75, 100}

// ScrollTracker emits scroll_depth events when the scroll position crosses
// upward past a milestone. Each milestone fires exactly once per tracker
// lifetime: scrolling back up and down again never re-fires one.
type ScrollTracker struct {
	recorder Recorder

	mu   sync.Mutex
	last int
}

// NewScrollTracker creates a tracker reporting through recorder (typically a
// *Queue).
func NewScrollTracker(recorder Recorder) *ScrollTracker {
	return &ScrollTracker{recorder: recorder}
}

// Observe records the current scroll depth percentage. At most one milestone
// fires per observation: the lowest one not yet passed.
func (t *ScrollTracker) Observe(percent int) {
	t.mu.Lock()
	milestone := 0
	for _, m := range scrollMilestones {
		if percent >= m && m > t.last {
			milestone = m
			break
		}
	}
	if milestone != 0 {
		t.last = milestone
	}
	t.mu.Unlock()

	if milestone != 0 {
		t.recorder.Track(events.ScrollDepth, map[string]any{"depth": milestone})
	}
}

// ScrollPercent converts raw scroll geometry into a rounded percentage.
// A page shorter than the viewport counts as fully scrolled.
func ScrollPercent(scrollTop, scrollHeight, viewportHeight float64) int {
	scrollable := scrollHeight - viewportHeight
	if scrollable <= 0 {
		return 100
	}
	return int(math.Round(scrollTop / scrollable * 100))
}

// DefaultTimeOffsets are the wall-clock marks after mount at which
// time_on_page events fire.
var DefaultTimeOffsets = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

// TimeOnPageTracker emits one time_on_page event at each configured offset
// after Start, carrying the elapsed whole seconds.
type TimeOnPageTracker struct {
	recorder Recorder
	offsets  []time.Duration

	mu      sync.Mutex
	started time.Time
	timers  []*time.Timer
}

// NewTimeOnPageTracker creates a tracker with the given offsets; nil offsets
// mean DefaultTimeOffsets.
func NewTimeOnPageTracker(recorder Recorder, offsets []time.Duration) *TimeOnPageTracker {
	if offsets == nil {
		offsets = DefaultTimeOffsets
	}
	return &TimeOnPageTracker{recorder: recorder, offsets: offsets}
}

// Start arms the offset timers. Calling Start twice is a no-op.
func (t *TimeOnPageTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started.IsZero() {
		return
	}
	t.started = time.Now()

	for _, offset := range t.offsets {
		t.timers = append(t.timers, time.AfterFunc(offset, t.fire))
	}
}

func (t *TimeOnPageTracker) fire() {
	t.mu.Lock()
	elapsed := time.Since(t.started)
	t.mu.Unlock()

	t.recorder.Track(events.TimeOnPage, map[string]any{
		"seconds": int(math.Round(elapsed.Seconds())),
	})
}

// Stop cancels any pending timers. Events already fired stay queued.
func (t *TimeOnPageTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
}
