package analytics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/analytics"
	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

// trackSpy records Track calls.
type trackSpy struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (s *trackSpy) Track(_ events.EventType, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, data)
}

func (s *trackSpy) depths() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []int
	for _, c := range s.calls {
		if d, ok := c["depth"].(int); ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *trackSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestScrollTracker_MilestoneSequence(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewScrollTracker(spy)

	// Includes backward scrolls and a big jump; each milestone fires once,
	// in order, one per observation.
	for _, pct := range []int{10, 30, 26, 60, 80, 40, 100} {
		tracker.Observe(pct)
	}

	want := []int{25, 50, 75, 100}
	got := spy.depths()
	if len(got) != len(want) {
		t.Fatalf("depths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("depths = %v, want %v", got, want)
		}
	}
}

func TestScrollTracker_OneMilestonePerObservation(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewScrollTracker(spy)

	// Jumping straight to the bottom fires only the lowest uncrossed
	// milestone; later observations pick up the rest.
	tracker.Observe(100)
	if got := spy.depths(); len(got) != 1 || got[0] != 25 {
		t.Fatalf("depths after jump = %v, want [25]", got)
	}

	tracker.Observe(100)
	tracker.Observe(100)
	tracker.Observe(100)
	if got := spy.depths(); len(got) != 4 || got[3] != 100 {
		t.Fatalf("depths = %v, want [25 50 75 100]", got)
	}
}

func TestScrollTracker_NeverRefires(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewScrollTracker(spy)

	tracker.Observe(30)
	tracker.Observe(5)
	tracker.Observe(30)
	tracker.Observe(30)

	if got := spy.depths(); len(got) != 1 || got[0] != 25 {
		t.Errorf("depths = %v, want [25]", got)
	}
}

func TestScrollPercent(t *testing.T) {
	tests := []struct {
		name                  string
		top, height, viewport float64
		want                  int
	}{
		{"top of page", 0, 2000, 800, 0},
		{"halfway", 600, 2000, 800, 50},
		{"bottom", 1200, 2000, 800, 100},
		{"short page counts as read", 0, 500, 800, 100},
		{"exact viewport height", 0, 800, 800, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := analytics.ScrollPercent(tt.top, tt.height, tt.viewport); got != tt.want {
				t.Errorf("ScrollPercent(%v, %v, %v) = %d, want %d",
					tt.top, tt.height, tt.viewport, got, tt.want)
			}
		})
	}
}

func TestTimeOnPageTracker_FiresAtOffsets(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewTimeOnPageTracker(spy, []time.Duration{
		10 * time.Millisecond,
		30 * time.Millisecond,
	})
	tracker.Start()
	defer tracker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for spy.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := spy.count(); got != 2 {
		t.Errorf("fired %d times, want 2", got)
	}
}

func TestTimeOnPageTracker_StopCancelsPending(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewTimeOnPageTracker(spy, []time.Duration{time.Hour})
	tracker.Start()
	tracker.Stop()

	time.Sleep(20 * time.Millisecond)
	if got := spy.count(); got != 0 {
		t.Errorf("fired %d times after Stop, want 0", got)
	}
}

func TestTimeOnPageTracker_StartTwiceIsNoop(t *testing.T) {
	spy := &trackSpy{}
	tracker := analytics.NewTimeOnPageTracker(spy, []time.Duration{10 * time.Millisecond})
	tracker.Start()
	tracker.Start()
	defer tracker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for spy.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if got := spy.count(); got != 1 {
		t.Errorf("fired %d times, want 1 (double Start must not double timers)", got)
	}
}
