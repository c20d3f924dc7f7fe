package experiments

import (
	"strconv"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

// hashKey computes a deterministic non-negative integer hash of s using the
// polynomial rolling recurrence h = h*31 + codepoint, truncated to signed
// 32 bits at every step. Stored assignments depend on this exact recurrence;
// do not change it while any experiment is live.
func hashKey(s string) int {
	var h int32
	for _, r := range s {
		h = h*31 + r
	}
	// Widen before negating so math.MinInt32 stays in range.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v)
}

// seed builds the hashing input for a (visitor, experiment) pair.
func seed(visitorID string, experimentID int) string {
	return visitorID + "-" + strconv.Itoa(experimentID)
}

// Bucket deterministically selects a variant for the visitor by weighted
// probability. Variant order is part of the experiment's identity: the same
// variants in a different order bucket visitors differently.
//
// The second return is false when the variant set is malformed (empty or
// non-positive total weight); callers must skip the experiment in that case.
func Bucket(visitorID string, experimentID int, variants []events.Variant) (events.Variant, bool) {
	if len(variants) == 0 {
		return events.Variant{}, false
	}

	total := events.TotalWeight(variants)
	if total <= 0 {
		return events.Variant{}, false
	}

	selection := hashKey(seed(visitorID, experimentID)) % total

	cumulative := 0
	for _, v := range variants {
		cumulative += v.Weight
		if selection < cumulative {
			return v, true
		}
	}

	// Unreachable given total > 0; kept as a defensive catch. If this path
	// ever fires it indicates a weight computation bug upstream.
	return variants[0], true
}
