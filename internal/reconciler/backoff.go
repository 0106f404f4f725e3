package reconciler

import (
	"math/rand"
	"time"
)

// jittered returns base scaled by a uniform random factor in
// [1-jitter, 1+jitter], implementing the "±25% jitter" schedules of
// spec.md §4.3 step 2d. Grounded on the teacher's hand-rolled constant
// retry schedules (core/consensus_difficulty.go) rather than a generic
// backoff library — none appears in the retrieved corpus (DESIGN.md C3).
func jittered(base time.Duration, jitter float64) time.Duration {
	factor := 1 - jitter + rand.Float64()*2*jitter
	return time.Duration(float64(base) * factor)
}

// sequenceConflictBackoff is the schedule for retrying a lost
// optimistic-concurrency race (spec.md §4.3 step 2d): 100ms, 200ms, 400ms
// base, ±25% jitter.
func sequenceConflictBackoff(attempt int) time.Duration {
	bases := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if attempt >= len(bases) {
		attempt = len(bases) - 1
	}
	return jittered(bases[attempt], 0.25)
}

// cidNotFoundBackoff is the longer schedule for retrying a CidNotFound-class
// error during activation immediately after registration (spec.md §4.3
// step 2e): 1s, 2s, 4s.
func cidNotFoundBackoff(attempt int) time.Duration {
	bases := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if attempt >= len(bases) {
		attempt = len(bases) - 1
	}
	return bases[attempt]
}

// visibilityBackoff implements WaitForFiberVisible's bounded exponential
// backoff: initial 500ms, factor 2, cap 4s (spec.md §4.3 step 1).
func visibilityBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 4*time.Second {
			return 4 * time.Second
		}
	}
	return d
}
