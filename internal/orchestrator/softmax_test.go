package orchestrator

import (
	"math/rand"
	"testing"
)

// TestSoftmaxLowTemperatureConcentratesOnArgmax exercises spec.md §8
// "Softmax": as T → 0, selection probability concentrates on argmax.
func TestSoftmaxLowTemperatureConcentratesOnArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	choices := []Choice{{EventName: "a", Weight: 0.1}, {EventName: "b", Weight: 0.9}, {EventName: "c", Weight: 0.3}}

	argmaxHits := 0
	const trials = 200
	for i := 0; i < trials; i++ {
		idx := Softmax(rng, choices, 0.01)
		if choices[idx].EventName == "b" {
			argmaxHits++
		}
	}
	if argmaxHits != trials {
		t.Fatalf("expected near-zero temperature to always pick argmax, got %d/%d", argmaxHits, trials)
	}
}

// TestSoftmaxHighTemperatureApproachesUniform exercises the T → ∞ half of
// the same property.
func TestSoftmaxHighTemperatureApproachesUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	choices := []Choice{{EventName: "a", Weight: 0.1}, {EventName: "b", Weight: 0.9}, {EventName: "c", Weight: 0.3}}

	counts := map[string]int{}
	const trials = 6000
	for i := 0; i < trials; i++ {
		idx := Softmax(rng, choices, 1000.0)
		counts[choices[idx].EventName]++
	}
	expected := float64(trials) / float64(len(choices))
	for name, c := range counts {
		deviation := float64(c) - expected
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > expected*0.25 {
			t.Fatalf("expected near-uniform distribution at high T, choice %s got %d (expected ~%v)", name, c, expected)
		}
	}
}

func TestSoftmaxEmptyChoicesReturnsNegativeOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	if idx := Softmax(rng, nil, 1.0); idx != -1 {
		t.Fatalf("expected -1 for empty choices, got %d", idx)
	}
}
