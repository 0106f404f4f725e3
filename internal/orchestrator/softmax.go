// Package orchestrator is the fiber orchestrator / traffic simulator
// (C9): the generational tick loop driving population dynamics, actor
// sampling, softmax-weighted event selection, and the contract/market
// drivers (spec.md §4.9). Grounded on core/consensus.go's round-based
// scheduling loop and core/bft_simulation.go's population-of-actors
// simulation (DESIGN.md C9).
package orchestrator

import (
	"math"
	"math/rand"
)

// Choice is one candidate event an actor could fire this tick, carrying
// its pre-softmax weight (spec.md §4.9 step 4).
type Choice struct {
	EventName string
	Weight    float64
}

// Softmax draws one index from choices with probability proportional to
// exp(weight/T) (spec.md §4.9 step 5, §8 "Softmax" testable property). T
// must be > 0; callers clamp to a configured minimum before calling.
// Returns -1 if choices is empty.
func Softmax(rng *rand.Rand, choices []Choice, temperature float64) int {
	if len(choices) == 0 {
		return -1
	}
	if temperature <= 0 {
		temperature = 1e-9
	}

	// Subtract the max weight before exponentiating for numerical
	// stability; this doesn't change the resulting distribution.
	maxW := choices[0].Weight
	for _, c := range choices[1:] {
		if c.Weight > maxW {
			maxW = c.Weight
		}
	}

	probs := make([]float64, len(choices))
	total := 0.0
	for i, c := range choices {
		p := math.Exp((c.Weight - maxW) / temperature)
		probs[i] = p
		total += p
	}
	if total == 0 {
		return rng.Intn(len(choices))
	}

	r := rng.Float64() * total
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			return i
		}
	}
	return len(choices) - 1
}
