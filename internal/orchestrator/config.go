package orchestrator

import (
	"time"

	"fibermesh/internal/population"
)

// Config bounds one orchestrator run (spec.md §4.9, §6.5).
type Config struct {
	GenerationInterval time.Duration
	MaxGenerations     uint64 // 0 = run forever

	ActivityRate float64 // fraction of population sampled per tick
	ProposalRate float64 // probability of a proposal attempt per actor
	MutationRate float64 // probability a choice's weight is flipped

	InitialTemperature float64
	MinTemperature     float64
	TemperatureDecay   float64 // multiplicative per-generation decay

	MaxConnectedPerAgent int // cap on proposal counterparties already connected

	Dynamics population.DynamicsConfig

	// FiberWeights maps a proposal-phase workflow-type name ("Contract",
	// "Prediction", "Auction", "Crowdfund", "GroupBuy") to its relative
	// weight in the fiber-type draw (spec.md §6.5 "FIBER_WEIGHTS
	// (workflow-type -> relative weight)"). A key absent from the map
	// falls back to a weight of 1.
	FiberWeights map[string]float64

	// Weighted selects "weighted" mode: the proposal phase still draws
	// from FiberWeights, but actor choice-building skips the
	// mutation-rate weight flip and the context no longer anneals
	// temperature, so the generation's behavior distribution stays fixed
	// all run (spec.md §6.5 "weighted (fixed fiber-type distribution, no
	// evolution)").
	Weighted bool

	// HighThroughput enables the short-circuited, bounded-concurrency loop
	// (spec.md §4.9 "Throughput modes").
	HighThroughput bool
	TargetTPS      float64
	MaxInFlight    int
}

// DefaultConfig matches the bounds spec.md §4.9 names as examples.
func DefaultConfig() Config {
	return Config{
		GenerationInterval:   2 * time.Second,
		MaxGenerations:       0,
		ActivityRate:         0.2,
		ProposalRate:         0.1,
		MutationRate:         0.05,
		InitialTemperature:   1.0,
		MinTemperature:       0.05,
		TemperatureDecay:     0.995,
		MaxConnectedPerAgent: 10,
		Dynamics: population.DynamicsConfig{
			TargetPopulation: 100,
			BirthRate:        5,
			DeathRate:        0.02,
			Weights:          population.DefaultWeights(),
		},
		FiberWeights: map[string]float64{
			"Contract":   1,
			"Prediction": 1,
			"Auction":    1,
			"Crowdfund":  1,
			"GroupBuy":   1,
		},
		Weighted:       false,
		HighThroughput: false,
		TargetTPS:      10,
		MaxInFlight:    20,
	}
}
