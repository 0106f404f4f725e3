package population

import (
	"math"
	"math/rand"
	"testing"

	"fibermesh/internal/model"
)

func TestComputeFitnessNeutralCompletionRateForNewcomer(t *testing.T) {
	meta := model.NewAgentMeta()
	f := Compute(0, meta, 0, 0, DefaultWeights())
	if f.CompletionRate != 0.5 {
		t.Fatalf("expected neutral 0.5 completion rate for newcomer, got %v", f.CompletionRate)
	}
}

func TestComputeFitnessReputationNormalization(t *testing.T) {
	meta := model.NewAgentMeta()
	f := Compute(50, meta, 100, 0, DefaultWeights())
	wantRepContribution := DefaultWeights().Reputation * 0.5
	if math.Abs(f.Total-wantRepContribution-DefaultWeights().Completion*0.5) > 1e-9 {
		t.Fatalf("unexpected total: %v", f.Total)
	}
}

func TestComputeFitnessAgeSaturates(t *testing.T) {
	meta := model.NewAgentMeta()
	meta.BirthGeneration = 0
	f := Compute(0, meta, 0, ageScaleGenerations*10, DefaultWeights())
	if f.Age != 1.0 {
		t.Fatalf("expected age_norm to saturate at 1.0, got %v", f.Age)
	}
}

func TestSampleWeightedFavorsHigherFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	agents := []*model.Agent{
		{Address: "low", Fitness: model.Fitness{Total: 0.01}},
		{Address: "high", Fitness: model.Fitness{Total: 10.0}},
	}
	highCount := 0
	const trials = 500
	for i := 0; i < trials; i++ {
		picked := SampleWeighted(rng, agents, 1, nil)
		if len(picked) != 1 {
			t.Fatalf("expected exactly 1 pick, got %d", len(picked))
		}
		if picked[0].Address == "high" {
			highCount++
		}
	}
	if highCount < trials*8/10 {
		t.Fatalf("expected high-fitness agent to dominate sampling, picked %d/%d", highCount, trials)
	}
}

func TestSampleWeightedExcludesPredicate(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	agents := []*model.Agent{
		{Address: "a", Fitness: model.Fitness{Total: 1}},
		{Address: "b", Fitness: model.Fitness{Total: 1}},
	}
	picked := SampleWeighted(rng, agents, 2, func(a *model.Agent) bool { return a.Address == "b" })
	if len(picked) != 1 || picked[0].Address != "a" {
		t.Fatalf("expected only 'a' after excluding 'b', got %+v", picked)
	}
}
