package population

import (
	"math/rand"
	"sort"
	"sync"

	"fibermesh/internal/model"
)

// Population is the orchestrator's single-writer, concurrently-readable
// in-memory agent table (spec.md §5 "In-memory agent/contract/market
// maps: single logical writer ... read by concurrent submission tasks via
// immutable snapshots").
type Population struct {
	mu         sync.RWMutex
	agents     map[string]*model.Agent // keyed by address
	maxRepSeen float64
}

// New returns an empty Population.
func New() *Population {
	return &Population{agents: make(map[string]*model.Agent)}
}

// Add registers a new agent, tracking it for future sampling.
func (p *Population) Add(a *model.Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents[a.Address] = a
	if a.Fitness.Reputation > p.maxRepSeen {
		p.maxRepSeen = a.Fitness.Reputation
	}
}

// Remove drops an agent from the table entirely (used once WITHDRAWN is
// terminal and no longer needs sampling).
func (p *Population) Remove(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.agents, address)
}

// Get returns a snapshot copy of the agent at address, or nil.
func (p *Population) Get(address string) *model.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[address]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Snapshot returns a defensive copy of every agent, safe to hand to
// concurrent submission tasks.
func (p *Population) Snapshot() []*model.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*model.Agent, 0, len(p.agents))
	for _, a := range p.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Count returns the total number of tracked agents.
func (p *Population) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

// CountActive returns the number of agents not in a terminal WITHDRAWN
// state.
func (p *Population) CountActive() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, a := range p.agents {
		if a.State != model.AgentWithdrawn {
			n++
		}
	}
	return n
}

// MaxReputationSeen is the highest raw reputation observed across every
// agent ever added, used to normalize reputation_norm (spec.md §4.7).
func (p *Population) MaxReputationSeen() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxRepSeen
}

// UpdateFitness replaces address's Fitness, tracking a new maxRepSeen if
// this raises it.
func (p *Population) UpdateFitness(address string, f model.Fitness) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[address]
	if !ok {
		return
	}
	a.Fitness = f
	if f.Reputation > p.maxRepSeen {
		p.maxRepSeen = f.Reputation
	}
}

// reputationGainPerCompletion and reputationLossPerDispute are the raw
// reputation deltas applied by RecordContractOutcome. A contract fiber's
// accept/complete/dispute transitions are the only on-chain signal of an
// agent's honesty the orchestrator observes, so reputation and the
// completion counters feeding fitness (spec.md §4.7) accrue from them
// directly rather than from a separate vouching operation spec.md never
// defines.
const (
	reputationGainPerCompletion = 1.0
	reputationLossPerDispute    = 0.5
)

// RecordContractOutcome updates address's reputation, completed/failed
// contract counters, and mutual vouch sets following a contract fiber's
// terminal transition. completed is true for ContractCompleted, false for
// ContractDisputed; counterparty is vouched-for/received-vouch-from on a
// completion and left untouched on a dispute, since fault isn't
// attributable between the two parties.
func (p *Population) RecordContractOutcome(address, counterparty string, completed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[address]
	if !ok {
		return
	}
	if completed {
		a.Meta.CompletedContracts++
		a.Fitness.Reputation += reputationGainPerCompletion
		if counterparty != "" {
			a.Meta.VouchedFor[counterparty] = struct{}{}
			a.Meta.ReceivedVouches[counterparty] = struct{}{}
		}
	} else {
		a.Meta.FailedContracts++
		a.Fitness.Reputation -= reputationLossPerDispute
		if a.Fitness.Reputation < 0 {
			a.Fitness.Reputation = 0
		}
	}
	if a.Fitness.Reputation > p.maxRepSeen {
		p.maxRepSeen = a.Fitness.Reputation
	}
}

// RankedByFitnessAsc returns every agent ordered lowest-fitness-first, for
// the Deaths driver (spec.md §4.7 "select up to deathRate·|pop| agents
// ranked by lowest fitness").
func (p *Population) RankedByFitnessAsc() []*model.Agent {
	snap := p.Snapshot()
	sort.Slice(snap, func(i, j int) bool { return snap[i].Fitness.Total < snap[j].Fitness.Total })
	return snap
}

// SampleWeighted draws n distinct agents via fitness-weighted sampling
// without replacement, skipping any agent for which exclude returns true
// (spec.md §4.9 "Actor sampling", "Proposal phase"). Agents with zero
// total fitness still have a small floor weight so newcomers aren't
// permanently unreachable.
func SampleWeighted(rng *rand.Rand, candidates []*model.Agent, n int, exclude func(*model.Agent) bool) []*model.Agent {
	const floor = 0.01
	pool := make([]*model.Agent, 0, len(candidates))
	weights := make([]float64, 0, len(candidates))
	for _, a := range candidates {
		if exclude != nil && exclude(a) {
			continue
		}
		pool = append(pool, a)
		weights = append(weights, a.Fitness.Total+floor)
	}
	out := make([]*model.Agent, 0, n)
	for len(out) < n && len(pool) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		r := rng.Float64() * total
		acc := 0.0
		pick := len(pool) - 1
		for i, w := range weights {
			acc += w
			if r <= acc {
				pick = i
				break
			}
		}
		out = append(out, pool[pick])
		pool = append(pool[:pick], pool[pick+1:]...)
		weights = append(weights[:pick], weights[pick+1:]...)
	}
	return out
}
