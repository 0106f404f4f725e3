package orchestrator

import (
	"sync"

	"fibermesh/internal/model"
)

// Registry is the orchestrator's in-memory contract/market table: single
// logical writer (the tick loop), read by concurrent submission tasks via
// snapshots (spec.md §5).
type Registry struct {
	mu        sync.Mutex
	contracts map[string]*model.Contract // keyed by FiberID
	markets   map[string]*model.Market   // keyed by FiberID
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]*model.Contract),
		markets:   make(map[string]*model.Market),
	}
}

func (r *Registry) AddContract(c *model.Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.FiberID] = c
}

func (r *Registry) AddMarket(m *model.Market) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[m.FiberID] = m
}

func (r *Registry) RemoveContract(fiberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contracts, fiberID)
}

func (r *Registry) RemoveMarket(fiberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markets, fiberID)
}

// Contracts returns a defensive copy of the contract slice.
func (r *Registry) Contracts() []*model.Contract {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// Markets returns a defensive copy of the market slice.
func (r *Registry) Markets() []*model.Market {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Market, 0, len(r.markets))
	for _, m := range r.markets {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// ConnectedCount returns how many contracts already connect agent to
// counterparty (markets are not counted), used by the proposal phase's connection cap (spec.md
// §4.9 step 7 "excluding already-connected above a cap").
func (r *Registry) ConnectedCount(agent, counterparty string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.contracts {
		if (c.Proposer == agent && c.Counterparty == counterparty) || (c.Proposer == counterparty && c.Counterparty == agent) {
			n++
		}
	}
	return n
}
