// Package workflow is the fiber workflow registry (C8): declarative
// definitions of the state machines this system drives — AgentIdentity,
// Contract, Voting, TokenEscrow, TicTacToe, Approval, and the four market
// subtypes sharing one Market state machine (spec.md §4.8).
//
// Workflows are modeled as a tagged variant carrying a descriptor record
// (spec.md §9 "Polymorphic workflows"): a Kind string tag plus a registry
// of Def values keyed by kind, dispatched via a map lookup, following the
// teacher's preference for flat config-driven structs over deep interface
// hierarchies (DESIGN.md C8, grounded on core/authority_apply.go's
// AuthVoteRule/config-map shape and core/common_structs.go).
package workflow

import "fibermesh/internal/model"

// Kind tags which broad family a workflow belongs to.
type Kind string

const (
	KindAgentIdentity Kind = "AgentIdentity"
	KindContract      Kind = "Contract"
	KindMarket        Kind = "Market"
	KindCustom        Kind = "Custom"
)

// Transition extends model.TransitionDef with the orchestrator-only
// fields the on-chain definition doesn't carry: which role may fire the
// event, the transition's base sampling weight, and a payload generator.
type Transition struct {
	model.TransitionDef
	ActorRole       string
	BaseWeight      float64
	PayloadGenerator PayloadGenerator
}

// PayloadGenerator builds an event payload from the current fiber state
// and the acting agent's address. Implementations live in payloads.go.
type PayloadGenerator func(state map[string]any, actor string) map[string]any

// Def is one workflow's full descriptor: its on-chain definition plus the
// orchestrator-side metadata needed to drive it (spec.md §4.8).
type Def struct {
	Kind         Kind
	MarketType   model.MarketType // only meaningful when Kind == KindMarket
	Roles        []string
	States       []string
	InitialState string
	FinalStates  []string
	Transitions  []Transition
	OnChain      model.FiberDefinition
}

// AvailableTransitions returns the transitions whose From state matches
// current and whose ActorRole the caller is permitted to use, i.e. the
// client-side role/state pre-check of spec.md §4.8's authoritative-on-the-
// client guidance. role == "" matches any ActorRole (roleless workflows
// such as AgentIdentity).
func (d Def) AvailableTransitions(current string, role string) []Transition {
	var out []Transition
	for _, tr := range d.Transitions {
		if tr.From != current {
			continue
		}
		if tr.ActorRole != "" && role != "" && tr.ActorRole != role {
			continue
		}
		out = append(out, tr)
	}
	return out
}

// IsFinal reports whether state is one of the workflow's final states.
func (d Def) IsFinal(state string) bool {
	for _, s := range d.FinalStates {
		if s == state {
			return true
		}
	}
	return false
}

// Registry is a lookup of workflow definitions by name, e.g. "Contract",
// "Prediction", "AgentIdentity". Adding a new workflow is a configuration
// change: register it here, nothing else in the orchestrator needs to
// change (spec.md §9).
type Registry struct {
	defs map[string]Def
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Def)}
}

// Register adds or replaces a workflow definition under name.
func (r *Registry) Register(name string, def Def) {
	r.defs[name] = def
}

// Get looks up a workflow definition by name.
func (r *Registry) Get(name string) (Def, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns every registered workflow name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	return out
}

// Default returns a registry pre-populated with every workflow named in
// spec.md §2/§4.8 (Default() is called once at bootstrap by cmd/fiberctl
// and cmd/bridged).
func Default() *Registry {
	r := NewRegistry()
	r.Register("AgentIdentity", agentIdentityDef())
	r.Register("Contract", contractDef())
	r.Register("Voting", votingDef())
	r.Register("TokenEscrow", tokenEscrowDef())
	r.Register("TicTacToe", ticTacToeDef())
	r.Register("Approval", approvalDef())
	r.Register("Prediction", marketDef(model.MarketPrediction))
	r.Register("Auction", marketDef(model.MarketAuction))
	r.Register("Crowdfund", marketDef(model.MarketCrowdfund))
	r.Register("GroupBuy", marketDef(model.MarketGroupBuy))
	return r
}
