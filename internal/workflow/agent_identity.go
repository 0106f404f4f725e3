package workflow

import "fibermesh/internal/model"

// agentIdentityDef is the AgentIdentity workflow: register → activate, plus
// challenge/suspend/probation/withdraw transitions mirroring
// model.AgentState (spec.md §3.1, §4.4 RegisterAgent/ActivateAgent).
func agentIdentityDef() Def {
	states := []string{
		string(model.AgentRegistered), string(model.AgentActive),
		string(model.AgentChallenged), string(model.AgentSuspended),
		string(model.AgentProbation), string(model.AgentWithdrawn),
	}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: string(model.AgentRegistered), To: string(model.AgentActive), EventName: "activate"}, BaseWeight: 1.0, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentActive), To: string(model.AgentChallenged), EventName: "challenge"}, BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentChallenged), To: string(model.AgentActive), EventName: "clear_challenge"}, BaseWeight: 0.5, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentChallenged), To: string(model.AgentSuspended), EventName: "suspend"}, BaseWeight: 0.2, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentSuspended), To: string(model.AgentProbation), EventName: "put_on_probation"}, BaseWeight: 0.2, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentProbation), To: string(model.AgentActive), EventName: "restore"}, BaseWeight: 0.3, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentActive), To: string(model.AgentWithdrawn), EventName: "withdraw"}, BaseWeight: 0.05, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.AgentProbation), To: string(model.AgentWithdrawn), EventName: "withdraw"}, BaseWeight: 0.05, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind:         KindAgentIdentity,
		Roles:        nil,
		States:       states,
		InitialState: string(model.AgentRegistered),
		FinalStates:  []string{string(model.AgentWithdrawn)},
		Transitions:  transitions,
		OnChain:      onChainDefinition("AgentIdentity", "1", states, string(model.AgentRegistered), []string{string(model.AgentWithdrawn)}, transitions),
	}
}

// onChainDefinition assembles the model.FiberDefinition shape of spec.md
// §6.2 from a workflow's states and transitions. Guards/effects are left
// nil: they are opaque JSON expression trees evaluated only by the
// metagraph (spec.md §4.1 Design Notes); this client never constructs or
// interprets them beyond forwarding whatever a specific workflow supplies.
func onChainDefinition(name, version string, states []string, initial string, final []string, transitions []Transition) model.FiberDefinition {
	finalSet := make(map[string]struct{}, len(final))
	for _, f := range final {
		finalSet[f] = struct{}{}
	}
	stateMap := make(map[string]model.StateDef, len(states))
	for _, s := range states {
		_, isFinal := finalSet[s]
		stateMap[s] = model.StateDef{ID: s, IsFinal: isFinal}
	}
	defs := make([]model.TransitionDef, 0, len(transitions))
	for _, t := range transitions {
		defs = append(defs, t.TransitionDef)
	}
	return model.FiberDefinition{
		States:       stateMap,
		InitialState: initial,
		Transitions:  defs,
		Metadata:     model.DefinitionMeta{Name: name, Version: version},
	}
}
