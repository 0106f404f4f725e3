package workflow

import "fibermesh/internal/model"

// contractDef is the Contract workflow: PROPOSED → ACTIVE|REJECTED →
// COMPLETED|DISPUTED, matching spec.md §3.1/§4.4's Contract state machine
// and the §8 "Contract happy path" scenario. Accept/Reject are
// counterparty-only (enforced by internal/bridge's role pre-check, not by
// ActorRole here — the counterparty is a specific address decided at
// propose time, not a fixed role name).
func contractDef() Def {
	states := []string{
		string(model.ContractProposed), string(model.ContractActive),
		string(model.ContractCompleted), string(model.ContractRejected),
		string(model.ContractDisputed),
	}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: string(model.ContractProposed), To: string(model.ContractActive), EventName: "accept"}, ActorRole: "counterparty", BaseWeight: 0.8, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.ContractProposed), To: string(model.ContractRejected), EventName: "reject"}, ActorRole: "counterparty", BaseWeight: 0.2, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.ContractActive), To: string(model.ContractActive), EventName: "complete"}, BaseWeight: 0.7, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.ContractActive), To: string(model.ContractCompleted), EventName: "finalize"}, BaseWeight: 0.6, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.ContractActive), To: string(model.ContractDisputed), EventName: "dispute"}, BaseWeight: 0.1, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind:         KindContract,
		Roles:        []string{"proposer", "counterparty"},
		States:       states,
		InitialState: string(model.ContractProposed),
		FinalStates:  []string{string(model.ContractCompleted), string(model.ContractRejected), string(model.ContractDisputed)},
		Transitions:  transitions,
		OnChain: onChainDefinition("Contract", "1", states, string(model.ContractProposed),
			[]string{string(model.ContractCompleted), string(model.ContractRejected), string(model.ContractDisputed)}, transitions),
	}
}
