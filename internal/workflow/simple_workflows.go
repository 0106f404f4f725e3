package workflow

import "fibermesh/internal/model"

// votingDef is a minimal Voting workflow: OPEN → TALLIED, with a cast_vote
// self-loop while open, registered as a "Custom" fiber type (spec.md §2
// C8); the orchestrator's proposal phase does not create Voting fibers.
func votingDef() Def {
	states := []string{"OPEN", "TALLIED"}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: "OPEN", To: "OPEN", EventName: "cast_vote"}, ActorRole: "voter", BaseWeight: 1.0, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "OPEN", To: "TALLIED", EventName: "tally"}, BaseWeight: 0.2, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind: KindCustom, Roles: []string{"voter"}, States: states,
		InitialState: "OPEN", FinalStates: []string{"TALLIED"}, Transitions: transitions,
		OnChain: onChainDefinition("Voting", "1", states, "OPEN", []string{"TALLIED"}, transitions),
	}
}

// tokenEscrowDef is a minimal two-party escrow: FUNDED → RELEASED|REFUNDED.
func tokenEscrowDef() Def {
	states := []string{"FUNDED", "RELEASED", "REFUNDED"}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: "FUNDED", To: "RELEASED", EventName: "release"}, ActorRole: "depositor", BaseWeight: 0.7, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "FUNDED", To: "REFUNDED", EventName: "refund"}, ActorRole: "depositor", BaseWeight: 0.3, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind: KindCustom, Roles: []string{"depositor", "beneficiary"}, States: states,
		InitialState: "FUNDED", FinalStates: []string{"RELEASED", "REFUNDED"}, Transitions: transitions,
		OnChain: onChainDefinition("TokenEscrow", "1", states, "FUNDED", []string{"RELEASED", "REFUNDED"}, transitions),
	}
}

// ticTacToeDef is a minimal two-player game fiber, included because
// spec.md §3.1 names it among the workflow set the registry must carry —
// it exercises a workflow with many self-loop transitions (each square a
// "move" event) and two symmetric player roles.
func ticTacToeDef() Def {
	states := []string{"IN_PROGRESS", "X_WON", "O_WON", "DRAW"}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: "IN_PROGRESS", To: "IN_PROGRESS", EventName: "move"}, ActorRole: "player", BaseWeight: 1.0, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "IN_PROGRESS", To: "X_WON", EventName: "move"}, ActorRole: "player", BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "IN_PROGRESS", To: "O_WON", EventName: "move"}, ActorRole: "player", BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "IN_PROGRESS", To: "DRAW", EventName: "move"}, ActorRole: "player", BaseWeight: 0.05, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind: KindCustom, Roles: []string{"player"}, States: states,
		InitialState: "IN_PROGRESS", FinalStates: []string{"X_WON", "O_WON", "DRAW"}, Transitions: transitions,
		OnChain: onChainDefinition("TicTacToe", "1", states, "IN_PROGRESS", []string{"X_WON", "O_WON", "DRAW"}, transitions),
	}
}

// approvalDef is a single-step multi-signer approval workflow: PENDING →
// APPROVED|DENIED, one self-loop to collect signatures before a decision.
func approvalDef() Def {
	states := []string{"PENDING", "APPROVED", "DENIED"}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: "PENDING", To: "PENDING", EventName: "sign"}, ActorRole: "signer", BaseWeight: 1.0, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "PENDING", To: "APPROVED", EventName: "approve"}, ActorRole: "signer", BaseWeight: 0.4, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: "PENDING", To: "DENIED", EventName: "deny"}, ActorRole: "signer", BaseWeight: 0.1, PayloadGenerator: agentPayload},
	}
	return Def{
		Kind: KindCustom, Roles: []string{"signer"}, States: states,
		InitialState: "PENDING", FinalStates: []string{"APPROVED", "DENIED"}, Transitions: transitions,
		OnChain: onChainDefinition("Approval", "1", states, "PENDING", []string{"APPROVED", "DENIED"}, transitions),
	}
}
