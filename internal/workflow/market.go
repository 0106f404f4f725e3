package workflow

import "fibermesh/internal/model"

// marketDef is the shared Market state machine parameterized by
// marketType (spec.md §4.8, glossary "Market"): PROPOSED → OPEN → CLOSED →
// RESOLVING → SETTLED, with REFUNDED and CANCELLED side exits. Role-guarded
// event availability by state (e.g. only the creator can close an OPEN
// market; oracles who haven't yet resolved can submit_resolution in
// RESOLVING; anyone can finalize once quorum is met) is encoded in
// ActorRole plus the bridge engine's quorum/threshold pre-checks (C4),
// since quorum/threshold are runtime values the registry itself doesn't
// carry.
func marketDef(mt model.MarketType) Def {
	states := []string{
		string(model.MarketProposed), string(model.MarketOpen), string(model.MarketClosed),
		string(model.MarketResolving), string(model.MarketSettled),
		string(model.MarketRefunded), string(model.MarketCancelled),
	}
	transitions := []Transition{
		{TransitionDef: model.TransitionDef{From: string(model.MarketProposed), To: string(model.MarketOpen), EventName: "open"}, ActorRole: "creator", BaseWeight: 0.9, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketProposed), To: string(model.MarketCancelled), EventName: "cancel"}, ActorRole: "creator", BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketOpen), To: string(model.MarketOpen), EventName: "commit"}, ActorRole: "participant", BaseWeight: 1.0, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketOpen), To: string(model.MarketClosed), EventName: "close"}, ActorRole: "creator", BaseWeight: 0.4, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketClosed), To: string(model.MarketResolving), EventName: "begin_resolution"}, ActorRole: "creator", BaseWeight: 0.5, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketResolving), To: string(model.MarketResolving), EventName: "submit_resolution"}, ActorRole: "oracle", BaseWeight: 0.8, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketResolving), To: string(model.MarketSettled), EventName: "finalize"}, BaseWeight: 0.6, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketOpen), To: string(model.MarketRefunded), EventName: "refund"}, BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketClosed), To: string(model.MarketRefunded), EventName: "refund"}, BaseWeight: 0.1, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketSettled), To: string(model.MarketSettled), EventName: "claim"}, ActorRole: "participant", BaseWeight: 0.9, PayloadGenerator: agentPayload},
		{TransitionDef: model.TransitionDef{From: string(model.MarketRefunded), To: string(model.MarketRefunded), EventName: "claim"}, ActorRole: "participant", BaseWeight: 0.9, PayloadGenerator: agentPayload},
	}
	name := "Market:" + string(mt)
	return Def{
		Kind:         KindMarket,
		MarketType:   mt,
		Roles:        []string{"creator", "oracle", "participant"},
		States:       states,
		InitialState: string(model.MarketProposed),
		FinalStates:  []string{string(model.MarketSettled), string(model.MarketRefunded), string(model.MarketCancelled)},
		Transitions:  transitions,
		OnChain: onChainDefinition(name, "1", states, string(model.MarketProposed),
			[]string{string(model.MarketSettled), string(model.MarketRefunded), string(model.MarketCancelled)}, transitions),
	}
}
