package workflow

import "testing"

func TestDefaultRegistryCarriesEveryNamedWorkflow(t *testing.T) {
	r := Default()
	want := []string{"AgentIdentity", "Contract", "Voting", "TokenEscrow", "TicTacToe", "Approval", "Prediction", "Auction", "Crowdfund", "GroupBuy"}
	for _, name := range want {
		if _, ok := r.Get(name); !ok {
			t.Fatalf("missing workflow %q", name)
		}
	}
}

func TestContractAvailableTransitionsRespectsRole(t *testing.T) {
	def, _ := Default().Get("Contract")
	proposerOnly := def.AvailableTransitions("PROPOSED", "proposer")
	if len(proposerOnly) != 0 {
		t.Fatalf("proposer should not be able to accept/reject, got %d transitions", len(proposerOnly))
	}
	counterparty := def.AvailableTransitions("PROPOSED", "counterparty")
	if len(counterparty) != 2 {
		t.Fatalf("expected accept+reject for counterparty, got %d", len(counterparty))
	}
}

func TestMarketFinalStates(t *testing.T) {
	def, _ := Default().Get("Prediction")
	if !def.IsFinal("SETTLED") || def.IsFinal("OPEN") {
		t.Fatalf("unexpected final-state classification")
	}
}
