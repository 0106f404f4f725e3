package model

// AgentState is the lifecycle state of an in-memory orchestrator agent.
type AgentState string

const (
	AgentUnregistered AgentState = "UNREGISTERED"
	AgentRegistered   AgentState = "REGISTERED"
	AgentActive       AgentState = "ACTIVE"
	AgentChallenged   AgentState = "CHALLENGED"
	AgentSuspended    AgentState = "SUSPENDED"
	AgentProbation    AgentState = "PROBATION"
	AgentWithdrawn    AgentState = "WITHDRAWN"
)

// Fitness holds the four inputs to the fitness score and their combined
// total (spec.md §4.7).
type Fitness struct {
	Reputation     float64 `json:"reputation"`
	CompletionRate float64 `json:"completionRate"`
	NetworkEffect  float64 `json:"networkEffect"`
	Age            float64 `json:"age"`
	Total          float64 `json:"total"`
}

// AgentMeta carries the softer, simulation-only attributes of an agent.
type AgentMeta struct {
	BirthGeneration    uint64
	DisplayName        string
	Platform           string
	VouchedFor         map[string]struct{}
	ReceivedVouches    map[string]struct{}
	ActiveContracts    map[string]struct{}
	ActiveMarkets      map[string]struct{}
	CompletedContracts uint64
	FailedContracts    uint64
	RiskTolerance      float64 // in [0,1]
	IsOracle           bool
}

// NewAgentMeta returns an AgentMeta with initialized set fields.
func NewAgentMeta() AgentMeta {
	return AgentMeta{
		VouchedFor:      make(map[string]struct{}),
		ReceivedVouches: make(map[string]struct{}),
		ActiveContracts: make(map[string]struct{}),
		ActiveMarkets:   make(map[string]struct{}),
	}
}

// Agent is the orchestrator's in-memory model of a participant. It is not
// the source of truth — the on-chain AgentIdentity fiber is — but drives
// sampling, proposal and progression decisions (spec.md §3.1).
type Agent struct {
	Address    string
	PrivateKey [32]byte
	FiberID    string
	State      AgentState
	Fitness    Fitness
	Meta       AgentMeta
}
