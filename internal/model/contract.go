package model

import "time"

// ContractState is the lifecycle state of a Contract fiber.
type ContractState string

const (
	ContractProposed  ContractState = "PROPOSED"
	ContractActive    ContractState = "ACTIVE"
	ContractCompleted ContractState = "COMPLETED"
	ContractRejected  ContractState = "REJECTED"
	ContractDisputed  ContractState = "DISPUTED"
)

// Contract is the orchestrator's in-memory model of a Contract fiber.
type Contract struct {
	FiberID            string
	Proposer           string
	Counterparty       string
	State              ContractState
	Terms              map[string]any
	CreatedGeneration  uint64
	ExpectedCompletion uint64 // generations after which complete/dispute is attempted
	Completions        map[string]time.Time
}
