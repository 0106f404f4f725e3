package model

// CreateStateMachineMsg is the wire shape of spec.md §6.2 for creating a
// new fiber.
type CreateStateMachineMsg struct {
	FiberID       string          `json:"fiberId"`
	Definition    FiberDefinition `json:"definition"`
	InitialData   map[string]any  `json:"initialData"`
	ParentFiberID string          `json:"parentFiberId,omitempty"`
}

// TransitionStateMachineMsg is the wire shape of spec.md §6.2 for
// transitioning an existing fiber. TargetSequenceNumber must equal the
// fiber's current sequence at the moment of application (spec.md §4.3).
type TransitionStateMachineMsg struct {
	FiberID             string         `json:"fiberId"`
	EventName           string         `json:"eventName"`
	Payload             map[string]any `json:"payload"`
	TargetSequenceNumber uint64        `json:"targetSequenceNumber"`
}
