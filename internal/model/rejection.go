package model

import "time"

// UpdateType enumerates the kinds of metagraph updates that can be
// rejected or transitioned.
type UpdateType string

const (
	UpdateCreateStateMachine    UpdateType = "CreateStateMachine"
	UpdateTransitionStateMachine UpdateType = "TransitionStateMachine"
	UpdateArchiveStateMachine   UpdateType = "ArchiveStateMachine"
	UpdateCreateScript          UpdateType = "CreateScript"
	UpdateInvokeScript          UpdateType = "InvokeScript"
)

// RejectionError is one entry of a rejected transaction's error list.
type RejectionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RejectedTransaction is a transaction accepted by the data layer but
// discarded by the snapshot layer during guard/validation, reported via
// webhook. UpdateHash is globally unique; duplicate intake is a no-op
// (spec.md §3.1, §4.5).
type RejectedTransaction struct {
	ID         int64            `json:"id"`
	Ordinal    uint64           `json:"ordinal"`
	Timestamp  time.Time        `json:"timestamp"`
	UpdateType UpdateType       `json:"updateType"`
	FiberID    string           `json:"fiberId"`
	UpdateHash string           `json:"updateHash"`
	Errors     []RejectionError `json:"errors"`
	Signers    []string         `json:"signers"`
	RawPayload map[string]any   `json:"rawPayload,omitempty"`
}
