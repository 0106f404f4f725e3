package bridge

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/model"
)

// CreateStateMachineInput is the caller input for the generic
// CreateStateMachine operation, for workflows with no dedicated typed
// wrapper (spec.md §4.4 "generic operations remain available for
// arbitrary workflows").
type CreateStateMachineInput struct {
	PrivateKey    *secp256k1.PrivateKey
	WorkflowName  string
	InitialData   map[string]any
	FiberID       string
	ParentFiberID string
}

// CreateStateMachine looks up the named workflow's on-chain definition and
// submits a CreateStateMachineMsg. If in.FiberID is empty, a fresh one is
// generated.
func (e *Engine) CreateStateMachine(ctx context.Context, in CreateStateMachineInput) (Result, error) {
	if in.PrivateKey == nil {
		return Result{}, validationErr("private key required")
	}
	def, ok := e.Workflows.Get(in.WorkflowName)
	if !ok {
		return Result{}, validationErr("workflow %q is not registered", in.WorkflowName)
	}
	fiberID := in.FiberID
	if fiberID == "" {
		fiberID = newFiberID()
	}
	msg := model.CreateStateMachineMsg{
		FiberID:       fiberID,
		Definition:    def.OnChain,
		InitialData:   in.InitialData,
		ParentFiberID: in.ParentFiberID,
	}
	res, err := e.Reconciler.Create(ctx, in.PrivateKey, msg)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// TransitionStateMachineInput is the caller input for the generic
// TransitionStateMachine operation.
type TransitionStateMachineInput struct {
	PrivateKey *secp256k1.PrivateKey
	FiberID    string
	EventName  string
	Payload    map[string]any
}

// TransitionStateMachine fires an arbitrary named event on an existing
// fiber without any workflow-specific role or state pre-check, deferring
// entirely to the on-chain guard (spec.md §4.4). Typed operations
// (ProposeContract, CommitMarket, ...) should be preferred where they
// exist; this exists for workflows the bridge has no typed wrapper for.
func (e *Engine) TransitionStateMachine(ctx context.Context, in TransitionStateMachineInput) (Result, error) {
	if in.PrivateKey == nil || in.FiberID == "" || in.EventName == "" {
		return Result{}, validationErr("private key, fiberId and eventName required")
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["agent"]; !ok {
		payload["agent"] = codec.AddressFromPrivateKey(in.PrivateKey)
	}
	res, err := e.Reconciler.Submit(ctx, in.PrivateKey, in.FiberID, in.EventName, payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: in.FiberID}, nil
}
