package bridge

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/model"
)

// ProposeContractInput is the caller input for ProposeContract.
type ProposeContractInput struct {
	PrivateKey   *secp256k1.PrivateKey
	Counterparty string
	Terms        map[string]any
}

// ProposeContract creates a Contract fiber in PROPOSED state (spec.md §4.4,
// §8 scenario 1).
func (e *Engine) ProposeContract(ctx context.Context, in ProposeContractInput) (Result, error) {
	if in.PrivateKey == nil || in.Counterparty == "" {
		return Result{}, validationErr("private key and counterparty required")
	}
	def, ok := e.Workflows.Get("Contract")
	if !ok {
		return Result{}, validationErr("Contract workflow not registered")
	}
	proposer := codec.AddressFromPrivateKey(in.PrivateKey)
	fiberID := newFiberID()

	initial := map[string]any{
		"schema":       "Contract",
		"proposer":     proposer,
		"counterparty": in.Counterparty,
		"terms":        in.Terms,
		"completions":  []any{},
	}
	msg := model.CreateStateMachineMsg{FiberID: fiberID, Definition: def.OnChain, InitialData: initial}
	res, err := e.Reconciler.Create(ctx, in.PrivateKey, msg)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// contractPartyCheck pre-checks that caller is the expected party on a
// Contract fiber before submitting, producing a 4xx without hitting the
// network (spec.md §4.4, §8 scenario 2 "Wrong-party accept").
func (e *Engine) contractPartyCheck(ctx context.Context, fiberID, caller, field string) (*model.Fiber, error) {
	fiber, err := e.fetchFiber(ctx, fiberID)
	if err != nil {
		return nil, err
	}
	expected := stringField(fiber.StateData, field)
	if expected != caller {
		return nil, validationErr("caller %s is not the %s (%s) for fiber %s", caller, field, expected, fiberID)
	}
	return fiber, nil
}

// AcceptContract fires "accept"; only the counterparty may call it
// (spec.md §4.4).
func (e *Engine) AcceptContract(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	if _, err := e.contractPartyCheck(ctx, fiberID, caller, "counterparty"); err != nil {
		return Result{}, err
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "accept", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// RejectContract fires "reject"; only the counterparty may call it.
func (e *Engine) RejectContract(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	if _, err := e.contractPartyCheck(ctx, fiberID, caller, "counterparty"); err != nil {
		return Result{}, err
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "reject", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// CompleteContract fires "complete"; either proposer or counterparty may
// submit it, each recorded in stateData.completions (spec.md §8 scenario 1).
func (e *Engine) CompleteContract(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.fetchFiber(ctx, fiberID)
	if err != nil {
		return Result{}, err
	}
	proposer := stringField(fiber.StateData, "proposer")
	counterparty := stringField(fiber.StateData, "counterparty")
	if caller != proposer && caller != counterparty {
		return Result{}, validationErr("caller %s is not a party to fiber %s", caller, fiberID)
	}
	if fiber.CurrentState != "ACTIVE" {
		return Result{}, stateConflictErr(fiber.CurrentState)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "complete", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// DisputeContract fires "dispute"; either party may raise a dispute while
// the contract is ACTIVE.
func (e *Engine) DisputeContract(ctx context.Context, priv *secp256k1.PrivateKey, fiberID, reason string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.fetchFiber(ctx, fiberID)
	if err != nil {
		return Result{}, err
	}
	if fiber.CurrentState != "ACTIVE" {
		return Result{}, stateConflictErr(fiber.CurrentState)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "dispute", map[string]any{"agent": caller, "reason": reason})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// FinalizeContract fires "finalize"; requires at least two entries in
// stateData.completions (spec.md §4.4, §8 scenario 1:
// "stateData.completions.length >= 2"). Which party made each entry is
// not checked.
func (e *Engine) FinalizeContract(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.fetchFiber(ctx, fiberID)
	if err != nil {
		return Result{}, err
	}
	if fiber.CurrentState != "ACTIVE" {
		return Result{}, stateConflictErr(fiber.CurrentState)
	}
	completions, _ := fiber.StateData["completions"].([]any)
	if len(completions) < 2 {
		return Result{}, validationErr("finalize requires both parties to have completed, got %d completions", len(completions))
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "finalize", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}
