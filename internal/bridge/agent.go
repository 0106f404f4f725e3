package bridge

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/model"
)

// RegisterAgentInput is the caller input for RegisterAgent (spec.md §4.4).
type RegisterAgentInput struct {
	PrivateKey     *secp256k1.PrivateKey
	DisplayName    string
	Platform       string
	PlatformUserID string
}

// RegisterAgentResult adds the derived address to the common Result shape.
type RegisterAgentResult struct {
	Result
	Address string
}

// RegisterAgent creates an AgentIdentity fiber with initial state
// REGISTERED and schema "AgentIdentity" (spec.md §4.4).
func (e *Engine) RegisterAgent(ctx context.Context, in RegisterAgentInput) (RegisterAgentResult, error) {
	if in.PrivateKey == nil {
		return RegisterAgentResult{}, validationErr("private key required")
	}
	def, ok := e.Workflows.Get("AgentIdentity")
	if !ok {
		return RegisterAgentResult{}, validationErr("AgentIdentity workflow not registered")
	}
	address := codec.AddressFromPrivateKey(in.PrivateKey)
	fiberID := newFiberID()

	initial := map[string]any{
		"schema":         "AgentIdentity",
		"address":        address,
		"displayName":    in.DisplayName,
		"platform":       in.Platform,
		"platformUserId": in.PlatformUserID,
	}
	msg := model.CreateStateMachineMsg{
		FiberID:     fiberID,
		Definition:  def.OnChain,
		InitialData: initial,
	}
	res, err := e.Reconciler.Create(ctx, in.PrivateKey, msg)
	if err != nil {
		return RegisterAgentResult{}, err
	}
	return RegisterAgentResult{
		Result:  Result{Hash: res.Hash, FiberID: fiberID},
		Address: address,
	}, nil
}

// ActivateAgentInput is the caller input for ActivateAgent.
type ActivateAgentInput struct {
	PrivateKey *secp256k1.PrivateKey
	FiberID    string
}

// ActivateAgent fires the "activate" event on a just-registered
// AgentIdentity fiber, retrying with the longer CidNotFound-class backoff
// immediately after registration per spec.md §4.3 step 2e.
func (e *Engine) ActivateAgent(ctx context.Context, in ActivateAgentInput) (Result, error) {
	if in.PrivateKey == nil || in.FiberID == "" {
		return Result{}, validationErr("private key and fiberId required")
	}
	address := codec.AddressFromPrivateKey(in.PrivateKey)
	payload := map[string]any{"agent": address}

	res, err := e.Reconciler.SubmitWithCidRetry(ctx, in.PrivateKey, in.FiberID, "activate", payload, isCidNotFound)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: in.FiberID}, nil
}

// isCidNotFound recognizes the CidNotFound-class error spec.md §4.3 step 2e
// names, surfaced by the data layer as an upstream 4xx whose body mentions
// "CidNotFound" — the exact string is the data layer's, not ours to
// redefine, so this only pattern-matches on it.
func isCidNotFound(err error) bool {
	if err == nil {
		return false
	}
	return containsCidNotFound(err.Error())
}

func containsCidNotFound(s string) bool {
	const needle = "CidNotFound"
	for i := 0; i+len(needle) <= len(s); i++ {
		if s[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
