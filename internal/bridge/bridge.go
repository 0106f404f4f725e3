// Package bridge is the bridge submission engine (C4): typed operations
// over CreateStateMachine/TransitionStateMachine, each validating inputs,
// injecting creator = sender, then delegating to the sequence reconciler
// (spec.md §4.4). Grounded on core/authority_apply.go's proposal/vote/apply
// lifecycle shape (DESIGN.md C4), generalized from authority-node
// applications to agent/contract/market lifecycles.
package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fibermesh/internal/model"
	"fibermesh/internal/reconciler"
	"fibermesh/internal/workflow"
)

// Engine orchestrates C1+C2+C3 behind the typed operations of spec.md
// §4.4.
type Engine struct {
	Reconciler *reconciler.Reconciler
	Workflows  *workflow.Registry
}

// New builds an Engine over the given reconciler and workflow registry.
func New(r *reconciler.Reconciler, workflows *workflow.Registry) *Engine {
	return &Engine{Reconciler: r, Workflows: workflows}
}

// Result is the common success shape every bridge operation returns
// (spec.md §4.4 "Every operation returns {hash, …} on success").
type Result struct {
	Hash    string
	FiberID string
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}

func stateConflictErr(current string) error {
	return fmt.Errorf("%w: current status %s", model.ErrStateConflict, current)
}

func newFiberID() string {
	return uuid.NewString()
}

// fetchFiber is a small helper every typed operation uses to reconcile the
// orchestrator's lossy cache against the data layer before submitting
// (spec.md §3.2).
func (e *Engine) fetchFiber(ctx context.Context, fiberID string) (*model.Fiber, error) {
	fiber, err := e.Reconciler.Data.GetStateMachine(ctx, fiberID)
	if err != nil {
		return nil, err
	}
	return fiber, nil
}

// stringField reads a string field out of a fiber's stateData, returning
// "" if absent or of the wrong type.
func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
