// Package reconciler implements the sequence reconciler (C3): it obtains a
// fiber's current sequence number, submits a transition with the matching
// targetSequenceNumber, retries on conflict, and waits for the snapshot
// layer to make a submission visible (spec.md §4.3).
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/model"
)

// DataLayer is the subset of dataclient.Client the reconciler needs,
// narrowed to an interface so tests can substitute a fake data layer
// (spec.md §8 "Sequence reconcile" property).
type DataLayer interface {
	GetStateMachine(ctx context.Context, fiberID string) (*model.Fiber, error)
	Submit(ctx context.Context, envelope model.Signed[any]) (dataclient.SubmitResult, error)
}

// Config bounds the reconciler's retry behavior (spec.md §4.3).
type Config struct {
	MaxSequenceRetries int
	MaxCidRetries      int
	VisibilityTimeout  time.Duration
	WaitSequenceTimeout time.Duration
	PollInterval       time.Duration
	NotReadyGrace      time.Duration
}

// DefaultConfig matches the bounds spec.md §4.3 names explicitly.
func DefaultConfig() Config {
	return Config{
		MaxSequenceRetries:  3,
		MaxCidRetries:       3,
		VisibilityTimeout:   30 * time.Second,
		WaitSequenceTimeout: 30 * time.Second,
		PollInterval:        250 * time.Millisecond,
		NotReadyGrace:       2 * time.Second,
	}
}

// Reconciler drives one fiber's transitions through optimistic-concurrency
// retry against a DataLayer.
type Reconciler struct {
	Data DataLayer
	Cfg  Config

	// OnRecord, if set, is called after every successful Create/Submit so
	// the indexer query surface (C6) can serve recent-transitions queries
	// without re-deriving them from the data layer (spec.md §4.6
	// "GET /fibers/:fiberId/transitions").
	OnRecord func(fiberID, eventName, hash string)
}

// New builds a Reconciler with the given data layer and config.
func New(data DataLayer, cfg Config) *Reconciler {
	return &Reconciler{Data: data, Cfg: cfg}
}

func (r *Reconciler) record(fiberID, eventName, hash string) {
	if r.OnRecord != nil {
		r.OnRecord(fiberID, eventName, hash)
	}
}

// WaitForFiberVisible polls the data layer until fiberID exists or timeout
// elapses, using bounded exponential backoff (spec.md §4.3 step 1).
func (r *Reconciler) WaitForFiberVisible(ctx context.Context, fiberID string) (*model.Fiber, error) {
	deadline := time.Now().Add(r.Cfg.VisibilityTimeout)
	attempt := 0
	for {
		fiber, err := r.Data.GetStateMachine(ctx, fiberID)
		if err == nil {
			return fiber, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: fiber %s not visible after %s", model.ErrNotReady, fiberID, r.Cfg.VisibilityTimeout)
		}
		wait := visibilityBackoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Submit signs and submits a transition for fiberID, rereading the current
// sequence number and retrying on SequenceConflict per spec.md §4.3 step 2.
func (r *Reconciler) Submit(ctx context.Context, priv *secp256k1.PrivateKey, fiberID, eventName string, payload map[string]any) (dataclient.SubmitResult, error) {
	cfg := r.Cfg
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxSequenceRetries; attempt++ {
		cur, err := r.Data.GetStateMachine(ctx, fiberID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return dataclient.SubmitResult{}, fmt.Errorf("%w: fiber %s", model.ErrNotReady, fiberID)
			}
			return dataclient.SubmitResult{}, err
		}

		msg := model.TransitionStateMachineMsg{
			FiberID:              fiberID,
			EventName:            eventName,
			Payload:              payload,
			TargetSequenceNumber: cur.SequenceNumber,
		}
		proof, err := codec.Sign(priv, msg, codec.ModeDataUpdate)
		if err != nil {
			return dataclient.SubmitResult{}, fmt.Errorf("%w: %v", model.ErrSignatureRefused, err)
		}
		envelope := model.Signed[any]{Value: msg, Proofs: []model.SignatureProof{proof}}

		res, err := r.Data.Submit(ctx, envelope)
		if err == nil {
			r.record(fiberID, eventName, res.Hash)
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, model.ErrSequenceConflict) {
			return dataclient.SubmitResult{}, err
		}
		wait := sequenceConflictBackoff(attempt)
		select {
		case <-ctx.Done():
			return dataclient.SubmitResult{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return dataclient.SubmitResult{}, fmt.Errorf("%w: exhausted %d retries: %v", model.ErrSequenceConflict, cfg.MaxSequenceRetries, lastErr)
}

// SubmitWithCidRetry wraps Submit with the longer CidNotFound-class backoff
// used immediately after registration, before activation (spec.md §4.3
// step 2e).
func (r *Reconciler) SubmitWithCidRetry(ctx context.Context, priv *secp256k1.PrivateKey, fiberID, eventName string, payload map[string]any, isCidNotFound func(error) bool) (dataclient.SubmitResult, error) {
	var lastErr error
	for attempt := 0; attempt < r.Cfg.MaxCidRetries; attempt++ {
		res, err := r.Submit(ctx, priv, fiberID, eventName, payload)
		if err == nil {
			return res, nil
		}
		if isCidNotFound == nil || !isCidNotFound(err) {
			return dataclient.SubmitResult{}, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return dataclient.SubmitResult{}, ctx.Err()
		case <-time.After(cidNotFoundBackoff(attempt)):
		}
	}
	return dataclient.SubmitResult{}, fmt.Errorf("%w: exhausted cid-retry budget: %v", model.ErrNotReady, lastErr)
}

// WaitForSequence polls until the fiber's sequence number reaches at least
// minSeq, so serialized downstream transitions see the new state
// (spec.md §4.3 step 3).
func (r *Reconciler) WaitForSequence(ctx context.Context, fiberID string, minSeq uint64) (*model.Fiber, error) {
	deadline := time.Now().Add(r.Cfg.WaitSequenceTimeout)
	for {
		fiber, err := r.Data.GetStateMachine(ctx, fiberID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		if fiber != nil && fiber.SequenceNumber >= minSeq {
			return fiber, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: fiber %s did not reach sequence %d", model.ErrNotReady, fiberID, minSeq)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Cfg.PollInterval):
		}
	}
}
