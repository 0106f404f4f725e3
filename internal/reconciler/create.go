package reconciler

import (
	"context"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/model"
)

// Create signs and submits a CreateStateMachine message. Unlike Submit,
// there is no prior sequence number to reconcile against — the fiber does
// not exist yet — so this is a single signed submission with no
// SequenceConflict retry loop.
func (r *Reconciler) Create(ctx context.Context, priv *secp256k1.PrivateKey, msg model.CreateStateMachineMsg) (dataclient.SubmitResult, error) {
	proof, err := codec.Sign(priv, msg, codec.ModeDataUpdate)
	if err != nil {
		return dataclient.SubmitResult{}, fmt.Errorf("%w: %v", model.ErrSignatureRefused, err)
	}
	envelope := model.Signed[any]{Value: msg, Proofs: []model.SignatureProof{proof}}
	res, err := r.Data.Submit(ctx, envelope)
	if err == nil {
		r.record(msg.FiberID, "create", res.Hash)
	}
	return res, err
}
