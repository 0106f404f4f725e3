package bridge

import (
	"context"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/codec"
	"fibermesh/internal/model"
)

// CreateMarketInput is the caller input for CreateMarket.
type CreateMarketInput struct {
	PrivateKey *secp256k1.PrivateKey
	MarketType model.MarketType
	Oracles    []string
	Quorum     int
	DeadlineMS *int64
	Threshold  *float64
}

// CreateMarket creates a Market fiber in PROPOSED state, parameterized by
// marketType (spec.md §4.4, glossary "Market").
func (e *Engine) CreateMarket(ctx context.Context, in CreateMarketInput) (Result, error) {
	if in.PrivateKey == nil {
		return Result{}, validationErr("private key required")
	}
	workflowName := marketWorkflowName(in.MarketType)
	def, ok := e.Workflows.Get(workflowName)
	if !ok {
		return Result{}, validationErr("unsupported market type %q", in.MarketType)
	}
	creator := codec.AddressFromPrivateKey(in.PrivateKey)
	fiberID := newFiberID()

	initial := map[string]any{
		"schema":      "Market",
		"marketType":  string(in.MarketType),
		"creator":     creator,
		"oracles":     in.Oracles,
		"quorum":      in.Quorum,
		"commitments": map[string]any{},
		"totalCommitted": 0.0,
		"resolutions": []any{},
		"claims":      map[string]any{},
	}
	if in.DeadlineMS != nil {
		initial["deadline"] = *in.DeadlineMS
	}
	if in.Threshold != nil {
		initial["threshold"] = *in.Threshold
	}
	msg := model.CreateStateMachineMsg{FiberID: fiberID, Definition: def.OnChain, InitialData: initial}
	res, err := e.Reconciler.Create(ctx, in.PrivateKey, msg)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

func marketWorkflowName(mt model.MarketType) string {
	switch mt {
	case model.MarketPrediction:
		return "Prediction"
	case model.MarketAuction:
		return "Auction"
	case model.MarketCrowdfund:
		return "Crowdfund"
	case model.MarketGroupBuy:
		return "GroupBuy"
	default:
		return ""
	}
}

// marketStatusCheck pre-checks the current status before submitting a
// market transition; state-illegal operations return 4xx with the current
// status in the body and are never submitted (spec.md §4.4).
func (e *Engine) marketStatusCheck(ctx context.Context, fiberID string, want ...string) (*model.Fiber, error) {
	fiber, err := e.fetchFiber(ctx, fiberID)
	if err != nil {
		return nil, err
	}
	for _, w := range want {
		if fiber.CurrentState == w {
			return fiber, nil
		}
	}
	return nil, stateConflictErr(fiber.CurrentState)
}

// OpenMarket fires "open"; creator-only, PROPOSED → OPEN.
func (e *Engine) OpenMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "PROPOSED")
	if err != nil {
		return Result{}, err
	}
	if stringField(fiber.StateData, "creator") != caller {
		return Result{}, validationErr("caller %s is not the creator of fiber %s", caller, fiberID)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "open", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// CommitMarket fires "commit"; any participant may commit while OPEN.
func (e *Engine) CommitMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string, amount float64, data map[string]any) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	if _, err := e.marketStatusCheck(ctx, fiberID, "OPEN"); err != nil {
		return Result{}, err
	}
	payload := map[string]any{"agent": caller, "amount": amount, "data": data}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "commit", payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// CloseMarket fires "close"; creator-only, OPEN → CLOSED. Also legal once
// the deadline has passed, matching the orchestrator's auto-close driver
// (spec.md §4.9 step 9 "respects deadlines").
func (e *Engine) CloseMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "OPEN")
	if err != nil {
		return Result{}, err
	}
	if stringField(fiber.StateData, "creator") != caller && !deadlinePassed(fiber) {
		return Result{}, validationErr("caller %s is not the creator of fiber %s and deadline has not passed", caller, fiberID)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "close", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// SubmitResolution fires "submit_resolution"; only a member of the
// oracle set who hasn't yet resolved may call it, while RESOLVING (spec.md
// §4.8).
func (e *Engine) SubmitResolution(ctx context.Context, priv *secp256k1.PrivateKey, fiberID, outcome, proof string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "RESOLVING")
	if err != nil {
		return Result{}, err
	}
	if !isOracle(fiber, caller) {
		return Result{}, validationErr("caller %s is not an oracle for fiber %s", caller, fiberID)
	}
	if hasResolved(fiber, caller) {
		return Result{}, validationErr("oracle %s has already resolved fiber %s", caller, fiberID)
	}
	payload := map[string]any{"agent": caller, "outcome": outcome, "proof": proof}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "submit_resolution", payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// FinalizeMarket fires "finalize"; anyone may call it once
// len(resolutions) >= quorum, RESOLVING → SETTLED (spec.md §4.8).
func (e *Engine) FinalizeMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "RESOLVING")
	if err != nil {
		return Result{}, err
	}
	resolutions, _ := fiber.StateData["resolutions"].([]any)
	quorum := intField(fiber.StateData, "quorum")
	if len(resolutions) < quorum {
		return Result{}, validationErr("finalize requires quorum %d, have %d resolutions", quorum, len(resolutions))
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "finalize", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// RefundMarket fires "refund"; legal from OPEN or CLOSED when
// totalCommitted is below threshold, or when the market has no threshold
// (spec.md §8 scenario 5 "Refund below threshold"). The deadline is not
// checked here.
func (e *Engine) RefundMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "OPEN", "CLOSED")
	if err != nil {
		return Result{}, err
	}
	threshold, hasThreshold := floatFieldOK(fiber.StateData, "threshold")
	total := floatField(fiber.StateData, "totalCommitted")
	if hasThreshold && total >= threshold {
		return Result{}, validationErr("totalCommitted %.2f meets threshold %.2f, refund not applicable", total, threshold)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "refund", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// ClaimMarket fires "claim"; legal once SETTLED or REFUNDED.
func (e *Engine) ClaimMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	if _, err := e.marketStatusCheck(ctx, fiberID, "SETTLED", "REFUNDED"); err != nil {
		return Result{}, err
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "claim", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

// CancelMarket fires "cancel"; creator-only, PROPOSED → CANCELLED.
func (e *Engine) CancelMarket(ctx context.Context, priv *secp256k1.PrivateKey, fiberID string) (Result, error) {
	caller := codec.AddressFromPrivateKey(priv)
	fiber, err := e.marketStatusCheck(ctx, fiberID, "PROPOSED")
	if err != nil {
		return Result{}, err
	}
	if stringField(fiber.StateData, "creator") != caller {
		return Result{}, validationErr("caller %s is not the creator of fiber %s", caller, fiberID)
	}
	res, err := e.Reconciler.Submit(ctx, priv, fiberID, "cancel", map[string]any{"agent": caller})
	if err != nil {
		return Result{}, err
	}
	return Result{Hash: res.Hash, FiberID: fiberID}, nil
}

func deadlinePassed(fiber *model.Fiber) bool {
	deadline, ok := floatFieldOK(fiber.StateData, "deadline")
	if !ok {
		return false
	}
	return float64(time.Now().UnixMilli()) >= deadline
}

func isOracle(fiber *model.Fiber, addr string) bool {
	switch oracles := fiber.StateData["oracles"].(type) {
	case []string:
		for _, s := range oracles {
			if s == addr {
				return true
			}
		}
	case []any:
		for _, o := range oracles {
			if s, _ := o.(string); s == addr {
				return true
			}
		}
	}
	return false
}

func hasResolved(fiber *model.Fiber, addr string) bool {
	resolutions, _ := fiber.StateData["resolutions"].([]any)
	for _, r := range resolutions {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if stringField(rm, "oracle") == addr {
			return true
		}
	}
	return false
}

func intField(data map[string]any, key string) int {
	v, ok := data[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatField(data map[string]any, key string) float64 {
	f, _ := floatFieldOK(data, key)
	return f
}

func floatFieldOK(data map[string]any, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
