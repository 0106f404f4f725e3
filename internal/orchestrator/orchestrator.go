package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fibermesh/internal/bridge"
	"fibermesh/internal/dataclient"
	"fibermesh/internal/metrics"
	"fibermesh/internal/model"
	"fibermesh/internal/population"
	"fibermesh/internal/workflow"
)

// Orchestrator drives the generational tick loop (spec.md §4.9).
type Orchestrator struct {
	Engine     *bridge.Engine
	Data       *dataclient.Client
	Pop        *population.Population
	Registry   *Registry
	Workflows  *workflow.Registry
	Wallets    population.WalletSource
	Cfg        Config
	RuntimeCtx *RuntimeContext
	Log        *logrus.Logger
	rng        *rand.Rand
}

// New builds an Orchestrator. rngSeed lets callers pin determinism in
// tests; production callers pass a time-derived seed.
func New(engine *bridge.Engine, data *dataclient.Client, pop *population.Population, reg *Registry, workflows *workflow.Registry, wallets population.WalletSource, cfg Config, log *logrus.Logger, rngSeed int64) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		Engine: engine, Data: data, Pop: pop, Registry: reg, Workflows: workflows,
		Wallets: wallets, Cfg: cfg, RuntimeCtx: NewRuntimeContext(cfg), Log: log,
		rng: rand.New(rand.NewSource(rngSeed)),
	}
}

// Run drives generations until ctx is canceled or MaxGenerations is
// reached (0 = forever) (spec.md §4.9 "Termination").
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.Cfg.GenerationInterval)
	defer ticker.Stop()

	for {
		if o.Cfg.MaxGenerations > 0 && o.RuntimeCtx.Generation >= o.Cfg.MaxGenerations {
			return nil
		}
		o.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one generation: health gate, population dynamics, actor
// sampling + submission, proposal phase, contract/market drivers, fitness
// recompute, and context update (spec.md §4.9 steps 1-11).
func (o *Orchestrator) Tick(ctx context.Context) {
	metrics.Ticks.Inc()

	if !o.healthGate(ctx) {
		metrics.TicksSkippedHealthGate.Inc()
		o.Log.WithField("generation", o.RuntimeCtx.Generation).Warn("tick skipped: cluster not ready or fork suspected")
		o.RuntimeCtx.Advance(o.Cfg, 0)
		return
	}

	population.RunBirths(ctx, o.Pop, o.Engine, o.Wallets, o.Cfg.Dynamics, o.RuntimeCtx.Generation, o.Log)
	population.RunDeaths(ctx, o.Pop, o.Engine, o.Cfg.Dynamics, o.Log)

	attempted, succeeded := o.driveActors(ctx)
	o.runProposals(ctx)
	o.driveContracts(ctx)
	o.driveMarkets(ctx)
	o.recomputeFitness()

	successRate := 1.0
	if attempted > 0 {
		successRate = float64(succeeded) / float64(attempted)
	}
	o.RuntimeCtx.Advance(o.Cfg, successRate)

	metrics.Population.Set(float64(o.Pop.CountActive()))
	metrics.Temperature.Set(o.RuntimeCtx.Temperature)
}

// healthGate implements spec.md §4.9 step 1.
func (o *Orchestrator) healthGate(ctx context.Context) bool {
	if o.Data == nil {
		return true
	}
	status, err := o.Data.GetClusterInfo(ctx)
	if err != nil {
		o.Log.WithError(err).Warn("health gate: cluster info unavailable")
		return false
	}
	return status.Ready() && !status.Forked()
}

// actorDecision is the pure output of choosing which event an actor fires
// this tick, separated from submission so both throughput modes share it.
type actorDecision struct {
	actor     *model.Agent
	eventName string
	newState  string
}

// driveActors implements spec.md §4.9 steps 3-6: sample activityRate·|pop|
// agents by weighted sampling, build AgentIdentity choices per actor,
// softmax-select, then submit — sequentially in standard mode, or fanned
// out with a bounded in-flight cap and TPS pacing in high-throughput mode
// (spec.md §4.9 "Throughput modes"). Returns (attempted, succeeded)
// submission counts for the generation's success-rate smoothing.
func (o *Orchestrator) driveActors(ctx context.Context) (attempted, succeeded int) {
	def, ok := o.Workflows.Get("AgentIdentity")
	if !ok {
		return 0, 0
	}
	all := o.Pop.Snapshot()
	n := int(o.Cfg.ActivityRate * float64(len(all)))
	actors := population.SampleWeighted(o.rng, all, n, func(a *model.Agent) bool {
		return a.State == model.AgentWithdrawn
	})

	decisions := make([]actorDecision, 0, len(actors))
	for _, actor := range actors {
		transitions := def.AvailableTransitions(string(actor.State), "")
		if len(transitions) == 0 {
			continue
		}
		choices := make([]Choice, len(transitions))
		for i, tr := range transitions {
			w := tr.BaseWeight * o.contextModifier()
			if !o.Cfg.Weighted && o.rng.Float64() < o.Cfg.MutationRate {
				w = 1 - w
			}
			choices[i] = Choice{EventName: tr.EventName, Weight: w}
		}
		idx := Softmax(o.rng, choices, o.RuntimeCtx.Temperature)
		if idx < 0 {
			continue
		}
		decisions = append(decisions, actorDecision{actor: actor, eventName: choices[idx].EventName, newState: transitions[idx].To})
	}

	if o.Cfg.HighThroughput {
		return o.submitDecisionsConcurrently(ctx, decisions)
	}
	return o.submitDecisionsSequentially(ctx, decisions)
}

func (o *Orchestrator) submitDecisionsSequentially(ctx context.Context, decisions []actorDecision) (attempted, succeeded int) {
	for _, d := range decisions {
		attempted++
		if o.submitOne(ctx, d) {
			succeeded++
		}
	}
	return attempted, succeeded
}

// submitDecisionsConcurrently fans submissions out across up to
// Cfg.MaxInFlight goroutines, pacing dispatch to Cfg.TargetTPS.
func (o *Orchestrator) submitDecisionsConcurrently(ctx context.Context, decisions []actorDecision) (attempted, succeeded int) {
	limit := o.Cfg.MaxInFlight
	if limit <= 0 {
		limit = 1
	}
	var interval time.Duration
	if o.Cfg.TargetTPS > 0 {
		interval = time.Duration(float64(time.Second) / o.Cfg.TargetTPS)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, d := range decisions {
		d := d
		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-gctx.Done():
			}
		}
		mu.Lock()
		attempted++
		mu.Unlock()
		g.Go(func() error {
			ok := o.submitOne(gctx, d)
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return attempted, succeeded
}

// submitOne submits a single actor's chosen transition and, on success,
// advances its in-memory state.
func (o *Orchestrator) submitOne(ctx context.Context, d actorDecision) bool {
	priv := secp256k1.PrivKeyFromBytes(d.actor.PrivateKey[:])
	_, err := o.Engine.TransitionStateMachine(ctx, bridge.TransitionStateMachineInput{
		PrivateKey: priv,
		FiberID:    d.actor.FiberID,
		EventName:  d.eventName,
	})
	if err != nil {
		metrics.ObserveSubmission(classifyErr(err))
		o.Log.WithError(err).WithField("address", d.actor.Address).Debug("actor submission failed")
		return false
	}
	metrics.ObserveSubmission(metrics.ResultSuccess)
	d.actor.State = model.AgentState(d.newState)
	o.Pop.Add(d.actor)
	return true
}

// contextModifier folds marketHealth into the per-choice weight (spec.md
// §4.9 step 4 "context-factors").
func (o *Orchestrator) contextModifier() float64 {
	return o.RuntimeCtx.MarketHealth
}

// proposableKinds are the workflow types the proposal phase draws among
// via FiberWeights (spec.md §6.5 "FIBER_WEIGHTS (workflow-type -> relative
// weight)"); every name but "Contract" creates a Market of that type.
var proposableKinds = []string{"Contract", "Prediction", "Auction", "Crowdfund", "GroupBuy"}

// pickWeighted draws one key from weights proportionally to its value —
// FIBER_WEIGHTS is a direct relative weight, not a softmax temperature, so
// this is a plain weighted draw rather than Softmax (spec.md §6.5). A key
// missing from weights falls back to 1.
func pickWeighted(rng *rand.Rand, weights map[string]float64, keys []string) string {
	ws := make([]float64, len(keys))
	total := 0.0
	for i, k := range keys {
		w, ok := weights[k]
		if !ok || w <= 0 {
			w = 1
		}
		ws[i] = w
		total += w
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range ws {
		acc += w
		if r <= acc {
			return keys[i]
		}
	}
	return keys[len(keys)-1]
}

func marketTypeForKind(kind string) model.MarketType {
	switch kind {
	case "Auction":
		return model.MarketAuction
	case "Crowdfund":
		return model.MarketCrowdfund
	case "GroupBuy":
		return model.MarketGroupBuy
	default:
		return model.MarketPrediction
	}
}

// runProposals implements spec.md §4.9 step 7: with probability
// proposalRate per actor, propose a contract or a market, choosing which
// via the FIBER_WEIGHTS distribution.
func (o *Orchestrator) runProposals(ctx context.Context) {
	all := o.Pop.Snapshot()
	for _, actor := range all {
		if actor.State != model.AgentActive {
			continue
		}
		if o.rng.Float64() >= o.Cfg.ProposalRate {
			continue
		}
		kind := pickWeighted(o.rng, o.Cfg.FiberWeights, proposableKinds)
		if kind == "Contract" {
			o.proposeContract(ctx, actor, all)
			continue
		}
		o.proposeMarket(ctx, actor, all, marketTypeForKind(kind))
	}
}

// proposeContract proposes a Contract fiber to a fitness-sampled
// counterparty below the connection cap.
func (o *Orchestrator) proposeContract(ctx context.Context, actor *model.Agent, all []*model.Agent) {
	counterparties := population.SampleWeighted(o.rng, all, 1, func(a *model.Agent) bool {
		return a.Address == actor.Address || o.Registry.ConnectedCount(actor.Address, a.Address) >= o.Cfg.MaxConnectedPerAgent
	})
	if len(counterparties) == 0 {
		return
	}
	counterparty := counterparties[0]

	priv := secp256k1.PrivKeyFromBytes(actor.PrivateKey[:])
	res, err := o.Engine.ProposeContract(ctx, bridge.ProposeContractInput{
		PrivateKey:   priv,
		Counterparty: counterparty.Address,
		Terms:        map[string]any{"generation": o.RuntimeCtx.Generation},
	})
	if err != nil {
		o.Log.WithError(err).Debug("contract proposal failed")
		return
	}
	o.Registry.AddContract(&model.Contract{
		FiberID: res.FiberID, Proposer: actor.Address, Counterparty: counterparty.Address,
		State: model.ContractProposed, CreatedGeneration: o.RuntimeCtx.Generation,
		ExpectedCompletion: o.RuntimeCtx.Generation + 5,
		Completions:        make(map[string]time.Time),
	})
}

// proposeMarket creates a Market fiber of marketType, naming up to 3
// fitness-sampled oracles and requiring every named oracle to resolve
// (spec.md §4.9 step 7 "propose a contract or market", §4.4/§4.8).
func (o *Orchestrator) proposeMarket(ctx context.Context, actor *model.Agent, all []*model.Agent, marketType model.MarketType) {
	oracleAgents := population.SampleWeighted(o.rng, all, 3, func(a *model.Agent) bool {
		return a.Address == actor.Address
	})
	if len(oracleAgents) == 0 {
		return
	}
	oracles := make([]string, len(oracleAgents))
	oracleSet := make(map[string]struct{}, len(oracleAgents))
	for i, a := range oracleAgents {
		oracles[i] = a.Address
		oracleSet[a.Address] = struct{}{}
	}

	priv := secp256k1.PrivKeyFromBytes(actor.PrivateKey[:])
	deadlineMS := time.Now().Add(5 * o.Cfg.GenerationInterval).UnixMilli()
	res, err := o.Engine.CreateMarket(ctx, bridge.CreateMarketInput{
		PrivateKey: priv,
		MarketType: marketType,
		Oracles:    oracles,
		Quorum:     len(oracles),
		DeadlineMS: &deadlineMS,
	})
	if err != nil {
		o.Log.WithError(err).Debug("market proposal failed")
		return
	}

	deadline := time.UnixMilli(deadlineMS)
	o.Registry.AddMarket(&model.Market{
		FiberID: res.FiberID, MarketType: marketType, Creator: actor.Address,
		Oracles: oracleSet, Quorum: len(oracles), Deadline: &deadline,
		State:       model.MarketProposed,
		Commitments: make(map[string]*model.Commitment),
		Claims:      make(map[string]*model.Claim),
	})
}

// driveContracts implements spec.md §4.9 step 8.
func (o *Orchestrator) driveContracts(ctx context.Context) {
	for _, c := range o.Registry.Contracts() {
		switch c.State {
		case model.ContractProposed:
			counterparty := o.Pop.Get(c.Counterparty)
			if counterparty == nil {
				continue
			}
			priv := secp256k1.PrivKeyFromBytes(counterparty.PrivateKey[:])
			choices := []Choice{{EventName: "accept", Weight: 0.8}, {EventName: "reject", Weight: 0.2}}
			idx := Softmax(o.rng, choices, o.RuntimeCtx.Temperature)
			if idx < 0 {
				continue
			}
			var err error
			if choices[idx].EventName == "accept" {
				_, err = o.Engine.AcceptContract(ctx, priv, c.FiberID)
				if err == nil {
					c.State = model.ContractActive
				}
			} else {
				_, err = o.Engine.RejectContract(ctx, priv, c.FiberID)
				if err == nil {
					c.State = model.ContractRejected
				}
			}
			if err != nil {
				o.Log.WithError(err).WithField("fiberId", c.FiberID).Debug("contract accept/reject failed")
				continue
			}

		case model.ContractActive:
			if o.RuntimeCtx.Generation < c.ExpectedCompletion {
				continue
			}
			o.attemptContractCompletion(ctx, c)
		}

		if c.State == model.ContractCompleted || c.State == model.ContractRejected || c.State == model.ContractDisputed {
			o.Registry.RemoveContract(c.FiberID)
		} else {
			o.Registry.AddContract(c)
		}
	}
}

func (o *Orchestrator) attemptContractCompletion(ctx context.Context, c *model.Contract) {
	choices := []Choice{{EventName: "complete", Weight: 0.7}, {EventName: "dispute", Weight: 0.1}}
	idx := Softmax(o.rng, choices, o.RuntimeCtx.Temperature)
	if idx < 0 {
		return
	}
	for _, addr := range []string{c.Proposer, c.Counterparty} {
		agent := o.Pop.Get(addr)
		if agent == nil {
			continue
		}
		priv := secp256k1.PrivKeyFromBytes(agent.PrivateKey[:])
		if choices[idx].EventName == "dispute" {
			if _, err := o.Engine.DisputeContract(ctx, priv, c.FiberID, "generation timeout"); err == nil {
				c.State = model.ContractDisputed
				o.Pop.RecordContractOutcome(c.Proposer, c.Counterparty, false)
				o.Pop.RecordContractOutcome(c.Counterparty, c.Proposer, false)
			}
			return
		}
		if _, err := o.Engine.CompleteContract(ctx, priv, c.FiberID); err == nil {
			c.Completions[addr] = time.Now()
		}
	}
	if len(c.Completions) >= 2 {
		agent := o.Pop.Get(c.Proposer)
		if agent != nil {
			priv := secp256k1.PrivKeyFromBytes(agent.PrivateKey[:])
			if _, err := o.Engine.FinalizeContract(ctx, priv, c.FiberID); err == nil {
				c.State = model.ContractCompleted
				o.Pop.RecordContractOutcome(c.Proposer, c.Counterparty, true)
				o.Pop.RecordContractOutcome(c.Counterparty, c.Proposer, true)
			}
		}
	}
}

// driveMarkets implements spec.md §4.9 step 9: walks PROPOSED→OPEN→
// CLOSED→RESOLVING→SETTLED, driving participant commitments while OPEN,
// oracle resolutions while RESOLVING, and participant claims once
// SETTLED, honoring quorum for finalize and deadlines for auto-close.
func (o *Orchestrator) driveMarkets(ctx context.Context) {
	nowMS := time.Now().UnixMilli()
	for _, m := range o.Registry.Markets() {
		creator := o.Pop.Get(m.Creator)
		if creator == nil {
			continue
		}
		priv := secp256k1.PrivKeyFromBytes(creator.PrivateKey[:])

		switch m.State {
		case model.MarketProposed:
			if _, err := o.Engine.OpenMarket(ctx, priv, m.FiberID); err == nil {
				m.State = model.MarketOpen
			}
		case model.MarketOpen:
			pastDeadline := m.Deadline != nil && nowMS >= m.Deadline.UnixMilli()
			if pastDeadline {
				if _, err := o.Engine.CloseMarket(ctx, priv, m.FiberID); err == nil {
					m.State = model.MarketClosed
				}
			} else {
				o.driveMarketCommitments(ctx, m)
			}
		case model.MarketClosed:
			if _, err := o.Engine.TransitionStateMachine(ctx, bridge.TransitionStateMachineInput{
				PrivateKey: priv, FiberID: m.FiberID, EventName: "begin_resolution",
			}); err == nil {
				m.State = model.MarketResolving
			}
		case model.MarketResolving:
			o.driveMarketResolutions(ctx, m)
			if len(m.Resolutions) >= m.Quorum {
				if _, err := o.Engine.FinalizeMarket(ctx, priv, m.FiberID); err == nil {
					m.State = model.MarketSettled
				}
			}
		case model.MarketSettled:
			o.driveMarketClaims(ctx, m)
			if len(m.Claims) >= len(m.Commitments) {
				o.Registry.RemoveMarket(m.FiberID)
				continue
			}
		}
		o.Registry.AddMarket(m)
	}
}

// driveMarketCommitments samples up to 3 non-creator active agents per
// tick to CommitMarket while a market is OPEN (spec.md §4.9 step 9).
func (o *Orchestrator) driveMarketCommitments(ctx context.Context, m *model.Market) {
	all := o.Pop.Snapshot()
	participants := population.SampleWeighted(o.rng, all, 3, func(a *model.Agent) bool {
		if a.Address == m.Creator || a.State != model.AgentActive {
			return true
		}
		_, already := m.Commitments[a.Address]
		return already
	})
	for _, p := range participants {
		if o.rng.Float64() >= o.Cfg.ProposalRate {
			continue
		}
		priv := secp256k1.PrivKeyFromBytes(p.PrivateKey[:])
		amount := 1 + o.rng.Float64()*99
		choice := "yes"
		if o.rng.Float64() < 0.5 {
			choice = "no"
		}
		data := map[string]any{"choice": choice}
		if _, err := o.Engine.CommitMarket(ctx, priv, m.FiberID, amount, data); err != nil {
			o.Log.WithError(err).Debug("market commitment failed")
			continue
		}
		m.Commitments[p.Address] = &model.Commitment{Amount: amount, Data: data, LastCommitAt: time.Now()}
		m.TotalCommitted += amount
	}
}

// driveMarketResolutions drives every oracle that hasn't yet resolved to
// SubmitResolution while RESOLVING (spec.md §4.8, §4.9 step 9).
func (o *Orchestrator) driveMarketResolutions(ctx context.Context, m *model.Market) {
	resolved := make(map[string]struct{}, len(m.Resolutions))
	for _, r := range m.Resolutions {
		resolved[r.Oracle] = struct{}{}
	}
	for oracleAddr := range m.Oracles {
		if _, done := resolved[oracleAddr]; done {
			continue
		}
		agent := o.Pop.Get(oracleAddr)
		if agent == nil {
			continue
		}
		priv := secp256k1.PrivKeyFromBytes(agent.PrivateKey[:])
		outcome := "yes"
		if o.rng.Float64() < 0.5 {
			outcome = "no"
		}
		if _, err := o.Engine.SubmitResolution(ctx, priv, m.FiberID, outcome, "orchestrator-observed"); err != nil {
			o.Log.WithError(err).Debug("market resolution failed")
			continue
		}
		m.Resolutions = append(m.Resolutions, model.Resolution{Oracle: oracleAddr, Outcome: outcome, Proof: "orchestrator-observed", SubmittedAt: time.Now()})
	}
}

// driveMarketClaims drives every committed participant without a
// recorded claim to ClaimMarket once a market has SETTLED (spec.md §4.8).
func (o *Orchestrator) driveMarketClaims(ctx context.Context, m *model.Market) {
	for addr, c := range m.Commitments {
		if _, claimed := m.Claims[addr]; claimed {
			continue
		}
		agent := o.Pop.Get(addr)
		if agent == nil {
			continue
		}
		priv := secp256k1.PrivKeyFromBytes(agent.PrivateKey[:])
		if _, err := o.Engine.ClaimMarket(ctx, priv, m.FiberID); err != nil {
			o.Log.WithError(err).Debug("market claim failed")
			continue
		}
		m.Claims[addr] = &model.Claim{ClaimedAt: time.Now(), Amount: c.Amount}
	}
}

// classifyErr maps a bridge submission error to a metrics result class.
func classifyErr(err error) metrics.ResultClass {
	switch {
	case errors.Is(err, model.ErrValidation):
		return metrics.ResultValidationError
	case errors.Is(err, model.ErrStateConflict):
		return metrics.ResultStateConflict
	case errors.Is(err, model.ErrUpstream):
		return metrics.ResultUpstreamRejected
	default:
		return metrics.ResultNetworkError
	}
}

// recomputeFitness implements spec.md §4.9 step 10.
func (o *Orchestrator) recomputeFitness() {
	maxRep := o.Pop.MaxReputationSeen()
	for _, a := range o.Pop.Snapshot() {
		f := population.Compute(a.Fitness.Reputation, a.Meta, maxRep, o.RuntimeCtx.Generation, o.Cfg.Dynamics.Weights)
		o.Pop.UpdateFitness(a.Address, f)
	}
}
