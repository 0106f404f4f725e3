package population

import (
	"context"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/sirupsen/logrus"

	"fibermesh/internal/bridge"
	"fibermesh/internal/model"
)

// WalletSource hands out a fresh key pair for a new agent. Implemented by
// internal/walletpool in production; a generating stub suffices for
// tests.
type WalletSource interface {
	Acquire() (*secp256k1.PrivateKey, error)
}

// DynamicsConfig bounds births/deaths per generation (spec.md §4.7, §6.5
// TARGET_POPULATION/BIRTH_RATE/DEATH_RATE).
type DynamicsConfig struct {
	TargetPopulation int
	BirthRate        int
	DeathRate        float64 // fraction of |pop|, e.g. 0.05
	Weights          Weights
}

// RunBirths creates up to cfg.BirthRate new agents when active population
// is below target (spec.md §4.7 "Births"). Each failure is logged and
// skipped rather than aborting the batch — a single wallet or sync
// hiccup should not block the rest of this generation's births.
func RunBirths(ctx context.Context, pop *Population, engine *bridge.Engine, wallets WalletSource, cfg DynamicsConfig, generation uint64, log *logrus.Logger) int {
	if log == nil {
		log = logrus.StandardLogger()
	}
	deficit := cfg.TargetPopulation - pop.CountActive()
	if deficit <= 0 {
		return 0
	}
	toCreate := cfg.BirthRate
	if toCreate > deficit {
		toCreate = deficit
	}

	created := 0
	for i := 0; i < toCreate; i++ {
		priv, err := wallets.Acquire()
		if err != nil {
			log.WithError(err).Warn("birth: wallet acquisition failed")
			continue
		}
		reg, err := engine.RegisterAgent(ctx, bridge.RegisterAgentInput{PrivateKey: priv})
		if err != nil {
			log.WithError(err).Warn("birth: RegisterAgent failed")
			continue
		}
		if _, err := engine.Reconciler.WaitForFiberVisible(ctx, reg.FiberID); err != nil {
			log.WithError(err).WithField("fiberId", reg.FiberID).Warn("birth: fiber never became visible")
			continue
		}
		if _, err := engine.ActivateAgent(ctx, bridge.ActivateAgentInput{PrivateKey: priv, FiberID: reg.FiberID}); err != nil {
			log.WithError(err).WithField("fiberId", reg.FiberID).Warn("birth: ActivateAgent failed")
			continue
		}

		agent := &model.Agent{
			Address: reg.Address,
			FiberID: reg.FiberID,
			State:   model.AgentActive,
			Meta:    model.NewAgentMeta(),
		}
		agent.Meta.BirthGeneration = generation
		var privBytes [32]byte
		copy(privBytes[:], priv.Serialize())
		agent.PrivateKey = privBytes
		pop.Add(agent)
		created++
	}
	return created
}

// RunDeaths withdraws up to deathRate·|pop| of the lowest-fitness agents,
// applying "withdraw" only where the agent's current fiber state allows it
// (spec.md §4.7 "Deaths": "apply withdraw where possible").
func RunDeaths(ctx context.Context, pop *Population, engine *bridge.Engine, cfg DynamicsConfig, log *logrus.Logger) int {
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := int(cfg.DeathRate * float64(pop.Count()))
	if n <= 0 {
		return 0
	}
	candidates := pop.RankedByFitnessAsc()
	if n > len(candidates) {
		n = len(candidates)
	}

	withdrawn := 0
	for _, a := range candidates[:n] {
		ok, werr := tryWithdraw(ctx, engine, a)
		if werr != nil {
			log.WithError(werr).WithField("address", a.Address).Debug("death: withdraw not applicable")
			continue
		}
		if ok {
			pop.Remove(a.Address)
			withdrawn++
		}
	}
	return withdrawn
}

func tryWithdraw(ctx context.Context, engine *bridge.Engine, a *model.Agent) (bool, error) {
	priv := secp256k1.PrivKeyFromBytes(a.PrivateKey[:])
	_, err := engine.TransitionStateMachine(ctx, bridge.TransitionStateMachineInput{
		PrivateKey: priv,
		FiberID:    a.FiberID,
		EventName:  "withdraw",
	})
	if err != nil {
		if errors.Is(err, model.ErrStateConflict) {
			return false, nil
		}
		return false, fmt.Errorf("withdraw %s: %w", a.Address, err)
	}
	return true, nil
}
