// Package config loads runtime configuration from .env files and the
// environment, matching the teacher's walletserver/config and cmd/explorer
// layering: godotenv for file loading, viper for env binding and defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fibermesh/internal/orchestrator"
	"fibermesh/internal/population"
)

// Config is every runtime-tunable field named in spec.md §6.5.
type Config struct {
	TargetPopulation int
	BirthRate        int
	DeathRate        float64
	ActivityRate     float64
	ProposalRate     float64
	MutationRate     float64

	InitialTemperature float64
	TemperatureDecay   float64
	MinTemperature     float64

	GenerationIntervalMS int
	MaxGenerations       uint64

	// FitnessWeights are the per-field fitness weights (FITNESS_WEIGHT_*),
	// distinct from FiberWeights below (spec.md §4.7).
	FitnessWeights population.Weights

	// FiberWeights maps a proposal-phase workflow-type name to its
	// relative weight in the fiber-type draw, parsed from FIBER_WEIGHTS
	// as "name:weight" pairs separated by commas (spec.md §6.5
	// "FIBER_WEIGHTS (workflow-type -> relative weight)"). Empty means
	// orchestrator.DefaultConfig's equal weights apply.
	FiberWeights map[string]float64

	TargetActiveFibers int
	TargetTPS          float64

	WalletPoolPath string

	BridgeURL  string
	ML0URL     string
	DL1URL     string
	GL0URL     string
	IndexerURL string

	// Mode is "standard", "weighted" (fixed fiber-type distribution, no
	// evolution), or "high-throughput" (spec.md §6.5).
	Mode string
}

// parseFiberWeights parses a "name:weight,name:weight" FIBER_WEIGHTS value.
// An empty raw string yields a nil map (caller falls back to defaults).
func parseFiberWeights(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("FIBER_WEIGHTS entry %q must be name:weight", pair)
		}
		name := strings.TrimSpace(parts[0])
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("FIBER_WEIGHTS entry %q: %w", pair, err)
		}
		out[name] = weight
	}
	return out, nil
}

// Load reads .env (if present, silently ignored otherwise) then binds
// every field from the environment with the defaults spec.md §6.5 and
// orchestrator.DefaultConfig name as examples.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	viper.AutomaticEnv()

	def := orchestrator.DefaultConfig()
	w := population.DefaultWeights()

	viper.SetDefault("TARGET_POPULATION", def.Dynamics.TargetPopulation)
	viper.SetDefault("BIRTH_RATE", def.Dynamics.BirthRate)
	viper.SetDefault("DEATH_RATE", def.Dynamics.DeathRate)
	viper.SetDefault("ACTIVITY_RATE", def.ActivityRate)
	viper.SetDefault("PROPOSAL_RATE", def.ProposalRate)
	viper.SetDefault("MUTATION_RATE", def.MutationRate)
	viper.SetDefault("INITIAL_TEMPERATURE", def.InitialTemperature)
	viper.SetDefault("TEMPERATURE_DECAY", def.TemperatureDecay)
	viper.SetDefault("MIN_TEMPERATURE", def.MinTemperature)
	viper.SetDefault("GENERATION_INTERVAL_MS", def.GenerationInterval.Milliseconds())
	viper.SetDefault("MAX_GENERATIONS", def.MaxGenerations)
	viper.SetDefault("FITNESS_WEIGHT_REPUTATION", w.Reputation)
	viper.SetDefault("FITNESS_WEIGHT_COMPLETION", w.Completion)
	viper.SetDefault("FITNESS_WEIGHT_NETWORK_EFFECT", w.NetworkEffect)
	viper.SetDefault("FITNESS_WEIGHT_AGE", w.Age)
	viper.SetDefault("TARGET_ACTIVE_FIBERS", def.Dynamics.TargetPopulation)
	viper.SetDefault("TARGET_TPS", def.TargetTPS)
	viper.SetDefault("WALLET_POOL_PATH", "./walletpool.json")
	viper.SetDefault("BRIDGE_URL", "http://localhost:9000")
	viper.SetDefault("ML0_URL", "http://localhost:9100")
	viper.SetDefault("DL1_URL", "http://localhost:9000")
	viper.SetDefault("GL0_URL", "http://localhost:9100")
	viper.SetDefault("INDEXER_URL", "http://localhost:9200")
	viper.SetDefault("MODE", "standard")
	viper.SetDefault("FIBER_WEIGHTS", "")

	fiberWeights, err := parseFiberWeights(viper.GetString("FIBER_WEIGHTS"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		TargetPopulation:     viper.GetInt("TARGET_POPULATION"),
		BirthRate:            viper.GetInt("BIRTH_RATE"),
		DeathRate:            viper.GetFloat64("DEATH_RATE"),
		ActivityRate:         viper.GetFloat64("ACTIVITY_RATE"),
		ProposalRate:         viper.GetFloat64("PROPOSAL_RATE"),
		MutationRate:         viper.GetFloat64("MUTATION_RATE"),
		InitialTemperature:   viper.GetFloat64("INITIAL_TEMPERATURE"),
		TemperatureDecay:     viper.GetFloat64("TEMPERATURE_DECAY"),
		MinTemperature:       viper.GetFloat64("MIN_TEMPERATURE"),
		GenerationIntervalMS: viper.GetInt("GENERATION_INTERVAL_MS"),
		MaxGenerations:       uint64(viper.GetInt64("MAX_GENERATIONS")),
		FitnessWeights: population.Weights{
			Reputation:    viper.GetFloat64("FITNESS_WEIGHT_REPUTATION"),
			Completion:    viper.GetFloat64("FITNESS_WEIGHT_COMPLETION"),
			NetworkEffect: viper.GetFloat64("FITNESS_WEIGHT_NETWORK_EFFECT"),
			Age:           viper.GetFloat64("FITNESS_WEIGHT_AGE"),
		},
		FiberWeights:       fiberWeights,
		TargetActiveFibers: viper.GetInt("TARGET_ACTIVE_FIBERS"),
		TargetTPS:          viper.GetFloat64("TARGET_TPS"),
		WalletPoolPath:     viper.GetString("WALLET_POOL_PATH"),
		BridgeURL:          viper.GetString("BRIDGE_URL"),
		ML0URL:             viper.GetString("ML0_URL"),
		DL1URL:             viper.GetString("DL1_URL"),
		GL0URL:             viper.GetString("GL0_URL"),
		IndexerURL:         viper.GetString("INDEXER_URL"),
		Mode:               viper.GetString("MODE"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	sum := c.FitnessWeights.Reputation + c.FitnessWeights.Completion + c.FitnessWeights.NetworkEffect + c.FitnessWeights.Age
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("fitness weights must sum to 1.0, got %.4f", sum)
	}
	if c.Mode != "standard" && c.Mode != "weighted" && c.Mode != "high-throughput" {
		return fmt.Errorf("MODE must be \"standard\", \"weighted\", or \"high-throughput\", got %q", c.Mode)
	}
	return nil
}

// OrchestratorConfig translates the flat env-bound Config into
// orchestrator.Config for Orchestrator.Run.
func (c Config) OrchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.GenerationInterval = time.Duration(c.GenerationIntervalMS) * time.Millisecond
	oc.MaxGenerations = c.MaxGenerations
	oc.ActivityRate = c.ActivityRate
	oc.ProposalRate = c.ProposalRate
	oc.MutationRate = c.MutationRate
	oc.InitialTemperature = c.InitialTemperature
	oc.MinTemperature = c.MinTemperature
	oc.TemperatureDecay = c.TemperatureDecay
	oc.HighThroughput = c.Mode == "high-throughput"
	oc.Weighted = c.Mode == "weighted"
	oc.TargetTPS = c.TargetTPS
	oc.Dynamics.TargetPopulation = c.TargetPopulation
	oc.Dynamics.BirthRate = c.BirthRate
	oc.Dynamics.DeathRate = c.DeathRate
	oc.Dynamics.Weights = c.FitnessWeights
	if len(c.FiberWeights) > 0 {
		oc.FiberWeights = c.FiberWeights
	}
	return oc
}
