package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetPopulation != 100 {
		t.Fatalf("expected default TargetPopulation 100, got %d", cfg.TargetPopulation)
	}
	if cfg.Mode != "standard" {
		t.Fatalf("expected default Mode \"standard\", got %q", cfg.Mode)
	}
}

func TestLoadRejectsWeightsNotSummingToOne(t *testing.T) {
	t.Setenv("FITNESS_WEIGHT_REPUTATION", "0.9")
	t.Setenv("FITNESS_WEIGHT_COMPLETION", "0.9")
	t.Setenv("FITNESS_WEIGHT_NETWORK_EFFECT", "0.9")
	t.Setenv("FITNESS_WEIGHT_AGE", "0.9")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when fitness weights do not sum to 1.0")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("MODE", "turbo")
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for an unrecognized MODE value")
	}
}

func TestOrchestratorConfigTranslatesFields(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oc := cfg.OrchestratorConfig()
	if oc.Dynamics.TargetPopulation != cfg.TargetPopulation {
		t.Fatalf("expected TargetPopulation to carry through, got %d want %d", oc.Dynamics.TargetPopulation, cfg.TargetPopulation)
	}
	if oc.HighThroughput {
		t.Fatal("expected standard mode to map to HighThroughput=false")
	}
	if oc.Weighted {
		t.Fatal("expected standard mode to map to Weighted=false")
	}
}

func TestLoadAcceptsWeightedMode(t *testing.T) {
	t.Setenv("MODE", "weighted")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oc := cfg.OrchestratorConfig()
	if !oc.Weighted {
		t.Fatal("expected MODE=weighted to map to orchestrator.Config.Weighted=true")
	}
}

func TestLoadParsesFiberWeights(t *testing.T) {
	t.Setenv("FIBER_WEIGHTS", "Contract:2, Prediction:1,Auction:0.5")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FiberWeights["Contract"] != 2 || cfg.FiberWeights["Prediction"] != 1 || cfg.FiberWeights["Auction"] != 0.5 {
		t.Fatalf("expected parsed FIBER_WEIGHTS, got %+v", cfg.FiberWeights)
	}
	oc := cfg.OrchestratorConfig()
	if oc.FiberWeights["Contract"] != 2 {
		t.Fatalf("expected OrchestratorConfig to carry FiberWeights through, got %+v", oc.FiberWeights)
	}
}

func TestLoadRejectsMalformedFiberWeights(t *testing.T) {
	t.Setenv("FIBER_WEIGHTS", "Contract=2")
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for a malformed FIBER_WEIGHTS entry")
	}
}
