package orchestrator

// RuntimeContext is the tick-to-tick smoothed state the softmax weighting
// and decay steps read and update (spec.md §4.9 step 4 "context-factors",
// step 11 "Context update").
type RuntimeContext struct {
	Generation   uint64
	Temperature  float64
	MarketHealth float64 // smoothed success rate, clamped to [0.3, 1.0]
}

// NewRuntimeContext seeds the context from cfg's initial values.
func NewRuntimeContext(cfg Config) *RuntimeContext {
	return &RuntimeContext{
		Generation:   0,
		Temperature:  cfg.InitialTemperature,
		MarketHealth: 1.0,
	}
}

// Advance applies the per-generation decay and smooths marketHealth toward
// the generation's observed success rate (spec.md §4.9 step 11).
func (c *RuntimeContext) Advance(cfg Config, observedSuccessRate float64) {
	c.Generation++
	if !cfg.Weighted {
		c.Temperature *= cfg.TemperatureDecay
		if c.Temperature < cfg.MinTemperature {
			c.Temperature = cfg.MinTemperature
		}
	}
	const smoothing = 0.2
	c.MarketHealth = c.MarketHealth + smoothing*(observedSuccessRate-c.MarketHealth)
	if c.MarketHealth < 0.3 {
		c.MarketHealth = 0.3
	}
	if c.MarketHealth > 1.0 {
		c.MarketHealth = 1.0
	}
}
