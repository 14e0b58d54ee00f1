// Package cost estimates the search spend of discovery runs.
package cost

import (
	"maps"
	"slices"

	"github.com/sells-group/lead-scout/internal/config"
)

// Rates holds per-engine pricing, in USD per executed query. Engines
// without a rate are free (DuckDuckGo, classifieds).
type Rates map[string]float64

// RatesFromConfig builds the rate table from the pricing config.
func RatesFromConfig(cfg config.PricingConfig) Rates {
	return Rates{
		config.EngineGoogle: cfg.GooglePerQuery,
		config.EngineJina:   cfg.JinaPerQuery,
	}
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		config.EngineGoogle: 0.005,
		config.EngineJina:   0.002,
	}
}

// Line is the spend of one engine.
type Line struct {
	Engine  string  `json:"engine"`
	Queries int     `json:"queries"`
	CostUSD float64 `json:"cost_usd"`
}

// Calculator computes costs for search usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Query returns the price of a single query against engine.
func (c *Calculator) Query(engine string) float64 {
	return c.rates[engine]
}

// Breakdown prices the uncached query counts per engine, sorted by engine.
func (c *Calculator) Breakdown(queries map[string]int) []Line {
	out := make([]Line, 0, len(queries))
	for _, e := range slices.Sorted(maps.Keys(queries)) {
		n := queries[e]
		out = append(out, Line{Engine: e, Queries: n, CostUSD: float64(n) * c.rates[e]})
	}
	return out
}

// Run returns the total spend of a run's per-engine query counts.
func (c *Calculator) Run(queries map[string]int) float64 {
	var total float64
	for _, l := range c.Breakdown(queries) {
		total += l.CostUSD
	}
	return total
}
