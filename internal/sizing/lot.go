package sizing

import (
	"github.com/shopspring/decimal"
)

// unconfiguredPrecision is the decimal precision applied to instruments
// without lot-size rules.
const unconfiguredPrecision = 8

// LotRule holds the exchange-imposed lot-size filter for one instrument.
type LotRule struct {
	StepSize float64 // Quantity increment (e.g. 0.001)
	MinQty   float64 // Minimum order quantity
}

// Quantizer converts raw desired quantities into exchange-legal order sizes.
// Instruments without a configured rule pass through rounded to a fixed
// precision.
type Quantizer struct {
	rules map[string]LotRule
}

// NewQuantizer creates a quantizer from per-instrument lot rules.
func NewQuantizer(rules map[string]LotRule) *Quantizer {
	if rules == nil {
		rules = make(map[string]LotRule)
	}
	return &Quantizer{rules: rules}
}

// Quantize floors rawQty to the instrument's step size. Flooring is done on
// integer step counts so repeated quantization cannot drift across float
// step boundaries. A result below the minimum becomes the minimum when
// rawQty itself reaches it, and 0 otherwise: 0 signals that no position can
// be sized for this instrument at the given budget.
func (q *Quantizer) Quantize(rawQty float64, symbol string) float64 {
	if rawQty <= 0 {
		return 0
	}
	rule, ok := q.rules[symbol]
	if !ok {
		f, _ := decimal.NewFromFloat(rawQty).Round(unconfiguredPrecision).Float64()
		return f
	}

	raw := decimal.NewFromFloat(rawQty)
	step := decimal.NewFromFloat(rule.StepSize)
	minQty := decimal.NewFromFloat(rule.MinQty)

	steps := raw.Div(step).Floor()
	adj := steps.Mul(step)
	if adj.LessThan(minQty) {
		if raw.GreaterThanOrEqual(minQty) {
			adj = minQty
		} else {
			return 0
		}
	}
	f, _ := adj.Float64()
	return f
}

// HasRule reports whether the instrument has a configured lot-size filter.
func (q *Quantizer) HasRule(symbol string) bool {
	_, ok := q.rules[symbol]
	return ok
}
