package sizing

import "fmt"

// Sizer converts a per-leg dollar budget and current prices into raw leg
// quantities. Each leg receives the same dollar notional, not the same unit
// quantity; rounding to exchange-legal sizes is the quantizer's job.
type Sizer struct {
	budget float64
}

// NewSizer creates a dollar-neutral position sizer.
func NewSizer(budgetPerLeg float64) (*Sizer, error) {
	if budgetPerLeg <= 0 {
		return nil, fmt.Errorf("budget per leg must be positive, got %f", budgetPerLeg)
	}
	return &Sizer{budget: budgetPerLeg}, nil
}

// Size returns the raw (unquantized) quantities giving each leg the same
// dollar notional.
func (s *Sizer) Size(priceA, priceB float64) (rawQtyA, rawQtyB float64, err error) {
	if priceA <= 0 || priceB <= 0 {
		return 0, 0, fmt.Errorf("prices must be positive, got %f and %f", priceA, priceB)
	}
	return s.budget / priceA, s.budget / priceB, nil
}

// Budget returns the configured per-leg dollar notional.
func (s *Sizer) Budget() float64 {
	return s.budget
}
