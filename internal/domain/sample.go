package domain

import "time"

// PriceSample is one polling tick of the two monitored instruments.
type PriceSample struct {
	PriceA    float64   // Last price of instrument A
	PriceB    float64   // Last price of instrument B
	Timestamp time.Time // Time the sample was taken
}

// SpreadSample is a PriceSample enriched with the quantized leg sizing and
// the rolling divergence statistics derived from it.
//
// StatsValid reports whether Mean/Std/ZScore are defined: they are only set
// once the buffer holds at least the full rolling window and the rolling
// standard deviation is strictly positive. No trading decision may consult
// ZScore while StatsValid is false.
type SpreadSample struct {
	PriceA     float64
	PriceB     float64
	QtyA       float64 // Exchange-quantized quantity for leg A
	QtyB       float64 // Exchange-quantized quantity for leg B
	Spread     float64 // Scalar divergence of the dollar-matched legs
	Mean       float64 // Rolling mean of the spread over the window
	Std        float64 // Rolling sample standard deviation over the window
	ZScore     float64 // (Spread - Mean) / Std
	Timestamp  time.Time
	StatsValid bool
}
