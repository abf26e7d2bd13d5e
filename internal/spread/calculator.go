package spread

import (
	"fmt"
	"math"

	"pairsbot/internal/domain"
	"pairsbot/internal/sizing"
)

// Func computes the scalar divergence of two dollar-matched legs.
// The exact spread formula is a configuration choice.
type Func func(priceA, qtyA, priceB, qtyB float64) float64

// PercentNotional is the default spread: the difference of the two leg
// notionals normalized by their average.
func PercentNotional(priceA, qtyA, priceB, qtyB float64) float64 {
	valueA := priceA * qtyA
	valueB := priceB * qtyB
	avg := (valueA + valueB) / 2
	if avg == 0 {
		return 0
	}
	return (valueA - valueB) / avg
}

// LogPrice is the log-price spread variant; it ignores leg sizing.
func LogPrice(priceA, _, priceB, _ float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	return math.Log(priceA) - math.Log(priceB)
}

// Config holds configuration for the spread calculator.
type Config struct {
	SymbolA   string
	SymbolB   string
	Window    int  // Rolling window W
	Capacity  int  // Buffer retention; defaults to 10*Window
	Spread    Func // Defaults to PercentNotional
	Sizer     *sizing.Sizer
	Quantizer *sizing.Quantizer
}

// Calculator turns the parallel price series into a z-scored divergence
// signal. It owns a bounded append-only buffer of price samples; statistics
// are strict-mode: no value is produced until a full window of samples
// exists, and mixing in expanding-window values is never done.
type Calculator struct {
	cfg     Config
	samples []domain.PriceSample
}

// New creates a spread calculator.
func New(cfg Config) (*Calculator, error) {
	if cfg.Window < 2 {
		return nil, fmt.Errorf("rolling window must be at least 2, got %d", cfg.Window)
	}
	if cfg.Sizer == nil || cfg.Quantizer == nil {
		return nil, fmt.Errorf("sizer and quantizer are required")
	}
	if cfg.Capacity < 10*cfg.Window {
		cfg.Capacity = 10 * cfg.Window
	}
	if cfg.Spread == nil {
		cfg.Spread = PercentNotional
	}
	return &Calculator{
		cfg:     cfg,
		samples: make([]domain.PriceSample, 0, cfg.Capacity),
	}, nil
}

// Update appends the new price sample, dropping the oldest beyond capacity,
// and returns the most recent spread sample. The returned sample's
// StatsValid is false while fewer than W samples exist or the rolling
// standard deviation is zero.
func (c *Calculator) Update(sample domain.PriceSample) (domain.SpreadSample, error) {
	c.samples = append(c.samples, sample)
	if len(c.samples) > c.cfg.Capacity {
		c.samples = c.samples[len(c.samples)-c.cfg.Capacity:]
	}

	// Leg sizing varies with price, so spreads are recomputed across the
	// buffer rather than cached alongside it.
	spreads := make([]float64, len(c.samples))
	var latest domain.SpreadSample
	for i, s := range c.samples {
		rawA, rawB, err := c.cfg.Sizer.Size(s.PriceA, s.PriceB)
		if err != nil {
			return domain.SpreadSample{}, fmt.Errorf("sizing sample %d: %w", i, err)
		}
		qtyA := c.cfg.Quantizer.Quantize(rawA, c.cfg.SymbolA)
		qtyB := c.cfg.Quantizer.Quantize(rawB, c.cfg.SymbolB)
		spreads[i] = c.cfg.Spread(s.PriceA, qtyA, s.PriceB, qtyB)

		if i == len(c.samples)-1 {
			latest = domain.SpreadSample{
				PriceA:    s.PriceA,
				PriceB:    s.PriceB,
				QtyA:      qtyA,
				QtyB:      qtyB,
				Spread:    spreads[i],
				Timestamp: s.Timestamp,
			}
		}
	}

	if len(spreads) < c.cfg.Window {
		return latest, nil
	}

	window := spreads[len(spreads)-c.cfg.Window:]
	mean, std := meanStd(window)
	latest.Mean = mean
	latest.Std = std
	if std > 0 {
		latest.ZScore = (latest.Spread - mean) / std
		latest.StatsValid = true
	}
	return latest, nil
}

// Len returns the number of buffered price samples.
func (c *Calculator) Len() int {
	return len(c.samples)
}

// Window returns the configured rolling window size.
func (c *Calculator) Window() int {
	return c.cfg.Window
}

// meanStd computes the mean and sample standard deviation (n-1 divisor) of
// the window.
func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	std = math.Sqrt(sumSq / float64(len(values)-1))
	return mean, std
}
