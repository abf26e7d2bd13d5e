package signal

import (
	"fmt"
	"math"

	"pairsbot/internal/domain"
)

// Config holds the z-score thresholds and holding limits for the evaluator.
// Validate must pass before the engine starts.
type Config struct {
	EntryZ              float64 // Entry threshold, > 0
	ExitZ               float64 // Reversion exit threshold, > 0, < EntryZ
	StopZ               float64 // Stop-loss threshold, > EntryZ
	MaxHoldBars         int     // Time-based exit after this many bars, > 0
	PartialExitFraction float64 // Portion unwound on partial exit, in (0,1]
}

// Validate checks the threshold ordering and ranges.
func (c Config) Validate() error {
	if c.EntryZ <= 0 {
		return fmt.Errorf("entry z-score must be positive, got %f", c.EntryZ)
	}
	if c.ExitZ <= 0 || c.ExitZ >= c.EntryZ {
		return fmt.Errorf("exit z-score must be in (0, entry), got %f with entry %f", c.ExitZ, c.EntryZ)
	}
	if c.StopZ <= c.EntryZ {
		return fmt.Errorf("stop z-score must exceed entry z-score, got %f with entry %f", c.StopZ, c.EntryZ)
	}
	if c.MaxHoldBars <= 0 {
		return fmt.Errorf("max hold bars must be positive, got %d", c.MaxHoldBars)
	}
	if c.PartialExitFraction <= 0 || c.PartialExitFraction > 1 {
		return fmt.Errorf("partial exit fraction must be in (0,1], got %f", c.PartialExitFraction)
	}
	return nil
}

// Evaluate maps the current spread sample and position state to a verdict.
// Pure function: it never mutates the position.
//
// While the sample's statistics are undefined no entry or exit decision is
// made. With a position open the exit rules are checked in strict precedence
// order and the first match wins: the stop-loss bounds tail risk so it
// preempts everything, the max-hold limit is a time-based circuit breaker,
// and the one-shot partial exit is the lowest-priority de-risking step.
func Evaluate(sample domain.SpreadSample, pos *domain.Position, cfg Config) domain.Verdict {
	if !sample.StatsValid {
		return domain.Hold
	}
	z := sample.ZScore

	if pos == nil {
		switch {
		case z <= -cfg.EntryZ:
			return domain.Verdict{Action: domain.ActionEnterLong}
		case z >= cfg.EntryZ:
			return domain.Verdict{Action: domain.ActionEnterShort}
		default:
			return domain.Hold
		}
	}

	// 1. Stop-loss, regardless of side.
	if math.Abs(z) >= cfg.StopZ {
		return domain.Verdict{Action: domain.ActionClose, Reason: domain.CloseReasonStopLoss}
	}

	// 2. Z-score reversion exit.
	if pos.Side == domain.LongSpread && z >= -cfg.ExitZ {
		return domain.Verdict{Action: domain.ActionClose, Reason: domain.CloseReasonExitZScore}
	}
	if pos.Side == domain.ShortSpread && z <= cfg.ExitZ {
		return domain.Verdict{Action: domain.ActionClose, Reason: domain.CloseReasonExitZScore}
	}

	// 3. Max hold period.
	if pos.BarsHeld >= cfg.MaxHoldBars {
		return domain.Verdict{Action: domain.ActionClose, Reason: domain.CloseReasonMaxHoldPeriod}
	}

	// 4. Partial exit, at most once per position lifetime.
	if !pos.PartialExited {
		if (pos.Side == domain.LongSpread && z >= 0) || (pos.Side == domain.ShortSpread && z <= 0) {
			return domain.Verdict{
				Action:   domain.ActionPartialClose,
				Reason:   domain.CloseReasonPartialExit,
				Fraction: cfg.PartialExitFraction,
			}
		}
	}

	return domain.Hold
}
