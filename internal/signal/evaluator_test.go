package signal

import (
	"testing"

	"pairsbot/internal/domain"
)

func testConfig() Config {
	return Config{
		EntryZ:              1.5,
		ExitZ:               0.5,
		StopZ:               3.0,
		MaxHoldBars:         48,
		PartialExitFraction: 0.5,
	}
}

func sampleWithZ(z float64) domain.SpreadSample {
	return domain.SpreadSample{ZScore: z, StatsValid: true}
}

func longPos(barsHeld int, partialExited bool) *domain.Position {
	return &domain.Position{Side: domain.LongSpread, BarsHeld: barsHeld, PartialExited: partialExited}
}

func shortPos(barsHeld int, partialExited bool) *domain.Position {
	return &domain.Position{Side: domain.ShortSpread, BarsHeld: barsHeld, PartialExited: partialExited}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	bad := []Config{
		{EntryZ: 0, ExitZ: 0.5, StopZ: 3, MaxHoldBars: 48, PartialExitFraction: 0.5},
		{EntryZ: 1.5, ExitZ: 1.5, StopZ: 3, MaxHoldBars: 48, PartialExitFraction: 0.5},
		{EntryZ: 1.5, ExitZ: 0.5, StopZ: 1.5, MaxHoldBars: 48, PartialExitFraction: 0.5},
		{EntryZ: 1.5, ExitZ: 0.5, StopZ: 3, MaxHoldBars: 0, PartialExitFraction: 0.5},
		{EntryZ: 1.5, ExitZ: 0.5, StopZ: 3, MaxHoldBars: 48, PartialExitFraction: 0},
		{EntryZ: 1.5, ExitZ: 0.5, StopZ: 3, MaxHoldBars: 48, PartialExitFraction: 1.1},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Expected validation error for case %d", i)
		}
	}
}

func TestNoDecisionWithoutStats(t *testing.T) {
	cfg := testConfig()
	undefined := domain.SpreadSample{ZScore: 99, StatsValid: false}

	if v := Evaluate(undefined, nil, cfg); v.Action != domain.ActionHold {
		t.Errorf("Expected HOLD without stats (flat), got %v", v.Action)
	}
	if v := Evaluate(undefined, longPos(5, false), cfg); v.Action != domain.ActionHold {
		t.Errorf("Expected HOLD without stats (open), got %v", v.Action)
	}
}

func TestEntryThresholds(t *testing.T) {
	cfg := testConfig()

	if v := Evaluate(sampleWithZ(-1.6), nil, cfg); v.Action != domain.ActionEnterLong {
		t.Errorf("Expected ENTER_LONG at z=-1.6, got %v", v.Action)
	}
	if v := Evaluate(sampleWithZ(1.6), nil, cfg); v.Action != domain.ActionEnterShort {
		t.Errorf("Expected ENTER_SHORT at z=1.6, got %v", v.Action)
	}
	if v := Evaluate(sampleWithZ(-1.5), nil, cfg); v.Action != domain.ActionEnterLong {
		t.Errorf("Expected ENTER_LONG at exact threshold, got %v", v.Action)
	}
	for _, z := range []float64{-1.4, 0, 1.4} {
		if v := Evaluate(sampleWithZ(z), nil, cfg); v.Action != domain.ActionHold {
			t.Errorf("Expected HOLD at z=%v, got %v", z, v.Action)
		}
	}
}

// A tick where both the stop and the reversion exit hold must produce
// STOP_LOSS, never EXIT_ZSCORE.
func TestStopLossPrecedesReversionExit(t *testing.T) {
	cfg := testConfig()

	v := Evaluate(sampleWithZ(3.2), longPos(1, false), cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonStopLoss {
		t.Errorf("Expected STOP_LOSS close, got %v/%v", v.Action, v.Reason)
	}

	v = Evaluate(sampleWithZ(-3.2), shortPos(1, false), cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonStopLoss {
		t.Errorf("Expected STOP_LOSS close for short, got %v/%v", v.Action, v.Reason)
	}
}

func TestReversionExit(t *testing.T) {
	cfg := testConfig()

	// Long: exit once z has reverted to at least -exit_z.
	v := Evaluate(sampleWithZ(-0.3), longPos(2, false), cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonExitZScore {
		t.Errorf("Expected EXIT_ZSCORE at z=-0.3 (long), got %v/%v", v.Action, v.Reason)
	}
	// Not yet reverted.
	if v := Evaluate(sampleWithZ(-0.8), longPos(2, false), cfg); v.Action != domain.ActionHold {
		t.Errorf("Expected HOLD at z=-0.8 (long), got %v", v.Action)
	}

	// Short: exit once z has reverted to at most +exit_z.
	v = Evaluate(sampleWithZ(0.3), shortPos(2, false), cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonExitZScore {
		t.Errorf("Expected EXIT_ZSCORE at z=0.3 (short), got %v/%v", v.Action, v.Reason)
	}
	if v := Evaluate(sampleWithZ(0.8), shortPos(2, false), cfg); v.Action != domain.ActionHold {
		t.Errorf("Expected HOLD at z=0.8 (short), got %v", v.Action)
	}
}

func TestMaxHoldExit(t *testing.T) {
	cfg := testConfig()

	v := Evaluate(sampleWithZ(-1.0), longPos(48, false), cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonMaxHoldPeriod {
		t.Errorf("Expected MAX_HOLD_PERIOD at 48 bars, got %v/%v", v.Action, v.Reason)
	}
	if v := Evaluate(sampleWithZ(-1.0), longPos(47, false), cfg); v.Action != domain.ActionHold {
		t.Errorf("Expected HOLD at 47 bars, got %v", v.Action)
	}
}

// Stop-loss and max-hold both firing on the same tick: stop-loss wins.
func TestStopLossPrecedesMaxHold(t *testing.T) {
	cfg := testConfig()
	v := Evaluate(sampleWithZ(-3.5), longPos(100, false), cfg)
	if v.Reason != domain.CloseReasonStopLoss {
		t.Errorf("Expected STOP_LOSS over MAX_HOLD_PERIOD, got %v", v.Reason)
	}
}

func TestPartialExitOneShot(t *testing.T) {
	cfg := testConfig()

	// With the flag already set, the same z-crossing never yields a second
	// partial exit.
	for _, z := range []float64{-0.8, 0.1} {
		v := Evaluate(sampleWithZ(z), longPos(3, true), cfg)
		if v.Action == domain.ActionPartialClose {
			t.Errorf("Expected no second partial exit at z=%v", z)
		}
	}
	for _, z := range []float64{0.8, -0.1} {
		v := Evaluate(sampleWithZ(z), shortPos(3, true), cfg)
		if v.Action == domain.ActionPartialClose {
			t.Errorf("Expected no second partial exit at z=%v (short)", z)
		}
	}
}

// Scenario from the reversion trade walk-through: enter long at -1.6, hold
// at -0.8, full close at -0.3 after two ticks held.
func TestLongReversionScenario(t *testing.T) {
	cfg := testConfig()

	v := Evaluate(sampleWithZ(-1.6), nil, cfg)
	if v.Action != domain.ActionEnterLong {
		t.Fatalf("Expected ENTER_LONG, got %v", v.Action)
	}

	pos := longPos(1, false)
	if v := Evaluate(sampleWithZ(-0.8), pos, cfg); v.Action != domain.ActionHold {
		t.Fatalf("Expected HOLD at z=-0.8, got %v", v.Action)
	}

	pos.BarsHeld = 2
	v = Evaluate(sampleWithZ(-0.3), pos, cfg)
	if v.Action != domain.ActionClose || v.Reason != domain.CloseReasonExitZScore {
		t.Fatalf("Expected EXIT_ZSCORE close at z=-0.3, got %v/%v", v.Action, v.Reason)
	}
}
