package position

import (
	"fmt"

	"pairsbot/internal/domain"
)

// Tracker owns the single open position (or none) and applies the lifecycle
// transitions FLAT -> OPEN -> PARTIALLY_EXITED -> FLAT. Transitions are only
// applied after the order coordinator confirms execution; a verdict alone
// never reaches the tracker. The tracker is not internally synchronized:
// only the engine's driver iteration mutates it.
type Tracker struct {
	pos *domain.Position
}

// NewTracker creates an empty (FLAT) tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the open position, or nil when flat.
func (t *Tracker) Current() *domain.Position {
	return t.pos
}

// State reports the current lifecycle state.
func (t *Tracker) State() domain.PositionState {
	return t.pos.State()
}

// Open installs a freshly entered position with BarsHeld reset to zero.
func (t *Tracker) Open(pos *domain.Position) error {
	if t.pos != nil {
		return fmt.Errorf("position %s already open", t.pos.TradeID)
	}
	if pos == nil {
		return fmt.Errorf("cannot open a nil position")
	}
	pos.BarsHeld = 0
	t.pos = pos
	return nil
}

// Tick increments the bars-held counter, exactly once per engine tick with
// an open position, before exit verdicts are evaluated for that tick.
// Returns the updated count; no-op when flat.
func (t *Tracker) Tick() int {
	if t.pos == nil {
		return 0
	}
	t.pos.BarsHeld++
	return t.pos.BarsHeld
}

// ApplyPartialExit scales the stored leg quantities down by (1 - fraction)
// and sets the irreversible partial-exit flag. BarsHeld is not reset.
func (t *Tracker) ApplyPartialExit(fraction float64) error {
	if t.pos == nil {
		return fmt.Errorf("no open position to partially exit")
	}
	if t.pos.PartialExited {
		return fmt.Errorf("position %s already partially exited", t.pos.TradeID)
	}
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("partial exit fraction must be in (0,1], got %f", fraction)
	}
	t.pos.QtyA *= 1 - fraction
	t.pos.QtyB *= 1 - fraction
	t.pos.PartialExited = true
	return nil
}

// Close clears the position after a confirmed full exit and returns it.
func (t *Tracker) Close() (*domain.Position, error) {
	if t.pos == nil {
		return nil, fmt.Errorf("no open position to close")
	}
	closed := t.pos
	t.pos = nil
	return closed, nil
}

// Snapshot returns a copy of the position safe to hand outside the driver,
// or nil when flat.
func (t *Tracker) Snapshot() *domain.Position {
	if t.pos == nil {
		return nil
	}
	cp := *t.pos
	return &cp
}
