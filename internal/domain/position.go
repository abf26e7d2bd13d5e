package domain

import (
	"fmt"
	"time"
)

// Position is the single pairs trade in flight. At most one exists at any
// time; there is no pyramiding and no multi-pair concurrency in this engine.
type Position struct {
	TradeID     string     // Unique, time-derived identifier
	Side        SpreadSide // long = buy A / sell B
	SymbolA     string
	SymbolB     string
	QtyA        float64 // Quantized quantity actually sent for leg A
	QtyB        float64 // Quantized quantity actually sent for leg B
	EntryPriceA float64
	EntryPriceB float64
	EntrySpread float64
	EntryZScore float64
	EntryTime   time.Time
	PartialExited bool // Set once on partial exit; never reverts
	BarsHeld      int  // Ticks elapsed with this position open
}

// NewTradeID builds the time-derived trade identifier used across the
// journal and the exchange audit trail.
func NewTradeID(side SpreadSide, at time.Time) string {
	return fmt.Sprintf("%s_%d", side, at.Unix())
}

// State reports the lifecycle state implied by the partial-exit flag.
func (p *Position) State() PositionState {
	if p == nil {
		return StateFlat
	}
	if p.PartialExited {
		return StatePartiallyExited
	}
	return StateOpen
}

// LegSides returns the order sides used to open each leg.
func (p *Position) LegSides() (a, b OrderSide) {
	if p.Side == LongSpread {
		return Buy, Sell
	}
	return Sell, Buy
}
