package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the closing side for an order placed with this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SpreadSide represents the direction of a pairs position relative to the spread.
// Long spread = buy instrument A / sell instrument B; short spread is the reverse.
type SpreadSide string

const (
	LongSpread  SpreadSide = "long"
	ShortSpread SpreadSide = "short"
)

// PositionState represents the lifecycle state of the single managed position.
type PositionState string

const (
	StateFlat            PositionState = "FLAT"
	StateOpen            PositionState = "OPEN"
	StatePartiallyExited PositionState = "PARTIALLY_EXITED"
)

// CloseReason indicates why a position was closed (fully or partially).
type CloseReason string

const (
	CloseReasonStopLoss      CloseReason = "STOP_LOSS"
	CloseReasonExitZScore    CloseReason = "EXIT_ZSCORE"
	CloseReasonMaxHoldPeriod CloseReason = "MAX_HOLD_PERIOD"
	CloseReasonPartialExit   CloseReason = "PARTIAL_EXIT"
	CloseReasonShutdown      CloseReason = "SHUTDOWN"
)

// TradeStatus is the journal-level status of a trade record.
type TradeStatus string

const (
	TradeStatusEntered   TradeStatus = "ENTERED"
	TradeStatusCompleted TradeStatus = "COMPLETED"
)
