package ports

import (
	"context"
	"time"

	"pairsbot/internal/domain"
)

// EntryContext captures the legs and signal state at the moment of entry.
type EntryContext struct {
	SymbolA string
	SymbolB string
	Side    domain.SpreadSide
	PriceA  float64
	PriceB  float64
	QtyA    float64
	QtyB    float64
	Spread  float64
	ZScore  float64
}

// MarketContext captures the rolling statistics backing the entry signal.
type MarketContext struct {
	SpreadMean float64
	SpreadStd  float64
}

// ExitContext captures prices and signal state at the moment of full exit.
type ExitContext struct {
	PriceA float64
	PriceB float64
	Spread float64
	ZScore float64
	Reason domain.CloseReason
}

// PnLResult is the outcome of post-trade reconciliation. When Available is
// false the trade is still marked COMPLETED but PnL could not be attributed;
// Detail carries the reconciler's error payload.
type PnLResult struct {
	Available   bool
	RealizedPnl float64
	TotalFees   float64
	Detail      map[string]interface{}
}

// OrderAudit is one journaled order leg.
type OrderAudit struct {
	Timestamp time.Time
	OrderType string // e.g. ENTRY_LEG1_LONG, PARTIAL_EXIT_LEG2_BUY
	OrderID   int64
	Symbol    string
	Side      domain.OrderSide
	Quantity  float64
	AvgPrice  float64
	Status    string
}

// TradeRecord is the journal entity for one pairs trade: append-only except
// for the ENTERED -> COMPLETED status transition and appended order entries.
type TradeRecord struct {
	TradeID   string
	Status    domain.TradeStatus
	EntryTime time.Time
	Entry     EntryContext
	Market    MarketContext
	Orders    []OrderAudit
	Exit      *ExitContext
	PnL       *PnLResult
}

// TradeJournal is the append-only trade log keyed by trade ID. It must
// tolerate process restart by reloading from the most recent persisted state.
type TradeJournal interface {
	// RecordEntry persists a new trade record in status ENTERED.
	RecordEntry(ctx context.Context, tradeID string, entry EntryContext, market MarketContext) error
	// RecordOrder appends one order audit entry to an existing trade.
	RecordOrder(ctx context.Context, tradeID string, order OrderAudit) error
	// RecordExit transitions the trade to COMPLETED and stores exit context
	// and the (possibly unavailable) PnL result.
	RecordExit(ctx context.Context, tradeID string, exit ExitContext, pnl PnLResult) error
	// Find retrieves one trade record by ID. Returns ErrTradeNotFound if missing.
	Find(ctx context.Context, tradeID string) (*TradeRecord, error)
	// LoadAll retrieves all trade records, ordered by entry time ascending.
	LoadAll(ctx context.Context) ([]*TradeRecord, error)
}
