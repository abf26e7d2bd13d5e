package reconcile

import (
	"context"
	"fmt"
	"time"

	"pairsbot/internal/ports"
)

const (
	defaultWindow     = time.Hour
	defaultTradeLimit = 100
)

// Reconciler matches exchange fill history against a journaled entry to
// compute realized PnL and fees after a full exit.
//
// Attribution is best-effort: fills are selected purely by falling within
// the time window around the entry, so unrelated trades on the same
// instruments inside the window are counted too. That is a documented
// limitation of the method, not something the reconciler tries to correct.
type Reconciler struct {
	exchange   ports.ExchangeClient
	journal    ports.TradeJournal
	logger     ports.Logger
	symbolA    string
	symbolB    string
	window     time.Duration
	tradeLimit int
}

// Config holds the reconciler's collaborators and matching parameters.
type Config struct {
	Exchange ports.ExchangeClient
	Journal  ports.TradeJournal
	Logger   ports.Logger
	SymbolA  string
	SymbolB  string
	Window   time.Duration // Fill-matching window around entry; defaults to 1h
	Limit    int           // Account trades fetched per symbol; defaults to 100
}

// New creates a PnL reconciler.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Exchange == nil || cfg.Journal == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for reconciler")
	}
	if cfg.SymbolA == "" || cfg.SymbolB == "" {
		return nil, fmt.Errorf("both pair symbols are required")
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultTradeLimit
	}
	return &Reconciler{
		exchange:   cfg.Exchange,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
		symbolA:    cfg.SymbolA,
		symbolB:    cfg.SymbolB,
		window:     cfg.Window,
		tradeLimit: cfg.Limit,
	}, nil
}

// Reconcile sums realized PnL and commissions across both instruments' fills
// inside the window around entryTime. A missing journal record or a failed
// history fetch returns an error wrapping ErrReconciliationFailed; the
// caller reports the PnL as unavailable and still completes the trade.
func (r *Reconciler) Reconcile(ctx context.Context, tradeID string, entryTime time.Time) (ports.PnLResult, error) {
	if _, err := r.journal.Find(ctx, tradeID); err != nil {
		return ports.PnLResult{}, fmt.Errorf("looking up trade %s: %w: %w", tradeID, ports.ErrReconciliationFailed, err)
	}

	tradesA, err := r.exchange.GetAccountTrades(ctx, r.symbolA, r.tradeLimit)
	if err != nil {
		return ports.PnLResult{}, fmt.Errorf("fetching %s fills: %w: %w", r.symbolA, ports.ErrReconciliationFailed, err)
	}
	tradesB, err := r.exchange.GetAccountTrades(ctx, r.symbolB, r.tradeLimit)
	if err != nil {
		return ports.PnLResult{}, fmt.Errorf("fetching %s fills: %w: %w", r.symbolB, ports.ErrReconciliationFailed, err)
	}

	var totalPnl, totalFees float64
	var matched int
	for _, fill := range append(tradesA, tradesB...) {
		delta := fill.Time.Sub(entryTime)
		if delta < 0 {
			delta = -delta
		}
		if delta < r.window {
			totalPnl += fill.RealizedPnl
			totalFees += fill.Commission
			matched++
		}
	}

	r.logger.Debug(ctx, "Reconciled trade", map[string]interface{}{
		"tradeID": tradeID, "matchedFills": matched, "realizedPnl": totalPnl, "totalFees": totalFees,
	})

	return ports.PnLResult{
		Available:   true,
		RealizedPnl: totalPnl,
		TotalFees:   totalFees,
		Detail:      map[string]interface{}{"matched_fills": matched},
	}, nil
}
