package execution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pairsbot/internal/domain"
	"pairsbot/internal/ports"
	"pairsbot/internal/sizing"
)

// Coordinator executes the two legs of an entry or exit, always in the fixed
// order A then B. It never mutates position state: callers apply state
// transitions only after both legs are confirmed.
type Coordinator struct {
	exchange  ports.ExchangeClient
	journal   ports.TradeJournal
	quantizer *sizing.Quantizer
	logger    ports.Logger
	symbolA   string
	symbolB   string
}

// Config holds the coordinator's collaborators and pair symbols.
type Config struct {
	Exchange  ports.ExchangeClient
	Journal   ports.TradeJournal
	Quantizer *sizing.Quantizer
	Logger    ports.Logger
	SymbolA   string
	SymbolB   string
}

// New creates an order coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Exchange == nil || cfg.Journal == nil || cfg.Quantizer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for order coordinator")
	}
	if cfg.SymbolA == "" || cfg.SymbolB == "" {
		return nil, fmt.Errorf("both pair symbols are required")
	}
	return &Coordinator{
		exchange:  cfg.Exchange,
		journal:   cfg.Journal,
		quantizer: cfg.Quantizer,
		logger:    cfg.Logger,
		symbolA:   cfg.SymbolA,
		symbolB:   cfg.SymbolB,
	}, nil
}

// Leg is one executed leg of a two-leg operation.
type Leg struct {
	Symbol   string
	Side     domain.OrderSide
	Quantity float64
	Order    *ports.OrderResponse
}

// EntryResult reports a fully executed two-leg entry.
type EntryResult struct {
	LegA Leg
	LegB Leg
}

// ExitResult reports a fully executed two-leg exit.
type ExitResult struct {
	LegA    Leg
	LegB    Leg
	Partial bool
}

// HazardError reports a partial-execution hazard: leg A filled but leg B did
// not, leaving an unintended single-leg directional exposure. The engine
// only reports it; remediation is left to the operator.
type HazardError struct {
	TradeID   string
	FilledLeg Leg
	Cause     error
}

func (e *HazardError) Error() string {
	return fmt.Sprintf("trade %s: leg %s %s %v filled but second leg failed: %v",
		e.TradeID, e.FilledLeg.Symbol, e.FilledLeg.Side, e.FilledLeg.Quantity, e.Cause)
}

func (e *HazardError) Unwrap() error {
	return ports.ErrPartialExecutionHazard
}

// Enter executes both entry legs for the given spread side using the already
// quantized quantities. If leg A fails the entry is a clean no-op; if leg A
// fills and leg B fails, a *HazardError is returned and no position may be
// created by the caller.
func (c *Coordinator) Enter(ctx context.Context, tradeID string, side domain.SpreadSide, qtyA, qtyB float64) (*EntryResult, error) {
	sideA, sideB := entrySides(side)
	labelA, labelB := entryLabels(side)

	legA, err := c.placeLeg(ctx, tradeID, c.symbolA, sideA, qtyA, labelA)
	if err != nil {
		return nil, fmt.Errorf("entry leg A: %w", err)
	}

	legB, err := c.placeLeg(ctx, tradeID, c.symbolB, sideB, qtyB, labelB)
	if err != nil {
		return nil, &HazardError{TradeID: tradeID, FilledLeg: legA, Cause: err}
	}

	return &EntryResult{LegA: legA, LegB: legB}, nil
}

// Exit unwinds fraction of the position (1 for a full close) with two
// opposite-side market orders. Exit quantities are re-quantized before
// sending; a quantity that quantizes to zero fails with ErrSizingInfeasible.
// The same partial-execution hazard semantics as Enter apply: the caller
// must not mutate the position unless both legs succeeded.
func (c *Coordinator) Exit(ctx context.Context, pos *domain.Position, fraction float64, reason domain.CloseReason) (*ExitResult, error) {
	if pos == nil {
		return nil, fmt.Errorf("no position to exit")
	}
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("exit fraction must be in (0,1], got %f", fraction)
	}
	partial := fraction < 1

	exitQtyA := c.quantizer.Quantize(pos.QtyA*fraction, c.symbolA)
	exitQtyB := c.quantizer.Quantize(pos.QtyB*fraction, c.symbolB)
	if exitQtyA == 0 || exitQtyB == 0 {
		return nil, fmt.Errorf("exit quantities %v/%v: %w", exitQtyA, exitQtyB, ports.ErrSizingInfeasible)
	}

	entrySideA, entrySideB := pos.LegSides()
	labelA, labelB := exitLabels(entrySideA.Opposite(), entrySideB.Opposite(), partial)

	c.logger.Info(ctx, "Exiting position", map[string]interface{}{
		"tradeID": pos.TradeID, "reason": reason, "partial": partial,
		"qtyA": exitQtyA, "qtyB": exitQtyB,
	})

	legA, err := c.placeLeg(ctx, pos.TradeID, c.symbolA, entrySideA.Opposite(), exitQtyA, labelA)
	if err != nil {
		return nil, fmt.Errorf("exit leg A: %w", err)
	}

	legB, err := c.placeLeg(ctx, pos.TradeID, c.symbolB, entrySideB.Opposite(), exitQtyB, labelB)
	if err != nil {
		return nil, &HazardError{TradeID: pos.TradeID, FilledLeg: legA, Cause: err}
	}

	return &ExitResult{LegA: legA, LegB: legB, Partial: partial}, nil
}

// placeLeg sends one market order and journals its audit entry.
func (c *Coordinator) placeLeg(ctx context.Context, tradeID, symbol string, side domain.OrderSide, qty float64, label string) (Leg, error) {
	resp, err := c.exchange.PlaceMarketOrder(ctx, symbol, side, formatQuantity(qty))
	if err != nil {
		return Leg{}, err
	}

	audit := ports.OrderAudit{
		Timestamp: time.Now().UTC(),
		OrderType: label,
		OrderID:   resp.OrderID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		AvgPrice:  resp.AvgPrice,
		Status:    resp.Status,
	}
	// A journal write failure must not abandon an already-filled leg.
	if jerr := c.journal.RecordOrder(ctx, tradeID, audit); jerr != nil {
		c.logger.Error(ctx, jerr, "Failed to journal order leg", map[string]interface{}{
			"tradeID": tradeID, "symbol": symbol, "orderID": resp.OrderID,
		})
	}

	return Leg{Symbol: symbol, Side: side, Quantity: qty, Order: resp}, nil
}

// formatQuantity renders a quantized quantity for the exchange API without
// reintroducing rounding.
func formatQuantity(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func entrySides(side domain.SpreadSide) (a, b domain.OrderSide) {
	if side == domain.LongSpread {
		return domain.Buy, domain.Sell
	}
	return domain.Sell, domain.Buy
}

func entryLabels(side domain.SpreadSide) (a, b string) {
	if side == domain.LongSpread {
		return "ENTRY_LEG1_LONG", "ENTRY_LEG2_SHORT"
	}
	return "ENTRY_LEG1_SHORT", "ENTRY_LEG2_LONG"
}

func exitLabels(sideA, sideB domain.OrderSide, partial bool) (a, b string) {
	prefix := "EXIT"
	if partial {
		prefix = "PARTIAL_EXIT"
	}
	return fmt.Sprintf("%s_LEG1_%s", prefix, sideA), fmt.Sprintf("%s_LEG2_%s", prefix, sideB)
}
