package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pairsbot/config"
	"pairsbot/internal/domain"
	"pairsbot/internal/execution"
	"pairsbot/internal/ports"
	"pairsbot/internal/position"
	"pairsbot/internal/reconcile"
	"pairsbot/internal/signal"
	"pairsbot/internal/spread"
)

const (
	// Extra bars fetched beyond the rolling window when seeding the price
	// buffer, so the first live tick already has valid statistics.
	seedExtraBars = 10
)

// Engine drives the pairs trading loop: one iteration per tick interval,
// never overlapping, with all mutable state owned by the single loop
// goroutine and exposed to other goroutines only through Snapshot.
type Engine struct {
	cfg         *config.Config
	logger      ports.Logger
	exchange    ports.ExchangeClient
	journal     ports.TradeJournal
	calculator  *spread.Calculator
	tracker     *position.Tracker
	coordinator *execution.Coordinator
	reconciler  *reconcile.Reconciler
	signalCfg   signal.Config

	// State fields
	mu         sync.Mutex // Protects access to state fields below
	lastSample domain.SpreadSample
	running    bool
	cancel     context.CancelFunc
}

// Config holds the engine's collaborators.
type Config struct {
	Cfg         *config.Config
	Logger      ports.Logger
	Exchange    ports.ExchangeClient
	Journal     ports.TradeJournal
	Calculator  *spread.Calculator
	Tracker     *position.Tracker
	Coordinator *execution.Coordinator
	Reconciler  *reconcile.Reconciler
}

// NewEngine creates the trading engine and validates its configuration.
// A validation failure here is the only fatal condition; every error after
// startup is recovered at the iteration boundary.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Cfg == nil || cfg.Logger == nil || cfg.Exchange == nil || cfg.Journal == nil ||
		cfg.Calculator == nil || cfg.Tracker == nil || cfg.Coordinator == nil || cfg.Reconciler == nil {
		return nil, fmt.Errorf("missing required dependencies for engine: %w", ports.ErrConfigurationError)
	}

	signalCfg := signal.Config{
		EntryZ:              cfg.Cfg.EntryZScore,
		ExitZ:               cfg.Cfg.ExitZScore,
		StopZ:               cfg.Cfg.StopZScore,
		MaxHoldBars:         cfg.Cfg.MaxHoldBars,
		PartialExitFraction: cfg.Cfg.PartialExitFraction,
	}
	if err := signalCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	if cfg.Cfg.BudgetPerLeg <= 0 {
		return nil, fmt.Errorf("%w: budget per leg must be positive, got %f", ports.ErrConfigurationError, cfg.Cfg.BudgetPerLeg)
	}
	if cfg.Cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %s", ports.ErrConfigurationError, cfg.Cfg.TickInterval)
	}

	return &Engine{
		cfg:         cfg.Cfg,
		logger:      cfg.Logger,
		exchange:    cfg.Exchange,
		journal:     cfg.Journal,
		calculator:  cfg.Calculator,
		tracker:     cfg.Tracker,
		coordinator: cfg.Coordinator,
		reconciler:  cfg.Reconciler,
		signalCfg:   signalCfg,
	}, nil
}

// Snapshot is a point-in-time view of the engine's state, safe to read from
// any goroutine.
type Snapshot struct {
	Running  bool
	Sample   domain.SpreadSample
	Position *domain.Position
}

// Snapshot returns a copy of the latest spread sample and position.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Running:  e.running,
		Sample:   e.lastSample,
		Position: e.tracker.Snapshot(),
	}
}

// Stop requests a graceful shutdown. The in-flight iteration completes
// before the engine liquidates (if configured) and Start returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Start seeds the price buffer from historical klines and runs the trading
// loop until the context is cancelled or Stop is called. It blocks.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	if err := e.seedHistory(runCtx); err != nil {
		return err
	}

	e.logger.Info(runCtx, "Engine started", map[string]interface{}{
		"symbolA":      e.cfg.SymbolA,
		"symbolB":      e.cfg.SymbolB,
		"tickInterval": e.cfg.TickInterval.String(),
		"window":       e.calculator.Window(),
	})

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-runCtx.Done():
			e.logger.Info(context.Background(), "Shutdown requested, stopping engine")
			// A fresh context: the liquidation must outlive the cancelled run.
			return e.shutdown(context.Background())
		case <-ticker.C:
			if err := e.RunIteration(runCtx); err != nil {
				consecutiveFailures++
				e.logger.Error(runCtx, err, "Iteration failed", map[string]interface{}{
					"consecutiveFailures": consecutiveFailures,
				})
				if e.cfg.FailureBackoffAfter > 0 && consecutiveFailures >= e.cfg.FailureBackoffAfter {
					e.logger.Warn(runCtx, "Backing off after repeated failures", map[string]interface{}{
						"backoff": e.cfg.FailureBackoff.String(),
					})
					select {
					case <-time.After(e.cfg.FailureBackoff):
					case <-runCtx.Done():
						return e.shutdown(context.Background())
					}
					consecutiveFailures = 0
				}
			} else {
				consecutiveFailures = 0
			}
		}
	}
}

// seedHistory fills the price buffer from historical klines so the engine
// does not wait a full window of live ticks before its statistics are valid.
// A short or empty seed is not fatal; the buffer fills from live ticks.
func (e *Engine) seedHistory(ctx context.Context) error {
	limit := e.calculator.Window() + seedExtraBars

	klinesA, err := e.exchange.GetKlines(ctx, e.cfg.SymbolA, e.cfg.KlineInterval, limit)
	if err != nil {
		return fmt.Errorf("seeding klines for %s: %w: %w", e.cfg.SymbolA, ports.ErrDataUnavailable, err)
	}
	klinesB, err := e.exchange.GetKlines(ctx, e.cfg.SymbolB, e.cfg.KlineInterval, limit)
	if err != nil {
		return fmt.Errorf("seeding klines for %s: %w: %w", e.cfg.SymbolB, ports.ErrDataUnavailable, err)
	}

	// Pair the series from the most recent bar backwards; the shorter series
	// bounds how many samples can be seeded.
	n := len(klinesA)
	if len(klinesB) < n {
		n = len(klinesB)
	}
	offA := len(klinesA) - n
	offB := len(klinesB) - n

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		sample, err := e.calculator.Update(domain.PriceSample{
			PriceA:    klinesA[offA+i].Close,
			PriceB:    klinesB[offB+i].Close,
			Timestamp: klinesA[offA+i].CloseTime,
		})
		if err != nil {
			return fmt.Errorf("seeding sample %d: %w", i, err)
		}
		e.lastSample = sample
	}

	e.logger.Info(ctx, "Price buffer seeded", map[string]interface{}{
		"samples": n,
		"window":  e.calculator.Window(),
	})
	return nil
}

// RunIteration executes one full tick: fetch prices, update statistics,
// advance the holding clock, evaluate the signal, and act on the verdict.
// Every error is returned to the loop and recovered there; no iteration
// error terminates the engine.
func (e *Engine) RunIteration(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	priceA, err := e.exchange.GetTickerPrice(ctx, e.cfg.SymbolA)
	if err != nil {
		return fmt.Errorf("fetching %s price: %w: %w", e.cfg.SymbolA, ports.ErrDataUnavailable, err)
	}
	priceB, err := e.exchange.GetTickerPrice(ctx, e.cfg.SymbolB)
	if err != nil {
		return fmt.Errorf("fetching %s price: %w: %w", e.cfg.SymbolB, ports.ErrDataUnavailable, err)
	}

	sample, err := e.calculator.Update(domain.PriceSample{
		PriceA:    priceA,
		PriceB:    priceB,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("updating spread statistics: %w", err)
	}
	e.lastSample = sample

	// The holding clock advances exactly once per tick with an open position,
	// before any exit rule is evaluated for that tick.
	bars := e.tracker.Tick()

	if e.calculator.Len() < e.calculator.Window() {
		e.logger.Debug(ctx, "Insufficient history for rolling statistics", map[string]interface{}{
			"have": e.calculator.Len(),
			"need": e.calculator.Window(),
		})
	}

	e.logger.Debug(ctx, "Tick", map[string]interface{}{
		"priceA":     priceA,
		"priceB":     priceB,
		"spread":     sample.Spread,
		"zScore":     sample.ZScore,
		"statsValid": sample.StatsValid,
		"state":      e.tracker.State(),
		"barsHeld":   bars,
	})

	verdict := signal.Evaluate(sample, e.tracker.Current(), e.signalCfg)
	switch verdict.Action {
	case domain.ActionEnterLong:
		return e.enter(ctx, sample, domain.LongSpread)
	case domain.ActionEnterShort:
		return e.enter(ctx, sample, domain.ShortSpread)
	case domain.ActionClose:
		return e.closePosition(ctx, sample, verdict.Reason)
	case domain.ActionPartialClose:
		return e.partialExit(ctx, verdict.Fraction)
	default:
		return nil
	}
}

// enter opens a new two-leg position. The position only comes into existence
// after both legs are confirmed; a partial-execution hazard leaves the engine
// flat with the single filled leg reported for the operator.
func (e *Engine) enter(ctx context.Context, sample domain.SpreadSample, side domain.SpreadSide) error {
	op := "enter"
	if sample.QtyA == 0 || sample.QtyB == 0 {
		e.logger.Warn(ctx, op+": Entry skipped, budget cannot be sized into valid lots", map[string]interface{}{
			"qtyA": sample.QtyA, "qtyB": sample.QtyB, "err": ports.ErrSizingInfeasible.Error(),
		})
		return nil
	}

	now := time.Now().UTC()
	tradeID := domain.NewTradeID(side, now)
	e.logger.Info(ctx, op+": Entering position", map[string]interface{}{
		"tradeID": tradeID, "side": side, "zScore": sample.ZScore,
		"qtyA": sample.QtyA, "qtyB": sample.QtyB,
	})

	// The journal record must exist before the legs execute so the order
	// audit trail has somewhere to land. A failed entry leaves the record in
	// ENTERED with whichever legs filled, which is exactly the evidence the
	// operator needs.
	entry := ports.EntryContext{
		SymbolA: e.cfg.SymbolA,
		SymbolB: e.cfg.SymbolB,
		Side:    side,
		PriceA:  sample.PriceA,
		PriceB:  sample.PriceB,
		QtyA:    sample.QtyA,
		QtyB:    sample.QtyB,
		Spread:  sample.Spread,
		ZScore:  sample.ZScore,
	}
	market := ports.MarketContext{SpreadMean: sample.Mean, SpreadStd: sample.Std}
	if err := e.journal.RecordEntry(ctx, tradeID, entry, market); err != nil {
		return fmt.Errorf("journaling entry %s: %w", tradeID, err)
	}

	result, err := e.coordinator.Enter(ctx, tradeID, side, sample.QtyA, sample.QtyB)
	if err != nil {
		var hazard *execution.HazardError
		if errors.As(err, &hazard) {
			e.logger.Error(ctx, err, op+": PARTIAL EXECUTION HAZARD: single-leg exposure requires operator attention", map[string]interface{}{
				"tradeID":   tradeID,
				"filledLeg": hazard.FilledLeg.Symbol,
				"side":      hazard.FilledLeg.Side,
				"quantity":  hazard.FilledLeg.Quantity,
			})
		}
		return fmt.Errorf("entering %s: %w", tradeID, err)
	}

	entryPriceA := result.LegA.Order.AvgPrice
	if entryPriceA == 0 {
		entryPriceA = sample.PriceA
	}
	entryPriceB := result.LegB.Order.AvgPrice
	if entryPriceB == 0 {
		entryPriceB = sample.PriceB
	}

	pos := &domain.Position{
		TradeID:     tradeID,
		Side:        side,
		SymbolA:     e.cfg.SymbolA,
		SymbolB:     e.cfg.SymbolB,
		QtyA:        sample.QtyA,
		QtyB:        sample.QtyB,
		EntryPriceA: entryPriceA,
		EntryPriceB: entryPriceB,
		EntrySpread: sample.Spread,
		EntryZScore: sample.ZScore,
		EntryTime:   now,
	}
	if err := e.tracker.Open(pos); err != nil {
		return fmt.Errorf("tracking entered position %s: %w", tradeID, err)
	}

	e.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"tradeID": tradeID, "entryPriceA": entryPriceA, "entryPriceB": entryPriceB,
	})
	return nil
}

// closePosition fully unwinds the open position. The tracker transitions to
// flat only after both exit legs are confirmed; reconciliation failure does
// not block completion, the trade is journaled with PnL unavailable.
func (e *Engine) closePosition(ctx context.Context, sample domain.SpreadSample, reason domain.CloseReason) error {
	op := "closePosition"
	pos := e.tracker.Current()
	if pos == nil {
		return fmt.Errorf("no open position to close")
	}

	result, err := e.coordinator.Exit(ctx, pos, 1, reason)
	if err != nil {
		e.reportExitFailure(ctx, op, pos.TradeID, err)
		return fmt.Errorf("closing %s: %w", pos.TradeID, err)
	}

	closed, err := e.tracker.Close()
	if err != nil {
		return fmt.Errorf("clearing closed position %s: %w", pos.TradeID, err)
	}

	exitPriceA := result.LegA.Order.AvgPrice
	if exitPriceA == 0 {
		exitPriceA = sample.PriceA
	}
	exitPriceB := result.LegB.Order.AvgPrice
	if exitPriceB == 0 {
		exitPriceB = sample.PriceB
	}
	exit := ports.ExitContext{
		PriceA: exitPriceA,
		PriceB: exitPriceB,
		Spread: sample.Spread,
		ZScore: sample.ZScore,
		Reason: reason,
	}

	pnl := e.reconcilePnL(ctx, closed)
	if err := e.journal.RecordExit(ctx, closed.TradeID, exit, pnl); err != nil {
		return fmt.Errorf("journaling exit %s: %w", closed.TradeID, err)
	}

	e.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"tradeID": closed.TradeID, "reason": reason, "barsHeld": closed.BarsHeld,
		"pnlAvailable": pnl.Available, "realizedPnl": pnl.RealizedPnl,
	})
	return nil
}

// partialExit unwinds the configured fraction once per position lifetime.
// The stored quantities are only scaled down after both legs confirm.
func (e *Engine) partialExit(ctx context.Context, fraction float64) error {
	op := "partialExit"
	pos := e.tracker.Current()
	if pos == nil {
		return fmt.Errorf("no open position to partially exit")
	}

	_, err := e.coordinator.Exit(ctx, pos, fraction, domain.CloseReasonPartialExit)
	if err != nil {
		if errors.Is(err, ports.ErrSizingInfeasible) {
			// The remaining fraction is below the lot minimum. Skip; a full
			// exit rule will eventually unwind the whole position.
			e.logger.Warn(ctx, op+": Partial exit skipped, fraction quantizes to zero", map[string]interface{}{
				"tradeID": pos.TradeID, "fraction": fraction,
			})
			return nil
		}
		e.reportExitFailure(ctx, op, pos.TradeID, err)
		return fmt.Errorf("partially exiting %s: %w", pos.TradeID, err)
	}

	if err := e.tracker.ApplyPartialExit(fraction); err != nil {
		return fmt.Errorf("applying partial exit %s: %w", pos.TradeID, err)
	}

	e.logger.Info(ctx, op+": Partial exit executed", map[string]interface{}{
		"tradeID": pos.TradeID, "fraction": fraction,
		"remainingQtyA": pos.QtyA, "remainingQtyB": pos.QtyB,
	})
	return nil
}

func (e *Engine) reportExitFailure(ctx context.Context, op, tradeID string, err error) {
	var hazard *execution.HazardError
	if errors.As(err, &hazard) {
		e.logger.Error(ctx, err, op+": PARTIAL EXECUTION HAZARD: exit leg filled without its pair, operator attention required", map[string]interface{}{
			"tradeID":   tradeID,
			"filledLeg": hazard.FilledLeg.Symbol,
			"side":      hazard.FilledLeg.Side,
			"quantity":  hazard.FilledLeg.Quantity,
		})
	}
}

// reconcilePnL attributes realized PnL and fees to a closed trade. Failure
// downgrades to an unavailable PnL result; the trade still completes.
func (e *Engine) reconcilePnL(ctx context.Context, pos *domain.Position) ports.PnLResult {
	result, err := e.reconciler.Reconcile(ctx, pos.TradeID, pos.EntryTime)
	if err != nil {
		e.logger.Warn(ctx, "PnL reconciliation failed, recording trade without PnL", map[string]interface{}{
			"tradeID": pos.TradeID, "error": err.Error(),
		})
		return ports.PnLResult{
			Available: false,
			Detail:    map[string]interface{}{"error": err.Error()},
		}
	}
	return result
}

// shutdown liquidates the open position (when configured) before the engine
// stops. The final state is journaled either way.
func (e *Engine) shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.tracker.Current()
	if pos == nil {
		e.logger.Info(ctx, "Engine stopped flat")
		return nil
	}
	if !e.cfg.CloseOnShutdown {
		e.logger.Warn(ctx, "Engine stopping with an open position left on the exchange", map[string]interface{}{
			"tradeID": pos.TradeID, "state": pos.State(),
		})
		return nil
	}

	e.logger.Info(ctx, "Liquidating open position before shutdown", map[string]interface{}{
		"tradeID": pos.TradeID,
	})
	if err := e.closePosition(ctx, e.lastSample, domain.CloseReasonShutdown); err != nil {
		e.logger.Error(ctx, err, "Shutdown liquidation failed, position may remain on the exchange", map[string]interface{}{
			"tradeID": pos.TradeID,
		})
		return err
	}
	return nil
}
