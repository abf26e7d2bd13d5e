package ports

import "errors"

// Standard application-level errors.
// Adapters and engine components wrap underlying errors with these sentinels;
// callers classify with errors.Is. Everything below is recovered at the
// iteration boundary except ErrConfigurationError, which refuses startup.
var (
	// ErrConfigurationError marks an invalid configuration detected at start.
	// It is the only fatal condition.
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// ErrDataUnavailable marks a failed or incomplete price/kline fetch.
	// The tick is skipped with no state change.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientHistory marks a tick with fewer samples than the
	// rolling window; no entry or exit is evaluated.
	ErrInsufficientHistory = errors.New("insufficient history for rolling statistics")

	// ErrSizingInfeasible marks a quantized leg quantity of zero; the entry
	// is skipped.
	ErrSizingInfeasible = errors.New("cannot size a position at this budget")

	// ErrOrderRejected marks an order the exchange refused.
	ErrOrderRejected = errors.New("order rejected by exchange")

	// ErrNetworkError marks a transport failure talking to the exchange.
	ErrNetworkError = errors.New("exchange network error")

	// ErrPartialExecutionHazard marks a two-leg operation where one leg
	// filled and the other did not. The caller holds an unintended
	// single-leg exposure; the engine reports it and does not remediate.
	ErrPartialExecutionHazard = errors.New("partial execution hazard: one leg filled, one leg failed")

	// ErrReconciliationFailed marks a PnL reconciliation that could not
	// locate its trade record or fetch the fill history.
	ErrReconciliationFailed = errors.New("pnl reconciliation failed")

	// ErrTradeNotFound marks a journal lookup miss.
	ErrTradeNotFound = errors.New("trade record not found")
)
