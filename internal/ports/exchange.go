package ports

import (
	"context"
	"time"

	"pairsbot/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	Symbol        string    // Symbol for the order
	ClientOrderID string    // User-defined order ID
	AvgPrice      float64   // Average filled price (0 until fills are reported)
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	Status        string    // Order status (e.g., NEW, FILLED)
	Side          domain.OrderSide
	Timestamp     time.Time // Time the order response was generated
}

// AccountTrade is a single fill from the exchange's account trade history,
// reduced to the fields the PnL reconciler consumes.
type AccountTrade struct {
	Symbol      string
	OrderID     int64
	Time        time.Time
	Price       float64
	Quantity    float64
	RealizedPnl float64
	Commission  float64
}

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time
	CloseTime time.Time
	Symbol    string
	Interval  string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ExchangeClient defines the surface of the exchange the engine consumes.
// This abstraction decouples the core engine from the Binance adapter.
type ExchangeClient interface {
	// GetTickerPrice retrieves the last traded price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines retrieves historical klines for the given symbol, oldest first.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error)

	// PlaceMarketOrder places a market order. Failures are wrapped with
	// ErrOrderRejected or ErrNetworkError so callers can distinguish an
	// exchange rejection from a transport fault.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*OrderResponse, error)

	// GetAccountTrades retrieves the most recent account fills for a symbol,
	// up to limit, for post-trade PnL reconciliation.
	GetAccountTrades(ctx context.Context, symbol string, limit int) ([]*AccountTrade, error)
}
