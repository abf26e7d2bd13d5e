package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pairsbot/internal/domain"
	"pairsbot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements the ports.ExchangeClient interface using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates Binance API and transport errors into the two
// standardized classes callers care about: a rejection by the exchange
// (retrying the same request will fail again) or a transport fault
// (retrying next tick may succeed).
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrNetworkError
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrNetworkError
		case -1001, -1007: // Internal error / service timeout
			mappedErr = ports.ErrNetworkError
		default:
			// Signature errors, parameter errors, insufficient margin,
			// quantity out of range: the exchange understood the request
			// and refused it.
			mappedErr = ports.ErrOrderRejected
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Non-API errors: network faults, context cancellation, parsing errors.
	// All of these are transport faults from the caller's point of view.
	finalErr := fmt.Errorf("%s failed: %w: %w", operation, ports.ErrNetworkError, err)
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no ticker data returned for symbol %s", symbol)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPrice, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", tickers[0].LastPrice, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// GetKlines retrieves historical klines for the given symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*ports.Kline, error) {
	op := "GetKlines"
	binanceKlines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	klines := make([]*ports.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		k, err := translateKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		klines = append(klines, k)
	}

	return klines, nil
}

// PlaceMarketOrder places a market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	op := "PlaceMarketOrder"
	binanceSide := futures.SideType(side) // Direct conversion assuming values match

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		Type(futures.OrderTypeMarket).
		Quantity(quantity).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "side": side, "quantity": quantity, "orderID": resp.OrderID, "avgPrice": resp.AvgPrice})
	return resp, nil
}

// GetAccountTrades retrieves the most recent account fills for a symbol.
func (c *Client) GetAccountTrades(ctx context.Context, symbol string, limit int) ([]*ports.AccountTrade, error) {
	op := "GetAccountTrades"
	binanceTrades, err := c.futuresClient.NewListAccountTradeService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	trades := make([]*ports.AccountTrade, 0, len(binanceTrades))
	for _, bt := range binanceTrades {
		t, err := translateAccountTrade(bt)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate account trade: %w", err), op)
		}
		trades = append(trades, t)
	}

	return trades, nil
}

// --- Translation Helpers ---

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	avgPrice, _ := strconv.ParseFloat(order.AvgPrice, 64)
	origQty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)

	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		AvgPrice:      avgPrice,
		OrigQuantity:  origQty,
		ExecutedQty:   execQty,
		Status:        string(order.Status),
		Side:          domain.OrderSide(order.Side),
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

func translateAccountTrade(bt *futures.AccountTrade) (*ports.AccountTrade, error) {
	if bt == nil {
		return nil, errors.New("received nil account trade")
	}
	price, err := strconv.ParseFloat(bt.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing fill price '%s': %w", bt.Price, err)
	}
	qty, err := strconv.ParseFloat(bt.Quantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing fill quantity '%s': %w", bt.Quantity, err)
	}
	pnl, err := strconv.ParseFloat(bt.RealizedPnl, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing realized pnl '%s': %w", bt.RealizedPnl, err)
	}
	commission, err := strconv.ParseFloat(bt.Commission, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing commission '%s': %w", bt.Commission, err)
	}

	return &ports.AccountTrade{
		Symbol:      bt.Symbol,
		OrderID:     bt.OrderID,
		Time:        time.UnixMilli(bt.Time),
		Price:       price,
		Quantity:    qty,
		RealizedPnl: pnl,
		Commission:  commission,
	}, nil
}

func translateKline(bk *futures.Kline, symbol, interval string) (*ports.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &ports.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
