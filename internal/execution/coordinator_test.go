package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsbot/internal/domain"
	"pairsbot/internal/ports"
	"pairsbot/internal/sizing"
)

type mockExchange struct {
	orderErrs map[string]error // keyed by symbol
	placed    []placedOrder
	nextID    int64
}

type placedOrder struct {
	symbol   string
	side     domain.OrderSide
	quantity string
}

func (m *mockExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*ports.Kline, error) {
	return nil, nil
}

func (m *mockExchange) GetAccountTrades(ctx context.Context, symbol string, limit int) ([]*ports.AccountTrade, error) {
	return nil, nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	if err := m.orderErrs[symbol]; err != nil {
		return nil, err
	}
	m.nextID++
	m.placed = append(m.placed, placedOrder{symbol: symbol, side: side, quantity: quantity})
	return &ports.OrderResponse{
		OrderID:   m.nextID,
		Symbol:    symbol,
		Side:      side,
		Status:    "FILLED",
		Timestamp: time.Now(),
	}, nil
}

type mockJournal struct {
	orders   []ports.OrderAudit
	orderErr error
}

func (m *mockJournal) RecordEntry(ctx context.Context, tradeID string, entry ports.EntryContext, market ports.MarketContext) error {
	return nil
}

func (m *mockJournal) RecordOrder(ctx context.Context, tradeID string, order ports.OrderAudit) error {
	if m.orderErr != nil {
		return m.orderErr
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockJournal) RecordExit(ctx context.Context, tradeID string, exit ports.ExitContext, pnl ports.PnLResult) error {
	return nil
}

func (m *mockJournal) Find(ctx context.Context, tradeID string) (*ports.TradeRecord, error) {
	return nil, ports.ErrTradeNotFound
}

func (m *mockJournal) LoadAll(ctx context.Context) ([]*ports.TradeRecord, error) {
	return nil, nil
}

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestCoordinator(t *testing.T, exch *mockExchange, jrnl *mockJournal) *Coordinator {
	t.Helper()
	c, err := New(Config{
		Exchange: exch,
		Journal:  jrnl,
		Quantizer: sizing.NewQuantizer(map[string]sizing.LotRule{
			"ETHUSDT": {StepSize: 0.001, MinQty: 0.001},
			"SOLUSDT": {StepSize: 1, MinQty: 1},
		}),
		Logger:  nopLogger{},
		SymbolA: "ETHUSDT",
		SymbolB: "SOLUSDT",
	})
	require.NoError(t, err)
	return c
}

func openLong() *domain.Position {
	return &domain.Position{
		TradeID: "long_1700000000",
		Side:    domain.LongSpread,
		SymbolA: "ETHUSDT",
		SymbolB: "SOLUSDT",
		QtyA:    2.0,
		QtyB:    26,
	}
}

func TestEnterBothLegsSucceed(t *testing.T) {
	exch := &mockExchange{}
	jrnl := &mockJournal{}
	c := newTestCoordinator(t, exch, jrnl)

	res, err := c.Enter(context.Background(), "long_1", domain.LongSpread, 2.0, 26)
	require.NoError(t, err)
	require.NotNil(t, res)

	// Fixed leg order: A then B, long spread = buy A / sell B.
	require.Len(t, exch.placed, 2)
	assert.Equal(t, "ETHUSDT", exch.placed[0].symbol)
	assert.Equal(t, domain.Buy, exch.placed[0].side)
	assert.Equal(t, "SOLUSDT", exch.placed[1].symbol)
	assert.Equal(t, domain.Sell, exch.placed[1].side)

	// Both legs journaled with entry labels.
	require.Len(t, jrnl.orders, 2)
	assert.Equal(t, "ENTRY_LEG1_LONG", jrnl.orders[0].OrderType)
	assert.Equal(t, "ENTRY_LEG2_SHORT", jrnl.orders[1].OrderType)
}

func TestEnterShortSpreadSides(t *testing.T) {
	exch := &mockExchange{}
	c := newTestCoordinator(t, exch, &mockJournal{})

	_, err := c.Enter(context.Background(), "short_1", domain.ShortSpread, 2.0, 26)
	require.NoError(t, err)
	assert.Equal(t, domain.Sell, exch.placed[0].side)
	assert.Equal(t, domain.Buy, exch.placed[1].side)
}

func TestEnterLegAFailsCleanNoOp(t *testing.T) {
	exch := &mockExchange{orderErrs: map[string]error{
		"ETHUSDT": fmt.Errorf("placing order: %w", ports.ErrOrderRejected),
	}}
	c := newTestCoordinator(t, exch, &mockJournal{})

	res, err := c.Enter(context.Background(), "long_1", domain.LongSpread, 2.0, 26)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrOrderRejected))
	assert.False(t, errors.Is(err, ports.ErrPartialExecutionHazard))
	assert.Empty(t, exch.placed, "leg B must not be attempted after leg A failure")
}

func TestEnterLegBFailureIsHazard(t *testing.T) {
	exch := &mockExchange{orderErrs: map[string]error{
		"SOLUSDT": fmt.Errorf("placing order: %w", ports.ErrNetworkError),
	}}
	c := newTestCoordinator(t, exch, &mockJournal{})

	res, err := c.Enter(context.Background(), "long_1", domain.LongSpread, 2.0, 26)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrPartialExecutionHazard))

	var hazard *HazardError
	require.True(t, errors.As(err, &hazard))
	assert.Equal(t, "ETHUSDT", hazard.FilledLeg.Symbol)
	assert.Equal(t, domain.Buy, hazard.FilledLeg.Side)
	assert.True(t, errors.Is(hazard.Cause, ports.ErrNetworkError))
}

func TestExitFullClose(t *testing.T) {
	exch := &mockExchange{}
	jrnl := &mockJournal{}
	c := newTestCoordinator(t, exch, jrnl)

	res, err := c.Exit(context.Background(), openLong(), 1, domain.CloseReasonExitZScore)
	require.NoError(t, err)
	assert.False(t, res.Partial)

	// Long spread closes by selling A and buying B.
	assert.Equal(t, domain.Sell, exch.placed[0].side)
	assert.Equal(t, domain.Buy, exch.placed[1].side)
	assert.Equal(t, "2", exch.placed[0].quantity)
	assert.Equal(t, "26", exch.placed[1].quantity)
	assert.Equal(t, "EXIT_LEG1_SELL", jrnl.orders[0].OrderType)
	assert.Equal(t, "EXIT_LEG2_BUY", jrnl.orders[1].OrderType)
}

func TestExitPartialRequantizes(t *testing.T) {
	exch := &mockExchange{}
	jrnl := &mockJournal{}
	c := newTestCoordinator(t, exch, jrnl)

	pos := openLong()
	pos.QtyB = 27 // 27 * 0.5 = 13.5, floors to 13 under step 1
	res, err := c.Exit(context.Background(), pos, 0.5, domain.CloseReasonPartialExit)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "1", exch.placed[0].quantity)
	assert.Equal(t, "13", exch.placed[1].quantity)
	assert.Equal(t, "PARTIAL_EXIT_LEG1_SELL", jrnl.orders[0].OrderType)
	assert.Equal(t, "PARTIAL_EXIT_LEG2_BUY", jrnl.orders[1].OrderType)

	// The coordinator never mutates the position itself.
	assert.Equal(t, 2.0, pos.QtyA)
	assert.False(t, pos.PartialExited)
}

func TestExitInfeasibleQuantity(t *testing.T) {
	c := newTestCoordinator(t, &mockExchange{}, &mockJournal{})

	pos := openLong()
	pos.QtyB = 0.4 // below SOLUSDT minimum
	_, err := c.Exit(context.Background(), pos, 1, domain.CloseReasonStopLoss)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrSizingInfeasible))
}

func TestExitHazardOnLegB(t *testing.T) {
	exch := &mockExchange{orderErrs: map[string]error{
		"SOLUSDT": fmt.Errorf("placing order: %w", ports.ErrOrderRejected),
	}}
	c := newTestCoordinator(t, exch, &mockJournal{})

	_, err := c.Exit(context.Background(), openLong(), 1, domain.CloseReasonStopLoss)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrPartialExecutionHazard))
}

func TestJournalFailureDoesNotFailLeg(t *testing.T) {
	exch := &mockExchange{}
	jrnl := &mockJournal{orderErr: fmt.Errorf("disk full")}
	c := newTestCoordinator(t, exch, jrnl)

	_, err := c.Enter(context.Background(), "long_1", domain.LongSpread, 2.0, 26)
	assert.NoError(t, err, "journal write failure must not abandon filled legs")
}

func TestExitRejectsBadArgs(t *testing.T) {
	c := newTestCoordinator(t, &mockExchange{}, &mockJournal{})
	if _, err := c.Exit(context.Background(), nil, 1, domain.CloseReasonStopLoss); err == nil {
		t.Error("Expected error for nil position")
	}
	if _, err := c.Exit(context.Background(), openLong(), 0, domain.CloseReasonStopLoss); err == nil {
		t.Error("Expected error for zero fraction")
	}
	if _, err := c.Exit(context.Background(), openLong(), 1.5, domain.CloseReasonStopLoss); err == nil {
		t.Error("Expected error for fraction > 1")
	}
}
