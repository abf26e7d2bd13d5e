package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pairsbot/internal/domain"
	"pairsbot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
		Logger: nopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry() (ports.EntryContext, ports.MarketContext) {
	entry := ports.EntryContext{
		SymbolA: "ETHUSDT",
		SymbolB: "SOLUSDT",
		Side:    domain.LongSpread,
		PriceA:  2000.0,
		PriceB:  150.0,
		QtyA:    2.0,
		QtyB:    26.0,
		Spread:  -0.012,
		ZScore:  -1.8,
	}
	market := ports.MarketContext{SpreadMean: 0.001, SpreadStd: 0.007}
	return entry, market
}

func TestStore_RecordEntryAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, market := sampleEntry()
	require.NoError(t, store.RecordEntry(ctx, "long_1700000000", entry, market))

	rec, err := store.Find(ctx, "long_1700000000")
	require.NoError(t, err)
	assert.Equal(t, "long_1700000000", rec.TradeID)
	assert.Equal(t, domain.TradeStatusEntered, rec.Status)
	assert.Equal(t, entry, rec.Entry)
	assert.Equal(t, market, rec.Market)
	assert.Nil(t, rec.Exit)
	assert.Nil(t, rec.PnL)
	assert.Empty(t, rec.Orders)
}

func TestStore_FindMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Find(context.Background(), "long_999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrTradeNotFound))
}

func TestStore_RecordOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, market := sampleEntry()
	require.NoError(t, store.RecordEntry(ctx, "long_1700000000", entry, market))

	orders := []ports.OrderAudit{
		{
			Timestamp: time.Now().UTC().Truncate(time.Second),
			OrderType: "ENTRY_LEG1_LONG",
			OrderID:   101,
			Symbol:    "ETHUSDT",
			Side:      domain.Buy,
			Quantity:  2.0,
			AvgPrice:  2000.5,
			Status:    "FILLED",
		},
		{
			Timestamp: time.Now().UTC().Truncate(time.Second),
			OrderType: "ENTRY_LEG2_SHORT",
			OrderID:   102,
			Symbol:    "SOLUSDT",
			Side:      domain.Sell,
			Quantity:  26.0,
			AvgPrice:  150.1,
			Status:    "FILLED",
		},
	}
	for _, o := range orders {
		require.NoError(t, store.RecordOrder(ctx, "long_1700000000", o))
	}

	rec, err := store.Find(ctx, "long_1700000000")
	require.NoError(t, err)
	require.Len(t, rec.Orders, 2)
	assert.Equal(t, "ENTRY_LEG1_LONG", rec.Orders[0].OrderType)
	assert.Equal(t, int64(102), rec.Orders[1].OrderID)
	assert.Equal(t, domain.Sell, rec.Orders[1].Side)
}

func TestStore_RecordOrderMissingTrade(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordOrder(context.Background(), "long_999", ports.OrderAudit{
		Timestamp: time.Now().UTC(),
		OrderType: "ENTRY_LEG1_LONG",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrTradeNotFound))
}

func TestStore_RecordExit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, market := sampleEntry()
	require.NoError(t, store.RecordEntry(ctx, "long_1700000000", entry, market))

	exit := ports.ExitContext{
		PriceA: 2100.0,
		PriceB: 148.0,
		Spread: 0.004,
		ZScore: -0.3,
		Reason: domain.CloseReasonExitZScore,
	}
	pnl := ports.PnLResult{
		Available:   true,
		RealizedPnl: 212.5,
		TotalFees:   4.2,
		Detail:      map[string]interface{}{"matched_fills": float64(4)},
	}
	require.NoError(t, store.RecordExit(ctx, "long_1700000000", exit, pnl))

	rec, err := store.Find(ctx, "long_1700000000")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, rec.Status)
	require.NotNil(t, rec.Exit)
	assert.Equal(t, exit, *rec.Exit)
	require.NotNil(t, rec.PnL)
	assert.Equal(t, pnl, *rec.PnL)
}

func TestStore_RecordExitMissingTrade(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordExit(context.Background(), "long_999", ports.ExitContext{
		Reason: domain.CloseReasonStopLoss,
	}, ports.PnLResult{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrTradeNotFound))
}

func TestStore_RecordExitUnavailablePnL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, market := sampleEntry()
	require.NoError(t, store.RecordEntry(ctx, "short_1700000100", entry, market))

	pnl := ports.PnLResult{
		Available: false,
		Detail:    map[string]interface{}{"error": "fetching account trades: timeout"},
	}
	require.NoError(t, store.RecordExit(ctx, "short_1700000100", ports.ExitContext{
		Reason: domain.CloseReasonShutdown,
	}, pnl))

	rec, err := store.Find(ctx, "short_1700000100")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, rec.Status)
	require.NotNil(t, rec.PnL)
	assert.False(t, rec.PnL.Available)
	assert.Equal(t, "fetching account trades: timeout", rec.PnL.Detail["error"])
}

func TestStore_LoadAllOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	entry, market := sampleEntry()

	// Insert out of order; entry_time is set at insertion time so force spacing
	// by inserting sequentially and asserting the same order comes back.
	for _, id := range []string{"long_1", "short_2", "long_3"} {
		require.NoError(t, store.RecordEntry(ctx, id, entry, market))
		time.Sleep(5 * time.Millisecond)
	}

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "long_1", records[0].TradeID)
	assert.Equal(t, "short_2", records[1].TradeID)
	assert.Equal(t, "long_3", records[2].TradeID)
	assert.True(t, !records[1].EntryTime.Before(records[0].EntryTime))
}

func TestStore_PersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := NewStore(Config{DBPath: dbPath, Logger: nopLogger{}})
	require.NoError(t, err)
	entry, market := sampleEntry()
	require.NoError(t, store.RecordEntry(ctx, "long_42", entry, market))
	require.NoError(t, store.Close())

	reopened, err := NewStore(Config{DBPath: dbPath, Logger: nopLogger{}})
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Find(ctx, "long_42")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusEntered, rec.Status)
	assert.Equal(t, entry.QtyB, rec.Entry.QtyB)
}

func TestStore_RequiresLogger(t *testing.T) {
	_, err := NewStore(Config{DBPath: filepath.Join(t.TempDir(), "journal.db")})
	require.Error(t, err)
}
