package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairsbot/internal/domain"
	"pairsbot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements the ports.TradeJournal interface using SQLite. One row
// per trade plus a growing order-audit table; the only in-place mutation is
// the ENTERED -> COMPLETED status transition written by RecordExit.
type Store struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore creates a new SQLite trade journal.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/pairsbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver works best with a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Trade journal opened", map[string]interface{}{"path": dbPath})

	return store, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		trade_id       TEXT PRIMARY KEY,
		status         TEXT NOT NULL,
		entry_time     TIMESTAMP NOT NULL,
		symbol_a       TEXT NOT NULL,
		symbol_b       TEXT NOT NULL,
		side           TEXT NOT NULL,
		entry_price_a  REAL NOT NULL,
		entry_price_b  REAL NOT NULL,
		entry_qty_a    REAL NOT NULL,
		entry_qty_b    REAL NOT NULL,
		entry_spread   REAL NOT NULL,
		entry_zscore   REAL NOT NULL,
		spread_mean    REAL NOT NULL,
		spread_std     REAL NOT NULL,
		exit_price_a   REAL DEFAULT NULL,
		exit_price_b   REAL DEFAULT NULL,
		exit_spread    REAL DEFAULT NULL,
		exit_zscore    REAL DEFAULT NULL,
		exit_reason    TEXT DEFAULT NULL,
		pnl_available  INTEGER DEFAULT NULL,
		realized_pnl   REAL DEFAULT NULL,
		total_fees     REAL DEFAULT NULL,
		pnl_detail     TEXT DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_orders (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id   TEXT NOT NULL,
		ts         TIMESTAMP NOT NULL,
		order_type TEXT NOT NULL,
		order_id   INTEGER NOT NULL,
		symbol     TEXT NOT NULL,
		side       TEXT NOT NULL,
		quantity   REAL NOT NULL,
		avg_price  REAL NOT NULL,
		status     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_trade_orders_trade_id ON trade_orders (trade_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing trade journal")
		return s.db.Close()
	}
	return nil
}

// RecordEntry persists a new trade record in status ENTERED.
func (s *Store) RecordEntry(ctx context.Context, tradeID string, entry ports.EntryContext, market ports.MarketContext) error {
	const query = `
	INSERT INTO trades (trade_id, status, entry_time, symbol_a, symbol_b, side,
	                    entry_price_a, entry_price_b, entry_qty_a, entry_qty_b,
	                    entry_spread, entry_zscore, spread_mean, spread_std)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		tradeID, domain.TradeStatusEntered, time.Now().UTC(),
		entry.SymbolA, entry.SymbolB, entry.Side,
		entry.PriceA, entry.PriceB, entry.QtyA, entry.QtyB,
		entry.Spread, entry.ZScore, market.SpreadMean, market.SpreadStd)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", tradeID, err)
	}
	s.logger.Debug(ctx, "Trade entry journaled", map[string]interface{}{"tradeID": tradeID, "side": entry.Side})
	return nil
}

// RecordOrder appends one order audit entry to an existing trade.
func (s *Store) RecordOrder(ctx context.Context, tradeID string, order ports.OrderAudit) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM trades WHERE trade_id = ?)`, tradeID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check trade %s: %w", tradeID, err)
	}
	if !exists {
		return fmt.Errorf("trade %s: %w", tradeID, ports.ErrTradeNotFound)
	}

	const query = `
	INSERT INTO trade_orders (trade_id, ts, order_type, order_id, symbol, side, quantity, avg_price, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		tradeID, order.Timestamp, order.OrderType, order.OrderID,
		order.Symbol, order.Side, order.Quantity, order.AvgPrice, order.Status)
	if err != nil {
		return fmt.Errorf("failed to insert order for trade %s: %w", tradeID, err)
	}
	s.logger.Debug(ctx, "Order journaled", map[string]interface{}{"tradeID": tradeID, "orderType": order.OrderType, "orderID": order.OrderID})
	return nil
}

// RecordExit transitions the trade to COMPLETED and stores exit context and
// the PnL result.
func (s *Store) RecordExit(ctx context.Context, tradeID string, exit ports.ExitContext, pnl ports.PnLResult) error {
	detail, err := json.Marshal(pnl.Detail)
	if err != nil {
		detail = []byte("{}")
	}

	const query = `
	UPDATE trades
	SET status = ?, exit_price_a = ?, exit_price_b = ?, exit_spread = ?, exit_zscore = ?,
	    exit_reason = ?, pnl_available = ?, realized_pnl = ?, total_fees = ?, pnl_detail = ?
	WHERE trade_id = ?`

	result, err := s.db.ExecContext(ctx, query,
		domain.TradeStatusCompleted, exit.PriceA, exit.PriceB, exit.Spread, exit.ZScore,
		exit.Reason, pnl.Available, pnl.RealizedPnl, pnl.TotalFees, string(detail),
		tradeID)
	if err != nil {
		return fmt.Errorf("failed to complete trade %s: %w", tradeID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w", tradeID, err)
	}
	if rows == 0 {
		return fmt.Errorf("trade %s: %w", tradeID, ports.ErrTradeNotFound)
	}
	s.logger.Debug(ctx, "Trade exit journaled", map[string]interface{}{"tradeID": tradeID, "reason": exit.Reason, "pnlAvailable": pnl.Available})
	return nil
}

// Find retrieves one trade record by ID.
func (s *Store) Find(ctx context.Context, tradeID string) (*ports.TradeRecord, error) {
	const query = selectTrades + ` WHERE trade_id = ?`

	row := s.db.QueryRowContext(ctx, query, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trade %s: %w", tradeID, ports.ErrTradeNotFound)
		}
		return nil, fmt.Errorf("failed to query trade %s: %w", tradeID, err)
	}

	if err := s.attachOrders(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadAll retrieves all trade records, ordered by entry time ascending, for
// restart recovery and reporting.
func (s *Store) LoadAll(ctx context.Context) ([]*ports.TradeRecord, error) {
	const query = selectTrades + ` ORDER BY entry_time ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	records := make([]*ports.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during LoadAll: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	for _, rec := range records {
		if err := s.attachOrders(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) attachOrders(ctx context.Context, rec *ports.TradeRecord) error {
	const query = `
	SELECT ts, order_type, order_id, symbol, side, quantity, avg_price, status
	FROM trade_orders WHERE trade_id = ? ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, rec.TradeID)
	if err != nil {
		return fmt.Errorf("failed to query orders for trade %s: %w", rec.TradeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o ports.OrderAudit
		var side string
		if err := rows.Scan(&o.Timestamp, &o.OrderType, &o.OrderID, &o.Symbol, &side, &o.Quantity, &o.AvgPrice, &o.Status); err != nil {
			return fmt.Errorf("failed to scan order for trade %s: %w", rec.TradeID, err)
		}
		o.Side = domain.OrderSide(side)
		rec.Orders = append(rec.Orders, o)
	}
	return rows.Err()
}

// --- Helper Scan Functions ---

const selectTrades = `
	SELECT trade_id, status, entry_time, symbol_a, symbol_b, side,
	       entry_price_a, entry_price_b, entry_qty_a, entry_qty_b,
	       entry_spread, entry_zscore, spread_mean, spread_std,
	       exit_price_a, exit_price_b, exit_spread, exit_zscore, exit_reason,
	       pnl_available, realized_pnl, total_fees, pnl_detail
	FROM trades`

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a ports.TradeRecord.
func scanTrade(sc scanner) (*ports.TradeRecord, error) {
	rec := &ports.TradeRecord{}
	var status, side string
	var exitPriceA, exitPriceB, exitSpread, exitZScore sql.NullFloat64
	var exitReason, pnlDetail sql.NullString
	var pnlAvailable sql.NullBool
	var realizedPnl, totalFees sql.NullFloat64

	err := sc.Scan(
		&rec.TradeID, &status, &rec.EntryTime,
		&rec.Entry.SymbolA, &rec.Entry.SymbolB, &side,
		&rec.Entry.PriceA, &rec.Entry.PriceB, &rec.Entry.QtyA, &rec.Entry.QtyB,
		&rec.Entry.Spread, &rec.Entry.ZScore, &rec.Market.SpreadMean, &rec.Market.SpreadStd,
		&exitPriceA, &exitPriceB, &exitSpread, &exitZScore, &exitReason,
		&pnlAvailable, &realizedPnl, &totalFees, &pnlDetail)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	rec.Status = domain.TradeStatus(status)
	rec.Entry.Side = domain.SpreadSide(side)

	if exitReason.Valid {
		rec.Exit = &ports.ExitContext{
			PriceA: exitPriceA.Float64,
			PriceB: exitPriceB.Float64,
			Spread: exitSpread.Float64,
			ZScore: exitZScore.Float64,
			Reason: domain.CloseReason(exitReason.String),
		}
	}
	if pnlAvailable.Valid {
		pnl := &ports.PnLResult{
			Available:   pnlAvailable.Bool,
			RealizedPnl: realizedPnl.Float64,
			TotalFees:   totalFees.Float64,
		}
		if pnlDetail.Valid && pnlDetail.String != "" {
			_ = json.Unmarshal([]byte(pnlDetail.String), &pnl.Detail)
		}
		rec.PnL = pnl
	}
	return rec, nil
}
