// Package store persists completed runs to SQLite so past backtests stay
// queryable through the API without keeping results in memory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"meanrev/internal/backtest"
	"meanrev/internal/engine"
	"meanrev/internal/ledger"
)

var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	timeframe     TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	initial_cash  REAL NOT NULL,
	final_cash    REAL NOT NULL,
	net_pnl       REAL NOT NULL,
	return_pct    REAL NOT NULL,
	trades        INTEGER NOT NULL,
	win_rate_pct  REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_dd_pct    REAL NOT NULL,
	sharpe        REAL NOT NULL,
	config_json   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_orders (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	order_id     TEXT NOT NULL,
	side         TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	stop_loss    REAL NOT NULL,
	take_profit  REAL NOT NULL,
	size         REAL NOT NULL,
	entry_time   TIMESTAMP NOT NULL,
	risk_amount  REAL NOT NULL,
	regime_score INTEGER NOT NULL,
	outcome      TEXT NOT NULL,
	exit_price   REAL NOT NULL,
	exit_time    TIMESTAMP NOT NULL,
	realized_pnl REAL NOT NULL,
	commission   REAL NOT NULL,
	PRIMARY KEY (run_id, order_id)
);

CREATE TABLE IF NOT EXISTS run_equity (
	run_id TEXT NOT NULL REFERENCES runs(id),
	ts     TIMESTAMP NOT NULL,
	value  REAL NOT NULL,
	PRIMARY KEY (run_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_run_orders_run ON run_orders(run_id);
CREATE INDEX IF NOT EXISTS idx_run_equity_run ON run_equity(run_id);
`

// Store wraps the SQL handle for easier swapping/testing.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the SQLite database at path and applies
// the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunRecord is the stored header of one persisted run.
type RunRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Summary   backtest.Summary `json:"summary"`
}

// SaveRun persists a completed run with its orders and equity curve in one
// transaction and returns the generated run ID. Partial writes never become
// visible: either the whole run lands or none of it.
func (s *Store) SaveRun(ctx context.Context, res *engine.Result, sum backtest.Summary, cfg engine.Config) (string, error) {
	runID := uuid.NewString()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, timeframe, created_at, initial_cash, final_cash,
			net_pnl, return_pct, trades, win_rate_pct, profit_factor, max_dd_pct, sharpe, config_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, res.Symbol, string(res.Timeframe), time.Now().UTC(),
		sum.InitialCash, sum.FinalCash, sum.NetPnL, sum.ReturnPct,
		sum.Trades, sum.WinRatePct, finiteOr(sum.ProfitFactor, -1), sum.MaxDrawdownPct, sum.Sharpe,
		string(cfgJSON))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	ordStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_orders (run_id, order_id, side, entry_price, stop_loss, take_profit,
			size, entry_time, risk_amount, regime_score, outcome, exit_price, exit_time,
			realized_pnl, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare order insert: %w", err)
	}
	defer ordStmt.Close()

	for _, o := range res.Orders {
		if o.Outcome == nil {
			return "", fmt.Errorf("order %s has no outcome; refuse to persist incomplete run", o.ID)
		}
		_, err := ordStmt.ExecContext(ctx, runID, o.ID, o.Side.String(),
			o.EntryPrice, o.StopLoss, o.TakeProfit, o.Size, o.EntryTime.UTC(),
			o.RiskAmount, o.Regime.Score, o.Outcome.Kind.String(),
			o.Outcome.ExitPrice, o.Outcome.ExitTime.UTC(),
			o.Outcome.RealizedPnL, o.Outcome.Commission)
		if err != nil {
			return "", fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}

	eqStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_equity (run_id, ts, value) VALUES (?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare equity insert: %w", err)
	}
	defer eqStmt.Close()

	for _, p := range res.EquityCurve {
		if _, err := eqStmt.ExecContext(ctx, runID, p.Time.UTC(), p.Value); err != nil {
			return "", fmt.Errorf("insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns run headers, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, timeframe, created_at, initial_cash, final_cash,
		       net_pnl, return_pct, trades, win_rate_pct, profit_factor, max_dd_pct, sharpe
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Summary.Symbol, &r.Summary.Timeframe, &r.CreatedAt,
			&r.Summary.InitialCash, &r.Summary.FinalCash, &r.Summary.NetPnL, &r.Summary.ReturnPct,
			&r.Summary.Trades, &r.Summary.WinRatePct, &r.Summary.ProfitFactor,
			&r.Summary.MaxDrawdownPct, &r.Summary.Sharpe); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run header or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var r RunRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, timeframe, created_at, initial_cash, final_cash,
		       net_pnl, return_pct, trades, win_rate_pct, profit_factor, max_dd_pct, sharpe
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Summary.Symbol, &r.Summary.Timeframe, &r.CreatedAt,
		&r.Summary.InitialCash, &r.Summary.FinalCash, &r.Summary.NetPnL, &r.Summary.ReturnPct,
		&r.Summary.Trades, &r.Summary.WinRatePct, &r.Summary.ProfitFactor,
		&r.Summary.MaxDrawdownPct, &r.Summary.Sharpe)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// OrderRecord is the flattened stored form of one order.
type OrderRecord struct {
	OrderID     string    `json:"order_id"`
	Side        string    `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Size        float64   `json:"size"`
	EntryTime   time.Time `json:"entry_time"`
	RiskAmount  float64   `json:"risk_amount"`
	RegimeScore int       `json:"regime_score"`
	Outcome     string    `json:"outcome"`
	ExitPrice   float64   `json:"exit_price"`
	ExitTime    time.Time `json:"exit_time"`
	RealizedPnL float64   `json:"realized_pnl"`
	Commission  float64   `json:"commission"`
}

// GetOrders returns a run's orders in entry order.
func (s *Store) GetOrders(ctx context.Context, runID string) ([]OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, side, entry_price, stop_loss, take_profit, size, entry_time,
		       risk_amount, regime_score, outcome, exit_price, exit_time, realized_pnl, commission
		FROM run_orders
		WHERE run_id = ?
		ORDER BY entry_time, order_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.OrderID, &o.Side, &o.EntryPrice, &o.StopLoss, &o.TakeProfit,
			&o.Size, &o.EntryTime, &o.RiskAmount, &o.RegimeScore, &o.Outcome,
			&o.ExitPrice, &o.ExitTime, &o.RealizedPnL, &o.Commission); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetEquity returns a run's equity curve in time order.
func (s *Store) GetEquity(ctx context.Context, runID string) ([]ledger.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, value FROM run_equity WHERE run_id = ? ORDER BY ts
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var out []ledger.EquityPoint
	for rows.Next() {
		var p ledger.EquityPoint
		if err := rows.Scan(&p.Time, &p.Value); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// finiteOr replaces +/-Inf and NaN with a sentinel so SQLite storage stays
// portable.
func finiteOr(v, sentinel float64) float64 {
	if v != v || v > 1e308 || v < -1e308 {
		return sentinel
	}
	return v
}
