package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atmx/paper-engine/internal/model"
)

// sqliteTime is a fixed-width UTC layout so text order is time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a local SQLite file. Decimals are kept
// as TEXT and timestamps as sqliteTime strings.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS paper_trades (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	base_currency    TEXT NOT NULL,
	quote_currency   TEXT NOT NULL,
	side             TEXT NOT NULL,
	price            TEXT NOT NULL,
	quantity         TEXT NOT NULL,
	amount           TEXT NOT NULL,
	fee              TEXT NOT NULL,
	ts               TEXT NOT NULL,
	is_simulated     BOOLEAN NOT NULL,
	is_open          BOOLEAN NOT NULL,
	profit_loss      TEXT,
	profit_loss_pct  TEXT,
	matched_position TEXT NOT NULL DEFAULT '',
	matches          TEXT NOT NULL DEFAULT 'null',
	seq              INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_paper_trades_user ON paper_trades (user_id, seq);

CREATE TABLE IF NOT EXISTS simulation_runs (
	id          TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	profit_loss TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	summary     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_simulation_runs_finished ON simulation_runs (finished_at);
`

// OpenSQLite opens (or creates) a SQLite database and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite store opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	args, err := tradeArgs(t, t.Timestamp.UTC().Format(sqliteTime))
	if err != nil {
		return err
	}
	// seq preserves insertion order for trades sharing a timestamp.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO paper_trades (`+tradeColumns+`, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM paper_trades))`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CloseTrade(ctx context.Context, accountID, tradeID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE paper_trades SET is_open = 0 WHERE user_id = ? AND id = ?`, accountID, tradeID)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: trade %s", ErrNotFound, tradeID)
	}
	return nil
}

func (s *SQLiteStore) GetTrades(ctx context.Context, accountID string, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM paper_trades
		 WHERE user_id = ? ORDER BY seq DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var r tradeRow
		var ts string
		if err := rows.Scan(r.dest(&ts)...); err != nil {
			return nil, err
		}
		if r.t.Timestamp, err = time.Parse(sqliteTime, ts); err != nil {
			return nil, fmt.Errorf("trade %s timestamp: %w", r.t.ID, err)
		}
		t, err := r.trade()
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.SimulationSummary) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulation_runs (id, state, profit_loss, finished_at, summary)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.State), run.ProfitLoss.String(),
		run.FinishedAt.UTC().Format(sqliteTime), string(data),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.SimulationSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM simulation_runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var run model.SimulationSummary
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.SimulationSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM simulation_runs ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.SimulationSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var run model.SimulationSummary
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
