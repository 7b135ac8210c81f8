package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/paper-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS paper_trades (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	base_currency    TEXT NOT NULL,
	quote_currency   TEXT NOT NULL,
	side             TEXT NOT NULL,
	price            NUMERIC NOT NULL,
	quantity         NUMERIC NOT NULL,
	amount           NUMERIC NOT NULL,
	fee              NUMERIC NOT NULL,
	ts               TIMESTAMPTZ NOT NULL,
	is_simulated     BOOLEAN NOT NULL,
	is_open          BOOLEAN NOT NULL,
	profit_loss      NUMERIC,
	profit_loss_pct  NUMERIC,
	matched_position TEXT NOT NULL DEFAULT '',
	matches          JSONB
);
CREATE INDEX IF NOT EXISTS idx_paper_trades_user_ts ON paper_trades (user_id, ts DESC);

CREATE TABLE IF NOT EXISTS simulation_runs (
	id          TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	profit_loss NUMERIC NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	summary     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_simulation_runs_finished ON simulation_runs (finished_at DESC);
`

// Migrate creates the tables when they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	args, err := tradeArgs(t, t.Timestamp)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO paper_trades (`+tradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12, $13,
		         $14::NUMERIC, $15::NUMERIC, $16, $17::JSONB)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) CloseTrade(ctx context.Context, accountID, tradeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE paper_trades SET is_open = FALSE WHERE user_id = $1 AND id = $2`,
		accountID, tradeID)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: trade %s", ErrNotFound, tradeID)
	}
	return nil
}

func (s *PostgresStore) GetTrades(ctx context.Context, accountID string, limit int) ([]model.Trade, error) {
	q := `SELECT id, user_id, symbol, base_currency, quote_currency, side,
	             price::TEXT, quantity::TEXT, amount::TEXT, fee::TEXT, ts, is_simulated, is_open,
	             profit_loss::TEXT, profit_loss_pct::TEXT, matched_position, COALESCE(matches::TEXT, '')
	      FROM paper_trades WHERE user_id = $1 ORDER BY ts DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var r tradeRow
		if err := rows.Scan(r.dest(&r.t.Timestamp)...); err != nil {
			return nil, err
		}
		t, err := r.trade()
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.SimulationSummary) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO simulation_runs (id, state, profit_loss, finished_at, summary)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5::JSONB)`,
		run.ID, string(run.State), run.ProfitLoss.String(), run.FinishedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.SimulationSummary, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT summary::TEXT FROM simulation_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.SimulationSummary, error) {
	q := `SELECT summary::TEXT FROM simulation_runs ORDER BY finished_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
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

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
