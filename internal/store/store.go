// Package store defines the persistence interface for paper trades and
// backtest runs. Implementations include PostgreSQL (source of truth),
// SQLite (local journal), Redis (read-through cache) and in-memory (for
// testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/paper-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Trades are append-only apart from
// the open flag of a buy, cleared once its lot is fully matched.
type Store interface {
	// --- Trades ---

	// InsertTrade appends a fill. Trade.UserID is the owning account.
	InsertTrade(ctx context.Context, t *model.Trade) error

	// CloseTrade clears the open flag of a buy trade.
	CloseTrade(ctx context.Context, accountID, tradeID string) error

	// GetTrades returns up to limit trades of an account, newest first.
	// A limit of zero or less returns every trade.
	GetTrades(ctx context.Context, accountID string, limit int) ([]model.Trade, error)

	// --- Backtest runs ---

	// SaveRun persists a finished simulation summary.
	SaveRun(ctx context.Context, run *model.SimulationSummary) error

	// GetRun retrieves a simulation summary by ID.
	GetRun(ctx context.Context, id string) (*model.SimulationSummary, error)

	// ListRuns returns up to limit summaries, most recently finished first.
	ListRuns(ctx context.Context, limit int) ([]model.SimulationSummary, error)
}

// Recorder persists live fills of one engine into a Store.
type Recorder struct {
	store Store
}

// NewRecorder binds a store as an engine trade recorder.
func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// Record inserts the trade and closes every buy whose lot it consumed.
func (r *Recorder) Record(ctx context.Context, t model.Trade) error {
	if err := r.store.InsertTrade(ctx, &t); err != nil {
		return err
	}
	for _, m := range t.Matches {
		if !m.LotClosed {
			continue
		}
		if err := r.store.CloseTrade(ctx, t.UserID, m.TradeID); err != nil {
			return err
		}
	}
	return nil
}
