// Package model defines the core domain types shared across the paper
// trading engine. All monetary values and quantities use shopspring/decimal,
// never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places kept for base-asset
// quantities. Quantities are truncated, never rounded, to this scale.
const QuantityScale int32 = 8

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceBar is one OHLCV candle for a symbol.
// Sequences are ordered by strictly increasing Timestamp.
type PriceBar struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Trade is an append-only fill record. Only IsOpen (buy side) and the
// realized P/L fields (sell side) are ever set after creation.
type Trade struct {
	ID              string           `json:"id" db:"id"`
	UserID          string           `json:"user_id,omitempty" db:"user_id"`
	Symbol          string           `json:"symbol" db:"symbol"`
	BaseCurrency    string           `json:"base_currency" db:"base_currency"`
	QuoteCurrency   string           `json:"quote_currency" db:"quote_currency"`
	Side            Side             `json:"side" db:"side"`
	Price           decimal.Decimal  `json:"price" db:"price"`
	Quantity        decimal.Decimal  `json:"quantity" db:"quantity"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"` // notional in quote currency
	Fee             decimal.Decimal  `json:"fee" db:"fee"`
	Timestamp       time.Time        `json:"timestamp" db:"timestamp"`
	IsSimulated     bool             `json:"is_simulated" db:"is_simulated"`
	IsOpen          bool             `json:"is_open" db:"is_open"`
	ProfitLoss      *decimal.Decimal `json:"profit_loss,omitempty" db:"profit_loss"`
	ProfitLossPct   *decimal.Decimal `json:"profit_loss_pct,omitempty" db:"profit_loss_pct"`
	MatchedPosition string           `json:"matched_position,omitempty" db:"matched_position"`
	Matches         []Match          `json:"matches,omitempty"`
}

// Realized reports whether the trade carries realized P/L.
func (t *Trade) Realized() bool {
	return t.ProfitLoss != nil
}

// Lot is an open buy position awaiting FIFO matching.
type Lot struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"` // remaining, unmatched
	EntryTime  time.Time       `json:"entry_time"`
	TradeID    string          `json:"trade_id"`
}

// Match is one portion of a sell matched against one lot.
type Match struct {
	LotID         string          `json:"lot_id"`
	TradeID       string          `json:"trade_id"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct"`
	LotClosed     bool            `json:"lot_closed"`
}

// Balance is the holding of one currency in a portfolio ledger.
type Balance struct {
	Amount    decimal.Decimal `json:"amount"`
	Available decimal.Decimal `json:"available"`
}

// Position aggregates the open lots of one symbol.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	CurrentPrice  decimal.Decimal `json:"current_price,omitempty"`
	CurrentValue  decimal.Decimal `json:"current_value,omitempty"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl,omitempty"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pnl_pct,omitempty"`
	OpenedAt      time.Time       `json:"opened_at"`
	Lots          []Lot           `json:"lots"`
}

// PortfolioValue is a valuation of every balance in the quote currency.
type PortfolioValue struct {
	Balances      map[string]Balance `json:"portfolio"`
	Total         decimal.Decimal    `json:"total_balance"`
	ProfitLoss    decimal.Decimal    `json:"profit_loss"`
	ProfitLossPct decimal.Decimal    `json:"profit_loss_pct"`
	QuoteCurrency string             `json:"quote_currency"`
	Unpriced      []string           `json:"unpriced,omitempty"`
}

// PerformanceSnapshot is recomputed on demand from trade history and the
// equity curve; it is never updated incrementally.
type PerformanceSnapshot struct {
	StartingBalance    decimal.Decimal `json:"starting_balance"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	PeakBalance        decimal.Decimal `json:"peak_balance"`
	TotalProfitLoss    decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPct decimal.Decimal `json:"total_profit_loss_pct"`
	RealizedProfitLoss decimal.Decimal `json:"realized_profit_loss"`
	TotalFees          decimal.Decimal `json:"total_fees"`
	TotalTrades        int             `json:"total_trades"`
	WinCount           int             `json:"win_count"`
	LossCount          int             `json:"loss_count"`
	WinRate            decimal.Decimal `json:"win_rate"`
	LargestWin         decimal.Decimal `json:"largest_win"`
	LargestLoss        decimal.Decimal `json:"largest_loss"`
	AverageWin         decimal.Decimal `json:"average_win"`
	AverageLoss        decimal.Decimal `json:"average_loss"`
	Drawdown           decimal.Decimal `json:"drawdown"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	StartTime          time.Time       `json:"start_time"`
	Duration           time.Duration   `json:"duration"`
}

// DailyResult is the end-of-day snapshot recorded by the backtest loop.
type DailyResult struct {
	Date       string          `json:"date"`
	Balance    decimal.Decimal `json:"balance"`
	Trades     int             `json:"trades"`
	Rejections int             `json:"rejections,omitempty"`
}

// SimulationState is the lifecycle of one backtest run.
type SimulationState string

const (
	StateInitialized SimulationState = "INITIALIZED"
	StateRunning     SimulationState = "RUNNING"
	StateCompleted   SimulationState = "COMPLETED"
	StateCancelled   SimulationState = "CANCELLED"
)

// SimulationSummary is the result of a backtest run. Trades holds at most
// the first SummaryTradeLimit fills; the full history stays on the engine.
type SimulationSummary struct {
	ID             string              `json:"id"`
	State          SimulationState     `json:"state"`
	Symbols        []string            `json:"symbols"`
	Days           int                 `json:"days"`
	Interval       string              `json:"interval"`
	RiskLevel      int                 `json:"risk_level"`
	InitialBalance decimal.Decimal     `json:"initial_balance"`
	FinalBalance   decimal.Decimal     `json:"final_balance"`
	ProfitLoss     decimal.Decimal     `json:"profit_loss"`
	ProfitLossPct  decimal.Decimal     `json:"profit_loss_pct"`
	TotalTrades    int                 `json:"total_trades"`
	WinCount       int                 `json:"win_count"`
	LossCount      int                 `json:"loss_count"`
	WinRate        decimal.Decimal     `json:"win_rate"`
	DailyResults   []DailyResult       `json:"daily_results"`
	Trades         []Trade             `json:"trade_history"`
	Performance    PerformanceSnapshot `json:"performance"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}
