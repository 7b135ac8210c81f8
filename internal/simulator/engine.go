// Package simulator executes paper trades against a portfolio ledger and
// runs day-stepped backtests of the indicator strategy.
//
// An Engine owns its ledger, open lots and trade history exclusively. It is
// not safe for concurrent use; callers serialise access per engine and give
// every parallel backtest its own instance.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/indicator"
	"github.com/atmx/paper-engine/internal/ledger"
	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/position"
	"github.com/atmx/paper-engine/internal/risk"
	"github.com/atmx/paper-engine/internal/strategy"
	"github.com/atmx/paper-engine/internal/symbol"
)

var hundred = decimal.NewFromInt(100)

// MarketData is the market-data collaborator. An empty bar slice means no
// data is available; it is not an error.
type MarketData interface {
	Bars(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error)
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Recorder persists fills outside the simulation, one at a time in
// execution order. Failures are logged and never roll back engine state.
type Recorder interface {
	Record(ctx context.Context, t model.Trade) error
}

// Config holds the engine settings. Zero values fall back to DefaultConfig.
type Config struct {
	UserID          string
	QuoteCurrency   string
	StartingCapital decimal.Decimal
	FeeRate         decimal.Decimal
	RiskLevel       int

	// EnforceLimits rejects buys beyond the risk level's max_positions.
	EnforceLimits bool
	// MaxNotionalPerSymbol rejects buys that would lift the open cost basis
	// of one symbol above it. Zero disables the cap.
	MaxNotionalPerSymbol decimal.Decimal
	// ApplyExitRules closes backtest positions on stop-loss or take-profit
	// before signals are evaluated.
	ApplyExitRules bool

	SummaryTradeLimit int
	MinBars           int

	Now   func() time.Time
	NewID func() string
}

// DefaultConfig returns the baseline settings: 10000 USDT, 0.1% fee, risk 3.
func DefaultConfig() Config {
	return Config{
		QuoteCurrency:     "USDT",
		StartingCapital:   decimal.NewFromInt(10000),
		FeeRate:           decimal.RequireFromString("0.001"),
		RiskLevel:         strategy.DefaultRiskLevel,
		SummaryTradeLimit: 20,
		MinBars:           30,
		Now:               func() time.Time { return time.Now().UTC() },
		NewID:             func() string { return uuid.New().String() },
	}
}

func (c *Config) fill() error {
	def := DefaultConfig()
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = def.QuoteCurrency
	}
	if c.RiskLevel == 0 {
		c.RiskLevel = def.RiskLevel
	}
	if c.SummaryTradeLimit <= 0 {
		c.SummaryTradeLimit = def.SummaryTradeLimit
	}
	if c.MinBars <= 0 {
		c.MinBars = def.MinBars
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.NewID == nil {
		c.NewID = def.NewID
	}
	if c.StartingCapital.IsNegative() {
		return fmt.Errorf("%w: negative starting capital %s", model.ErrInvalidParameter, c.StartingCapital)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: fee rate %s outside [0, 1)", model.ErrInvalidParameter, c.FeeRate)
	}
	if c.MaxNotionalPerSymbol.IsNegative() {
		return fmt.Errorf("%w: negative per-symbol notional cap %s", model.ErrInvalidParameter, c.MaxNotionalPerSymbol)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder persists every live fill.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithIndicatorConfig overrides the strategy's indicator settings.
func WithIndicatorConfig(cfg indicator.Config) Option {
	return func(e *Engine) { e.indicatorCfg = &cfg }
}

type equityPoint struct {
	at    time.Time
	value decimal.Decimal
}

// Engine is one paper portfolio.
type Engine struct {
	cfg          Config
	data         MarketData
	recorder     Recorder
	log          *slog.Logger
	indicatorCfg *indicator.Config

	strat   *strategy.Strategy
	limiter *risk.PositionLimiter

	ledger  *ledger.Ledger
	book    *position.Book
	trades  []model.Trade
	buyIdx  map[string]int // lot id -> index of its buy trade
	equity  []equityPoint
	marks   map[string]decimal.Decimal // last known price per symbol
	started time.Time

	// Set for the duration of a backtest and after it: trades are stamped
	// with simNow, valued at marks and never recorded.
	simulated bool
	simNow    time.Time
	state     model.SimulationState

	wg       sync.WaitGroup
	recorded chan struct{} // closed once the latest fill is recorded
}

// New creates an engine funded with cfg.StartingCapital in the quote
// currency.
func New(cfg Config, data MarketData, opts ...Option) (*Engine, error) {
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, data: data, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}

	sopts := []strategy.Option{strategy.WithClock(e.now)}
	if e.indicatorCfg != nil {
		sopts = append(sopts, strategy.WithIndicatorConfig(*e.indicatorCfg))
	}
	strat, err := strategy.New(cfg.RiskLevel, sopts...)
	if err != nil {
		return nil, err
	}
	e.strat = strat
	maxPositions := 0
	if cfg.EnforceLimits {
		maxPositions = strat.Params().MaxPositions
	}
	e.limiter = risk.NewPositionLimiter(maxPositions, cfg.MaxNotionalPerSymbol)

	if err := e.reset(); err != nil {
		return nil, err
	}
	e.state = model.StateInitialized
	return e, nil
}

func (e *Engine) reset() error {
	l, err := ledger.New(map[string]decimal.Decimal{e.cfg.QuoteCurrency: e.cfg.StartingCapital})
	if err != nil {
		return err
	}
	e.ledger = l
	e.book = position.NewBook()
	e.trades = nil
	e.buyIdx = make(map[string]int)
	e.marks = make(map[string]decimal.Decimal)
	e.started = e.cfg.Now()
	e.equity = []equityPoint{{at: e.started, value: e.cfg.StartingCapital}}
	return nil
}

func (e *Engine) now() time.Time {
	if e.simulated && !e.simNow.IsZero() {
		return e.simNow
	}
	return e.cfg.Now()
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Strategy returns the engine's strategy.
func (e *Engine) Strategy() *strategy.Strategy { return e.strat }

// BuyOrder spends Amount of the quote currency on Symbol. A zero Price is
// resolved from market data.
type BuyOrder struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// SellOrder sells Quantity of Symbol's base currency. When Quantity is zero
// it is derived from Amount/Price and capped at the holding, and when both
// are zero the whole holding is sold. A zero Price is resolved from market
// data.
type SellOrder struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
}

func (e *Engine) pair(sym string) (symbol.Pair, error) {
	p, err := symbol.Parse(sym, e.cfg.QuoteCurrency)
	if err != nil {
		return symbol.Pair{}, fmt.Errorf("%w: %w", model.ErrInvalidParameter, err)
	}
	return p, nil
}

func (e *Engine) resolvePrice(ctx context.Context, sym string, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative price %s", model.ErrInvalidParameter, price)
	}
	if price.IsPositive() {
		return price, nil
	}
	if e.data == nil {
		return decimal.Zero, fmt.Errorf("%w: no price source for %s", model.ErrNoMarketData, sym)
	}
	p, err := e.data.LatestPrice(ctx, sym)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", model.ErrNoMarketData, sym, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s price %s", model.ErrNoMarketData, sym, p)
	}
	return p, nil
}

// ExecuteBuy fills a buy order. Quantity is amount/price truncated to
// eight decimals; the fee is amount x fee rate. The quote currency is
// debited by amount and the base currency credited by quantity. On error
// nothing changes.
func (e *Engine) ExecuteBuy(ctx context.Context, o BuyOrder) (*model.Trade, error) {
	t, err := e.executeBuy(ctx, o)
	if err != nil {
		e.reject(model.SideBuy, o.Symbol, err)
		return nil, err
	}
	return t, nil
}

func (e *Engine) executeBuy(ctx context.Context, o BuyOrder) (*model.Trade, error) {
	p, err := e.pair(o.Symbol)
	if err != nil {
		return nil, err
	}
	if !o.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: buy amount must be positive, got %s", model.ErrInvalidParameter, o.Amount)
	}
	price, err := e.resolvePrice(ctx, p.Symbol, o.Price)
	if err != nil {
		return nil, err
	}
	if avail := e.ledger.Balance(p.Quote); o.Amount.GreaterThan(avail) {
		return nil, fmt.Errorf("%w: buy of %s %s with %s available", model.ErrInsufficientBalance, o.Amount, p.Quote, avail)
	}

	qty := o.Amount.Div(price).Truncate(model.QuantityScale)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s buys nothing at %s", model.ErrInvalidParameter, o.Amount, price)
	}
	fee := o.Amount.Mul(e.cfg.FeeRate)

	if e.limiter.Enabled() {
		if err := e.limiter.CheckLimit(p.Symbol, o.Amount, e.exposures()); err != nil {
			return nil, err
		}
	}

	if err := e.ledger.Apply(
		ledger.Entry{Currency: p.Quote, Delta: o.Amount.Neg()},
		ledger.Entry{Currency: p.Base, Delta: qty},
	); err != nil {
		return nil, err
	}

	ts := e.now()
	t := model.Trade{
		ID:            e.cfg.NewID(),
		UserID:        e.cfg.UserID,
		Symbol:        p.Symbol,
		BaseCurrency:  p.Base,
		QuoteCurrency: p.Quote,
		Side:          model.SideBuy,
		Price:         price,
		Quantity:      qty,
		Amount:        o.Amount,
		Fee:           fee,
		Timestamp:     ts,
		IsSimulated:   e.simulated,
		IsOpen:        true,
	}
	lot := model.Lot{
		ID:         e.cfg.NewID(),
		Symbol:     p.Symbol,
		EntryPrice: price,
		Quantity:   qty,
		EntryTime:  ts,
		TradeID:    t.ID,
	}
	if err := e.book.Open(lot); err != nil {
		// Unreachable with the checks above; undo the ledger move.
		_ = e.ledger.Apply(
			ledger.Entry{Currency: p.Quote, Delta: o.Amount},
			ledger.Entry{Currency: p.Base, Delta: qty.Neg()},
		)
		return nil, err
	}

	e.buyIdx[lot.ID] = len(e.trades)
	e.trades = append(e.trades, t)
	e.marks[p.Symbol] = price
	e.recordEquity(ts)
	if !e.simulated {
		metrics.OpenLots.Inc()
	}
	e.filled(t)
	return &t, nil
}

// ExecuteSell fills a sell order. An explicit quantity above the base
// balance is rejected with ErrInsufficientBalance, while a size derived
// from Amount is capped at the balance. Proceeds less fee are credited to
// the quote currency and the quantity is matched against open lots oldest
// first to realise P/L. On error nothing changes.
func (e *Engine) ExecuteSell(ctx context.Context, o SellOrder) (*model.Trade, error) {
	t, err := e.executeSell(ctx, o)
	if err != nil {
		e.reject(model.SideSell, o.Symbol, err)
		return nil, err
	}
	return t, nil
}

func (e *Engine) executeSell(ctx context.Context, o SellOrder) (*model.Trade, error) {
	p, err := e.pair(o.Symbol)
	if err != nil {
		return nil, err
	}
	if o.Quantity.IsNegative() || o.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative sell size", model.ErrInvalidParameter)
	}
	held := e.ledger.Balance(p.Base)
	if !held.IsPositive() {
		return nil, fmt.Errorf("%w: no %s to sell", model.ErrInsufficientBalance, p.Base)
	}
	price, err := e.resolvePrice(ctx, p.Symbol, o.Price)
	if err != nil {
		return nil, err
	}

	qty := o.Quantity
	switch {
	case qty.IsPositive():
		if qty.GreaterThan(held) {
			return nil, fmt.Errorf("%w: sell of %s %s with %s held", model.ErrInsufficientBalance, qty, p.Base, held)
		}
	case o.Amount.IsPositive():
		qty = decimal.Min(o.Amount.Div(price), held)
	default:
		qty = held
	}
	qty = qty.Truncate(model.QuantityScale)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: sell quantity rounds to zero", model.ErrInvalidParameter)
	}

	proceeds := qty.Mul(price)
	fee := proceeds.Mul(e.cfg.FeeRate)
	if err := e.ledger.Apply(
		ledger.Entry{Currency: p.Base, Delta: qty.Neg()},
		ledger.Entry{Currency: p.Quote, Delta: proceeds.Sub(fee)},
	); err != nil {
		return nil, err
	}

	matches, rest := e.book.Match(p.Symbol, qty, price)
	if rest.IsPositive() {
		e.log.Warn("sell exceeded open lots", "symbol", p.Symbol, "unmatched", rest.String())
	}

	t := model.Trade{
		ID:            e.cfg.NewID(),
		UserID:        e.cfg.UserID,
		Symbol:        p.Symbol,
		BaseCurrency:  p.Base,
		QuoteCurrency: p.Quote,
		Side:          model.SideSell,
		Price:         price,
		Quantity:      qty,
		Amount:        proceeds,
		Fee:           fee,
		Timestamp:     e.now(),
		IsSimulated:   e.simulated,
		Matches:       matches,
	}
	if len(matches) > 0 {
		var pl, cost decimal.Decimal
		for _, m := range matches {
			pl = pl.Add(m.ProfitLoss)
			cost = cost.Add(m.EntryPrice.Mul(m.Quantity))
			if m.LotClosed {
				if i, ok := e.buyIdx[m.LotID]; ok {
					e.trades[i].IsOpen = false
					delete(e.buyIdx, m.LotID)
				}
				if !e.simulated {
					metrics.OpenLots.Dec()
				}
			}
		}
		pct := pl.Div(cost).Mul(hundred).Round(4)
		t.ProfitLoss = &pl
		t.ProfitLossPct = &pct
		t.MatchedPosition = matches[len(matches)-1].LotID
	}

	e.trades = append(e.trades, t)
	e.marks[p.Symbol] = price
	e.recordEquity(t.Timestamp)
	e.filled(t)
	return &t, nil
}

func (e *Engine) filled(t model.Trade) {
	metrics.TradesTotal.WithLabelValues(string(t.Side), strconv.FormatBool(t.IsSimulated)).Inc()
	e.log.Info("trade executed",
		"trade_id", t.ID,
		"user", t.UserID,
		"symbol", t.Symbol,
		"side", string(t.Side),
		"qty", t.Quantity.String(),
		"price", t.Price.String(),
		"fee", t.Fee.String(),
		"simulated", t.IsSimulated,
	)
	if e.recorder == nil || e.simulated {
		return
	}
	prev := e.recorded
	done := make(chan struct{})
	e.recorded = done
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.recorder.Record(ctx, t); err != nil {
			e.log.Error("trade persistence failed", "trade_id", t.ID, "err", err)
		}
	}()
}

// Wait blocks until in-flight Recorder calls finish.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) reject(side model.Side, sym string, err error) {
	reason := RejectionReason(err)
	metrics.TradeRejections.WithLabelValues(string(side), reason).Inc()
	e.log.Warn("trade rejected", "side", string(side), "symbol", sym, "reason", reason, "err", err)
}

// RejectionReason classifies an execution error for metrics and API
// responses.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, model.ErrNoMarketData):
		return "no_market_data"
	case errors.Is(err, model.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, risk.ErrMaxPositionsExceeded),
		errors.Is(err, risk.ErrPerSymbolLimitExceeded):
		return "position_limit"
	default:
		return "error"
	}
}

// exposures is the open cost basis per symbol.
func (e *Engine) exposures() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, p := range e.book.Positions() {
		out[p.Symbol] = p.CostBasis
	}
	return out
}

func (e *Engine) openLots() int {
	n := 0
	for _, s := range e.book.Symbols() {
		n += len(e.book.Lots(s))
	}
	return n
}

// priceOf values one unit of currency in the quote currency.
func (e *Engine) priceOf(ctx context.Context, currency string) (decimal.Decimal, error) {
	sym := currency + e.cfg.QuoteCurrency
	if e.simulated {
		if p, ok := e.marks[sym]; ok {
			return p, nil
		}
		return decimal.Zero, fmt.Errorf("%w: no bar for %s", model.ErrNoMarketData, sym)
	}
	return e.resolvePrice(ctx, sym, decimal.Zero)
}

// markOf values at the last seen price without touching market data.
func (e *Engine) markOf(_ context.Context, currency string) (decimal.Decimal, error) {
	p, ok := e.marks[currency+e.cfg.QuoteCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no mark for %s", model.ErrNoMarketData, currency)
	}
	return p, nil
}

func (e *Engine) recordEquity(at time.Time) {
	v := e.ledger.Valuate(context.Background(), e.cfg.QuoteCurrency, e.cfg.StartingCapital, e.markOf)
	e.equity = append(e.equity, equityPoint{at: at, value: v.Total})
}

// Balance values the portfolio in the quote currency. Live engines price
// through market data; after a backtest the last simulated closes are used.
func (e *Engine) Balance(ctx context.Context) model.PortfolioValue {
	return e.ledger.Valuate(ctx, e.cfg.QuoteCurrency, e.cfg.StartingCapital, e.priceOf)
}

// OpenPositions summarises open lots per symbol, marked to the current
// price where one is available.
func (e *Engine) OpenPositions(ctx context.Context) []model.Position {
	positions := e.book.Positions()
	for i := range positions {
		p := &positions[i]
		pair, err := symbol.Parse(p.Symbol, e.cfg.QuoteCurrency)
		if err != nil {
			continue
		}
		price, err := e.priceOf(ctx, pair.Base)
		if err != nil {
			e.log.Warn("position left unmarked", "symbol", p.Symbol, "err", err)
			continue
		}
		position.Mark(p, price)
	}
	return positions
}

// Position returns the open position in sym, if any.
func (e *Engine) Position(sym string) (model.Position, bool) {
	return e.book.Summary(sym)
}

// Trades returns a copy of the full trade history, oldest first.
func (e *Engine) Trades() []model.Trade {
	out := make([]model.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// State returns the backtest lifecycle state.
func (e *Engine) State() model.SimulationState { return e.state }
