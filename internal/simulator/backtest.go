package simulator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/atmx/paper-engine/internal/indicator"
	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/strategy"
	"github.com/atmx/paper-engine/internal/symbol"
)

const day = 24 * time.Hour

// RunSimulation resets the portfolio to its starting capital and steps a
// simulated clock one day at a time from now-days to now inclusive. On each
// step every symbol with at least MinBars bars at or before the step is
// evaluated in list order and its recommendation executed. Per-symbol
// errors are logged and counted as rejections; the loop carries on.
//
// Cancelling ctx stops the loop between days. The partial summary is then
// returned in state CANCELLED together with ctx.Err().
func (e *Engine) RunSimulation(ctx context.Context, symbols []string, days int, interval string) (*model.SimulationSummary, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1, got %d", model.ErrInvalidParameter, days)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", model.ErrInvalidParameter)
	}
	perDay, err := symbol.BarsFor(interval, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidParameter, err)
	}
	for _, s := range symbols {
		if _, err := e.pair(s); err != nil {
			return nil, err
		}
	}
	if e.data == nil {
		return nil, fmt.Errorf("%w: no market data source", model.ErrNoMarketData)
	}

	wallStart := time.Now()
	if !e.simulated {
		metrics.OpenLots.Sub(float64(e.openLots()))
	}
	e.simulated = true
	e.simNow = time.Time{}
	if err := e.reset(); err != nil {
		return nil, err
	}
	e.state = model.StateInitialized

	end := e.cfg.Now()
	start := end.Add(-time.Duration(days) * day)
	limit := perDay*days + e.cfg.MinBars
	e.started = start
	e.equity[0].at = start

	history := make(map[string][]model.PriceBar, len(symbols))
	for _, s := range symbols {
		bars, err := e.data.Bars(ctx, s, interval, limit)
		if err != nil {
			e.log.Error("historical data unavailable", "symbol", s, "err", err)
			continue
		}
		if len(bars) == 0 {
			e.log.Warn("no historical data", "symbol", s)
			continue
		}
		sorted := make([]model.PriceBar, len(bars))
		copy(sorted, bars)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		history[s] = sorted
	}

	e.state = model.StateRunning
	e.log.Info("simulation started",
		"symbols", symbols, "days", days, "interval", interval,
		"risk_level", e.cfg.RiskLevel, "capital", e.cfg.StartingCapital.String())

	var daily []model.DailyResult
	var runErr error
	for step := start; !step.After(end); step = step.Add(day) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e.simNow = step
		before := len(e.trades)
		rejections := 0

		for _, s := range symbols {
			bars, ok := history[s]
			if !ok {
				continue
			}
			n := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(step) })
			if n == 0 {
				continue
			}
			window := bars[:n]
			e.marks[s] = window[n-1].Close
			if n < e.cfg.MinBars {
				continue
			}
			if err := e.evaluate(ctx, s, window); err != nil {
				rejections++
				e.log.Warn("simulation step failed", "symbol", s, "date", step.Format(time.DateOnly), "err", err)
			}
		}

		v := e.Balance(ctx)
		e.equity = append(e.equity, equityPoint{at: step, value: v.Total})
		daily = append(daily, model.DailyResult{
			Date:       step.Format(time.DateOnly),
			Balance:    v.Total,
			Trades:     len(e.trades) - before,
			Rejections: rejections,
		})
	}

	if runErr != nil {
		e.state = model.StateCancelled
	} else {
		e.state = model.StateCompleted
	}
	sum := e.summary(ctx, symbols, days, interval, daily)
	metrics.SimulationsTotal.WithLabelValues(string(e.state)).Inc()
	metrics.SimulationDuration.Observe(time.Since(wallStart).Seconds())
	e.log.Info("simulation finished",
		"id", sum.ID, "state", string(e.state), "trades", sum.TotalTrades,
		"final_balance", sum.FinalBalance.String(), "profit_loss", sum.ProfitLoss.String())
	return sum, runErr
}

// evaluate runs the strategy over one symbol's window and executes the
// result.
func (e *Engine) evaluate(ctx context.Context, sym string, window []model.PriceBar) error {
	price := window[len(window)-1].Close
	pos, open := e.book.Summary(sym)

	if e.cfg.ApplyExitRules && open {
		if closeIt, why := e.strat.ShouldClose(pos.AvgPrice, price); closeIt {
			e.log.Info("exit rule triggered", "symbol", sym, "reason", why)
			_, err := e.ExecuteSell(ctx, SellOrder{Symbol: sym, Quantity: pos.Quantity, Price: price})
			return err
		}
	}

	f := indicator.Compute(window, e.strat.IndicatorConfig())
	var current *model.Position
	if open {
		current = &pos
	}
	rec := e.strat.Recommend(sym, f, e.ledger.Balance(e.cfg.QuoteCurrency), current)

	switch r := rec.(type) {
	case strategy.BuyRecommendation:
		_, err := e.ExecuteBuy(ctx, BuyOrder{Symbol: sym, Amount: r.Amount, Price: r.Price})
		return err
	case strategy.SellRecommendation:
		_, err := e.ExecuteSell(ctx, SellOrder{Symbol: sym, Quantity: r.Quantity, Price: r.Price})
		return err
	case strategy.HoldRecommendation:
		return nil
	default:
		return fmt.Errorf("unknown recommendation %T", rec)
	}
}

func (e *Engine) summary(ctx context.Context, symbols []string, days int, interval string, daily []model.DailyResult) *model.SimulationSummary {
	perf := e.Performance(ctx)
	v := e.Balance(ctx)

	head := e.trades
	if len(head) > e.cfg.SummaryTradeLimit {
		head = head[:e.cfg.SummaryTradeLimit]
	}
	trades := make([]model.Trade, len(head))
	copy(trades, head)
	if daily == nil {
		daily = []model.DailyResult{}
	}

	return &model.SimulationSummary{
		ID:             e.cfg.NewID(),
		State:          e.state,
		Symbols:        append([]string(nil), symbols...),
		Days:           days,
		Interval:       interval,
		RiskLevel:      e.cfg.RiskLevel,
		InitialBalance: e.cfg.StartingCapital,
		FinalBalance:   v.Total,
		ProfitLoss:     v.ProfitLoss,
		ProfitLossPct:  v.ProfitLossPct,
		TotalTrades:    len(e.trades),
		WinCount:       perf.WinCount,
		LossCount:      perf.LossCount,
		WinRate:        perf.WinRate,
		DailyResults:   daily,
		Trades:         trades,
		Performance:    perf,
		StartedAt:      e.started,
		FinishedAt:     e.cfg.Now(),
	}
}
