package simulator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// Performance recomputes the performance snapshot from the trade history,
// the equity curve and a fresh valuation. Each matched lot portion counts
// as one win (P/L > 0) or one loss (P/L <= 0).
func (e *Engine) Performance(ctx context.Context) model.PerformanceSnapshot {
	current := e.Balance(ctx).Total
	start := e.cfg.StartingCapital

	s := model.PerformanceSnapshot{
		StartingBalance: start,
		CurrentBalance:  current,
		TotalTrades:     len(e.trades),
		StartTime:       e.started,
		Duration:        e.now().Sub(e.started),
	}
	s.TotalProfitLoss = current.Sub(start)
	if start.IsPositive() {
		s.TotalProfitLossPct = s.TotalProfitLoss.Div(start).Mul(hundred).Round(4)
	}

	var winSum, lossSum decimal.Decimal
	for _, t := range e.trades {
		s.TotalFees = s.TotalFees.Add(t.Fee)
		for _, m := range t.Matches {
			s.RealizedProfitLoss = s.RealizedProfitLoss.Add(m.ProfitLoss)
			if m.ProfitLoss.IsPositive() {
				s.WinCount++
				winSum = winSum.Add(m.ProfitLoss)
				s.LargestWin = decimal.Max(s.LargestWin, m.ProfitLoss)
			} else {
				s.LossCount++
				lossSum = lossSum.Add(m.ProfitLoss)
				s.LargestLoss = decimal.Min(s.LargestLoss, m.ProfitLoss)
			}
		}
	}
	if n := s.WinCount + s.LossCount; n > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinCount)).Div(decimal.NewFromInt(int64(n))).Mul(hundred).Round(2)
	}
	if s.WinCount > 0 {
		s.AverageWin = winSum.Div(decimal.NewFromInt(int64(s.WinCount))).Round(8)
	}
	if s.LossCount > 0 {
		s.AverageLoss = lossSum.Div(decimal.NewFromInt(int64(s.LossCount))).Round(8)
	}

	s.PeakBalance, s.MaxDrawdown = drawdownCurve(e.equity, current)
	if s.PeakBalance.IsPositive() {
		s.Drawdown = s.PeakBalance.Sub(current).Div(s.PeakBalance).Mul(hundred).Round(4)
	}
	return s
}

// drawdownCurve walks the equity curve followed by the current value and
// returns the running peak and the largest percentage decline from it.
func drawdownCurve(curve []equityPoint, current decimal.Decimal) (peak, maxDD decimal.Decimal) {
	step := func(v decimal.Decimal) {
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.IsPositive() {
			dd := peak.Sub(v).Div(peak).Mul(hundred).Round(4)
			maxDD = decimal.Max(maxDD, dd)
		}
	}
	for _, p := range curve {
		step(p.value)
	}
	step(current)
	return peak, maxDD
}
