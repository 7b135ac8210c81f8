package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/indicator"
	"github.com/atmx/paper-engine/internal/model"
)

// Score labels.
const (
	LabelStrongBuy  = "STRONG BUY"
	LabelBuy        = "BUY"
	LabelHold       = "HOLD"
	LabelSell       = "SELL"
	LabelStrongSell = "STRONG SELL"
)

var (
	hundred      = decimal.NewFromInt(100)
	strongFactor = decimal.RequireFromString("1.5")
)

// Strategy turns indicator frames into recommendations for one risk level.
// It holds no mutable state and is safe for concurrent use.
type Strategy struct {
	params Parameters
	cfg    indicator.Config
	now    func() time.Time
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithIndicatorConfig overrides the default indicator periods and bounds.
func WithIndicatorConfig(cfg indicator.Config) Option {
	return func(s *Strategy) { s.cfg = cfg }
}

// WithClock sets the clock used to stamp recommendations.
func WithClock(now func() time.Time) Option {
	return func(s *Strategy) { s.now = now }
}

// New returns a strategy for the given risk level.
func New(riskLevel int, opts ...Option) (*Strategy, error) {
	p, err := ParametersFor(riskLevel)
	if err != nil {
		return nil, err
	}
	s := &Strategy{
		params: p,
		cfg:    indicator.DefaultConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Params returns the risk parameters in effect.
func (s *Strategy) Params() Parameters { return s.params }

// RiskLevel returns the configured risk level.
func (s *Strategy) RiskLevel() int { return s.params.RiskLevel }

// IndicatorConfig returns the indicator configuration in effect.
func (s *Strategy) IndicatorConfig() indicator.Config { return s.cfg }

// Analysis is the market view of one symbol at its latest bar.
type Analysis struct {
	Symbol    string            `json:"symbol"`
	Summary   indicator.Summary `json:"summary"`
	Score     decimal.Decimal   `json:"score"`
	Label     string            `json:"label"`
	Alerts    []indicator.Alert `json:"alerts"`
	RiskLevel int               `json:"risk_level"`
}

// Analyze computes a frame over bars and summarises its latest bar.
func (s *Strategy) Analyze(symbol string, bars []model.PriceBar) (*indicator.Frame, Analysis) {
	f := indicator.Compute(bars, s.cfg)
	a := Analysis{Symbol: symbol, RiskLevel: s.params.RiskLevel, Label: LabelHold}
	sum, ok := indicator.Analyze(f)
	if !ok {
		return f, a
	}
	a.Summary = sum
	a.Score = s.Score(f, f.Last())
	a.Label = Label(a.Score, s.params.SignalThreshold)
	a.Alerts = indicator.Alerts(f)
	return f, a
}

// Score is the weighted sum of the enabled sub-signals at bar i, normalised
// by the total enabled weight so it always lies in [-1, 1].
func (s *Strategy) Score(f *indicator.Frame, i int) decimal.Decimal {
	if i < 0 || i >= f.Len() {
		return decimal.Zero
	}
	var sum, weights decimal.Decimal
	add := func(enabled bool, signal int, w decimal.Decimal) {
		if !enabled {
			return
		}
		sum = sum.Add(w.Mul(decimal.NewFromInt(int64(signal))))
		weights = weights.Add(w)
	}
	add(f.Config.UseEMA, f.EMASignal[i], s.params.EMAWeight)
	add(f.Config.UseRSI, f.RSISignal[i], s.params.RSIWeight)
	add(f.Config.UseVWAP, f.VWAPSignal[i], s.params.VWAPWeight)
	if weights.IsZero() {
		return decimal.Zero
	}
	return sum.Div(weights).Round(4)
}

// Label names a score relative to the threshold. A score at or beyond 1.5x
// the threshold is "strong".
func Label(score, threshold decimal.Decimal) string {
	strong := threshold.Mul(strongFactor)
	switch {
	case score.GreaterThanOrEqual(strong):
		return LabelStrongBuy
	case score.GreaterThanOrEqual(threshold):
		return LabelBuy
	case score.LessThanOrEqual(strong.Neg()):
		return LabelStrongSell
	case score.LessThanOrEqual(threshold.Neg()):
		return LabelSell
	default:
		return LabelHold
	}
}

// PositionSize is the quote amount to commit out of capital.
func (s *Strategy) PositionSize(capital decimal.Decimal) decimal.Decimal {
	if !capital.IsPositive() {
		return decimal.Zero
	}
	return capital.Mul(s.params.PositionSize).Truncate(model.QuantityScale)
}

// StopLossPrice is the exit price below entry.
func (s *Strategy) StopLossPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Sub(s.params.StopLoss))
}

// TakeProfitPrice is the exit price above entry.
func (s *Strategy) TakeProfitPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Add(s.params.TakeProfit))
}

// ShouldClose reports whether current has hit the stop-loss or take-profit
// level for a position entered at entry.
func (s *Strategy) ShouldClose(entry, current decimal.Decimal) (bool, string) {
	if !entry.IsPositive() {
		return false, ""
	}
	if current.LessThanOrEqual(s.StopLossPrice(entry)) {
		return true, fmt.Sprintf("stop-loss hit at %s (entry %s)", current, entry)
	}
	if current.GreaterThanOrEqual(s.TakeProfitPrice(entry)) {
		return true, fmt.Sprintf("take-profit hit at %s (entry %s)", current, entry)
	}
	return false, ""
}

// ready reports whether every enabled indicator is defined at bar i and
// the long EMA has had EMALong bars to settle.
func ready(f *indicator.Frame, i int) bool {
	cfg := f.Config
	if !cfg.WarmedUp(i) {
		return false
	}
	if cfg.UseEMA && !(indicator.Defined(f.EMAShort[i]) && indicator.Defined(f.EMALong[i])) {
		return false
	}
	if cfg.UseRSI && !indicator.Defined(f.RSI[i]) {
		return false
	}
	if cfg.UseVWAP && !indicator.Defined(f.VWAPDeviation[i]) {
		return false
	}
	return true
}

// Recommend decides what to do with symbol at the latest bar of f. current
// is the open position in symbol, or nil. An open position is closed on a
// sell score; a new one is opened on a buy score when capital is available.
// Stop-loss and take-profit exits are left to the caller via ShouldClose.
func (s *Strategy) Recommend(symbol string, f *indicator.Frame, availableCapital decimal.Decimal, current *model.Position) Recommendation {
	ts := s.now()
	i := f.Last()
	if i < 0 {
		return HoldRecommendation{Symbol: symbol, Reason: "no market data", Timestamp: ts}
	}
	price := f.Bars[i].Close
	hold := HoldRecommendation{Symbol: symbol, Price: price, Timestamp: ts}
	if !ready(f, i) {
		hold.Reason = "indicators not ready"
		return hold
	}

	score := s.Score(f, i)
	hold.Score = score
	threshold := s.params.SignalThreshold
	label := Label(score, threshold)

	if current != nil && current.Quantity.IsPositive() {
		if score.GreaterThan(threshold.Neg()) {
			hold.Reason = "holding open position"
			return hold
		}
		pl := price.Sub(current.AvgPrice).Mul(current.Quantity)
		var pct decimal.Decimal
		if current.AvgPrice.IsPositive() {
			pct = price.Sub(current.AvgPrice).Div(current.AvgPrice).Mul(hundred).Round(4)
		}
		return SellRecommendation{
			Symbol:        symbol,
			Price:         price,
			Quantity:      current.Quantity,
			Amount:        current.Quantity.Mul(price),
			ProfitLoss:    pl,
			ProfitLossPct: pct,
			Score:         score,
			Reason:        fmt.Sprintf("%s signal (score %s)", label, score.StringFixed(2)),
			Timestamp:     ts,
		}
	}

	if score.LessThan(threshold) {
		hold.Reason = fmt.Sprintf("%s (score %s)", label, score.StringFixed(2))
		return hold
	}
	amount := s.PositionSize(availableCapital)
	if !amount.IsPositive() || !price.IsPositive() {
		hold.Reason = "no capital available"
		return hold
	}
	return BuyRecommendation{
		Symbol:     symbol,
		Price:      price,
		Amount:     amount,
		Quantity:   amount.Div(price).Truncate(model.QuantityScale),
		StopLoss:   s.StopLossPrice(price),
		TakeProfit: s.TakeProfitPrice(price),
		Score:      score,
		Reason:     fmt.Sprintf("%s signal (score %s)", label, score.StringFixed(2)),
		RiskLevel:  s.params.RiskLevel,
		Timestamp:  ts,
	}
}
