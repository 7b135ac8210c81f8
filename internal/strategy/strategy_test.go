package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/indicator"
	"github.com/atmx/paper-engine/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// oneBar builds a frame of identical bars, long enough to be warmed up,
// with every indicator defined and the given sub-signals on each bar.
func oneBar(close string, ema, rsi, vwap int) *indicator.Frame {
	cfg := indicator.DefaultConfig()
	n := cfg.LongestPeriod()
	f := &indicator.Frame{Config: cfg}
	for i := 0; i < n; i++ {
		f.Bars = append(f.Bars, model.PriceBar{Symbol: "BTCUSDT", Timestamp: t0.Add(time.Duration(i) * time.Hour), Close: d(close)})
		f.Close = append(f.Close, d(close).InexactFloat64())
		f.EMAShort = append(f.EMAShort, 1)
		f.EMALong = append(f.EMALong, 1)
		f.RSI = append(f.RSI, 50)
		f.VWAP = append(f.VWAP, 1)
		f.VWAPDeviation = append(f.VWAPDeviation, 0)
		f.VWAPAbove = append(f.VWAPAbove, false)
		f.VWAPBelow = append(f.VWAPBelow, false)
		f.EMASignal = append(f.EMASignal, ema)
		f.RSISignal = append(f.RSISignal, rsi)
		f.VWAPSignal = append(f.VWAPSignal, vwap)
		f.Combined = append(f.Combined, 0)
		f.Signal = append(f.Signal, 0)
	}
	return f
}

func newStrategy(t *testing.T, level int) *Strategy {
	t.Helper()
	s, err := New(level, WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)
	return s
}

func TestParametersFor(t *testing.T) {
	p, err := ParametersFor(3)
	require.NoError(t, err)
	assert.True(t, p.SignalThreshold.Equal(d("0.5")))
	assert.True(t, p.PositionSize.Equal(d("0.2")))
	assert.Equal(t, 5, p.MaxPositions)

	_, err = ParametersFor(0)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = ParametersFor(6)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestNew_RejectsBadIndicatorConfig(t *testing.T) {
	cfg := indicator.DefaultConfig()
	cfg.EMAShort = 50
	_, err := New(3, WithIndicatorConfig(cfg))
	assert.ErrorIs(t, err, indicator.ErrInvalidConfig)
}

func TestScore_Weighted(t *testing.T) {
	s := newStrategy(t, 3)
	assert.True(t, s.Score(oneBar("100", 1, 0, 0), 0).Equal(d("0.4")))
	assert.True(t, s.Score(oneBar("100", 1, 1, 0), 0).Equal(d("0.7")))
	assert.True(t, s.Score(oneBar("100", -1, 0, -1), 0).Equal(d("-0.7")))
	assert.True(t, s.Score(oneBar("100", 1, -1, 0), 0).Equal(d("0.1")))
}

func TestScore_OnlyEnabledIndicators(t *testing.T) {
	s := newStrategy(t, 3)
	f := oneBar("100", 1, -1, -1)
	f.Config.UseRSI, f.Config.UseVWAP = false, false
	assert.True(t, s.Score(f, 0).Equal(d("1")))
}

func TestLabel(t *testing.T) {
	th := d("0.5")
	assert.Equal(t, LabelStrongBuy, Label(d("0.75"), th))
	assert.Equal(t, LabelBuy, Label(d("0.5"), th))
	assert.Equal(t, LabelHold, Label(d("0.1"), th))
	assert.Equal(t, LabelSell, Label(d("-0.6"), th))
	assert.Equal(t, LabelStrongSell, Label(d("-1"), th))
}

func TestRecommend_Buy(t *testing.T) {
	s := newStrategy(t, 3)
	rec := s.Recommend("BTCUSDT", oneBar("50000", 1, 1, 0), d("10000"), nil)

	buy, ok := rec.(BuyRecommendation)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, ActionBuy, buy.Action())
	assert.True(t, buy.Amount.Equal(d("2000")))
	assert.True(t, buy.Quantity.Equal(d("0.04")))
	assert.True(t, buy.StopLoss.Equal(d("47500")))
	assert.True(t, buy.TakeProfit.Equal(d("55000")))
	assert.Equal(t, t0, buy.Timestamp)
}

func TestRecommend_HoldBelowThreshold(t *testing.T) {
	s := newStrategy(t, 3)
	rec := s.Recommend("BTCUSDT", oneBar("50000", 1, 0, 0), d("10000"), nil)
	assert.Equal(t, ActionHold, rec.Action())

	// A looser risk level acts on the same score.
	loose := newStrategy(t, 5)
	rec = loose.Recommend("BTCUSDT", oneBar("50000", 1, 0, 0), d("10000"), nil)
	assert.Equal(t, ActionBuy, rec.Action())
}

func TestRecommend_HoldWithoutCapital(t *testing.T) {
	s := newStrategy(t, 3)
	rec := s.Recommend("BTCUSDT", oneBar("50000", 1, 1, 1), decimal.Zero, nil)
	hold, ok := rec.(HoldRecommendation)
	require.True(t, ok)
	assert.Equal(t, "no capital available", hold.Reason)
}

func TestRecommend_HoldWhenIndicatorsUndefined(t *testing.T) {
	s := newStrategy(t, 3)
	f := indicator.Compute([]model.PriceBar{{Timestamp: t0, High: d("1"), Low: d("1"), Close: d("1"), Volume: d("1")}}, s.IndicatorConfig())
	rec := s.Recommend("BTCUSDT", f, d("10000"), nil)
	hold, ok := rec.(HoldRecommendation)
	require.True(t, ok)
	assert.Equal(t, "indicators not ready", hold.Reason)
}

func TestRecommend_HoldDuringEMAWarmUp(t *testing.T) {
	cfg := indicator.DefaultConfig()
	cfg.UseRSI, cfg.UseVWAP = false, false
	s, err := New(3, WithClock(func() time.Time { return t0 }), WithIndicatorConfig(cfg))
	require.NoError(t, err)

	bars := make([]model.PriceBar, cfg.EMALong)
	for i := range bars {
		p := decimal.NewFromInt(int64(100 + 5*i))
		bars[i] = model.PriceBar{Timestamp: t0.Add(time.Duration(i) * time.Hour), High: p, Low: p, Close: p, Volume: d("1")}
	}

	// EMA values exist from the first bar but the long average has not
	// seen EMALong samples yet.
	f := indicator.Compute(bars[:10], cfg)
	require.True(t, indicator.Defined(f.EMALong[f.Last()]))
	rec := s.Recommend("BTCUSDT", f, d("10000"), nil)
	hold, ok := rec.(HoldRecommendation)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, "indicators not ready", hold.Reason)

	rec = s.Recommend("BTCUSDT", indicator.Compute(bars, cfg), d("10000"), nil)
	if hold, ok := rec.(HoldRecommendation); ok {
		assert.NotEqual(t, "indicators not ready", hold.Reason)
	}
}

func TestRecommend_EmptyFrame(t *testing.T) {
	s := newStrategy(t, 3)
	rec := s.Recommend("BTCUSDT", indicator.Compute(nil, s.IndicatorConfig()), d("10000"), nil)
	assert.Equal(t, ActionHold, rec.Action())
}

func TestRecommend_SellOnSignal(t *testing.T) {
	s := newStrategy(t, 3)
	pos := &model.Position{Symbol: "BTCUSDT", Quantity: d("0.5"), AvgPrice: d("100")}
	rec := s.Recommend("BTCUSDT", oneBar("102", -1, -1, 0), d("10000"), pos)

	sell, ok := rec.(SellRecommendation)
	require.True(t, ok, "got %T", rec)
	assert.True(t, sell.Quantity.Equal(d("0.5")))
	assert.True(t, sell.ProfitLoss.Equal(d("1")))
	assert.True(t, sell.ProfitLossPct.Equal(d("2")))
}

func TestRecommend_PriceDropAloneDoesNotSell(t *testing.T) {
	s := newStrategy(t, 3)
	pos := &model.Position{Symbol: "BTCUSDT", Quantity: d("1"), AvgPrice: d("100")}
	rec := s.Recommend("BTCUSDT", oneBar("94", 0, 0, 0), d("10000"), pos)
	assert.Equal(t, ActionHold, rec.Action())

	closeIt, why := s.ShouldClose(pos.AvgPrice, d("94"))
	assert.True(t, closeIt)
	assert.Contains(t, why, "stop-loss")
}

func TestRecommend_HoldsOpenPosition(t *testing.T) {
	s := newStrategy(t, 3)
	pos := &model.Position{Symbol: "BTCUSDT", Quantity: d("1"), AvgPrice: d("100")}
	rec := s.Recommend("BTCUSDT", oneBar("101", 1, 1, 1), d("10000"), pos)
	assert.Equal(t, ActionHold, rec.Action(), "no pyramiding into an open position")
}

func TestShouldClose(t *testing.T) {
	s := newStrategy(t, 3)
	closeIt, _ := s.ShouldClose(d("100"), d("95"))
	assert.True(t, closeIt)
	closeIt, _ = s.ShouldClose(d("100"), d("110"))
	assert.True(t, closeIt)
	closeIt, _ = s.ShouldClose(d("100"), d("104"))
	assert.False(t, closeIt)
	closeIt, _ = s.ShouldClose(decimal.Zero, d("104"))
	assert.False(t, closeIt)
}

func TestPositionSize(t *testing.T) {
	s := newStrategy(t, 1)
	assert.True(t, s.PositionSize(d("5000")).Equal(d("500")))
	assert.True(t, s.PositionSize(d("-1")).IsZero())
}

func TestAnalyze(t *testing.T) {
	s := newStrategy(t, 3)
	bars := make([]model.PriceBar, 30)
	for i := range bars {
		p := decimal.NewFromInt(int64(100 + i))
		bars[i] = model.PriceBar{Timestamp: t0.Add(time.Duration(i) * time.Hour), High: p, Low: p, Close: p, Volume: d("1")}
	}
	f, a := s.Analyze("BTCUSDT", bars)
	assert.Equal(t, 30, f.Len())
	assert.Equal(t, "BTCUSDT", a.Symbol)
	assert.Equal(t, 3, a.RiskLevel)
	assert.Equal(t, "bullish", a.Summary.EMAStatus)
	assert.NotEmpty(t, a.Label)
}
