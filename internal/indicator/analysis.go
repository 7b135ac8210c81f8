package indicator

import (
	"fmt"
	"math"
)

// Summary describes the latest bar of a frame.
type Summary struct {
	LatestClose    float64 `json:"latest_close"`
	LatestEMAShort float64 `json:"latest_ema_short"`
	LatestEMALong  float64 `json:"latest_ema_long"`
	LatestRSI      float64 `json:"latest_rsi"`
	LatestVWAP     float64 `json:"latest_vwap"`
	VWAPDeviation  float64 `json:"vwap_deviation"`
	LatestSignal   int     `json:"latest_signal"`
	RSIStatus      string  `json:"rsi_status"`
	EMAStatus      string  `json:"ema_status"`
	VWAPStatus     string  `json:"vwap_status"`
	Ready          bool    `json:"ready"` // every enabled indicator defined and warmed up on the latest bar
}

// Analyze summarises the latest bar of f. ok is false for an empty frame.
func Analyze(f *Frame) (Summary, bool) {
	i := f.Last()
	if i < 0 {
		return Summary{}, false
	}
	cfg := f.Config
	s := Summary{
		LatestClose:    f.Close[i],
		LatestEMAShort: f.EMAShort[i],
		LatestEMALong:  f.EMALong[i],
		LatestRSI:      f.RSI[i],
		LatestVWAP:     f.VWAP[i],
		VWAPDeviation:  f.VWAPDeviation[i],
		LatestSignal:   f.Signal[i],
		RSIStatus:      "undefined",
		EMAStatus:      "bearish",
		VWAPStatus:     "undefined",
	}

	if Defined(s.LatestRSI) {
		switch {
		case s.LatestRSI < cfg.RSIOversold:
			s.RSIStatus = "oversold"
		case s.LatestRSI > cfg.RSIOverbought:
			s.RSIStatus = "overbought"
		default:
			s.RSIStatus = "neutral"
		}
	}
	if s.LatestEMAShort > s.LatestEMALong {
		s.EMAStatus = "bullish"
	}
	if Defined(s.VWAPDeviation) {
		switch {
		case f.VWAPAbove[i]:
			s.VWAPStatus = "above_threshold"
		case f.VWAPBelow[i]:
			s.VWAPStatus = "below_threshold"
		default:
			s.VWAPStatus = "neutral"
		}
	}
	s.Ready = cfg.WarmedUp(i) &&
		(!cfg.UseEMA || Defined(s.LatestEMAShort) && Defined(s.LatestEMALong)) &&
		(!cfg.UseRSI || Defined(s.LatestRSI)) &&
		(!cfg.UseVWAP || Defined(s.VWAPDeviation))
	return s, true
}

// Alert is a human readable condition raised on the latest bar.
type Alert struct {
	Type      string `json:"type"`
	Direction string `json:"direction"` // bullish or bearish
	Message   string `json:"message"`
}

// Alerts lists the signal events that fired on the latest bar of f.
func Alerts(f *Frame) []Alert {
	i := f.Last()
	if i < 0 {
		return nil
	}
	cfg := f.Config
	var alerts []Alert

	switch f.EMASignal[i] {
	case Buy:
		alerts = append(alerts, Alert{
			Type:      "ema_crossover",
			Direction: "bullish",
			Message:   fmt.Sprintf("Bullish EMA crossover: %d-period EMA crossed above %d-period EMA", cfg.EMAShort, cfg.EMALong),
		})
	case Sell:
		alerts = append(alerts, Alert{
			Type:      "ema_crossover",
			Direction: "bearish",
			Message:   fmt.Sprintf("Bearish EMA crossover: %d-period EMA crossed below %d-period EMA", cfg.EMAShort, cfg.EMALong),
		})
	}

	switch f.RSISignal[i] {
	case Buy:
		alerts = append(alerts, Alert{
			Type:      "rsi_oversold_exit",
			Direction: "bullish",
			Message:   fmt.Sprintf("RSI oversold exit: RSI crossed above %.0f", cfg.RSIOversold),
		})
	case Sell:
		alerts = append(alerts, Alert{
			Type:      "rsi_overbought_exit",
			Direction: "bearish",
			Message:   fmt.Sprintf("RSI overbought exit: RSI crossed below %.0f", cfg.RSIOverbought),
		})
	}

	switch f.VWAPSignal[i] {
	case Buy:
		alerts = append(alerts, Alert{
			Type:      "vwap_deviation",
			Direction: "bullish",
			Message:   fmt.Sprintf("Price below VWAP: %.2f%% below (threshold %.1f%%)", math.Abs(f.VWAPDeviation[i]), cfg.VWAPDeviation),
		})
	case Sell:
		alerts = append(alerts, Alert{
			Type:      "vwap_deviation",
			Direction: "bearish",
			Message:   fmt.Sprintf("Price above VWAP: %.2f%% above (threshold %.1f%%)", f.VWAPDeviation[i], cfg.VWAPDeviation),
		})
	}
	return alerts
}
