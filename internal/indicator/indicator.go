// Package indicator computes technical indicators and per-bar trading
// signals over an ordered PriceBar series.
//
// Indicator math runs on float64 internally, the same way the pricing code
// converts decimals at the edge; indicator values are never used as money.
// Undefined values (warm-up windows, zero volume) are NaN; check them with
// Defined before acting on them.
package indicator

import (
	"errors"
	"fmt"
	"math"
)

// Default indicator configuration.
const (
	DefaultEMAShort      = 7
	DefaultEMALong       = 21
	DefaultRSIPeriod     = 14
	DefaultRSIOversold   = 30.0
	DefaultRSIOverbought = 70.0
	DefaultVWAPDeviation = 3.0
)

var ErrInvalidConfig = errors.New("indicator: invalid configuration")

// Config selects indicator periods, thresholds and which sub-signals feed
// the combined signal.
type Config struct {
	EMAShort      int     `json:"ema_short"`
	EMALong       int     `json:"ema_long"`
	RSIPeriod     int     `json:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	VWAPDeviation float64 `json:"vwap_deviation"` // percent

	UseEMA  bool `json:"use_ema"`
	UseRSI  bool `json:"use_rsi"`
	UseVWAP bool `json:"use_vwap"`
}

// DefaultConfig returns EMA 7/21, RSI 14 (30/70) and a 3% VWAP band with
// every sub-signal enabled.
func DefaultConfig() Config {
	return Config{
		EMAShort:      DefaultEMAShort,
		EMALong:       DefaultEMALong,
		RSIPeriod:     DefaultRSIPeriod,
		RSIOversold:   DefaultRSIOversold,
		RSIOverbought: DefaultRSIOverbought,
		VWAPDeviation: DefaultVWAPDeviation,
		UseEMA:        true,
		UseRSI:        true,
		UseVWAP:       true,
	}
}

// Validate checks periods and thresholds.
func (c Config) Validate() error {
	switch {
	case c.EMAShort < 1 || c.EMALong < 1:
		return fmt.Errorf("%w: EMA periods must be positive", ErrInvalidConfig)
	case c.EMAShort >= c.EMALong:
		return fmt.Errorf("%w: short EMA period %d must be below long period %d", ErrInvalidConfig, c.EMAShort, c.EMALong)
	case c.RSIPeriod < 1:
		return fmt.Errorf("%w: RSI period must be positive", ErrInvalidConfig)
	case c.RSIOversold < 0 || c.RSIOverbought > 100 || c.RSIOversold >= c.RSIOverbought:
		return fmt.Errorf("%w: RSI bounds %.1f/%.1f", ErrInvalidConfig, c.RSIOversold, c.RSIOverbought)
	case c.VWAPDeviation <= 0:
		return fmt.Errorf("%w: VWAP deviation must be positive", ErrInvalidConfig)
	}
	return nil
}

// LongestPeriod is the amount of history needed before every indicator is
// defined.
func (c Config) LongestPeriod() int {
	n := c.EMALong
	if c.RSIPeriod+1 > n {
		n = c.RSIPeriod + 1
	}
	return n
}

// WarmedUp reports whether bar i has seen at least EMALong samples. EMA
// values are defined from the first bar, so this is the gate for trusting
// the crossover signal.
func (c Config) WarmedUp(i int) bool {
	return !c.UseEMA || i+1 >= c.EMALong
}

// Defined reports whether an indicator value is usable.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EMA computes an exponential moving average with smoothing factor
// 2/(period+1), seeded by the first sample. Every value is defined, so
// early values are biased toward the first price; see Config.WarmedUp.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || period < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMAPair computes the short and long EMA over the same series.
func EMAPair(values []float64, shortPeriod, longPeriod int) (short, long []float64) {
	return EMA(values, shortPeriod), EMA(values, longPeriod)
}

// RSI computes the relative strength index using a simple rolling mean of
// gains and losses over the trailing period price changes (not Wilder's
// smoothing). The first period values are NaN. When the average loss is
// zero the RSI is 100.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(values); i++ {
		var sumGain, sumLoss float64
		for j := i - period + 1; j <= i; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		avgGain := sumGain / float64(period)
		avgLoss := sumLoss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
