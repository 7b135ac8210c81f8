package indicator

import (
	"sort"

	"github.com/atmx/paper-engine/internal/model"
)

// Signal values.
const (
	Sell    = -1
	Neutral = 0
	Buy     = 1
)

// Frame is a bar series with its derived indicator and signal columns. A
// frame is immutable once computed; appending bars means computing a new
// frame over the whole window.
type Frame struct {
	Config Config
	Bars   []model.PriceBar

	Close         []float64
	EMAShort      []float64
	EMALong       []float64
	RSI           []float64
	VWAP          []float64
	VWAPDeviation []float64
	VWAPAbove     []bool
	VWAPBelow     []bool

	EMASignal  []int
	RSISignal  []int
	VWAPSignal []int
	Combined   []float64 // mean of enabled sub-signals
	Signal     []int     // Buy if Combined >= 0.5, Sell if <= -0.5
}

// Compute builds a frame over bars. The input is copied and stable-sorted
// by timestamp; it is never modified. Short series produce partial results
// with NaN warm-up values rather than an error.
func Compute(bars []model.PriceBar, cfg Config) *Frame {
	sorted := make([]model.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	closes := make([]float64, len(sorted))
	for i, b := range sorted {
		closes[i] = b.Close.InexactFloat64()
	}

	f := &Frame{
		Config: cfg,
		Bars:   sorted,
		Close:  closes,
	}
	f.EMAShort, f.EMALong = EMAPair(closes, cfg.EMAShort, cfg.EMALong)
	f.RSI = RSI(closes, cfg.RSIPeriod)

	v := VWAP(sorted, cfg.VWAPDeviation)
	f.VWAP = v.VWAP
	f.VWAPDeviation = v.Deviation
	f.VWAPAbove = v.Above
	f.VWAPBelow = v.Below

	GenerateSignals(f)
	return f
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int { return len(f.Bars) }

// Last returns the index of the latest bar, or -1 for an empty frame.
func (f *Frame) Last() int { return len(f.Bars) - 1 }

// GenerateSignals fills the discrete signal columns of f from its
// indicator columns.
//
//   - EMA: edge-triggered on "short > long" changing; Buy on the bar it
//     becomes true, Sell on the bar it becomes false.
//   - RSI: Buy when RSI crosses above the oversold bound, Sell when it
//     crosses below the overbought bound (Sell wins if both happen).
//   - VWAP: Buy on the bar the deviation drops below -threshold, Sell on
//     the bar it rises above +threshold.
//
// A crossing needs a defined value on both the previous and current bar.
func GenerateSignals(f *Frame) {
	n := len(f.Close)
	f.EMASignal = make([]int, n)
	f.RSISignal = make([]int, n)
	f.VWAPSignal = make([]int, n)
	f.Combined = make([]float64, n)
	f.Signal = make([]int, n)

	cfg := f.Config
	for i := 1; i < n; i++ {
		if Defined(f.EMAShort[i]) && Defined(f.EMALong[i]) &&
			Defined(f.EMAShort[i-1]) && Defined(f.EMALong[i-1]) {
			prevAbove := f.EMAShort[i-1] > f.EMALong[i-1]
			above := f.EMAShort[i] > f.EMALong[i]
			switch {
			case above && !prevAbove:
				f.EMASignal[i] = Buy
			case !above && prevAbove:
				f.EMASignal[i] = Sell
			}
		}

		if Defined(f.RSI[i]) && Defined(f.RSI[i-1]) {
			if f.RSI[i] > cfg.RSIOversold && !(f.RSI[i-1] > cfg.RSIOversold) {
				f.RSISignal[i] = Buy
			}
			if f.RSI[i] < cfg.RSIOverbought && !(f.RSI[i-1] < cfg.RSIOverbought) {
				f.RSISignal[i] = Sell
			}
		}

		if Defined(f.VWAPDeviation[i]) && Defined(f.VWAPDeviation[i-1]) {
			switch {
			case f.VWAPBelow[i] && !f.VWAPBelow[i-1]:
				f.VWAPSignal[i] = Buy
			case f.VWAPAbove[i] && !f.VWAPAbove[i-1]:
				f.VWAPSignal[i] = Sell
			}
		}
	}

	for i := 0; i < n; i++ {
		var sum float64
		var used int
		if cfg.UseEMA {
			sum += float64(f.EMASignal[i])
			used++
		}
		if cfg.UseRSI {
			sum += float64(f.RSISignal[i])
			used++
		}
		if cfg.UseVWAP {
			sum += float64(f.VWAPSignal[i])
			used++
		}
		if used == 0 {
			continue
		}
		f.Combined[i] = sum / float64(used)
		switch {
		case f.Combined[i] >= 0.5:
			f.Signal[i] = Buy
		case f.Combined[i] <= -0.5:
			f.Signal[i] = Sell
		}
	}
}
