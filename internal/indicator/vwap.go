package indicator

import (
	"math"

	"github.com/atmx/paper-engine/internal/model"
)

// VWAPResult holds the per-bar VWAP columns.
type VWAPResult struct {
	VWAP      []float64
	Deviation []float64 // (close - vwap) / vwap * 100
	Above     []bool    // deviation > +threshold
	Below     []bool    // deviation < -threshold
}

// VWAP computes the volume weighted average price, reset at each UTC
// calendar date. Typical price is (high+low+close)/3. Bars whose
// cumulative daily volume is zero have an undefined VWAP.
func VWAP(bars []model.PriceBar, threshold float64) VWAPResult {
	n := len(bars)
	res := VWAPResult{
		VWAP:      make([]float64, n),
		Deviation: make([]float64, n),
		Above:     make([]bool, n),
		Below:     make([]bool, n),
	}

	var day string
	var cumPV, cumVol float64
	for i, b := range bars {
		d := b.Timestamp.UTC().Format("2006-01-02")
		if d != day {
			day = d
			cumPV, cumVol = 0, 0
		}

		high := b.High.InexactFloat64()
		low := b.Low.InexactFloat64()
		closePrice := b.Close.InexactFloat64()
		vol := b.Volume.InexactFloat64()

		typical := (high + low + closePrice) / 3
		cumPV += typical * vol
		cumVol += vol

		if cumVol == 0 {
			res.VWAP[i] = math.NaN()
			res.Deviation[i] = math.NaN()
			continue
		}
		vwap := cumPV / cumVol
		res.VWAP[i] = vwap
		if vwap == 0 {
			res.Deviation[i] = math.NaN()
			continue
		}
		dev := (closePrice - vwap) / vwap * 100
		res.Deviation[i] = dev
		res.Above[i] = dev > threshold
		res.Below[i] = dev < -threshold
	}
	return res
}
