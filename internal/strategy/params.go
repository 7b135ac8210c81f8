// Package strategy combines indicator signals into trade recommendations,
// parameterised by a risk level from 1 (very conservative) to 5 (very
// aggressive).
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// Risk level bounds.
const (
	MinRiskLevel     = 1
	MaxRiskLevel     = 5
	DefaultRiskLevel = 3
)

// Parameters are fixed per risk level.
type Parameters struct {
	RiskLevel       int             `json:"risk_level"`
	SignalThreshold decimal.Decimal `json:"signal_threshold"`
	EMAWeight       decimal.Decimal `json:"ema_weight"`
	RSIWeight       decimal.Decimal `json:"rsi_weight"`
	VWAPWeight      decimal.Decimal `json:"vwap_weight"`
	PositionSize    decimal.Decimal `json:"position_size"` // fraction of available capital
	MaxPositions    int             `json:"max_positions"`
	StopLoss        decimal.Decimal `json:"stop_loss"`   // fraction below entry
	TakeProfit      decimal.Decimal `json:"take_profit"` // fraction above entry
}

type levelRow struct {
	threshold, positionSize, stopLoss, takeProfit string
	maxPositions                                  int
}

var levels = map[int]levelRow{
	1: {"0.70", "0.10", "0.03", "0.06", 3},
	2: {"0.60", "0.15", "0.04", "0.08", 4},
	3: {"0.50", "0.20", "0.05", "0.10", 5},
	4: {"0.40", "0.25", "0.06", "0.15", 6},
	5: {"0.30", "0.30", "0.08", "0.20", 8},
}

// ParametersFor looks up the parameters of a risk level. Sub-signal weights
// are 0.4/0.3/0.3 (EMA/RSI/VWAP) at every level.
func ParametersFor(level int) (Parameters, error) {
	row, ok := levels[level]
	if !ok {
		return Parameters{}, fmt.Errorf("%w: risk level %d outside %d-%d",
			model.ErrInvalidParameter, level, MinRiskLevel, MaxRiskLevel)
	}
	return Parameters{
		RiskLevel:       level,
		SignalThreshold: decimal.RequireFromString(row.threshold),
		EMAWeight:       decimal.RequireFromString("0.4"),
		RSIWeight:       decimal.RequireFromString("0.3"),
		VWAPWeight:      decimal.RequireFromString("0.3"),
		PositionSize:    decimal.RequireFromString(row.positionSize),
		MaxPositions:    row.maxPositions,
		StopLoss:        decimal.RequireFromString(row.stopLoss),
		TakeProfit:      decimal.RequireFromString(row.takeProfit),
	}, nil
}
