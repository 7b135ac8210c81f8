// Package risk implements position limits for the paper trading engine.
//
// The limiter caps the number of distinct open positions and, optionally,
// the notional exposure held in any single symbol.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMaxPositionsExceeded is returned when a buy would open a new
	// position while the maximum number of positions is already open.
	ErrMaxPositionsExceeded = errors.New("risk: maximum open positions reached")

	// ErrPerSymbolLimitExceeded is returned when a trade would push the
	// exposure in a single symbol beyond the per-symbol maximum.
	ErrPerSymbolLimitExceeded = errors.New("risk: per-symbol exposure limit exceeded")
)

// PositionLimiter enforces position limits. A zero MaxPerSymbol disables
// the exposure check; MaxPositions <= 0 disables the position count check.
type PositionLimiter struct {
	// MaxPositions is the maximum number of symbols with open exposure.
	MaxPositions int

	// MaxPerSymbol is the maximum notional exposure in any single symbol.
	MaxPerSymbol decimal.Decimal
}

// NewPositionLimiter creates a limiter with the given caps.
func NewPositionLimiter(maxPositions int, maxPerSymbol decimal.Decimal) *PositionLimiter {
	return &PositionLimiter{MaxPositions: maxPositions, MaxPerSymbol: maxPerSymbol}
}

// Enabled reports whether any limit is configured.
func (l *PositionLimiter) Enabled() bool {
	return l.MaxPositions > 0 || l.MaxPerSymbol.IsPositive()
}

// CheckLimit validates whether a trade respects position limits.
//
// Parameters:
//   - symbol: pair being traded
//   - exposureDelta: signed change in notional exposure (+buy / -sell)
//   - existing: map of symbol → current notional exposure for this account
//
// Returns nil if the trade is within limits. Reductions in exposure are
// always allowed.
func (l *PositionLimiter) CheckLimit(
	symbol string,
	exposureDelta decimal.Decimal,
	existing map[string]decimal.Decimal,
) error {
	if !exposureDelta.IsPositive() {
		return nil
	}

	current := existing[symbol]
	if l.MaxPositions > 0 && !current.IsPositive() && openCount(existing) >= l.MaxPositions {
		return ErrMaxPositionsExceeded
	}

	if l.MaxPerSymbol.IsPositive() && current.Add(exposureDelta).GreaterThan(l.MaxPerSymbol) {
		return ErrPerSymbolLimitExceeded
	}
	return nil
}

func openCount(existing map[string]decimal.Decimal) int {
	n := 0
	for _, e := range existing {
		if e.IsPositive() {
			n++
		}
	}
	return n
}
