// Package marketdata provides price bars and latest prices for the paper
// engine: fixed fixtures, a seeded synthetic feed, the Binance public REST
// API and a Redis read-through cache in front of any of them.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// Source supplies OHLCV bars and latest prices. Bars are returned oldest
// first; an empty slice means no data and is not an error.
type Source interface {
	Bars(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error)
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StaticSource serves bars loaded up front. The interval argument is
// ignored; each symbol has one series.
type StaticSource struct {
	mu   sync.RWMutex
	bars map[string][]model.PriceBar
}

// NewStaticSource creates an empty fixture source.
func NewStaticSource() *StaticSource {
	return &StaticSource{bars: make(map[string][]model.PriceBar)}
}

// Add appends bars for a symbol and keeps the series sorted by timestamp.
func (s *StaticSource) Add(symbol string, bars ...model.PriceBar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.bars[symbol], bars...)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	s.bars[symbol] = series
}

// Bars returns the last limit bars of the symbol, or all of them when
// limit is not positive.
func (s *StaticSource) Bars(_ context.Context, symbol, _ string, limit int) ([]model.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.bars[symbol]
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]model.PriceBar, len(series))
	copy(out, series)
	return out, nil
}

// LatestPrice returns the close of the newest bar.
func (s *StaticSource) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.bars[symbol]
	if len(series) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no bars for %s", model.ErrNoMarketData, symbol)
	}
	return series[len(series)-1].Close, nil
}

// Symbols lists the loaded symbols in sorted order.
func (s *StaticSource) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
