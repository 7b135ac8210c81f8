// Package position tracks open buy lots per symbol and matches sells
// against them first-in first-out.
package position

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Book holds the open lots of one portfolio, oldest first per symbol.
type Book struct {
	mu   sync.RWMutex
	lots map[string][]*model.Lot
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{lots: make(map[string][]*model.Lot)}
}

// Open appends a lot at the back of its symbol's queue.
func (b *Book) Open(lot model.Lot) error {
	if !lot.Quantity.IsPositive() || !lot.EntryPrice.IsPositive() {
		return fmt.Errorf("%w: lot %s needs positive quantity and price", model.ErrInvalidParameter, lot.ID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	l := lot
	b.lots[lot.Symbol] = append(b.lots[lot.Symbol], &l)
	return nil
}

// Match consumes up to qty of symbol from the oldest lots at exitPrice.
// Partially consumed lots stay at the front of the queue with the remaining
// quantity. The unmatched remainder is returned; it is non-zero only when
// qty exceeds the open quantity.
func (b *Book) Match(symbol string, qty, exitPrice decimal.Decimal) ([]model.Match, decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.lots[symbol]
	remaining := qty
	var matches []model.Match

	for len(queue) > 0 && remaining.IsPositive() {
		lot := queue[0]
		take := decimal.Min(lot.Quantity, remaining)

		m := model.Match{
			LotID:      lot.ID,
			TradeID:    lot.TradeID,
			EntryPrice: lot.EntryPrice,
			ExitPrice:  exitPrice,
			Quantity:   take,
			ProfitLoss: exitPrice.Sub(lot.EntryPrice).Mul(take),
		}
		m.ProfitLossPct = exitPrice.Sub(lot.EntryPrice).Div(lot.EntryPrice).Mul(hundred).Round(4)

		lot.Quantity = lot.Quantity.Sub(take)
		remaining = remaining.Sub(take)
		if lot.Quantity.IsZero() {
			m.LotClosed = true
			queue = queue[1:]
		}
		matches = append(matches, m)
	}

	if len(queue) == 0 {
		delete(b.lots, symbol)
	} else {
		b.lots[symbol] = queue
	}
	return matches, remaining
}

// Quantity is the total open quantity of symbol.
func (b *Book) Quantity(symbol string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var q decimal.Decimal
	for _, l := range b.lots[symbol] {
		q = q.Add(l.Quantity)
	}
	return q
}

// Lots returns a copy of the open lots of symbol, oldest first.
func (b *Book) Lots(symbol string) []model.Lot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Lot, 0, len(b.lots[symbol]))
	for _, l := range b.lots[symbol] {
		out = append(out, *l)
	}
	return out
}

// Symbols lists symbols with open lots in sorted order.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.lots))
	for s := range b.lots {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates the open lots of symbol into a position. ok is false
// when nothing is open.
func (b *Book) Summary(symbol string) (model.Position, bool) {
	lots := b.Lots(symbol)
	if len(lots) == 0 {
		return model.Position{}, false
	}
	p := model.Position{
		Symbol:   symbol,
		OpenedAt: lots[0].EntryTime,
		Lots:     lots,
	}
	for _, l := range lots {
		p.Quantity = p.Quantity.Add(l.Quantity)
		p.CostBasis = p.CostBasis.Add(l.Quantity.Mul(l.EntryPrice))
	}
	p.AvgPrice = p.CostBasis.Div(p.Quantity)
	return p, true
}

// Positions summarises every open symbol.
func (b *Book) Positions() []model.Position {
	var out []model.Position
	for _, s := range b.Symbols() {
		if p, ok := b.Summary(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// Mark fills the current price fields of p.
func Mark(p *model.Position, price decimal.Decimal) {
	p.CurrentPrice = price
	p.CurrentValue = p.Quantity.Mul(price)
	p.UnrealizedPnL = p.CurrentValue.Sub(p.CostBasis)
	if p.CostBasis.IsPositive() {
		p.UnrealizedPct = p.UnrealizedPnL.Div(p.CostBasis).Mul(hundred).Round(4)
	}
}
