// Package ledger holds the per-currency balances of one paper portfolio.
// Balances never go negative: every mutation is checked before it is
// applied, and batches apply all-or-nothing.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Entry is one signed balance change.
type Entry struct {
	Currency string
	Delta    decimal.Decimal
}

// PriceFunc returns the price of one unit of currency in the quote currency.
type PriceFunc func(ctx context.Context, currency string) (decimal.Decimal, error)

// Ledger is a mutex-guarded currency → amount map.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// New creates a ledger seeded with initial balances. Negative seeds are
// rejected.
func New(initial map[string]decimal.Decimal) (*Ledger, error) {
	l := &Ledger{balances: make(map[string]decimal.Decimal, len(initial))}
	for cur, amt := range initial {
		if amt.IsNegative() {
			return nil, fmt.Errorf("%w: negative opening balance %s %s", model.ErrInvalidParameter, amt, cur)
		}
		l.balances[cur] = amt
	}
	return l, nil
}

// Credit adds amount to currency.
func (l *Ledger) Credit(currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: credit of negative amount %s", model.ErrInvalidParameter, amount)
	}
	return l.Apply(Entry{Currency: currency, Delta: amount})
}

// Debit subtracts amount from currency.
func (l *Ledger) Debit(currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: debit of negative amount %s", model.ErrInvalidParameter, amount)
	}
	return l.Apply(Entry{Currency: currency, Delta: amount.Neg()})
}

// Apply applies entries atomically. If any resulting balance would be
// negative nothing is changed and ErrInsufficientBalance is returned.
func (l *Ledger) Apply(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		if e.Currency == "" {
			return fmt.Errorf("%w: empty currency", model.ErrInvalidParameter)
		}
		cur, ok := next[e.Currency]
		if !ok {
			cur = l.balances[e.Currency]
		}
		next[e.Currency] = cur.Add(e.Delta)
	}
	for cur, amt := range next {
		if amt.IsNegative() {
			return fmt.Errorf("%w: %s short by %s", model.ErrInsufficientBalance, cur, amt.Neg())
		}
	}
	for cur, amt := range next {
		l.balances[cur] = amt
	}
	return nil
}

// Balance returns the amount held in currency, zero if none.
func (l *Ledger) Balance(currency string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[currency]
}

// Balances returns a snapshot of every currency ever touched.
func (l *Ledger) Balances() map[string]model.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]model.Balance, len(l.balances))
	for cur, amt := range l.balances {
		out[cur] = model.Balance{Amount: amt, Available: amt}
	}
	return out
}

// Valuate values every non-zero balance in quote. Currencies whose price
// lookup fails are logged, listed in Unpriced and left out of the total.
// P/L is measured against baseline.
func (l *Ledger) Valuate(ctx context.Context, quote string, baseline decimal.Decimal, prices PriceFunc) model.PortfolioValue {
	balances := l.Balances()

	currencies := make([]string, 0, len(balances))
	for cur := range balances {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)

	v := model.PortfolioValue{
		Balances:      balances,
		QuoteCurrency: quote,
	}
	for _, cur := range currencies {
		amt := balances[cur].Amount
		if cur == quote {
			v.Total = v.Total.Add(amt)
			continue
		}
		if amt.IsZero() {
			continue
		}
		price, err := prices(ctx, cur)
		if err != nil {
			slog.Warn("valuation skipped unpriced currency", "currency", cur, "error", err)
			v.Unpriced = append(v.Unpriced, cur)
			continue
		}
		v.Total = v.Total.Add(amt.Mul(price))
	}

	v.ProfitLoss = v.Total.Sub(baseline)
	if baseline.IsPositive() {
		v.ProfitLossPct = v.ProfitLoss.Div(baseline).Mul(hundred).Round(4)
	}
	return v
}
