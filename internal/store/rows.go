package store

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// rowScanner is satisfied by pgx.Rows, pgx.Row, *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// tradeColumns is the trade projection shared by the SQL stores. Decimal
// columns travel as text so no precision is lost on either driver.
const tradeColumns = `id, user_id, symbol, base_currency, quote_currency, side,
	price, quantity, amount, fee, ts, is_simulated, is_open,
	profit_loss, profit_loss_pct, matched_position, matches`

// tradeRow holds one scanned trade before decimal conversion.
type tradeRow struct {
	t                       model.Trade
	side                    string
	price, qty, amount, fee string
	pl, plPct               *string
	matches                 string
}

// dest returns scan targets in tradeColumns order, with ts written to ts.
func (r *tradeRow) dest(ts any) []any {
	return []any{
		&r.t.ID, &r.t.UserID, &r.t.Symbol, &r.t.BaseCurrency, &r.t.QuoteCurrency, &r.side,
		&r.price, &r.qty, &r.amount, &r.fee, ts, &r.t.IsSimulated, &r.t.IsOpen,
		&r.pl, &r.plPct, &r.t.MatchedPosition, &r.matches,
	}
}

func (r *tradeRow) trade() (model.Trade, error) {
	t := r.t
	t.Side = model.Side(r.side)
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Price, r.price}, {&t.Quantity, r.qty}, {&t.Amount, r.amount}, {&t.Fee, r.fee},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return model.Trade{}, fmt.Errorf("trade %s: %w", t.ID, err)
		}
	}
	if t.ProfitLoss, err = optionalDecimal(r.pl); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s profit_loss: %w", t.ID, err)
	}
	if t.ProfitLossPct, err = optionalDecimal(r.plPct); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s profit_loss_pct: %w", t.ID, err)
	}
	if r.matches != "" && r.matches != "null" {
		if err := json.Unmarshal([]byte(r.matches), &t.Matches); err != nil {
			return model.Trade{}, fmt.Errorf("trade %s matches: %w", t.ID, err)
		}
	}
	return t, nil
}

// tradeArgs returns insert arguments in tradeColumns order.
func tradeArgs(t *model.Trade, ts any) ([]any, error) {
	matches := "null"
	if len(t.Matches) > 0 {
		b, err := json.Marshal(t.Matches)
		if err != nil {
			return nil, err
		}
		matches = string(b)
	}
	return []any{
		t.ID, t.UserID, t.Symbol, t.BaseCurrency, t.QuoteCurrency, string(t.Side),
		t.Price.String(), t.Quantity.String(), t.Amount.String(), t.Fee.String(),
		ts, t.IsSimulated, t.IsOpen,
		decimalText(t.ProfitLoss), decimalText(t.ProfitLossPct), t.MatchedPosition, matches,
	}, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
