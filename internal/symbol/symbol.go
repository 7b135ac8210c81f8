// Package symbol handles trading pair symbol parsing and validation, and
// kline interval parsing.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// symbolRegex matches exchange pair symbols such as BTCUSDT or 1000SHIBUSDT.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

var (
	ErrInvalidSymbol   = errors.New("symbol: invalid symbol format")
	ErrQuoteMismatch   = errors.New("symbol: symbol is not quoted in the expected currency")
	ErrInvalidInterval = errors.New("symbol: unsupported interval")
)

// Pair is a parsed trading pair.
type Pair struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// Parse validates a pair symbol and splits it into base and quote
// currencies. The symbol must end with quote and have a non-empty base.
func Parse(sym, quote string) (Pair, error) {
	if !symbolRegex.MatchString(sym) {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, sym)
	}
	if quote == "" || !strings.HasSuffix(sym, quote) || len(sym) == len(quote) {
		return Pair{}, fmt.Errorf("%w: %s (quote %s)", ErrQuoteMismatch, sym, quote)
	}
	return Pair{
		Symbol: sym,
		Base:   strings.TrimSuffix(sym, quote),
		Quote:  quote,
	}, nil
}

// Normalize upper-cases a user supplied symbol and appends the quote
// currency when it is missing ("btc" -> "BTCUSDT").
func Normalize(sym, quote string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" || strings.HasSuffix(sym, quote) {
		return sym
	}
	return sym + quote
}

// Supported kline intervals.
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseInterval converts an exchange interval string ("1h", "4h", "1d")
// into a duration.
func ParseInterval(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
	return d, nil
}

// BarsFor returns how many bars of the given interval cover days days,
// never less than one.
func BarsFor(interval string, days int) (int, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return 0, err
	}
	n := int(time.Duration(days) * 24 * time.Hour / d)
	if n < 1 {
		n = 1
	}
	return n, nil
}
