package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/symbol"
)

const (
	// DefaultBinanceURL is the public spot REST endpoint.
	DefaultBinanceURL = "https://api.binance.com"

	// MaxKlines is the largest page the klines endpoint serves.
	MaxKlines = 1000

	sourceBinance = "binance"
)

// statusError is a non-200 response from the exchange.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("binance: status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// BinanceClient reads klines and prices from the Binance public REST API.
// Outbound requests share one token-bucket limiter; transport errors, 429s
// and 5xx responses are retried with doubling backoff.
type BinanceClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	log     *slog.Logger
}

// BinanceOption configures a BinanceClient.
type BinanceOption func(*BinanceClient)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) BinanceOption {
	return func(b *BinanceClient) { b.http = c }
}

// WithRetry sets the retry count and the first backoff delay.
func WithRetry(retries int, backoff time.Duration) BinanceOption {
	return func(b *BinanceClient) {
		b.retries = retries
		b.backoff = backoff
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) BinanceOption {
	return func(b *BinanceClient) { b.log = l }
}

// NewBinanceClient creates a client limited to rps requests per second
// with a burst of 10.
func NewBinanceClient(baseURL string, rps float64, opts ...BinanceOption) *BinanceClient {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if rps <= 0 {
		rps = 10
	}
	c := &BinanceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 10),
		retries: 3,
		backoff: 2 * time.Second,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Bars fetches up to limit klines (clamped to 1..1000). Any failure is
// logged and yields an empty slice.
func (c *BinanceClient) Bars(ctx context.Context, sym, interval string, limit int) ([]model.PriceBar, error) {
	if _, err := symbol.ParseInterval(interval); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxKlines {
		limit = MaxKlines
	}

	q := url.Values{}
	q.Set("symbol", sym)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		c.log.Error("klines fetch failed", "symbol", sym, "interval", interval, "err", err)
		return []model.PriceBar{}, nil
	}

	bars := make([]model.PriceBar, 0, len(rows))
	for _, row := range rows {
		b, err := parseKline(sym, row)
		if err != nil {
			c.log.Warn("skipping malformed kline", "symbol", sym, "err", err)
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// parseKline decodes one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(sym string, row []json.RawMessage) (model.PriceBar, error) {
	if len(row) < 6 {
		return model.PriceBar{}, fmt.Errorf("kline has %d fields", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return model.PriceBar{}, fmt.Errorf("open time: %w", err)
	}
	b := model.PriceBar{Symbol: sym, Timestamp: time.UnixMilli(openMs).UTC()}
	for i, dst := range []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return model.PriceBar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	return b, nil
}

// LatestPrice fetches the last traded price.
func (c *BinanceClient) LatestPrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", sym)

	var ticker struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := c.get(ctx, "/api/v3/ticker/price", q, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", model.ErrNoMarketData, sym, err)
	}
	if !ticker.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s price %s", model.ErrNoMarketData, sym, ticker.Price)
	}
	return ticker.Price, nil
}

// TopSymbols returns the n symbols quoted in quote with the highest 24h
// quote volume, skipping the excluded base assets.
func (c *BinanceClient) TopSymbols(ctx context.Context, quote string, n int, exclude ...string) ([]string, error) {
	var tickers []struct {
		Symbol    string          `json:"symbol"`
		LastPrice decimal.Decimal `json:"lastPrice"`
		Volume    decimal.Decimal `json:"volume"`
	}
	if err := c.get(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, fmt.Errorf("%w: 24h tickers: %w", model.ErrNoMarketData, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, b := range exclude {
		skip[b] = true
	}

	type ranked struct {
		symbol string
		volume decimal.Decimal
	}
	var candidates []ranked
	for _, t := range tickers {
		p, err := symbol.Parse(t.Symbol, quote)
		if err != nil || skip[p.Base] {
			continue
		}
		candidates = append(candidates, ranked{t.Symbol, t.Volume.Mul(t.LastPrice)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].volume.GreaterThan(candidates[j].volume)
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, r := range candidates {
		out[i] = r.symbol
	}
	return out, nil
}

// get performs a rate-limited GET with bounded retries and decodes the
// JSON body into out.
func (c *BinanceClient) get(ctx context.Context, path string, q url.Values, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveMarketData(sourceBinance, start, err) }()

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return err
		}
		var retry bool
		retry, err = c.do(ctx, path, q, out)
		if err == nil || !retry || attempt >= c.retries {
			return err
		}

		c.log.Warn("binance request failed, retrying",
			"path", path, "attempt", attempt+1, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// do sends one request. The flag reports whether a failure is worth
// retrying.
func (c *BinanceClient) do(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body [256]byte
		n, _ := resp.Body.Read(body[:])
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body[:n]))}
		return se.retryable(), se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return false, nil
}
