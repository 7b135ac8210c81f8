package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/model"
)

var now = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(sym string, ts time.Time, close string) model.PriceBar {
	c := d(close)
	return model.PriceBar{Symbol: sym, Timestamp: ts, Open: c, High: c, Low: c, Close: c, Volume: d("1")}
}

// Interface conformance.
var (
	_ Source = (*StaticSource)(nil)
	_ Source = (*SyntheticSource)(nil)
	_ Source = (*BinanceClient)(nil)
	_ Source = (*CachedSource)(nil)
)

func TestStaticSource(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSource()
	s.Add("BTCUSDT",
		bar("BTCUSDT", now.Add(2*time.Hour), "102"),
		bar("BTCUSDT", now, "100"),
		bar("BTCUSDT", now.Add(time.Hour), "101"),
	)

	bars, err := s.Bars(ctx, "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.Equal(d("101")))
	assert.True(t, bars[1].Close.Equal(d("102")))

	all, _ := s.Bars(ctx, "BTCUSDT", "1h", 0)
	assert.Len(t, all, 3)

	p, err := s.LatestPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("102")))

	none, err := s.Bars(ctx, "ETHUSDT", "1h", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = s.LatestPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, model.ErrNoMarketData)

	assert.Equal(t, []string{"BTCUSDT"}, s.Symbols())
}

func TestSyntheticSource_Deterministic(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return now }

	a, err := NewSyntheticSource(42, clock).Bars(ctx, "BTCUSDT", "1h", 50)
	require.NoError(t, err)
	b, err := NewSyntheticSource(42, clock).Bars(ctx, "BTCUSDT", "1h", 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, _ := NewSyntheticSource(7, clock).Bars(ctx, "BTCUSDT", "1h", 50)
	assert.NotEqual(t, a[0].Close, other[0].Close)

	require.Len(t, a, 50)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), a[49].Timestamp)
	assert.True(t, a[49].Close.Equal(d("50000")))
	for i := 1; i < len(a); i++ {
		assert.Equal(t, time.Hour, a[i].Timestamp.Sub(a[i-1].Timestamp))
		assert.True(t, a[i].Open.Equal(a[i-1].Close) || a[i].Open.Sub(a[i-1].Close).Abs().LessThan(d("0.001")))
	}
	for _, x := range a {
		assert.True(t, x.High.GreaterThanOrEqual(x.Low))
		assert.True(t, x.Volume.IsPositive())
	}
}

func TestSyntheticSource_LongerExtendsShorter(t *testing.T) {
	ctx := context.Background()
	s := NewSyntheticSource(1, func() time.Time { return now })

	short, err := s.Bars(ctx, "SOLUSDT", "1d", 10)
	require.NoError(t, err)
	long, err := s.Bars(ctx, "SOLUSDT", "1d", 40)
	require.NoError(t, err)

	assert.Equal(t, short, long[30:])
}

func TestSyntheticSource_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewSyntheticSource(1, nil)

	_, err := s.Bars(ctx, "BTCUSDT", "7x", 10)
	assert.Error(t, err)

	bars, err := s.Bars(ctx, "BTCUSDT", "1h", 0)
	require.NoError(t, err)
	assert.Empty(t, bars)

	p, err := s.LatestPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("3000")))
}

func newBinance(t *testing.T, h http.HandlerFunc) *BinanceClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBinanceClient(srv.URL, 1000, WithRetry(2, time.Millisecond))
}

func TestBinance_Bars(t *testing.T) {
	c := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			[1717200000000,"67000.10","67500.00","66900.00","67400.50","12.5",1717203599999,"0",10,"0","0","0"],
			[1717203600000,"67400.50","67600.00","67300.00","67550.00","8.25",1717207199999,"0",10,"0","0","0"],
			[1717207200000,"bad"]
		]`)
	})

	bars, err := c.Bars(context.Background(), "BTCUSDT", "1h", 5000)
	require.NoError(t, err)
	require.Len(t, bars, 2, "malformed rows are skipped")
	assert.Equal(t, time.UnixMilli(1717200000000).UTC(), bars[0].Timestamp)
	assert.True(t, bars[0].Open.Equal(d("67000.10")))
	assert.True(t, bars[0].Close.Equal(d("67400.50")))
	assert.True(t, bars[1].Volume.Equal(d("8.25")))
	assert.Equal(t, "BTCUSDT", bars[1].Symbol)
}

func TestBinance_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"symbol":"ETHUSDT","price":"3512.25"}`)
	})

	p, err := c.LatestPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("3512.25")))
	assert.EqualValues(t, 2, calls.Load())
}

func TestBinance_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	})

	bars, err := c.Bars(context.Background(), "NOPEUSDT", "1h", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.LatestPrice(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, model.ErrNoMarketData)
}

func TestBinance_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.LatestPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, model.ErrNoMarketData)
	assert.EqualValues(t, 3, calls.Load(), "one attempt plus two retries")
}

func TestBinance_TopSymbols(t *testing.T) {
	c := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		fmt.Fprint(w, `[
			{"symbol":"BTCUSDT","lastPrice":"67000","volume":"1000"},
			{"symbol":"SOLUSDT","lastPrice":"150","volume":"200000"},
			{"symbol":"DOGEUSDT","lastPrice":"0.15","volume":"900000000"},
			{"symbol":"ADAUSDT","lastPrice":"0.4","volume":"1000"},
			{"symbol":"SOLBTC","lastPrice":"0.002","volume":"99999999"}
		]`)
	})

	top, err := c.TopSymbols(context.Background(), "USDT", 2, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"DOGEUSDT", "SOLUSDT"}, top)
}

func TestCachedSource_FallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	static := NewStaticSource()
	static.Add("BTCUSDT", bar("BTCUSDT", now, "100"))
	c := NewCachedSource(static, rdb, time.Minute)

	p, err := c.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("100")))

	bars, err := c.Bars(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	assert.Len(t, bars, 1)

	_, err = c.LatestPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, model.ErrNoMarketData)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "price:BTCUSDT", priceKey("BTCUSDT"))
	assert.Equal(t, "bars:BTCUSDT:1h:100", barsKey("BTCUSDT", "1h", 100))
}
