package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
)

// CachedSource wraps a Source with a Redis read-through cache. Latest
// prices and bar pages are cached for ttl; Redis failures fall through to
// the wrapped source. Empty bar pages are never cached.
type CachedSource struct {
	next Source
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedSource creates a cached wrapper around next.
func NewCachedSource(next Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, rdb: rdb, ttl: ttl}
}

func (s *CachedSource) LatestPrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	if v, err := s.rdb.Get(ctx, priceKey(sym)).Result(); err == nil {
		if p, err := decimal.NewFromString(v); err == nil {
			cacheOutcome(true)
			return p, nil
		}
	}
	cacheOutcome(false)

	p, err := s.next.LatestPrice(ctx, sym)
	if err != nil {
		return decimal.Zero, err
	}
	s.rdb.Set(ctx, priceKey(sym), p.String(), s.ttl)
	return p, nil
}

func (s *CachedSource) Bars(ctx context.Context, sym, interval string, limit int) ([]model.PriceBar, error) {
	key := barsKey(sym, interval, limit)
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var bars []model.PriceBar
		if json.Unmarshal(data, &bars) == nil {
			cacheOutcome(true)
			return bars, nil
		}
	}
	cacheOutcome(false)

	bars, err := s.next.Bars(ctx, sym, interval, limit)
	if err != nil || len(bars) == 0 {
		return bars, err
	}
	if data, err := json.Marshal(bars); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return bars, nil
}

func cacheOutcome(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	metrics.MarketDataRequests.WithLabelValues("redis", outcome).Inc()
}

func priceKey(sym string) string { return fmt.Sprintf("price:%s", sym) }

func barsKey(sym, interval string, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%d", sym, interval, limit)
}
