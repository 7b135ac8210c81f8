package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/paper-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	if err := s.primary.InsertTrade(ctx, t); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey(t.UserID))
	return nil
}

func (s *CachedStore) CloseTrade(ctx context.Context, accountID, tradeID string) error {
	if err := s.primary.CloseTrade(ctx, accountID, tradeID); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey(accountID))
	return nil
}

func (s *CachedStore) SaveRun(ctx context.Context, run *model.SimulationSummary) error {
	if err := s.primary.SaveRun(ctx, run); err != nil {
		return err
	}
	if data, err := json.Marshal(run); err == nil {
		s.rdb.Set(ctx, runKey(run.ID), data, s.ttl)
	}
	return nil
}

// --- Read-through (check cache first) ---

// GetTrades caches each requested page as a field of one hash per
// account, so a single delete invalidates every page.
func (s *CachedStore) GetTrades(ctx context.Context, accountID string, limit int) ([]model.Trade, error) {
	key, field := tradesKey(accountID), strconv.Itoa(limit)

	data, err := s.rdb.HGet(ctx, key, field).Bytes()
	if err == nil {
		var trades []model.Trade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := s.primary.GetTrades(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(trades); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, key, field, data)
		pipe.Expire(ctx, key, s.ttl)
		pipe.Exec(ctx)
	}
	return trades, nil
}

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.SimulationSummary, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var run model.SimulationSummary
		if json.Unmarshal(data, &run) == nil {
			return &run, nil
		}
	}

	run, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(run); err == nil {
		s.rdb.Set(ctx, runKey(id), data, s.ttl)
	}
	return run, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRuns(ctx context.Context, limit int) ([]model.SimulationSummary, error) {
	return s.primary.ListRuns(ctx, limit)
}

// --- Cache helpers ---

func tradesKey(accountID string) string { return fmt.Sprintf("trades:%s", accountID) }
func runKey(id string) string           { return fmt.Sprintf("run:%s", id) }
