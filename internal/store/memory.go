package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/paper-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	trades map[string][]model.Trade // account -> oldest first
	runs   map[string]*model.SimulationSummary
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades: make(map[string][]model.Trade),
		runs:   make(map[string]*model.SimulationSummary),
	}
}

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.trades[t.UserID] {
		if existing.ID == t.ID {
			return fmt.Errorf("trade %s already exists", t.ID)
		}
	}
	s.trades[t.UserID] = append(s.trades[t.UserID], cloneTrade(*t))
	return nil
}

func (s *MemoryStore) CloseTrade(_ context.Context, accountID, tradeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := s.trades[accountID]
	for i := range trades {
		if trades[i].ID == tradeID {
			trades[i].IsOpen = false
			return nil
		}
	}
	return fmt.Errorf("%w: trade %s", ErrNotFound, tradeID)
}

func (s *MemoryStore) GetTrades(_ context.Context, accountID string, limit int) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[accountID]
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]model.Trade, 0, n)
	for i := len(all) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, cloneTrade(all[i]))
	}
	return result, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run *model.SimulationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	r := *run
	s.runs[run.ID] = &r
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.SimulationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	out := *r
	return &out, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.SimulationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.SimulationSummary, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].FinishedAt.Equal(runs[j].FinishedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// cloneTrade copies the match slice so callers cannot alias stored state.
func cloneTrade(t model.Trade) model.Trade {
	if t.Matches != nil {
		t.Matches = append([]model.Match(nil), t.Matches...)
	}
	return t
}
