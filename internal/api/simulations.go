package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/simulator"
	"github.com/atmx/paper-engine/internal/store"
	"github.com/atmx/paper-engine/internal/symbol"
)

const defaultSimulationDays = 30

// SimulationRequest is the JSON body for POST /api/v1/simulations. Zero
// values take the service defaults.
type SimulationRequest struct {
	Symbols         []string        `json:"symbols"`
	Days            int             `json:"days"`
	Interval        string          `json:"interval"`
	RiskLevel       int             `json:"risk_level"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	ApplyExitRules  bool            `json:"apply_exit_rules"`
}

// RunSimulation handles POST /api/v1/simulations
// The backtest runs synchronously on a fresh engine. A cancelled run still
// persists its partial summary.
func (s *Service) RunSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, "symbols is required", http.StatusBadRequest)
		return
	}
	if req.StartingCapital.IsNegative() {
		writeError(w, "starting_capital must not be negative", http.StatusBadRequest)
		return
	}
	if req.Days == 0 {
		req.Days = defaultSimulationDays
	}
	if req.Interval == "" {
		req.Interval = defaultInterval
	}

	syms := make([]string, 0, len(req.Symbols))
	for _, raw := range req.Symbols {
		syms = append(syms, symbol.Normalize(raw, s.quote()))
	}

	cfg := s.base
	cfg.UserID = "backtest"
	cfg.ApplyExitRules = req.ApplyExitRules
	if req.StartingCapital.IsPositive() {
		cfg.StartingCapital = req.StartingCapital
	}
	if req.RiskLevel != 0 {
		cfg.RiskLevel = req.RiskLevel
	}
	e, err := simulator.New(cfg, s.data, simulator.WithLogger(s.log.With("component", "backtest")))
	if err != nil {
		writeErr(w, err)
		return
	}

	sum, runErr := e.RunSimulation(r.Context(), syms, req.Days, req.Interval)
	if sum == nil {
		writeErr(w, runErr)
		return
	}

	if s.store != nil {
		// The request context may already be gone for a cancelled run.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.SaveRun(ctx, sum); err != nil {
			s.log.Error("failed to persist simulation", "id", sum.ID, "err", err)
		}
		cancel()
	}
	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:       EventSimulationCompleted,
			RunID:      sum.ID,
			State:      string(sum.State),
			ProfitLoss: sum.ProfitLoss.String(),
		})
	}

	if runErr != nil {
		writeErr(w, runErr)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// ListSimulations handles GET /api/v1/simulations?limit=N
func (s *Service) ListSimulations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, "no run store configured", http.StatusNotImplemented)
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("list simulations failed", "err", err)
		writeError(w, "failed to list simulations", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.SimulationSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetSimulation handles GET /api/v1/simulations/{runID}
func (s *Service) GetSimulation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, "no run store configured", http.StatusNotImplemented)
		return
	}
	id := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("get simulation failed", "id", id, "err", err)
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
