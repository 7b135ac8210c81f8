package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/indicator"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/strategy"
	"github.com/atmx/paper-engine/internal/symbol"
)

const (
	defaultInterval  = "1h"
	defaultBarLimit  = 100
	maxBarLimit      = 1000
	defaultTopN      = 15
	defaultExclusion = "BTC,ETH,BNB,USDC,XRP"
)

// PriceResponse is the latest price of a symbol.
type PriceResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// SummaryResponse is indicator.Summary with undefined values as null.
type SummaryResponse struct {
	LatestClose    *float64 `json:"latest_close"`
	LatestEMAShort *float64 `json:"latest_ema_short"`
	LatestEMALong  *float64 `json:"latest_ema_long"`
	LatestRSI      *float64 `json:"latest_rsi"`
	LatestVWAP     *float64 `json:"latest_vwap"`
	VWAPDeviation  *float64 `json:"vwap_deviation"`
	LatestSignal   int      `json:"latest_signal"`
	RSIStatus      string   `json:"rsi_status"`
	EMAStatus      string   `json:"ema_status"`
	VWAPStatus     string   `json:"vwap_status"`
	Ready          bool     `json:"ready"`
}

// RecommendationResponse wraps a strategy recommendation with its action.
type RecommendationResponse struct {
	Action  strategy.Action         `json:"action"`
	Details strategy.Recommendation `json:"details"`
}

// AnalysisResponse is the body of GET /analysis/{symbol}.
type AnalysisResponse struct {
	Symbol         string                 `json:"symbol"`
	Interval       string                 `json:"interval"`
	Bars           int                    `json:"bars"`
	RiskLevel      int                    `json:"risk_level"`
	Score          decimal.Decimal        `json:"score"`
	Label          string                 `json:"label"`
	Summary        SummaryResponse        `json:"summary"`
	Alerts         []indicator.Alert      `json:"alerts"`
	Recommendation RecommendationResponse `json:"recommendation"`
}

// GetPrice handles GET /api/v1/price/{symbol}
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	sym := symbol.Normalize(chi.URLParam(r, "symbol"), s.quote())
	if _, err := symbol.Parse(sym, s.quote()); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.data.LatestPrice(r.Context(), sym)
	if err != nil {
		s.log.Warn("price lookup failed", "symbol", sym, "err", err)
		writeErr(w, fmt.Errorf("%w: %w", model.ErrNoMarketData, err))
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{Symbol: sym, Price: p})
}

// GetAnalysis handles GET /api/v1/analysis/{symbol}
// Query: interval (1h), limit (100), risk_level, account. With an account
// the recommendation uses its free capital and open position.
func (s *Service) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sym := symbol.Normalize(chi.URLParam(r, "symbol"), s.quote())
	if _, err := symbol.Parse(sym, s.quote()); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	interval := q.Get("interval")
	if interval == "" {
		interval = defaultInterval
	}
	if _, err := symbol.ParseInterval(interval); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := defaultBarLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBarLimit {
			writeError(w, fmt.Sprintf("limit must be 1-%d", maxBarLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	level := s.base.RiskLevel
	if level == 0 {
		level = strategy.DefaultRiskLevel
	}
	if raw := q.Get("risk_level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "risk_level must be an integer", http.StatusBadRequest)
			return
		}
		level = n
	}
	strat, err := strategy.New(level)
	if err != nil {
		writeErr(w, err)
		return
	}

	bars, err := s.data.Bars(r.Context(), sym, interval, limit)
	if err != nil {
		writeErr(w, fmt.Errorf("%w: %w", model.ErrNoMarketData, err))
		return
	}
	if len(bars) == 0 {
		writeErr(w, fmt.Errorf("%w: no bars for %s", model.ErrNoMarketData, sym))
		return
	}

	f, a := strat.Analyze(sym, bars)

	capital := s.base.StartingCapital
	var current *model.Position
	if id := q.Get("account"); id != "" {
		acct, ok := s.account(id)
		if !ok {
			writeErr(w, errAccountNotFound)
			return
		}
		acct.mu.Lock()
		capital = acct.engine.Balance(r.Context()).Balances[s.quote()].Amount
		if p, open := acct.engine.Position(sym); open {
			current = &p
		}
		acct.mu.Unlock()
	}
	rec := strat.Recommend(sym, f, capital, current)

	alerts := a.Alerts
	if alerts == nil {
		alerts = []indicator.Alert{}
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{
		Symbol:         sym,
		Interval:       interval,
		Bars:           len(bars),
		RiskLevel:      a.RiskLevel,
		Score:          a.Score,
		Label:          a.Label,
		Summary:        summaryResponse(a.Summary),
		Alerts:         alerts,
		Recommendation: RecommendationResponse{Action: rec.Action(), Details: rec},
	})
}

// GetTopSymbols handles GET /api/v1/symbols/top?n=15&exclude=BTC,ETH
func (s *Service) GetTopSymbols(w http.ResponseWriter, r *http.Request) {
	if s.ranker == nil {
		writeError(w, "symbol ranking requires the binance market data source", http.StatusNotImplemented)
		return
	}
	q := r.URL.Query()

	n := defaultTopN
	if raw := q.Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	exclude := defaultExclusion
	if q.Has("exclude") {
		exclude = q.Get("exclude")
	}
	var bases []string
	for _, b := range strings.Split(exclude, ",") {
		if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
			bases = append(bases, b)
		}
	}

	syms, err := s.ranker.TopSymbols(r.Context(), s.quote(), n, bases...)
	if err != nil {
		writeErr(w, err)
		return
	}
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, syms)
}

func (s *Service) quote() string {
	if s.base.QuoteCurrency == "" {
		return "USDT"
	}
	return s.base.QuoteCurrency
}

func summaryResponse(sum indicator.Summary) SummaryResponse {
	return SummaryResponse{
		LatestClose:    optional(sum.LatestClose),
		LatestEMAShort: optional(sum.LatestEMAShort),
		LatestEMALong:  optional(sum.LatestEMALong),
		LatestRSI:      optional(sum.LatestRSI),
		LatestVWAP:     optional(sum.LatestVWAP),
		VWAPDeviation:  optional(sum.VWAPDeviation),
		LatestSignal:   sum.LatestSignal,
		RSIStatus:      sum.RSIStatus,
		EMAStatus:      sum.EMAStatus,
		VWAPStatus:     sum.VWAPStatus,
		Ready:          sum.Ready,
	}
}

// optional maps NaN, which JSON cannot carry, to null.
func optional(v float64) *float64 {
	if !indicator.Defined(v) {
		return nil
	}
	return &v
}
