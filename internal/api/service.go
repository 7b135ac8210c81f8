// Package api provides the HTTP handlers for paper trading accounts,
// market data lookups, indicator analysis and backtests.
//
// All monetary values use shopspring/decimal, never float64.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/marketdata"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/risk"
	"github.com/atmx/paper-engine/internal/simulator"
	"github.com/atmx/paper-engine/internal/store"
)

// SymbolRanker lists the most traded symbols of a quote currency.
type SymbolRanker interface {
	TopSymbols(ctx context.Context, quote string, n int, exclude ...string) ([]string, error)
}

// account is one paper portfolio. The engine is not safe for concurrent
// use, so every access goes through mu.
type account struct {
	mu        sync.Mutex
	engine    *simulator.Engine
	createdAt time.Time
}

// Service serves the paper trading API. Each account owns its own engine;
// backtests run on a fresh engine per request.
type Service struct {
	store  store.Store
	data   marketdata.Source
	hub    *WSHub // optional WebSocket hub for real-time broadcasts
	base   simulator.Config
	ranker SymbolRanker
	log    *slog.Logger

	mu       sync.RWMutex
	accounts map[string]*account
}

// Option configures a Service.
type Option func(*Service)

// WithSymbolRanker enables GET /symbols/top.
func WithSymbolRanker(r SymbolRanker) Option {
	return func(s *Service) { s.ranker = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a new API service. base is the template for every
// account and backtest engine. Pass nil for hub if WebSocket broadcasting
// is not needed.
func NewService(st store.Store, data marketdata.Source, hub *WSHub, base simulator.Config, opts ...Option) *Service {
	s := &Service{
		store:    st,
		data:     data,
		hub:      hub,
		base:     base,
		log:      slog.Default(),
		accounts: make(map[string]*account),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Service) Routes(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Post("/accounts", s.CreateAccount)
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/", s.GetAccount)
		r.Get("/balance", s.GetBalance)
		r.Get("/positions", s.GetPositions)
		r.Get("/trades", s.GetTrades)
		r.Get("/journal", s.GetJournal)
		r.Get("/performance", s.GetPerformance)
		r.Post("/buy", s.Buy)
		r.Post("/sell", s.Sell)
	})

	r.Get("/price/{symbol}", s.GetPrice)
	r.Get("/analysis/{symbol}", s.GetAnalysis)
	r.Get("/symbols/top", s.GetTopSymbols)

	r.Post("/simulations", s.RunSimulation)
	r.Get("/simulations", s.ListSimulations)
	r.Get("/simulations/{runID}", s.GetSimulation)
}

// Wait blocks until every account has persisted its in-flight fills.
func (s *Service) Wait() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		a.engine.Wait()
	}
}

func (s *Service) account(id string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// newAccount registers an engine under id. An empty id gets a fresh UUID.
func (s *Service) newAccount(id string, capital decimal.Decimal, riskLevel int) (string, *account, error) {
	if id == "" {
		id = uuid.New().String()
	}
	cfg := s.base
	cfg.UserID = id
	if capital.IsPositive() {
		cfg.StartingCapital = capital
	}
	if riskLevel != 0 {
		cfg.RiskLevel = riskLevel
	}

	var opts []simulator.Option
	opts = append(opts, simulator.WithLogger(s.log.With("account", id)))
	if s.store != nil {
		opts = append(opts, simulator.WithRecorder(store.NewRecorder(s.store)))
	}
	e, err := simulator.New(cfg, s.data, opts...)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; exists {
		return "", nil, errAccountExists
	}
	a := &account{engine: e, createdAt: e.Config().Now()}
	s.accounts[id] = a
	return id, a, nil
}

var (
	errAccountExists   = errors.New("account already exists")
	errAccountNotFound = errors.New("account not found")
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, errAccountNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientBalance), errors.Is(err, errAccountExists):
		return http.StatusConflict
	case errors.Is(err, risk.ErrMaxPositionsExceeded),
		errors.Is(err, risk.ErrPerSymbolLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNoMarketData):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
