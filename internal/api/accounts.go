package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/simulator"
	"github.com/atmx/paper-engine/internal/symbol"
)

// --- Request/Response types ---

// CreateAccountRequest is the JSON body for account creation. Zero values
// take the service defaults.
type CreateAccountRequest struct {
	ID              string          `json:"id"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	RiskLevel       int             `json:"risk_level"`
}

// AccountResponse describes a paper account.
type AccountResponse struct {
	ID              string          `json:"id"`
	QuoteCurrency   string          `json:"quote_currency"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	FeeRate         decimal.Decimal `json:"fee_rate"`
	RiskLevel       int             `json:"risk_level"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BuyRequest is the JSON body for POST /accounts/{id}/buy. A zero price
// fills at the latest market price.
type BuyRequest struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// SellRequest is the JSON body for POST /accounts/{id}/sell. With neither
// quantity nor amount the whole holding is sold.
type SellRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
}

// --- HTTP Handlers ---

// CreateAccount handles POST /api/v1/accounts
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.StartingCapital.IsNegative() {
		writeError(w, "starting_capital must not be negative", http.StatusBadRequest)
		return
	}

	id, a, err := s.newAccount(req.ID, req.StartingCapital, req.RiskLevel)
	if err != nil {
		writeErr(w, err)
		return
	}

	cfg := a.engine.Config()
	s.log.Info("account created",
		"id", id,
		"capital", cfg.StartingCapital.String(),
		"risk_level", cfg.RiskLevel,
	)
	writeJSON(w, http.StatusCreated, accountResponse(id, a))
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	s.withAccount(w, r, func(id string, a *account) {
		writeJSON(w, http.StatusOK, accountResponse(id, a))
	})
}

// GetBalance handles GET /api/v1/accounts/{accountID}/balance
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	s.withAccount(w, r, func(_ string, a *account) {
		writeJSON(w, http.StatusOK, a.engine.Balance(r.Context()))
	})
}

// GetPositions handles GET /api/v1/accounts/{accountID}/positions
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	s.withAccount(w, r, func(_ string, a *account) {
		positions := a.engine.OpenPositions(r.Context())
		if positions == nil {
			positions = []model.Position{}
		}
		writeJSON(w, http.StatusOK, positions)
	})
}

// GetTrades handles GET /api/v1/accounts/{accountID}/trades?limit=N
// Returns the in-memory trade history, newest first.
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	s.withAccount(w, r, func(_ string, a *account) {
		all := a.engine.Trades()
		out := make([]model.Trade, 0, len(all))
		for i := len(all) - 1; i >= 0 && (limit == 0 || len(out) < limit); i-- {
			out = append(out, all[i])
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// GetJournal handles GET /api/v1/accounts/{accountID}/journal?limit=N
// Returns persisted trades, newest first.
func (s *Service) GetJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, "no trade store configured", http.StatusNotImplemented)
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "accountID")
	if _, ok := s.account(id); !ok {
		writeErr(w, errAccountNotFound)
		return
	}

	trades, err := s.store.GetTrades(r.Context(), id, limit)
	if err != nil {
		s.log.Error("journal read failed", "account", id, "err", err)
		writeError(w, "failed to read trade journal", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetPerformance handles GET /api/v1/accounts/{accountID}/performance
func (s *Service) GetPerformance(w http.ResponseWriter, r *http.Request) {
	s.withAccount(w, r, func(_ string, a *account) {
		writeJSON(w, http.StatusOK, a.engine.Performance(r.Context()))
	})
}

// Buy handles POST /api/v1/accounts/{accountID}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.withAccount(w, r, func(id string, a *account) {
		cfg := a.engine.Config()
		t, err := a.engine.ExecuteBuy(r.Context(), simulator.BuyOrder{
			Symbol: symbol.Normalize(req.Symbol, cfg.QuoteCurrency),
			Amount: req.Amount,
			Price:  req.Price,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		s.broadcastTrade(id, t)
		writeJSON(w, http.StatusOK, t)
	})
}

// Sell handles POST /api/v1/accounts/{accountID}/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.withAccount(w, r, func(id string, a *account) {
		cfg := a.engine.Config()
		t, err := a.engine.ExecuteSell(r.Context(), simulator.SellOrder{
			Symbol:   symbol.Normalize(req.Symbol, cfg.QuoteCurrency),
			Quantity: req.Quantity,
			Amount:   req.Amount,
			Price:    req.Price,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		s.broadcastTrade(id, t)
		writeJSON(w, http.StatusOK, t)
	})
}

// withAccount resolves {accountID} and runs fn holding the account lock.
func (s *Service) withAccount(w http.ResponseWriter, r *http.Request, fn func(id string, a *account)) {
	id := chi.URLParam(r, "accountID")
	a, ok := s.account(id)
	if !ok {
		writeErr(w, errAccountNotFound)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(id, a)
}

func (s *Service) broadcastTrade(accountID string, t *model.Trade) {
	if s.hub == nil {
		return
	}
	msg := WSMessage{
		Type:      EventTradeExecuted,
		AccountID: accountID,
		TradeID:   t.ID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Price:     t.Price.String(),
		Quantity:  t.Quantity.String(),
		Amount:    t.Amount.String(),
	}
	if t.ProfitLoss != nil {
		msg.ProfitLoss = t.ProfitLoss.String()
	}
	s.hub.Broadcast(msg)
}

func accountResponse(id string, a *account) AccountResponse {
	cfg := a.engine.Config()
	return AccountResponse{
		ID:              id,
		QuoteCurrency:   cfg.QuoteCurrency,
		StartingCapital: cfg.StartingCapital,
		FeeRate:         cfg.FeeRate,
		RiskLevel:       cfg.RiskLevel,
		CreatedAt:       a.createdAt,
	}
}

// queryLimit parses an optional non-negative ?limit= parameter. Zero
// means unlimited.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr writes err with the status of its taxonomy class.
func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}
	if reason := simulator.RejectionReason(err); reason != "error" {
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}
