package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/api"
	"github.com/atmx/paper-engine/internal/marketdata"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/simulator"
	"github.com/atmx/paper-engine/internal/store"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// dailyBars builds n flat daily bars ending at now.
func dailyBars(sym string, n int, closeAt string) []model.PriceBar {
	bars := make([]model.PriceBar, n)
	for i := range bars {
		c := d(closeAt)
		bars[i] = model.PriceBar{
			Symbol:    sym,
			Timestamp: now.Add(-time.Duration(n-1-i) * 24 * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    decimal.NewFromInt(10),
		}
	}
	return bars
}

// newTestEnv creates a test Service with in-memory store, fixture market
// data and chi router.
func newTestEnv(t *testing.T) (*api.Service, *store.MemoryStore, *marketdata.StaticSource, chi.Router) {
	t.Helper()
	return newTestEnvWith(t, simulator.DefaultConfig())
}

func newTestEnvWith(t *testing.T, base simulator.Config) (*api.Service, *store.MemoryStore, *marketdata.StaticSource, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	data := marketdata.NewStaticSource()
	data.Add("BTCUSDT", dailyBars("BTCUSDT", 60, "55000")...)

	base.Now = func() time.Time { return now }
	svc := api.NewService(ms, data, nil, base)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return svc, ms, data, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func createAccount(t *testing.T, router chi.Router, id string) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/accounts", api.CreateAccountRequest{ID: id})
	expectStatus(t, w, http.StatusCreated)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

// --- Account tests ---

func TestCreateAccount(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := do(t, router, http.MethodPost, "/api/v1/accounts", api.CreateAccountRequest{
		ID:              "alice",
		StartingCapital: d("2500"),
		RiskLevel:       4,
	})
	expectStatus(t, w, http.StatusCreated)
	resp := decode[api.AccountResponse](t, w)
	if resp.ID != "alice" {
		t.Errorf("expected id alice, got %q", resp.ID)
	}
	if resp.QuoteCurrency != "USDT" {
		t.Errorf("expected quote USDT, got %q", resp.QuoteCurrency)
	}
	if !resp.StartingCapital.Equal(d("2500")) {
		t.Errorf("expected starting capital 2500, got %s", resp.StartingCapital)
	}
	if resp.RiskLevel != 4 {
		t.Errorf("expected risk level 4, got %d", resp.RiskLevel)
	}

	w = do(t, router, http.MethodPost, "/api/v1/accounts", api.CreateAccountRequest{ID: "alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate account, got %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/accounts", api.CreateAccountRequest{RiskLevel: 9})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for risk level 9, got %d", w.Code)
	}
}

func TestCreateAccount_GeneratesID(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := do(t, router, http.MethodPost, "/api/v1/accounts", nil)
	expectStatus(t, w, http.StatusCreated)
	resp := decode[api.AccountResponse](t, w)
	if resp.ID == "" {
		t.Fatal("expected a generated account id")
	}
	if !resp.StartingCapital.Equal(d("10000")) {
		t.Errorf("expected default capital 10000, got %s", resp.StartingCapital)
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/"+resp.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for generated account, got %d", w.Code)
	}
}

func TestUnknownAccount(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/accounts/nobody",
		"/api/v1/accounts/nobody/balance",
		"/api/v1/accounts/nobody/positions",
		"/api/v1/accounts/nobody/journal",
	} {
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
	w := do(t, router, http.MethodPost, "/api/v1/accounts/nobody/buy", api.BuyRequest{Symbol: "BTC", Amount: d("10")})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for buy on unknown account, got %d", w.Code)
	}
}

// --- Trade execution tests ---

func TestBuyThenSell(t *testing.T) {
	svc, ms, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{
		Symbol: "btc",
		Amount: d("1000"),
		Price:  d("50000"),
	})
	expectStatus(t, w, http.StatusOK)
	buy := decode[model.Trade](t, w)
	if buy.Symbol != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %q", buy.Symbol)
	}
	if buy.Side != model.SideBuy {
		t.Errorf("expected buy side, got %q", buy.Side)
	}
	if !buy.Quantity.Equal(d("0.02")) {
		t.Errorf("expected quantity 0.02, got %s", buy.Quantity)
	}
	if !buy.Fee.Equal(d("1")) {
		t.Errorf("expected fee 1, got %s", buy.Fee)
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/alice/positions", nil)
	expectStatus(t, w, http.StatusOK)
	positions := decode[[]model.Position](t, w)
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if !positions[0].Quantity.Equal(d("0.02")) {
		t.Errorf("expected position quantity 0.02, got %s", positions[0].Quantity)
	}
	if !positions[0].CurrentPrice.Equal(d("55000")) {
		t.Errorf("expected position marked at 55000, got %s", positions[0].CurrentPrice)
	}

	w = do(t, router, http.MethodPost, "/api/v1/accounts/alice/sell", api.SellRequest{
		Symbol: "BTCUSDT",
		Price:  d("55000"),
	})
	expectStatus(t, w, http.StatusOK)
	sell := decode[model.Trade](t, w)
	if sell.ProfitLoss == nil {
		t.Fatal("expected realised P/L on the sell")
	}
	if !sell.ProfitLoss.Equal(d("100")) {
		t.Errorf("expected P/L 100, got %s", sell.ProfitLoss)
	}
	if !sell.Fee.Equal(d("1.1")) {
		t.Errorf("expected fee 1.1, got %s", sell.Fee)
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/alice/balance", nil)
	expectStatus(t, w, http.StatusOK)
	balance := decode[model.PortfolioValue](t, w)
	if got := balance.Balances["USDT"].Amount; !got.Equal(d("10098.9")) {
		t.Errorf("expected USDT 10098.9, got %s", got)
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/alice/trades?limit=1", nil)
	expectStatus(t, w, http.StatusOK)
	recent := decode[[]model.Trade](t, w)
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent trade, got %d", len(recent))
	}
	if recent[0].Side != model.SideSell {
		t.Errorf("expected the sell first, got %q", recent[0].Side)
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/alice/performance", nil)
	expectStatus(t, w, http.StatusOK)
	perf := decode[model.PerformanceSnapshot](t, w)
	if perf.TotalTrades != 2 || perf.WinCount != 1 {
		t.Errorf("expected 2 trades and 1 win, got %d and %d", perf.TotalTrades, perf.WinCount)
	}

	svc.Wait()
	journal, err := ms.GetTrades(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("journal read failed: %v", err)
	}
	if len(journal) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(journal))
	}
	if journal[0].ID != sell.ID {
		t.Errorf("expected the sell first in the journal, got %s", journal[0].ID)
	}
	if journal[1].IsOpen {
		t.Error("consumed buy should be closed in the journal")
	}
}

func TestJournalEndpoint(t *testing.T) {
	svc, _, _, router := newTestEnv(t)
	createAccount(t, router, "bob")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/bob/buy", api.BuyRequest{Symbol: "BTC", Amount: d("500")})
	expectStatus(t, w, http.StatusOK)
	buy := decode[model.Trade](t, w)
	if !buy.Price.Equal(d("55000")) {
		t.Errorf("zero price should fill at the latest close, got %s", buy.Price)
	}

	svc.Wait()
	w = do(t, router, http.MethodGet, "/api/v1/accounts/bob/journal", nil)
	expectStatus(t, w, http.StatusOK)
	journal := decode[[]model.Trade](t, w)
	if len(journal) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(journal))
	}
	if journal[0].ID != buy.ID {
		t.Errorf("expected journal entry %s, got %s", buy.ID, journal[0].ID)
	}
	if !journal[0].IsOpen {
		t.Error("unmatched buy should be open in the journal")
	}
}

func TestBuy_InsufficientBalance(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{
		Symbol: "BTC",
		Amount: d("20000"),
	})
	expectStatus(t, w, http.StatusConflict)
	body := decode[map[string]string](t, w)
	if body["reason"] != "insufficient_balance" {
		t.Errorf("expected reason insufficient_balance, got %q", body["reason"])
	}
}

func TestSell_NothingHeld(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/sell", api.SellRequest{Symbol: "BTC"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 when nothing is held, got %d", w.Code)
	}
}

func TestSell_QuantityAboveHolding(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{
		Symbol: "BTC",
		Amount: d("1000"),
		Price:  d("50000"),
	})
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodPost, "/api/v1/accounts/alice/sell", api.SellRequest{
		Symbol:   "BTC",
		Quantity: d("5"),
		Price:    d("50000"),
	})
	expectStatus(t, w, http.StatusConflict)
	body := decode[map[string]string](t, w)
	if body["reason"] != "insufficient_balance" {
		t.Errorf("expected reason insufficient_balance, got %q", body["reason"])
	}

	w = do(t, router, http.MethodGet, "/api/v1/accounts/alice/positions", nil)
	expectStatus(t, w, http.StatusOK)
	positions := decode[[]model.Position](t, w)
	if len(positions) != 1 || !positions[0].Quantity.Equal(d("0.02")) {
		t.Errorf("expected the 0.02 BTC position untouched, got %+v", positions)
	}
}

func TestBuy_PerSymbolCap(t *testing.T) {
	base := simulator.DefaultConfig()
	base.MaxNotionalPerSymbol = d("1000")
	_, _, _, router := newTestEnvWith(t, base)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{Symbol: "BTC", Amount: d("600")})
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{Symbol: "BTC", Amount: d("500")})
	expectStatus(t, w, http.StatusUnprocessableEntity)
	body := decode[map[string]string](t, w)
	if body["reason"] != "position_limit" {
		t.Errorf("expected reason position_limit, got %q", body["reason"])
	}
}

func TestBuy_InvalidInput(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	cases := map[string]api.BuyRequest{
		"bad symbol":      {Symbol: "BTC-USD", Amount: d("10")},
		"zero amount":     {Symbol: "BTC"},
		"negative amount": {Symbol: "BTC", Amount: d("-5")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/alice/buy", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestBuy_NoMarketData(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodPost, "/api/v1/accounts/alice/buy", api.BuyRequest{Symbol: "DOGE", Amount: d("10")})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 without market data, got %d", w.Code)
	}
}

// --- Market tests ---

func TestGetPrice(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := do(t, router, http.MethodGet, "/api/v1/price/btc", nil)
	expectStatus(t, w, http.StatusOK)
	resp := decode[api.PriceResponse](t, w)
	if resp.Symbol != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %q", resp.Symbol)
	}
	if !resp.Price.Equal(d("55000")) {
		t.Errorf("expected price 55000, got %s", resp.Price)
	}

	w = do(t, router, http.MethodGet, "/api/v1/price/ETH", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for unknown symbol, got %d", w.Code)
	}
}

func TestGetAnalysis_UndefinedAsNull(t *testing.T) {
	_, _, data, router := newTestEnv(t)
	data.Add("SOLUSDT", dailyBars("SOLUSDT", 5, "150")...)

	w := do(t, router, http.MethodGet, "/api/v1/analysis/sol?interval=1d", nil)
	expectStatus(t, w, http.StatusOK)

	body := decode[map[string]any](t, w)
	if body["symbol"] != "SOLUSDT" {
		t.Errorf("expected symbol SOLUSDT, got %v", body["symbol"])
	}
	if body["bars"] != float64(5) {
		t.Errorf("expected 5 bars, got %v", body["bars"])
	}

	summary := body["summary"].(map[string]any)
	if summary["latest_rsi"] != nil {
		t.Errorf("RSI is undefined over five bars, got %v", summary["latest_rsi"])
	}
	if summary["latest_close"] != float64(150) {
		t.Errorf("expected latest close 150, got %v", summary["latest_close"])
	}
	if summary["ready"] != false {
		t.Errorf("expected ready false, got %v", summary["ready"])
	}

	rec := body["recommendation"].(map[string]any)
	if rec["action"] != "HOLD" {
		t.Errorf("expected HOLD, got %v", rec["action"])
	}
}

func TestGetAnalysis_WithAccount(t *testing.T) {
	_, _, _, router := newTestEnv(t)
	createAccount(t, router, "alice")

	w := do(t, router, http.MethodGet, "/api/v1/analysis/BTCUSDT?account=alice&risk_level=2", nil)
	expectStatus(t, w, http.StatusOK)
	resp := decode[map[string]any](t, w)
	if resp["risk_level"] != float64(2) {
		t.Errorf("expected risk level 2, got %v", resp["risk_level"])
	}

	w = do(t, router, http.MethodGet, "/api/v1/analysis/BTCUSDT?account=nobody", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", w.Code)
	}
}

func TestGetAnalysis_InvalidQuery(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/analysis/BTC?interval=7m",
		"/api/v1/analysis/BTC?limit=0",
		"/api/v1/analysis/BTC?risk_level=9",
		"/api/v1/analysis/BTC-USD",
	} {
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/api/v1/analysis/ETH", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 without bars, got %d", w.Code)
	}
}

func TestGetTopSymbols_NoRanker(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := do(t, router, http.MethodGet, "/api/v1/symbols/top", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without a ranker, got %d", w.Code)
	}
}

type fixedRanker struct {
	quote   string
	n       int
	exclude []string
}

func (f *fixedRanker) TopSymbols(_ context.Context, quote string, n int, exclude ...string) ([]string, error) {
	f.quote, f.n, f.exclude = quote, n, exclude
	return []string{"SOLUSDT", "DOGEUSDT"}, nil
}

func TestGetTopSymbols(t *testing.T) {
	ranker := &fixedRanker{}
	svc := api.NewService(nil, marketdata.NewStaticSource(), nil, simulator.DefaultConfig(), api.WithSymbolRanker(ranker))
	router := chi.NewRouter()
	router.Route("/api/v1", svc.Routes)

	w := do(t, router, http.MethodGet, "/api/v1/symbols/top", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[[]string](t, w); !slices.Equal(got, []string{"SOLUSDT", "DOGEUSDT"}) {
		t.Errorf("unexpected symbols %v", got)
	}
	if ranker.quote != "USDT" || ranker.n != 15 {
		t.Errorf("expected USDT and 15, got %s and %d", ranker.quote, ranker.n)
	}
	if want := []string{"BTC", "ETH", "BNB", "USDC", "XRP"}; !slices.Equal(ranker.exclude, want) {
		t.Errorf("expected default exclusions %v, got %v", want, ranker.exclude)
	}

	w = do(t, router, http.MethodGet, "/api/v1/symbols/top?n=3&exclude=", nil)
	expectStatus(t, w, http.StatusOK)
	if ranker.n != 3 {
		t.Errorf("expected n 3, got %d", ranker.n)
	}
	if len(ranker.exclude) != 0 {
		t.Errorf("expected no exclusions, got %v", ranker.exclude)
	}

	w = do(t, router, http.MethodGet, "/api/v1/symbols/top?n=zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for n=zero, got %d", w.Code)
	}
}

// --- Simulation tests ---

func TestRunSimulation_SavedAndListed(t *testing.T) {
	_, _, data, router := newTestEnv(t)
	data.Add("ETHUSDT", dailyBars("ETHUSDT", 60, "3000")...)

	w := do(t, router, http.MethodPost, "/api/v1/simulations", api.SimulationRequest{
		Symbols:  []string{"btc", "ETHUSDT"},
		Days:     10,
		Interval: "1d",
	})
	expectStatus(t, w, http.StatusCreated)
	sum := decode[model.SimulationSummary](t, w)
	if sum.State != model.StateCompleted {
		t.Errorf("expected completed run, got %s", sum.State)
	}
	if !slices.Equal(sum.Symbols, []string{"BTCUSDT", "ETHUSDT"}) {
		t.Errorf("unexpected symbols %v", sum.Symbols)
	}
	if len(sum.DailyResults) != 11 {
		t.Errorf("expected 11 daily results, got %d", len(sum.DailyResults))
	}
	if !sum.InitialBalance.Equal(d("10000")) {
		t.Errorf("expected initial balance 10000, got %s", sum.InitialBalance)
	}
	if sum.ID == "" {
		t.Fatal("expected a run id")
	}

	w = do(t, router, http.MethodGet, "/api/v1/simulations/"+sum.ID, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[model.SimulationSummary](t, w)
	if got.ID != sum.ID {
		t.Errorf("expected run %s, got %s", sum.ID, got.ID)
	}
	if !got.FinalBalance.Equal(sum.FinalBalance) {
		t.Errorf("expected final balance %s, got %s", sum.FinalBalance, got.FinalBalance)
	}

	w = do(t, router, http.MethodGet, "/api/v1/simulations", nil)
	expectStatus(t, w, http.StatusOK)
	runs := decode[[]model.SimulationSummary](t, w)
	if len(runs) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(runs))
	}
	if runs[0].ID != sum.ID {
		t.Errorf("expected run %s listed, got %s", sum.ID, runs[0].ID)
	}
}

func TestRunSimulation_Invalid(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	cases := map[string]api.SimulationRequest{
		"no symbols":   {Days: 5},
		"bad interval": {Symbols: []string{"BTC"}, Interval: "7m"},
		"bad days":     {Symbols: []string{"BTC"}, Days: -1},
		"bad symbol":   {Symbols: []string{"BTC-USD"}},
		"bad risk":     {Symbols: []string{"BTC"}, RiskLevel: 7},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/simulations", req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetSimulation_NotFound(t *testing.T) {
	_, _, _, router := newTestEnv(t)

	w := do(t, router, http.MethodGet, "/api/v1/simulations/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d", w.Code)
	}
}

func TestNoStore(t *testing.T) {
	svc := api.NewService(nil, marketdata.NewStaticSource(), nil, simulator.DefaultConfig())
	router := chi.NewRouter()
	router.Route("/api/v1", svc.Routes)
	createAccount(t, router, "carol")

	for _, path := range []string{
		"/api/v1/accounts/carol/journal",
		"/api/v1/simulations",
		"/api/v1/simulations/x",
	} {
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s: expected 501, got %d", path, w.Code)
		}
	}
}
