package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of a recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Recommendation is one of BuyRecommendation, SellRecommendation or
// HoldRecommendation. Callers switch on the concrete type.
type Recommendation interface {
	Action() Action
	recommendation()
}

// BuyRecommendation opens a new position.
type BuyRecommendation struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`   // quote currency to spend
	Quantity   decimal.Decimal `json:"quantity"` // indicative, truncated
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Score      decimal.Decimal `json:"score"`
	Reason     string          `json:"reason"`
	RiskLevel  int             `json:"risk_level"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SellRecommendation closes the whole open position.
type SellRecommendation struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ProfitLossPct decimal.Decimal `json:"profit_loss_pct"`
	Score         decimal.Decimal `json:"score"`
	Reason        string          `json:"reason"`
	Timestamp     time.Time       `json:"timestamp"`
}

// HoldRecommendation takes no action.
type HoldRecommendation struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Score     decimal.Decimal `json:"score"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}

func (BuyRecommendation) Action() Action  { return ActionBuy }
func (SellRecommendation) Action() Action { return ActionSell }
func (HoldRecommendation) Action() Action { return ActionHold }

func (BuyRecommendation) recommendation()  {}
func (SellRecommendation) recommendation() {}
func (HoldRecommendation) recommendation() {}
