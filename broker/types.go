package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// TimeInForce controls how long an order stays active.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
)

// OrderRequest describes a market order submission.
type OrderRequest struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	Side        OrderSide       `json:"side"`
	Type        string          `json:"type"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	// ClientOrderID is generated when empty. Supplying one makes a
	// resubmission after an ambiguous failure reconcilable.
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// Order is the broker's view of a submitted order.
type Order struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	Side           OrderSide       `json:"side"`
	Type           string          `json:"type"`
	TimeInForce    TimeInForce     `json:"time_in_force"`
	Status         string          `json:"status"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Account is the broker's account snapshot.
type Account struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	Currency          string          `json:"currency"`
	Equity            decimal.Decimal `json:"equity"`
	LastEquity        decimal.Decimal `json:"last_equity"`
	Cash              decimal.Decimal `json:"cash"`
	BuyingPower       decimal.Decimal `json:"buying_power"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`
	InitialMargin     decimal.Decimal `json:"initial_margin"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
	PatternDayTrader  bool            `json:"pattern_day_trader"`
}

// Asset is the broker's metadata for a tradable instrument.
type Asset struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Class        string `json:"class"`
	Tradable     bool   `json:"tradable"`
	Fractionable bool   `json:"fractionable"`
	// MinOrderSize and PriceIncrement are zero when the broker omits them;
	// callers apply their own defaults.
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	PriceIncrement decimal.Decimal `json:"price_increment"`
}

// Health is the result of a connectivity probe against the broker.
type Health struct {
	Healthy   bool            `json:"healthy"`
	AccountID string          `json:"account_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Equity    decimal.Decimal `json:"equity"`
	LatencyMS float64         `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
}
