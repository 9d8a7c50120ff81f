package margin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/autoquant/alphakit/broker"
)

// Snapshot is a point-in-time view of the account's margin position.
type Snapshot struct {
	Equity            decimal.Decimal `json:"equity"`
	LastEquity        decimal.Decimal `json:"last_equity"`
	BuyingPower       decimal.Decimal `json:"buying_power"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`
	InitialMargin     decimal.Decimal `json:"initial_margin"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
	Timestamp         time.Time       `json:"timestamp"`
}

// SnapshotFromAccount builds a Snapshot from a broker account response.
func SnapshotFromAccount(a *broker.Account) Snapshot {
	return Snapshot{
		Equity:            a.Equity,
		LastEquity:        a.LastEquity,
		BuyingPower:       a.BuyingPower,
		MaintenanceMargin: a.MaintenanceMargin,
		InitialMargin:     a.InitialMargin,
		PortfolioValue:    a.PortfolioValue,
		Timestamp:         time.Now().UTC(),
	}
}

// EquityRatio returns current equity as a fraction of the day-start baseline,
// rounded to four decimal places with banker's rounding. A zero baseline
// reads as 1.0 so a fresh account never trips an alert.
func (s Snapshot) EquityRatio() float64 {
	if s.LastEquity.IsZero() {
		return 1.0
	}
	return s.Equity.DivRound(s.LastEquity, 8).RoundBank(4).InexactFloat64()
}

// MarginUtilization returns the fraction of portfolio value consumed by
// maintenance margin.
func (s Snapshot) MarginUtilization() float64 {
	if s.PortfolioValue.IsZero() {
		return 0.0
	}
	return s.MaintenanceMargin.DivRound(s.PortfolioValue, 8).RoundBank(4).InexactFloat64()
}
