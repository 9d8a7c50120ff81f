package assets

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/autoquant/alphakit/broker"
)

// DefaultTTL is how long a cached entry stays valid when no TTL is
// configured.
const DefaultTTL = time.Hour

// Brokers omit sizing fields for some asset classes; these conservative
// defaults keep order sizing math well-defined.
var (
	defaultMinOrderSize   = decimal.NewFromInt(1)
	defaultPriceIncrement = decimal.NewFromFloat(0.01)
)

// Metadata is a cached view of a tradable instrument. FetchedAt and TTL
// drive cache validity and are never persisted: a snapshot loaded from disk
// is re-stamped so its entries get a full TTL from load time.
type Metadata struct {
	Symbol         string          `json:"symbol"`
	Exchange       string          `json:"exchange"`
	AssetClass     string          `json:"asset_class"`
	Tradable       bool            `json:"tradable"`
	Fractionable   bool            `json:"fractionable"`
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	PriceIncrement decimal.Decimal `json:"price_increment"`

	FetchedAt time.Time     `json:"-"`
	TTL       time.Duration `json:"-"`
}

// Age returns how long ago the entry was fetched.
func (m Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.FetchedAt)
}

// Valid reports whether the entry is within its TTL.
func (m Metadata) Valid(now time.Time) bool {
	ttl := m.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return m.Age(now) < ttl
}

// fromAsset converts a broker asset into cache metadata, filling the sizing
// fields the broker left out.
func fromAsset(a *broker.Asset, ttl time.Duration, now time.Time) Metadata {
	m := Metadata{
		Symbol:         a.Symbol,
		Exchange:       a.Exchange,
		AssetClass:     a.Class,
		Tradable:       a.Tradable,
		Fractionable:   a.Fractionable,
		MinOrderSize:   a.MinOrderSize,
		PriceIncrement: a.PriceIncrement,
		FetchedAt:      now,
		TTL:            ttl,
	}
	if m.MinOrderSize.IsZero() {
		m.MinOrderSize = defaultMinOrderSize
	}
	if m.PriceIncrement.IsZero() {
		m.PriceIncrement = defaultPriceIncrement
	}
	return m
}

// NormalizeSymbol canonicalizes a user-supplied symbol: trimmed, uppercased,
// with dotted share classes rewritten to the broker's slash form
// (BRK.B -> BRK/B). All registry lookups key on the normalized symbol.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, ".", "/")
}
