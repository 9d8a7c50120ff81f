package quant

import (
	"math"
)

// TradingDaysPerYear is the log-return annualization convention.
const TradingDaysPerYear = 252

// Tenor maps a display name to a trailing window in trading days.
type Tenor struct {
	Name string
	Days int
}

// DefaultTenors is the standard term structure, shortest first.
var DefaultTenors = []Tenor{
	{"1W", 5},
	{"1M", 21},
	{"3M", 63},
	{"6M", 126},
	{"1Y", 252},
	{"2Y", 504},
	{"3Y", 756},
	{"5Y", 1260},
}

// LogReturnSeries is a validated log-return vector with quality metadata.
type LogReturnSeries struct {
	// Values holds log returns with non-finite entries zero-filled.
	Values []float64
	// NonFinite counts entries that were zero-filled (halts, zero-price bars).
	NonFinite int
	// SourceLength is the length of the original price series.
	SourceLength int
}

// ComputeLogReturns converts a chronological price series into log returns.
// Non-finite results (zero or negative prices) are zero-filled rather than
// propagated, which preserves the trading-day denominator.
func ComputeLogReturns(prices []float64) LogReturnSeries {
	if len(prices) < 2 {
		return LogReturnSeries{SourceLength: len(prices)}
	}

	values := make([]float64, len(prices)-1)
	nonFinite := 0
	for i := 1; i < len(prices); i++ {
		r := math.Log(prices[i] / prices[i-1])
		if math.IsInf(r, 0) || math.IsNaN(r) {
			nonFinite++
			r = 0.0
		}
		values[i-1] = r
	}
	return LogReturnSeries{
		Values:       values,
		NonFinite:    nonFinite,
		SourceLength: len(prices),
	}
}

// CAGRFromLogReturns computes the geometric CAGR over the trailing window:
// exp(sum(returns[-window:]) / (window/252)) - 1. Returns NaN when the
// series is shorter than the window.
func CAGRFromLogReturns(logReturns []float64, window int) float64 {
	if window <= 0 || len(logReturns) < window {
		return math.NaN()
	}

	var total float64
	for _, r := range logReturns[len(logReturns)-window:] {
		total += r
	}
	years := float64(window) / TradingDaysPerYear
	return math.Exp(total/years) - 1.0
}

// Inversion records a shorter tenor outperforming a longer one.
type Inversion struct {
	Short     string
	Long      string
	SpreadBps float64
}

// Surface is a return term structure across configured tenors.
type Surface struct {
	Symbol   string
	Tenors   []Tenor
	ByTenor  map[string]float64
	NaNRatio float64
}

// Values returns per-tenor CAGRs in tenor order, NaN where history was
// insufficient.
func (s Surface) Values() []float64 {
	out := make([]float64, len(s.Tenors))
	for i, t := range s.Tenors {
		v, ok := s.ByTenor[t.Name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Inversions returns every tenor pair where the shorter-tenor CAGR exceeds
// the longer-tenor CAGR by more than thresholdBps basis points.
func (s Surface) Inversions(thresholdBps float64) []Inversion {
	type entry struct {
		name  string
		value float64
	}
	var valid []entry
	for _, t := range s.Tenors {
		if v, ok := s.ByTenor[t.Name]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, entry{t.Name, v})
		}
	}

	var out []Inversion
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			spread := (valid[i].value - valid[j].value) * 10_000
			if spread > thresholdBps {
				out = append(out, Inversion{
					Short:     valid[i].name,
					Long:      valid[j].name,
					SpreadBps: spread,
				})
			}
		}
	}
	return out
}

// BuildSurface runs the full pipeline: prices to log returns to a CAGR value
// per default tenor.
func BuildSurface(symbol string, prices []float64) Surface {
	return BuildSurfaceWithTenors(symbol, prices, DefaultTenors)
}

// BuildSurfaceWithTenors is BuildSurface with a caller-supplied tenor table.
func BuildSurfaceWithTenors(symbol string, prices []float64, tenors []Tenor) Surface {
	series := ComputeLogReturns(prices)

	byTenor := make(map[string]float64, len(tenors))
	for _, t := range tenors {
		byTenor[t.Name] = CAGRFromLogReturns(series.Values, t.Days)
	}

	denom := len(series.Values)
	if denom == 0 {
		denom = 1
	}
	return Surface{
		Symbol:   symbol,
		Tenors:   tenors,
		ByTenor:  byTenor,
		NaNRatio: float64(series.NonFinite) / float64(denom),
	}
}
