package quant

import (
	"math"
	"testing"
)

// constantGrowthPrices builds a price series with a fixed annualized growth
// rate, one bar per trading day.
func constantGrowthPrices(annualRate float64, bars int) []float64 {
	daily := math.Log(1.0+annualRate) / TradingDaysPerYear
	prices := make([]float64, bars)
	for i := range prices {
		prices[i] = 100.0 * math.Exp(daily*float64(i))
	}
	return prices
}

func TestComputeLogReturns(t *testing.T) {
	series := ComputeLogReturns([]float64{100, 110, 121})
	if len(series.Values) != 2 {
		t.Fatalf("got %d returns, want 2", len(series.Values))
	}
	want := math.Log(1.1)
	for i, r := range series.Values {
		if math.Abs(r-want) > 1e-12 {
			t.Errorf("return[%d] = %v, want %v", i, r, want)
		}
	}
	if series.NonFinite != 0 {
		t.Errorf("NonFinite = %d, want 0", series.NonFinite)
	}
}

func TestComputeLogReturns_ZeroFillsHaltBars(t *testing.T) {
	// A zero-price bar produces -Inf then +Inf log returns.
	series := ComputeLogReturns([]float64{100, 0, 100, 105})
	if series.NonFinite != 2 {
		t.Fatalf("NonFinite = %d, want 2", series.NonFinite)
	}
	if series.Values[0] != 0 || series.Values[1] != 0 {
		t.Errorf("halt bars not zero-filled: %v", series.Values)
	}
	if math.Abs(series.Values[2]-math.Log(1.05)) > 1e-12 {
		t.Errorf("healthy return corrupted: %v", series.Values[2])
	}
}

func TestComputeLogReturns_ShortSeries(t *testing.T) {
	series := ComputeLogReturns([]float64{100})
	if len(series.Values) != 0 || series.SourceLength != 1 {
		t.Errorf("unexpected series for single bar: %+v", series)
	}
}

func TestCAGRFromLogReturns(t *testing.T) {
	prices := constantGrowthPrices(0.10, TradingDaysPerYear+1)
	series := ComputeLogReturns(prices)

	got := CAGRFromLogReturns(series.Values, TradingDaysPerYear)
	if math.Abs(got-0.10) > 1e-9 {
		t.Errorf("1Y CAGR = %v, want 0.10", got)
	}
}

func TestCAGRFromLogReturns_InsufficientHistoryIsNaN(t *testing.T) {
	series := ComputeLogReturns(constantGrowthPrices(0.10, 30))
	if got := CAGRFromLogReturns(series.Values, 252); !math.IsNaN(got) {
		t.Errorf("CAGR with short history = %v, want NaN", got)
	}
	if got := CAGRFromLogReturns(series.Values, 0); !math.IsNaN(got) {
		t.Errorf("CAGR with zero window = %v, want NaN", got)
	}
}

func TestBuildSurface(t *testing.T) {
	// Two years of 8% growth: 1W through 2Y resolve, 3Y and 5Y are NaN.
	prices := constantGrowthPrices(0.08, 505)
	surface := BuildSurface("SPY", prices)

	if surface.Symbol != "SPY" {
		t.Errorf("symbol = %q", surface.Symbol)
	}
	for _, tenor := range []string{"1W", "1M", "3M", "6M", "1Y", "2Y"} {
		v := surface.ByTenor[tenor]
		if math.IsNaN(v) {
			t.Errorf("%s CAGR is NaN, want a value", tenor)
			continue
		}
		if math.Abs(v-0.08) > 1e-6 {
			t.Errorf("%s CAGR = %v, want 0.08", tenor, v)
		}
	}
	for _, tenor := range []string{"3Y", "5Y"} {
		if v := surface.ByTenor[tenor]; !math.IsNaN(v) {
			t.Errorf("%s CAGR = %v, want NaN for insufficient history", tenor, v)
		}
	}
	if surface.NaNRatio != 0 {
		t.Errorf("NaNRatio = %v, want 0", surface.NaNRatio)
	}
}

func TestSurface_Values(t *testing.T) {
	surface := BuildSurface("QQQ", constantGrowthPrices(0.05, 30))
	values := surface.Values()
	if len(values) != len(DefaultTenors) {
		t.Fatalf("got %d values, want %d", len(values), len(DefaultTenors))
	}
	if math.IsNaN(values[0]) {
		t.Error("1W value should resolve with 30 bars")
	}
	if !math.IsNaN(values[len(values)-1]) {
		t.Error("5Y value should be NaN with 30 bars")
	}
}

func TestSurface_Inversions(t *testing.T) {
	surface := Surface{
		Tenors: DefaultTenors,
		ByTenor: map[string]float64{
			"1W": 0.20,
			"1M": 0.18,
			"1Y": 0.05,
			"5Y": math.NaN(),
		},
	}

	inversions := surface.Inversions(500)
	if len(inversions) != 2 {
		t.Fatalf("got %d inversions, want 2: %+v", len(inversions), inversions)
	}
	first := inversions[0]
	if first.Short != "1W" || first.Long != "1Y" {
		t.Errorf("first inversion = %+v, want 1W over 1Y", first)
	}
	if math.Abs(first.SpreadBps-1500) > 1e-9 {
		t.Errorf("spread = %v bps, want 1500", first.SpreadBps)
	}
}

func TestSurface_NoInversionsBelowThreshold(t *testing.T) {
	surface := Surface{
		Tenors: DefaultTenors,
		ByTenor: map[string]float64{
			"1W": 0.06,
			"1Y": 0.05,
		},
	}
	if got := surface.Inversions(500); len(got) != 0 {
		t.Errorf("100bps spread should not trip 500bps threshold: %+v", got)
	}
}
