package quant

import (
	"fmt"
	"math"

	apperrors "github.com/autoquant/alphakit/errors"
)

// CashFlowSchedule is a pre-computed bond cash flow schedule. Build once,
// reprice many times.
type CashFlowSchedule struct {
	// Times holds year fractions from settlement for each cash flow.
	Times []float64
	// Amounts holds the cash flow amounts. Face value is embedded in the
	// final cash flow.
	Amounts []float64
}

// NewCashFlowSchedule validates and builds a schedule.
func NewCashFlowSchedule(times, amounts []float64) (CashFlowSchedule, error) {
	if len(times) != len(amounts) {
		return CashFlowSchedule{}, apperrors.Validation(
			fmt.Sprintf("times/amounts length mismatch: %d vs %d", len(times), len(amounts)))
	}
	if len(times) == 0 {
		return CashFlowSchedule{}, apperrors.Validation("schedule must contain at least one cash flow")
	}
	for i, t := range times {
		if t <= 0 {
			return CashFlowSchedule{}, apperrors.Validation(
				fmt.Sprintf("cash flow %d is not in the future (t=%.4f)", i, t))
		}
	}
	return CashFlowSchedule{Times: times, Amounts: amounts}, nil
}

// CouponSchedule builds a standard level-coupon schedule: face paid with the
// final coupon, coupons every 1/frequency years for the given maturity.
func CouponSchedule(face, couponRate, years float64, frequency int) (CashFlowSchedule, error) {
	if frequency <= 0 {
		return CashFlowSchedule{}, apperrors.Validation("frequency must be positive")
	}
	n := int(math.Round(years * float64(frequency)))
	if n <= 0 {
		return CashFlowSchedule{}, apperrors.Validation("maturity too short for coupon frequency")
	}

	coupon := face * couponRate / float64(frequency)
	times := make([]float64, n)
	amounts := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i+1) / float64(frequency)
		amounts[i] = coupon
	}
	amounts[n-1] += face
	return CashFlowSchedule{Times: times, Amounts: amounts}, nil
}

// FutureValue computes FV = PV * (1 + r/m)^(n*m).
func FutureValue(presentValue, rate float64, periods, compounding int) (float64, error) {
	if rate < -1.0 {
		return 0, apperrors.Validation("rate cannot be less than -100%")
	}
	m := float64(compounding)
	return presentValue * math.Pow(1.0+rate/m, float64(periods)*m), nil
}

// PresentValue computes PV = FV / (1 + r/m)^(n*m). Inverse of FutureValue.
func PresentValue(futureValue, rate float64, periods, compounding int) (float64, error) {
	if rate <= -1.0 {
		return 0, apperrors.Validation("rate must be greater than -100%")
	}
	m := float64(compounding)
	return futureValue / math.Pow(1.0+rate/m, float64(periods)*m), nil
}

// DiscountFactors returns df[i] = 1 / (1 + ytm/freq)^(times[i]*freq).
func DiscountFactors(times []float64, ytm float64, frequency int) []float64 {
	freq := float64(frequency)
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = 1.0 / math.Pow(1.0+ytm/freq, t*freq)
	}
	return out
}

// DirtyPrice is the sum of all discounted cash flows, the amount actually
// paid when buying the bond.
func DirtyPrice(s CashFlowSchedule, ytm float64, frequency int) float64 {
	df := DiscountFactors(s.Times, ytm, frequency)
	var sum float64
	for i, a := range s.Amounts {
		sum += a * df[i]
	}
	return sum
}

// AccruedInterest uses actual day counts from the day-count convention, not
// assumed period lengths.
func AccruedInterest(face, couponRate float64, frequency, daysSinceLastCoupon, daysInCouponPeriod int) (float64, error) {
	if frequency <= 0 {
		return 0, apperrors.Validation("frequency must be positive")
	}
	if daysInCouponPeriod <= 0 {
		return 0, apperrors.Validation("days in coupon period must be positive")
	}
	if daysSinceLastCoupon < 0 {
		return 0, apperrors.Validation("days since last coupon cannot be negative")
	}
	periodicCoupon := face * couponRate / float64(frequency)
	return periodicCoupon * float64(daysSinceLastCoupon) / float64(daysInCouponPeriod), nil
}

// CleanPrice is the market-quoted price: dirty price minus accrued interest.
func CleanPrice(s CashFlowSchedule, ytm, accruedInt float64, frequency int) float64 {
	return DirtyPrice(s, ytm, frequency) - accruedInt
}

// MacaulayDuration is the time-weighted average of discounted cash flows.
func MacaulayDuration(s CashFlowSchedule, ytm float64, frequency int) (float64, error) {
	df := DiscountFactors(s.Times, ytm, frequency)
	var totalPV, weighted float64
	for i, a := range s.Amounts {
		discounted := a * df[i]
		totalPV += discounted
		weighted += s.Times[i] * discounted
	}
	if totalPV == 0 {
		return 0, apperrors.Validation("bond present value is zero")
	}
	return weighted / totalPV, nil
}

// ModifiedDuration is price sensitivity per unit rate:
// Macaulay duration / (1 + ytm/freq).
func ModifiedDuration(s CashFlowSchedule, ytm float64, frequency int) (float64, error) {
	mac, err := MacaulayDuration(s, ytm, frequency)
	if err != nil {
		return 0, err
	}
	return mac / (1.0 + ytm/float64(frequency)), nil
}

// DV01 is the dollar value of one basis point:
// modified duration * dirty price * 0.0001.
func DV01(s CashFlowSchedule, ytm float64, frequency int) (float64, error) {
	md, err := ModifiedDuration(s, ytm, frequency)
	if err != nil {
		return 0, err
	}
	return md * DirtyPrice(s, ytm, frequency) * 0.0001, nil
}

// ytmBracketLow and ytmBracketHigh cover every real-world bond yield.
const (
	ytmBracketLow  = -0.20
	ytmBracketHigh = 5.0
)

// SolveYTM finds the yield that reprices the schedule to targetPrice using
// Newton-Raphson with the analytical duration derivative. Steps that leave
// the bracket or diverge fall back to bisection.
func SolveYTM(s CashFlowSchedule, targetPrice float64, frequency int) (float64, error) {
	const (
		tol     = 1e-8
		maxIter = 50
	)

	rLow, rHigh := ytmBracketLow, ytmBracketHigh
	pLow := DirtyPrice(s, rLow, frequency)
	pHigh := DirtyPrice(s, rHigh, frequency)
	if !(pLow > targetPrice && targetPrice > pHigh) {
		return 0, apperrors.Validation(fmt.Sprintf(
			"cannot bracket YTM: P(%.0f%%)=%.4f, target=%.4f, P(%.0f%%)=%.4f",
			rLow*100, pLow, targetPrice, rHigh*100, pHigh))
	}

	r := initialYTMGuess(s, targetPrice)
	r = math.Max(rLow+0.001, math.Min(r, rHigh-0.001))

	var lastErr float64
	for i := 0; i < maxIter; i++ {
		p := DirtyPrice(s, r, frequency)
		lastErr = p - targetPrice
		if math.Abs(lastErr) < tol {
			return r, nil
		}

		// dP/dr = -modified_duration * P
		md, err := ModifiedDuration(s, r, frequency)
		if err != nil {
			return 0, err
		}
		dpdr := -md * p

		if math.Abs(dpdr) < 1e-12 {
			r = (rLow + rHigh) / 2.0
		} else {
			step := lastErr / dpdr
			rNew := r - step
			if rNew <= rLow || rNew >= rHigh || math.Abs(step) > 0.5 {
				rNew = (rLow + rHigh) / 2.0
			}
			r = rNew
		}

		if DirtyPrice(s, r, frequency) > targetPrice {
			rLow = r
		} else {
			rHigh = r
		}
	}

	return 0, apperrors.Internal(fmt.Errorf(
		"YTM solver did not converge after %d iterations (final error %.2e)", maxIter, lastErr))
}

// initialYTMGuess is the textbook approximate-yield formula, good enough to
// put Newton-Raphson inside its quadratic convergence region.
func initialYTMGuess(s CashFlowSchedule, targetPrice float64) float64 {
	n := len(s.Amounts)
	if n == 1 {
		years := s.Times[0]
		return (s.Amounts[0] - targetPrice) / (targetPrice * years)
	}

	var couponSum float64
	for _, a := range s.Amounts[:n-1] {
		couponSum += a
	}
	meanCoupon := couponSum / float64(n-1)
	approxPar := s.Amounts[n-1] - meanCoupon
	years := s.Times[n-1]
	return (meanCoupon + (approxPar-targetPrice)/years) / ((approxPar + targetPrice) / 2.0)
}
