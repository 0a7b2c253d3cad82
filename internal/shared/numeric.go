package shared

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const (
	// AmountTolerance bounds rounding drift between reported monetary totals.
	AmountTolerance = 0.01
	// BalanceTolerance is the maximum debit/credit gap of a balanced journal.
	BalanceTolerance = 0.001
	// SettlementEpsilon absorbs floating error when deciding an invoice is paid.
	SettlementEpsilon = 0.005
)

// Stored scales of amounts and stock quantities.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 4
)

// Number coerces a loosely typed value into a float64. Numbers, numeric
// strings and json.Number values convert; nil, non-numeric input, NaN and
// infinities default to zero.
func Number(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Percent coerces like Number and clamps the result into [0, 100].
func Percent(v any) float64 {
	return Clamp(Number(v), 0, 100)
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NearlyEqual reports whether a and b differ by at most tol.
func NearlyEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// AddExact adds a and b on their shortest decimal representations, so
// 0.1 + 0.2 is 0.3.
func AddExact(a, b float64) float64 {
	if !finite(a) || !finite(b) {
		return a + b
	}
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// SubExact is the subtraction counterpart of AddExact.
func SubExact(a, b float64) float64 {
	if !finite(a) || !finite(b) {
		return a - b
	}
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// ExceedsScale reports whether v carries more than places decimals.
func ExceedsScale(v float64, places int32) bool {
	if !finite(v) {
		return true
	}
	d := decimal.NewFromFloat(v)
	return !d.Equal(d.Round(places))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
