package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleLines() []LineItem {
	return []LineItem{
		{Quantity: 10, UnitPriceHT: 100, VATRate: 20, DiscountRate: 10},
		{Quantity: 2, UnitPriceHT: 49.99, VATRate: 5.5},
		{Quantity: 1, UnitPriceHT: 250, VATRate: 0},
		{Quantity: 3, UnitPriceHT: 10, VATRate: 20},
	}
}

func TestAggregateDocument(t *testing.T) {
	totals := Aggregate(sampleLines())

	require.InDelta(t, 1379.98, totals.SubTotalHTBeforeDiscount, 1e-9)
	require.InDelta(t, 100.0, totals.TotalDiscountAmount, 1e-9)
	require.InDelta(t, 1279.98, totals.SubTotalHT, 1e-9)
	require.InDelta(t, 191.5, totals.TotalVAT, 1e-9)
	require.InDelta(t, 1471.48, totals.TotalTTC, 1e-9)

	require.Len(t, totals.VATBreakdown, 2, "the zero-rate bucket contributes nothing displayable")
	require.Equal(t, 20.0, totals.VATBreakdown[0].Rate)
	require.InDelta(t, 930.0, totals.VATBreakdown[0].Base, 1e-9)
	require.InDelta(t, 186.0, totals.VATBreakdown[0].Amount, 1e-9)
	require.Equal(t, 5.5, totals.VATBreakdown[1].Rate)
	require.InDelta(t, 99.98, totals.VATBreakdown[1].Base, 1e-9)
	require.InDelta(t, 5.5, totals.VATBreakdown[1].Amount, 1e-9)
	require.True(t, totals.Reconciles())
}

func TestAggregateIsIdempotent(t *testing.T) {
	lines := sampleLines()
	first := Aggregate(lines)
	second := Aggregate(lines)
	require.Equal(t, first, second)
	require.Equal(t, sampleLines(), lines, "input must not be mutated")
}

func TestAggregateTTCIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rates := []float64{0, 2.1, 5.5, 7, 10, 19.6, 20}
	for doc := 0; doc < 200; doc++ {
		n := 1 + rng.Intn(12)
		lines := make([]LineItem, n)
		for i := range lines {
			lines[i] = LineItem{
				Quantity:     float64(1+rng.Intn(400)) / 8,
				UnitPriceHT:  float64(rng.Intn(250000)) / 100,
				VATRate:      rates[rng.Intn(len(rates))],
				DiscountRate: float64(rng.Intn(30)),
			}
		}
		totals := Aggregate(lines)
		require.InDelta(t, totals.SubTotalHT+totals.TotalVAT, totals.TotalTTC, 0.01)
		for i := 1; i < len(totals.VATBreakdown); i++ {
			require.Greater(t, totals.VATBreakdown[i-1].Rate, totals.VATBreakdown[i].Rate)
		}
	}
}

func TestAggregateDoesNotForceBreakdownReconciliation(t *testing.T) {
	totals := Aggregate([]LineItem{
		{Quantity: 1, UnitPriceHT: 0.06, VATRate: 10},
		{Quantity: 1, UnitPriceHT: 0.03, VATRate: 20},
		{Quantity: 1, UnitPriceHT: 0.12, VATRate: 5},
		{Quantity: 1, UnitPriceHT: 0.6, VATRate: 1},
	})

	require.Len(t, totals.VATBreakdown, 4)
	for _, b := range totals.VATBreakdown {
		require.Equal(t, 0.01, b.Amount)
	}
	require.Equal(t, 0.02, totals.TotalVAT)
	require.Equal(t, 0.04, totals.BreakdownVAT())
	require.False(t, totals.Reconciles())
}

func TestAggregateGroupsByExactRate(t *testing.T) {
	totals := Aggregate([]LineItem{
		{Quantity: 1, UnitPriceHT: 100, VATRate: 5.5},
		{Quantity: 1, UnitPriceHT: 100, VATRate: 5.55},
	})
	require.Len(t, totals.VATBreakdown, 2)
	require.Equal(t, 5.55, totals.VATBreakdown[0].Rate)
	require.Equal(t, 5.5, totals.VATBreakdown[1].Rate)
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate(nil)
	require.Equal(t, 0.0, totals.TotalTTC)
	require.Empty(t, totals.VATBreakdown)
}
