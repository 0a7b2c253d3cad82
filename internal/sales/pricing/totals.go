package pricing

import (
	"sort"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// VATBucket groups the lines sharing one VAT rate.
type VATBucket struct {
	Rate   float64 `json:"rate"`
	Base   float64 `json:"base"`
	Amount float64 `json:"amount"`
}

// DocumentTotals aggregates the lines of a quote, delivery note or invoice.
type DocumentTotals struct {
	SubTotalHTBeforeDiscount float64     `json:"subTotalHTBeforeDiscount"`
	TotalDiscountAmount      float64     `json:"totalDiscountAmount"`
	SubTotalHT               float64     `json:"subTotalHT"`
	TotalVAT                 float64     `json:"totalVAT"`
	TotalTTC                 float64     `json:"totalTTC"`
	VATBreakdown             []VATBucket `json:"vatBreakdown"`
}

// Aggregate folds line totals into document totals. Sums are kept unrounded
// and every public figure is rounded once at the end. Buckets are keyed by the
// exact rate, empty ones are dropped and the rest sorted by descending rate.
func Aggregate(items []LineItem) DocumentTotals {
	var before, discount, net, vat float64
	buckets := make(map[float64]*VATBucket)
	for _, item := range items {
		line := Calculate(item)
		before += line.BeforeDiscount
		discount += line.Discount
		net += line.TotalHT
		vat += line.VAT

		b, ok := buckets[item.VATRate]
		if !ok {
			b = &VATBucket{Rate: item.VATRate}
			buckets[item.VATRate] = b
		}
		b.Base += line.TotalHT
		b.Amount += line.VAT
	}

	breakdown := make([]VATBucket, 0, len(buckets))
	for _, b := range buckets {
		amount := shared.Round2(b.Amount)
		if amount == 0 {
			continue
		}
		breakdown = append(breakdown, VATBucket{Rate: b.Rate, Base: shared.Round2(b.Base), Amount: amount})
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Rate > breakdown[j].Rate })

	subTotal := shared.Round2(net)
	totalVAT := shared.Round2(vat)
	return DocumentTotals{
		SubTotalHTBeforeDiscount: shared.Round2(before),
		TotalDiscountAmount:      shared.Round2(discount),
		SubTotalHT:               subTotal,
		TotalVAT:                 totalVAT,
		TotalTTC:                 shared.Round2(subTotal + totalVAT),
		VATBreakdown:             breakdown,
	}
}

// BreakdownVAT sums the amounts of the VAT breakdown rows.
func (t DocumentTotals) BreakdownVAT() float64 {
	var sum float64
	for _, b := range t.VATBreakdown {
		sum += b.Amount
	}
	return shared.Round2(sum)
}

// Reconciles reports whether the breakdown rows add up to TotalVAT. When they
// do not, callers render a reconciling total row rather than adjusting a
// bucket.
func (t DocumentTotals) Reconciles() bool {
	return shared.NearlyEqual(t.BreakdownVAT(), t.TotalVAT, shared.AmountTolerance)
}
