// Package pricing turns commercial document lines into HT/VAT/TTC totals.
package pricing

import "github.com/odyssey-erp/tradebook/internal/shared"

// LineItem is one priced document line. Rates are percentages.
type LineItem struct {
	Quantity     float64 `json:"quantity"`
	UnitPriceHT  float64 `json:"unitPriceHT"`
	VATRate      float64 `json:"vatRate"`
	DiscountRate float64 `json:"discountRate"`
}

// LineInput carries line values as decoded from a form or JSON body, before
// coercion.
type LineInput struct {
	Quantity     any `json:"quantity"`
	UnitPriceHT  any `json:"unitPriceHT"`
	VATRate      any `json:"vatRate"`
	DiscountRate any `json:"discountRate"`
}

// Normalize coerces loose input into a LineItem. Missing or non-numeric
// values become 0 and rates are clamped into [0, 100].
func Normalize(in LineInput) LineItem {
	return LineItem{
		Quantity:     shared.Number(in.Quantity),
		UnitPriceHT:  shared.Number(in.UnitPriceHT),
		VATRate:      shared.Percent(in.VATRate),
		DiscountRate: shared.Percent(in.DiscountRate),
	}
}

// NormalizeAll applies Normalize to every line, preserving order.
func NormalizeAll(in []LineInput) []LineItem {
	out := make([]LineItem, len(in))
	for i, line := range in {
		out[i] = Normalize(line)
	}
	return out
}

// LineTotals is the monetary breakdown of one line.
type LineTotals struct {
	BeforeDiscount float64 `json:"lineTotalHTBeforeDiscount"`
	Discount       float64 `json:"lineDiscountAmount"`
	TotalHT        float64 `json:"lineTotalHT"`
	VAT            float64 `json:"lineVatAmount"`
}

// Calculate derives the line breakdown. Values are unrounded so documents can
// aggregate them without cumulative drift.
func Calculate(item LineItem) LineTotals {
	before := item.Quantity * item.UnitPriceHT
	discount := before * (item.DiscountRate / 100)
	net := before - discount
	return LineTotals{
		BeforeDiscount: before,
		Discount:       discount,
		TotalHT:        net,
		VAT:            net * (item.VATRate / 100),
	}
}

// TTC returns the tax inclusive contribution of the line.
func (t LineTotals) TTC() float64 {
	return t.TotalHT + t.VAT
}

// Rounded returns the two-decimal view used for external reporting.
func (t LineTotals) Rounded() LineTotals {
	return LineTotals{
		BeforeDiscount: shared.Round2(t.BeforeDiscount),
		Discount:       shared.Round2(t.Discount),
		TotalHT:        shared.Round2(t.TotalHT),
		VAT:            shared.Round2(t.VAT),
	}
}
