// Package conversion projects quote and delivery note lines into the line
// shape of the next document in the sales flow.
package conversion

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

type options struct {
	newID     func() string
	delivered map[string]float64
}

// Option tweaks a conversion.
type Option func(*options)

// WithIDGenerator overrides how fresh target line identifiers are produced.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithDelivered sets delivered quantities, keyed by quote line ID, for a
// quote -> delivery note conversion. Lines without an entry deliver the
// ordered quantity; keys matching no source line fail the conversion.
func WithDelivered(delivered map[string]float64) Option {
	return func(o *options) {
		o.delivered = delivered
	}
}

// Supported reports whether a source kind can be converted into target.
func Supported(source, target DocumentKind) bool {
	switch {
	case source == KindQuote && target == KindDeliveryNote:
		return true
	case source == KindQuote && target == KindInvoice:
		return true
	case source == KindDeliveryNote && target == KindInvoice:
		return true
	}
	return false
}

// Convert maps every source line into a target line, in order. Delivered
// quantities are validated against the quote here; invoice conversions do not
// re-check them.
func Convert(src SourceDocument, target DocumentKind, opts ...Option) ([]TargetLine, error) {
	if !Supported(src.Kind, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, src.Kind, target)
	}
	if len(src.Lines) == 0 {
		return nil, ErrEmptySource
	}
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	verr := unknownDelivered(src.Lines, o.delivered)
	out := make([]TargetLine, 0, len(src.Lines))
	for i, line := range src.Lines {
		tl := TargetLine{
			ID:           o.newID(),
			SourceLineID: line.ID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			Description:  line.Description,
			UnitPriceHT:  line.UnitPriceHT,
			VATRate:      line.VATRate,
		}
		switch {
		case src.Kind == KindQuote && target == KindDeliveryNote:
			delivered := line.Quantity
			if qty, ok := o.delivered[line.ID]; ok {
				delivered = qty
			}
			if msg := checkDelivered(line.Quantity, delivered); msg != "" {
				verr.Add(i, "quantityDelivered", msg)
			}
			tl.QuantityOrdered = line.Quantity
			tl.Quantity = delivered
		case src.Kind == KindQuote && target == KindInvoice:
			tl.Quantity = line.Quantity
			tl.DiscountRate = discountOf(line)
		case src.Kind == KindDeliveryNote && target == KindInvoice:
			// Delivery notes have no discount, whatever the source line carries.
			tl.Quantity = deliveredOf(line)
		}
		out = append(out, tl)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeliveryLine links a delivery note line to its quote line for validation.
type DeliveryLine struct {
	SourceLineID      string  `json:"sourceLineId"`
	QuantityOrdered   float64 `json:"quantityOrdered"`
	QuantityDelivered float64 `json:"quantityDelivered"`
}

// ValidateDelivered checks that no delivered quantity exceeds the quantity
// ordered on the linked quote line. Lines without a quote link are skipped.
func ValidateDelivered(lines []DeliveryLine) error {
	verr := &shared.ValidationError{}
	for i, line := range lines {
		if line.SourceLineID == "" {
			if line.QuantityDelivered < 0 {
				verr.Add(i, "quantityDelivered", "must not be negative")
			}
			continue
		}
		if msg := checkDelivered(line.QuantityOrdered, line.QuantityDelivered); msg != "" {
			verr.Add(i, "quantityDelivered", msg)
		}
	}
	return verr.OrNil()
}

// LineItems projects target lines into pricing input for the aggregator.
func LineItems(lines []TargetLine) []pricing.LineItem {
	out := make([]pricing.LineItem, len(lines))
	for i, l := range lines {
		out[i] = pricing.LineItem{
			Quantity:     l.Quantity,
			UnitPriceHT:  l.UnitPriceHT,
			VATRate:      l.VATRate,
			DiscountRate: l.DiscountRate,
		}
	}
	return out
}

func checkDelivered(ordered, delivered float64) string {
	if delivered < 0 {
		return "must not be negative"
	}
	if delivered > ordered {
		return fmt.Sprintf("delivered %g exceeds ordered %g", delivered, ordered)
	}
	return ""
}

func unknownDelivered(lines []SourceLine, delivered map[string]float64) *shared.ValidationError {
	verr := &shared.ValidationError{}
	if len(delivered) == 0 {
		return verr
	}
	known := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		known[line.ID] = struct{}{}
	}
	for _, id := range slices.Sorted(maps.Keys(delivered)) {
		if _, ok := known[id]; !ok {
			verr.Add(-1, "delivered."+id, "matches no source line")
		}
	}
	return verr
}

func deliveredOf(line SourceLine) float64 {
	if line.QuantityDelivered != nil {
		return *line.QuantityDelivered
	}
	return line.Quantity
}

func discountOf(line SourceLine) float64 {
	if line.DiscountRate == nil {
		return 0
	}
	return shared.Clamp(*line.DiscountRate, 0, 100)
}
