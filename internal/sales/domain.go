package sales

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Document is a stored quote, delivery note or invoice with its last
// computed totals.
type Document struct {
	ID         string                  `json:"id"`
	Kind       conversion.DocumentKind `json:"kind"`
	Number     string                  `json:"number"`
	SourceKind conversion.DocumentKind `json:"sourceKind,omitempty"`
	SourceID   string                  `json:"sourceId,omitempty"`
	Lines      []DocumentLine          `json:"lines"`
	Totals     pricing.DocumentTotals  `json:"totals"`
	CreatedAt  time.Time               `json:"createdAt"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// DocumentLine is a stored line. On delivery notes Quantity is the delivered
// quantity and QuantityOrdered the quote quantity. DiscountRate is nil on
// delivery notes.
type DocumentLine struct {
	ID                string   `json:"id"`
	SourceLineID      string   `json:"sourceLineId,omitempty"`
	ProductID         string   `json:"productId"`
	ProductName       string   `json:"productName"`
	Description       string   `json:"description,omitempty"`
	Quantity          float64  `json:"quantity"`
	QuantityOrdered   float64  `json:"quantityOrdered,omitempty"`
	QuantityDelivered *float64 `json:"quantityDelivered,omitempty"`
	UnitPriceHT       float64  `json:"unitPriceHT"`
	VATRate           float64  `json:"vatRate"`
	DiscountRate      *float64 `json:"discountRate,omitempty"`
}

// ConvertInput requests a conversion of a stored document.
type ConvertInput struct {
	SourceKind conversion.DocumentKind
	SourceID   string
	Target     conversion.DocumentKind
	Number     string
	Delivered  map[string]float64
}

// LineInput is a loosely typed line as submitted by a client.
type LineInput struct {
	ProductID   string
	ProductName string
	Description string
	Values      pricing.LineInput
}

// CreateInput creates a document directly from submitted lines.
type CreateInput struct {
	Kind   conversion.DocumentKind
	Number string
	Lines  []LineInput
}

// Preview is the result of a conversion that is not persisted.
type Preview struct {
	Lines  []conversion.TargetLine `json:"lines"`
	Totals pricing.DocumentTotals  `json:"totals"`
}

// ErrDocumentNotFound indicates an unknown document.
var ErrDocumentNotFound = fmt.Errorf("sales: document %w", shared.ErrNotFound)

// Source exposes the document as conversion input.
func (d Document) Source() conversion.SourceDocument {
	lines := make([]conversion.SourceLine, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = conversion.SourceLine{
			ID:                l.ID,
			ProductID:         l.ProductID,
			ProductName:       l.ProductName,
			Description:       l.Description,
			Quantity:          l.Quantity,
			QuantityOrdered:   l.QuantityOrdered,
			QuantityDelivered: l.QuantityDelivered,
			UnitPriceHT:       l.UnitPriceHT,
			VATRate:           l.VATRate,
			DiscountRate:      l.DiscountRate,
		}
	}
	return conversion.SourceDocument{Kind: d.Kind, ID: d.ID, Lines: lines}
}

// LineItems projects the stored lines into pricing input.
func (d Document) LineItems() []pricing.LineItem {
	items := make([]pricing.LineItem, len(d.Lines))
	for i, l := range d.Lines {
		items[i] = pricing.LineItem{Quantity: l.Quantity, UnitPriceHT: l.UnitPriceHT, VATRate: l.VATRate}
		if l.DiscountRate != nil {
			items[i].DiscountRate = *l.DiscountRate
		}
	}
	return items
}

// linesFromTarget stores freshly converted lines according to the target kind.
func linesFromTarget(target conversion.DocumentKind, lines []conversion.TargetLine) []DocumentLine {
	out := make([]DocumentLine, len(lines))
	for i, l := range lines {
		dl := DocumentLine{
			ID:           l.ID,
			SourceLineID: l.SourceLineID,
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPriceHT:  l.UnitPriceHT,
			VATRate:      l.VATRate,
		}
		switch target {
		case conversion.KindDeliveryNote:
			delivered := l.Quantity
			dl.QuantityOrdered = l.QuantityOrdered
			dl.QuantityDelivered = &delivered
		default:
			discount := l.DiscountRate
			dl.DiscountRate = &discount
		}
		out[i] = dl
	}
	return out
}
