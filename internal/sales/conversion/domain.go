package conversion

import (
	"fmt"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// DocumentKind enumerates commercial document types.
type DocumentKind string

const (
	KindQuote        DocumentKind = "QUOTE"
	KindDeliveryNote DocumentKind = "DELIVERY_NOTE"
	KindInvoice      DocumentKind = "INVOICE"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindQuote, KindDeliveryNote, KindInvoice:
		return true
	}
	return false
}

// SourceLine is a line of the document being converted. Quote lines use
// Quantity; delivery note lines also carry QuantityOrdered (copied from the
// quote) and QuantityDelivered. DiscountRate is nil for delivery notes.
type SourceLine struct {
	ID                string   `json:"id"`
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

// SourceDocument is a quote or delivery note snapshot.
type SourceDocument struct {
	Kind  DocumentKind `json:"kind"`
	ID    string       `json:"id"`
	Lines []SourceLine `json:"lines"`
}

// TargetLine is a freshly mapped line. QuantityOrdered is only set on
// delivery note lines built from a quote.
type TargetLine struct {
	ID              string  `json:"id"`
	SourceLineID    string  `json:"sourceLineId"`
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	QuantityOrdered float64 `json:"quantityOrdered,omitempty"`
	UnitPriceHT     float64 `json:"unitPriceHT"`
	VATRate         float64 `json:"vatRate"`
	DiscountRate    float64 `json:"discountRate"`
}

var (
	// ErrUnsupportedConversion indicates a source/target pair outside
	// quote -> delivery note -> invoice.
	ErrUnsupportedConversion = fmt.Errorf("conversion: unsupported source/target pair: %w", shared.ErrRejected)
	// ErrEmptySource indicates a source document without lines.
	ErrEmptySource = fmt.Errorf("conversion: source document has no lines: %w", shared.ErrValidation)
)
