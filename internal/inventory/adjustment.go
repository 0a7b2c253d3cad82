package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// AdjustmentKind is the wire name of an adjustment variant.
type AdjustmentKind string

const (
	KindIn         AdjustmentKind = "IN"
	KindOut        AdjustmentKind = "OUT"
	KindCorrection AdjustmentKind = "CORRECTION"
)

// Adjustment is one of Inbound, Outbound or Correction.
type Adjustment interface {
	Kind() AdjustmentKind
	adjustment()
}

// Inbound adds Quantity to the current stock.
type Inbound struct {
	Quantity float64
}

// Outbound removes Quantity from the current stock.
type Outbound struct {
	Quantity float64
}

// Correction replaces the current stock with NewStockQuantity.
type Correction struct {
	NewStockQuantity float64
}

func (Inbound) Kind() AdjustmentKind    { return KindIn }
func (Outbound) Kind() AdjustmentKind   { return KindOut }
func (Correction) Kind() AdjustmentKind { return KindCorrection }

func (Inbound) adjustment()    {}
func (Outbound) adjustment()   {}
func (Correction) adjustment() {}

// AdjustmentResult describes the stock level after an adjustment.
// AppliedQuantity is the signed delta, negative for stock leaving.
type AdjustmentResult struct {
	ResultingStock  float64        `json:"resultingStock"`
	AdjustmentType  AdjustmentKind `json:"adjustmentType"`
	AppliedQuantity float64        `json:"appliedQuantity"`
}

var (
	// ErrUnknownAdjustment indicates an adjustment kind outside IN, OUT and CORRECTION.
	ErrUnknownAdjustment = errors.New("inventory: unknown adjustment type")
	// ErrServiceProduct indicates a product that does not track stock.
	ErrServiceProduct = fmt.Errorf("inventory: service products do not carry stock: %w", shared.ErrRejected)
)

// InsufficientStockError rejects an outbound adjustment larger than the stock
// on hand.
type InsufficientStockError struct {
	Current   float64
	Requested float64
	Shortfall float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock: on hand %g, requested %g, short by %g", e.Current, e.Requested, e.Shortfall)
}

// Is makes errors.Is(err, shared.ErrRejected) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrRejected
}

// Details exposes the stock figures for problem responses.
func (e *InsufficientStockError) Details() map[string]any {
	return map[string]any{
		"currentStock": e.Current,
		"requested":    e.Requested,
		"shortfall":    e.Shortfall,
	}
}

// ParseAdjustment builds an Adjustment from loosely typed input. quantity is
// read for IN and OUT, newStock for CORRECTION.
func ParseAdjustment(kind string, quantity, newStock any) (Adjustment, error) {
	switch AdjustmentKind(strings.ToUpper(strings.TrimSpace(kind))) {
	case KindIn:
		return Inbound{Quantity: shared.Number(quantity)}, nil
	case KindOut:
		return Outbound{Quantity: shared.Number(quantity)}, nil
	case KindCorrection:
		return Correction{NewStockQuantity: shared.Number(newStock)}, nil
	}
	return nil, shared.NewFieldError("adjustmentType", ErrUnknownAdjustment.Error())
}

// Apply computes the stock level produced by adj. Sums are taken on the
// decimal form of each quantity, so an IN followed by an OUT of the same
// quantity restores the starting stock exactly. It never clamps: an outbound
// movement that would leave negative stock is rejected.
func Apply(currentStock float64, adj Adjustment) (AdjustmentResult, error) {
	if currentStock < 0 {
		return AdjustmentResult{}, shared.NewFieldError("currentStock", "must not be negative")
	}
	switch a := adj.(type) {
	case Inbound:
		if a.Quantity <= 0 {
			return AdjustmentResult{}, shared.NewFieldError("quantity", "must be greater than zero")
		}
		return AdjustmentResult{
			ResultingStock:  shared.AddExact(currentStock, a.Quantity),
			AdjustmentType:  KindIn,
			AppliedQuantity: a.Quantity,
		}, nil
	case Outbound:
		if a.Quantity <= 0 {
			return AdjustmentResult{}, shared.NewFieldError("quantity", "must be greater than zero")
		}
		next := shared.SubExact(currentStock, a.Quantity)
		if next < 0 {
			return AdjustmentResult{}, &InsufficientStockError{Current: currentStock, Requested: a.Quantity, Shortfall: shared.SubExact(a.Quantity, currentStock)}
		}
		return AdjustmentResult{
			ResultingStock:  next,
			AdjustmentType:  KindOut,
			AppliedQuantity: -a.Quantity,
		}, nil
	case Correction:
		if a.NewStockQuantity < 0 {
			return AdjustmentResult{}, shared.NewFieldError("newStockQuantity", "must not be negative")
		}
		return AdjustmentResult{
			ResultingStock:  a.NewStockQuantity,
			AdjustmentType:  KindCorrection,
			AppliedQuantity: shared.SubExact(a.NewStockQuantity, currentStock),
		}, nil
	}
	return AdjustmentResult{}, shared.NewFieldError("adjustmentType", ErrUnknownAdjustment.Error())
}
