package inventory

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Product is a stock-keeping item. Service products carry no stock.
type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	IsService     bool      `json:"isService"`
	StockQuantity float64   `json:"stockQuantity"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Movement is a persisted stock adjustment. Quantity holds the requested
// quantity for IN and OUT and the counted stock for CORRECTION.
type Movement struct {
	ID              int64          `json:"id"`
	Code            string         `json:"code"`
	ProductID       int64          `json:"productId"`
	Type            AdjustmentKind `json:"adjustmentType"`
	Quantity        float64        `json:"quantity"`
	AppliedQuantity float64        `json:"appliedQuantity"`
	ResultingStock  float64        `json:"resultingStock"`
	Reason          string         `json:"reason,omitempty"`
	AdjustedAt      time.Time      `json:"adjustedAt"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// AdjustmentInput describes request to adjust stock.
type AdjustmentInput struct {
	Code       string
	ProductID  int64
	Adjustment Adjustment
	Reason     string
	AdjustedAt time.Time
}

// StockCardFilter filters movement history.
type StockCardFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrProductNotFound indicates an unknown product.
var ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)

func quantityOf(adj Adjustment) float64 {
	switch a := adj.(type) {
	case Inbound:
		return a.Quantity
	case Outbound:
		return a.Quantity
	case Correction:
		return a.NewStockQuantity
	}
	return 0
}
