package ar

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// Payment is money received against one invoice.
type Payment struct {
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
}

// Reconciliation summarises how much of an invoice has been settled.
type Reconciliation struct {
	AmountPaid  float64 `json:"amountPaid"`
	AmountDue   float64 `json:"amountDue"`
	IsFullyPaid bool    `json:"isFullyPaid"`
}

// Reconcile sums payments against totalTTC. An invoice is fully paid once the
// remaining amount is within shared.SettlementEpsilon of zero.
func Reconcile(totalTTC float64, payments []Payment) Reconciliation {
	var paid float64
	for _, p := range payments {
		paid = shared.AddExact(paid, p.Amount)
	}
	due := shared.SubExact(totalTTC, paid)
	rec := Reconciliation{
		AmountPaid:  shared.Round2(paid),
		AmountDue:   shared.Round2(due),
		IsFullyPaid: due <= shared.SettlementEpsilon,
	}
	if rec.IsFullyPaid && rec.AmountDue > -shared.AmountTolerance {
		rec.AmountDue = 0
	}
	return rec
}

// OverpaymentError rejects a payment larger than the amount still due.
type OverpaymentError struct {
	AmountDue float64
	Amount    float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("ar: payment %.2f exceeds amount due %.2f", e.Amount, e.AmountDue)
}

// Is makes errors.Is(err, shared.ErrRejected) hold.
func (e *OverpaymentError) Is(target error) bool {
	return target == shared.ErrRejected
}

// Details exposes the amounts for problem responses.
func (e *OverpaymentError) Details() map[string]any {
	return map[string]any{
		"amountDue": e.AmountDue,
		"amount":    e.Amount,
	}
}

// ValidateNewPayment checks a payment before it is recorded. amountDue is
// the balance before this payment.
func ValidateNewPayment(amountDue float64, p Payment) error {
	verr := &shared.ValidationError{}
	if p.Amount <= 0 {
		verr.Add(-1, "amount", "must be greater than zero")
	}
	if strings.TrimSpace(p.Method) == "" {
		verr.Add(-1, "method", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	if p.Amount > amountDue+shared.SettlementEpsilon {
		return &OverpaymentError{AmountDue: amountDue, Amount: p.Amount}
	}
	return nil
}
