package ar

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

// InvoiceStatus enumerates AR invoice statuses.
type InvoiceStatus string

const (
	StatusPosted InvoiceStatus = "POSTED"
	StatusPaid   InvoiceStatus = "PAID"
	StatusVoid   InvoiceStatus = "VOID"
)

// Invoice is the receivable side of an issued sales invoice.
type Invoice struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	DocumentID string        `json:"documentId,omitempty"`
	TotalTTC   float64       `json:"totalTTC"`
	Status     InvoiceStatus `json:"status"`
	DueAt      time.Time     `json:"dueAt"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// PaymentRecord is a persisted payment.
type PaymentRecord struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoiceId"`
	Payment
	CreatedAt time.Time `json:"createdAt"`
}

// OpenInvoiceInput registers a receivable for an issued invoice.
type OpenInvoiceInput struct {
	Number     string
	DocumentID string
	TotalTTC   float64
	DueAt      time.Time
}

// RecordPaymentInput carries a payment to record against an invoice.
type RecordPaymentInput struct {
	InvoiceID      int64
	Payment        Payment
	IdempotencyKey string
}

// PaymentReceipt is returned once a payment is stored.
type PaymentReceipt struct {
	Payment        PaymentRecord  `json:"payment"`
	Reconciliation Reconciliation `json:"reconciliation"`
	Status         InvoiceStatus  `json:"status"`
}

// InvoiceBalance is an invoice with its payment history reconciled.
type InvoiceBalance struct {
	Invoice        Invoice         `json:"invoice"`
	Payments       []PaymentRecord `json:"payments"`
	Reconciliation Reconciliation  `json:"reconciliation"`
}

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = fmt.Errorf("ar: invoice %w", shared.ErrNotFound)
	// ErrInvoiceVoid rejects payments against voided invoices.
	ErrInvoiceVoid = fmt.Errorf("ar: invoice is void: %w", shared.ErrRejected)
)

func payments(records []PaymentRecord) []Payment {
	out := make([]Payment, len(records))
	for i, r := range records {
		out[i] = r.Payment
	}
	return out
}
