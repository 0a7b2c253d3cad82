package ar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	invoices map[int64]Invoice
	payments map[int64][]PaymentRecord
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: make(map[int64]Invoice), payments: make(map[int64][]PaymentRecord)}
}

func (r *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepo) ListPayments(_ context.Context, invoiceID int64) ([]PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PaymentRecord(nil), r.payments[invoiceID]...), nil
}

func (r *memoryRepo) ListOpenInvoices(context.Context) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.Status == StatusPosted {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertInvoice(_ context.Context, in OpenInvoiceInput) (Invoice, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextID++
	inv := Invoice{ID: tx.repo.nextID, Number: in.Number, DocumentID: in.DocumentID, TotalTTC: in.TotalTTC, Status: StatusPosted, DueAt: in.DueAt}
	tx.repo.invoices[inv.ID] = inv
	return inv, nil
}

func (tx *memoryTx) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return tx.repo.GetInvoice(ctx, id)
}

func (tx *memoryTx) ListPayments(ctx context.Context, invoiceID int64) ([]PaymentRecord, error) {
	return tx.repo.ListPayments(ctx, invoiceID)
}

func (tx *memoryTx) InsertPayment(_ context.Context, invoiceID int64, p Payment) (PaymentRecord, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextID++
	rec := PaymentRecord{ID: tx.repo.nextID, InvoiceID: invoiceID, Payment: p}
	tx.repo.payments[invoiceID] = append(tx.repo.payments[invoiceID], rec)
	return rec, nil
}

func (tx *memoryTx) UpdateInvoiceStatus(_ context.Context, id int64, status InvoiceStatus) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	inv := tx.repo.invoices[id]
	inv.Status = status
	tx.repo.invoices[id] = inv
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if m.keys[module+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	delete(m.keys, module+key)
	return nil
}

func newTestService(t *testing.T, total float64) (*Service, *memoryRepo, int64) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, &memoryIdempotency{keys: map[string]bool{}}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	inv, err := svc.OpenInvoice(context.Background(), OpenInvoiceInput{Number: "INV-001", TotalTTC: total})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC), inv.DueAt)
	return svc, repo, inv.ID
}

func TestRecordPaymentUntilPaid(t *testing.T) {
	svc, repo, id := newTestService(t, 1200)
	ctx := context.Background()

	receipt, err := svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 400, Method: "cash"}})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, receipt.Status)
	require.Equal(t, 400.0, receipt.Reconciliation.AmountPaid)
	require.False(t, receipt.Payment.Date.IsZero())

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 400, Method: "cash"}})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, id)
	require.NoError(t, err)
	require.Len(t, balance.Payments, 2)
	require.Equal(t, Reconciliation{AmountPaid: 800, AmountDue: 400}, balance.Reconciliation)

	receipt, err = svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 400, Method: "transfer"}})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, receipt.Status)
	require.True(t, receipt.Reconciliation.IsFullyPaid)
	require.Equal(t, 0.0, receipt.Reconciliation.AmountDue)
	require.Equal(t, StatusPaid, repo.invoices[id].Status)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc, repo, id := newTestService(t, 100)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      id,
		Payment:        Payment{Amount: 150, Method: "card"},
		IdempotencyKey: "req-1",
	})
	require.ErrorIs(t, err, shared.ErrRejected)
	require.Empty(t, repo.payments[id])

	// the key is released so the client can retry with a corrected amount
	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      id,
		Payment:        Payment{Amount: 100, Method: "card"},
		IdempotencyKey: "req-1",
	})
	require.NoError(t, err)
}

func TestRecordPaymentDuplicateKey(t *testing.T) {
	svc, repo, id := newTestService(t, 100)
	in := RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 10, Method: "card"}, IdempotencyKey: "req-2"}

	_, err := svc.RecordPayment(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.payments[id], 1)
}

func TestRecordPaymentVoidInvoice(t *testing.T) {
	svc, repo, id := newTestService(t, 100)
	inv := repo.invoices[id]
	inv.Status = StatusVoid
	repo.invoices[id] = inv

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 10, Method: "card"}})
	require.ErrorIs(t, err, ErrInvoiceVoid)
	require.ErrorIs(t, err, shared.ErrRejected)
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc, _, _ := newTestService(t, 100)
	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 999, Payment: Payment{Amount: 10, Method: "card"}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.GetBalance(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSweepSettled(t *testing.T) {
	svc, repo, id := newTestService(t, 50)
	repo.payments[id] = []PaymentRecord{{InvoiceID: id, Payment: Payment{Amount: 50, Method: "cash"}}}
	_, err := svc.OpenInvoice(context.Background(), OpenInvoiceInput{Number: "INV-002", TotalTTC: 80})
	require.NoError(t, err)

	settled, err := svc.SweepSettled(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	require.Equal(t, StatusPaid, repo.invoices[id].Status)
}

func TestRecordPaymentRejectsSubCentAmount(t *testing.T) {
	svc, repo, id := newTestService(t, 100)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      id,
		Payment:        Payment{Amount: 0.004, Method: "card"},
		IdempotencyKey: "req-sub",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.payments[id])

	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 10.125, Method: "card"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	receipt, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: id, Payment: Payment{Amount: 10.12, Method: "card"}})
	require.NoError(t, err)
	require.Equal(t, 89.88, receipt.Reconciliation.AmountDue)
}
