package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

const idempotencyModule = "ar.payment"

// RepositoryPort defines data access methods for AR.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]PaymentRecord, error)
	ListOpenInvoices(ctx context.Context) ([]Invoice, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertInvoice(ctx context.Context, in OpenInvoiceInput) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]PaymentRecord, error)
	InsertPayment(ctx context.Context, invoiceID int64, p Payment) (PaymentRecord, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
}

// IdempotencyPort guards against duplicate payment submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Service handles AR business logic.
type Service struct {
	repo   RepositoryPort
	locker shared.Locker
	idem   IdempotencyPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance. locker and idem may be nil.
func NewService(repo RepositoryPort, locker shared.Locker, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locker: locker, idem: idem, logger: logger, now: time.Now}
}

// OpenInvoice registers the receivable of an issued invoice.
func (s *Service) OpenInvoice(ctx context.Context, in OpenInvoiceInput) (Invoice, error) {
	if in.TotalTTC < 0 {
		return Invoice{}, shared.NewFieldError("totalTTC", "must not be negative")
	}
	if in.DueAt.IsZero() {
		in.DueAt = s.now().AddDate(0, 0, 30)
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.InsertInvoice(ctx, in)
		return err
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("ar: open invoice: %w", err)
	}
	return inv, nil
}

// RecordPayment validates and stores a payment, marking the invoice paid once
// nothing remains due.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (PaymentReceipt, error) {
	if in.InvoiceID <= 0 {
		return PaymentReceipt{}, shared.NewFieldError("invoiceId", "is required")
	}
	if shared.ExceedsScale(in.Payment.Amount, shared.MoneyScale) {
		return PaymentReceipt{}, shared.NewFieldError("amount", "must have at most 2 decimals")
	}
	if in.Payment.Date.IsZero() {
		in.Payment.Date = s.now()
	}
	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return PaymentReceipt{}, err
		}
	}

	var receipt PaymentReceipt
	err := s.withLock(ctx, shared.InvoiceLockKey(in.InvoiceID), func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
			if err != nil {
				return err
			}
			if inv.Status == StatusVoid {
				return ErrInvoiceVoid
			}
			existing, err := tx.ListPayments(ctx, inv.ID)
			if err != nil {
				return err
			}
			before := Reconcile(inv.TotalTTC, payments(existing))
			if err := ValidateNewPayment(before.AmountDue, in.Payment); err != nil {
				return err
			}
			record, err := tx.InsertPayment(ctx, inv.ID, in.Payment)
			if err != nil {
				return err
			}
			after := Reconcile(inv.TotalTTC, append(payments(existing), in.Payment))
			status := inv.Status
			if after.IsFullyPaid && status != StatusPaid {
				if err := tx.UpdateInvoiceStatus(ctx, inv.ID, StatusPaid); err != nil {
					return err
				}
				status = StatusPaid
			}
			receipt = PaymentReceipt{Payment: record, Reconciliation: after, Status: status}
			return nil
		})
	})
	if err != nil {
		if in.IdempotencyKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, in.IdempotencyKey, idempotencyModule); derr != nil {
				s.logger.Warn("ar: release idempotency key", slog.String("key", in.IdempotencyKey), slog.Any("error", derr))
			}
		}
		return PaymentReceipt{}, err
	}
	s.logger.Info("ar: payment recorded",
		slog.Int64("invoice_id", in.InvoiceID),
		slog.Float64("amount", in.Payment.Amount),
		slog.Float64("amount_due", receipt.Reconciliation.AmountDue),
		slog.String("status", string(receipt.Status)))
	return receipt, nil
}

// GetBalance loads an invoice and its payments and reconciles them.
func (s *Service) GetBalance(ctx context.Context, invoiceID int64) (InvoiceBalance, error) {
	var (
		inv     Invoice
		records []PaymentRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inv, err = s.repo.GetInvoice(gctx, invoiceID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.repo.ListPayments(gctx, invoiceID)
		return err
	})
	if err := g.Wait(); err != nil {
		return InvoiceBalance{}, err
	}
	if records == nil {
		records = []PaymentRecord{}
	}
	return InvoiceBalance{
		Invoice:        inv,
		Payments:       records,
		Reconciliation: Reconcile(inv.TotalTTC, payments(records)),
	}, nil
}

// SweepSettled marks open invoices whose payments already cover them as paid.
// It returns the number of invoices updated.
func (s *Service) SweepSettled(ctx context.Context) (int, error) {
	open, err := s.repo.ListOpenInvoices(ctx)
	if err != nil {
		return 0, fmt.Errorf("ar: list open invoices: %w", err)
	}
	settled := 0
	for _, inv := range open {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		err := s.withLock(ctx, shared.InvoiceLockKey(inv.ID), func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				current, err := tx.GetInvoiceForUpdate(ctx, inv.ID)
				if err != nil {
					return err
				}
				if current.Status != StatusPosted {
					return nil
				}
				records, err := tx.ListPayments(ctx, inv.ID)
				if err != nil {
					return err
				}
				if !Reconcile(current.TotalTTC, payments(records)).IsFullyPaid {
					return nil
				}
				settled++
				return tx.UpdateInvoiceStatus(ctx, inv.ID, StatusPaid)
			})
		})
		if errors.Is(err, shared.ErrLockBusy) {
			s.logger.Warn("ar: sweep skipped busy invoice", slog.Int64("invoice_id", inv.ID))
			continue
		}
		if err != nil {
			return settled, fmt.Errorf("ar: sweep invoice %d: %w", inv.ID, err)
		}
	}
	return settled, nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, key, fn)
}
