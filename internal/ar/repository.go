package ar

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tradebook/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for AR.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const invoiceColumns = `id, number, document_id, total_ttc, status, due_at, created_at, updated_at`

// GetInvoice loads one invoice.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// ListPayments returns the payments of an invoice in recording order.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]PaymentRecord, error) {
	return listPayments(ctx, r.pool, invoiceID)
}

// ListOpenInvoices returns posted invoices that may still have a balance.
func (r *Repository) ListOpenInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE status = 'POSTED' ORDER BY due_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertInvoice(ctx context.Context, in OpenInvoiceInput) (Invoice, error) {
	inv := Invoice{Number: in.Number, DocumentID: in.DocumentID, TotalTTC: in.TotalTTC, Status: StatusPosted, DueAt: in.DueAt}
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, document_id, total_ttc, status, due_at)
VALUES ($1, NULLIF($2, ''), $3, 'POSTED', $4) RETURNING id, created_at, updated_at`,
		in.Number, in.DocumentID, db.ToNumeric(in.TotalTTC), in.DueAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.tx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *txRepository) ListPayments(ctx context.Context, invoiceID int64) ([]PaymentRecord, error) {
	return listPayments(ctx, r.tx, invoiceID)
}

func (r *txRepository) InsertPayment(ctx context.Context, invoiceID int64, p Payment) (PaymentRecord, error) {
	rec := PaymentRecord{InvoiceID: invoiceID, Payment: p}
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, amount, paid_at, method, reference)
VALUES ($1, $2, $3, $4, NULLIF($5, '')) RETURNING id, created_at`,
		invoiceID, db.ToNumeric(p.Amount), p.Date, p.Method, p.Reference).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return PaymentRecord{}, err
	}
	return rec, nil
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func getInvoice(ctx context.Context, q querier, sql string, id int64) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv    Invoice
		docID  pgtype.Text
		total  pgtype.Numeric
		status string
	)
	if err := row.Scan(&inv.ID, &inv.Number, &docID, &total, &status, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	inv.DocumentID = docID.String
	inv.TotalTTC = db.FromNumeric(total)
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func listPayments(ctx context.Context, q querier, invoiceID int64) ([]PaymentRecord, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, amount, paid_at, method, reference, created_at
FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentRecord
	for rows.Next() {
		var (
			rec    PaymentRecord
			amount pgtype.Numeric
			ref    pgtype.Text
		)
		if err := rows.Scan(&rec.ID, &rec.InvoiceID, &amount, &rec.Date, &rec.Method, &ref, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Amount = db.FromNumeric(amount)
		rec.Reference = ref.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
