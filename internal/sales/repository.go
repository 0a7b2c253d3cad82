package sales

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tradebook/internal/platform/db"
	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
)

// Repository handles database operations for commercial documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetDocument loads a document with its lines.
func (r *Repository) GetDocument(ctx context.Context, kind conversion.DocumentKind, id string) (Document, error) {
	var (
		doc        Document
		sourceKind pgtype.Text
		sourceID   pgtype.Text
		sub, disc  pgtype.Numeric
		net, vat   pgtype.Numeric
		ttc        pgtype.Numeric
		breakdown  []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, kind, number, source_kind, source_id,
	sub_total_ht_before_discount, total_discount, sub_total_ht, total_vat, total_ttc, vat_breakdown,
	created_at, updated_at
FROM documents WHERE id = $1 AND kind = $2`, id, string(kind)).
		Scan(&doc.ID, &doc.Kind, &doc.Number, &sourceKind, &sourceID,
			&sub, &disc, &net, &vat, &ttc, &breakdown, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	doc.SourceKind = conversion.DocumentKind(sourceKind.String)
	doc.SourceID = sourceID.String
	doc.Totals = pricing.DocumentTotals{
		SubTotalHTBeforeDiscount: db.FromNumeric(sub),
		TotalDiscountAmount:      db.FromNumeric(disc),
		SubTotalHT:               db.FromNumeric(net),
		TotalVAT:                 db.FromNumeric(vat),
		TotalTTC:                 db.FromNumeric(ttc),
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &doc.Totals.VATBreakdown); err != nil {
			return Document{}, err
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT id, source_line_id, product_id, product_name, description,
	quantity, quantity_ordered, quantity_delivered, unit_price_ht, vat_rate, discount_rate
FROM document_lines WHERE document_id = $1 ORDER BY position`, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line                DocumentLine
			sourceLine, desc    pgtype.Text
			qty, ordered, price pgtype.Numeric
			delivered, discount pgtype.Numeric
			rate                pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &sourceLine, &line.ProductID, &line.ProductName, &desc,
			&qty, &ordered, &delivered, &price, &rate, &discount); err != nil {
			return Document{}, err
		}
		line.SourceLineID = sourceLine.String
		line.Description = desc.String
		line.Quantity = db.FromNumeric(qty)
		line.QuantityOrdered = db.FromNumeric(ordered)
		line.UnitPriceHT = db.FromNumeric(price)
		line.VATRate = db.FromNumeric(rate)
		line.QuantityDelivered = nullableNumeric(delivered)
		line.DiscountRate = nullableNumeric(discount)
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

// ListDocumentIDs lists the identifiers of every document of kind.
func (r *Repository) ListDocumentIDs(ctx context.Context, kind conversion.DocumentKind) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM documents WHERE kind = $1 ORDER BY created_at`, string(kind))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
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

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	breakdown, err := json.Marshal(doc.Totals.VATBreakdown)
	if err != nil {
		return Document{}, err
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO documents (id, kind, number, source_kind, source_id,
	sub_total_ht_before_discount, total_discount, sub_total_ht, total_vat, total_ttc, vat_breakdown)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at`,
		doc.ID, string(doc.Kind), doc.Number, string(doc.SourceKind), doc.SourceID,
		db.ToNumeric(doc.Totals.SubTotalHTBeforeDiscount), db.ToNumeric(doc.Totals.TotalDiscountAmount),
		db.ToNumeric(doc.Totals.SubTotalHT), db.ToNumeric(doc.Totals.TotalVAT), db.ToNumeric(doc.Totals.TotalTTC),
		breakdown).
		Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}

	batch := &pgx.Batch{}
	for i, l := range doc.Lines {
		batch.Queue(`INSERT INTO document_lines (id, document_id, position, source_line_id, product_id, product_name, description,
	quantity, quantity_ordered, quantity_delivered, unit_price_ht, vat_rate, discount_rate)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13)`,
			l.ID, doc.ID, i+1, l.SourceLineID, l.ProductID, l.ProductName, l.Description,
			db.ToNumeric(l.Quantity), db.ToNumeric(l.QuantityOrdered), toNullableNumeric(l.QuantityDelivered),
			db.ToNumeric(l.UnitPriceHT), db.ToNumeric(l.VATRate), toNullableNumeric(l.DiscountRate))
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) UpdateTotals(ctx context.Context, id string, totals pricing.DocumentTotals) error {
	breakdown, err := json.Marshal(totals.VATBreakdown)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET sub_total_ht_before_discount = $2, total_discount = $3,
	sub_total_ht = $4, total_vat = $5, total_ttc = $6, vat_breakdown = $7, updated_at = NOW()
WHERE id = $1`,
		id, db.ToNumeric(totals.SubTotalHTBeforeDiscount), db.ToNumeric(totals.TotalDiscountAmount),
		db.ToNumeric(totals.SubTotalHT), db.ToNumeric(totals.TotalVAT), db.ToNumeric(totals.TotalTTC), breakdown)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func nullableNumeric(n pgtype.Numeric) *float64 {
	if !n.Valid {
		return nil
	}
	v := db.FromNumeric(n)
	return &v
}

func toNullableNumeric(v *float64) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return db.ToNumeric(*v)
}
