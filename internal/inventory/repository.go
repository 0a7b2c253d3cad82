package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tradebook/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	UpdateStock(ctx context.Context, productID int64, qty float64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const productColumns = `id, sku, name, is_service, stock_quantity, updated_at`

// GetProduct loads a product outside a transaction.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// ListMovements returns a product's adjustments in posting order.
func (r *Repository) ListMovements(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, product_id, adjustment_type, quantity, applied_quantity, resulting_stock, reason, adjusted_at, created_at
FROM stock_adjustments
WHERE product_id = $1
  AND ($2::timestamptz IS NULL OR adjusted_at >= $2)
  AND ($3::timestamptz IS NULL OR adjusted_at <= $3)
ORDER BY adjusted_at, id
LIMIT $4`,
		filter.ProductID,
		pgtype.Timestamptz{Time: filter.From, Valid: !filter.From.IsZero()},
		pgtype.Timestamptz{Time: filter.To, Valid: !filter.To.IsZero()},
		int32(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var (
			m                       Movement
			kind                    string
			qty, applied, resulting pgtype.Numeric
			reason                  pgtype.Text
		)
		if err := rows.Scan(&m.ID, &m.Code, &m.ProductID, &kind, &qty, &applied, &resulting, &reason, &m.AdjustedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = AdjustmentKind(kind)
		m.Quantity = db.FromNumeric(qty)
		m.AppliedQuantity = db.FromNumeric(applied)
		m.ResultingStock = db.FromNumeric(resulting)
		m.Reason = reason.String
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_adjustments (code, product_id, adjustment_type, quantity, applied_quantity, resulting_stock, reason, adjusted_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8) RETURNING id, created_at`,
		m.Code, m.ProductID, string(m.Type), db.ToNumeric(m.Quantity), db.ToNumeric(m.AppliedQuantity),
		db.ToNumeric(m.ResultingStock), m.Reason, m.AdjustedAt).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

func (r *txRepo) UpdateStock(ctx context.Context, productID int64, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, productID, db.ToNumeric(qty))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		stock pgtype.Numeric
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.IsService, &stock, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	p.StockQuantity = db.FromNumeric(stock)
	return p, nil
}
