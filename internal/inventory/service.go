package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/tradebook/internal/shared"
)

const idempotencyModule = "inventory"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListMovements(ctx context.Context, filter StockCardFilter) ([]Movement, error)
}

// IdempotencyPort guards against replayed adjustment codes.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	locker      shared.Locker
	idempotency IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. locker and idem may be nil.
func NewService(repo RepositoryPort, locker shared.Locker, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locker: locker, idempotency: idem, logger: logger, now: time.Now}
}

// PostAdjustment applies an adjustment to the product's current stock and
// persists both the movement and the new stock level. The product row is
// locked for the whole read-apply-write sequence.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.ProductID <= 0 {
		return Movement{}, shared.NewFieldError("productId", "is required")
	}
	if input.Adjustment == nil {
		return Movement{}, shared.NewFieldError("adjustmentType", ErrUnknownAdjustment.Error())
	}
	if shared.ExceedsScale(quantityOf(input.Adjustment), shared.QuantityScale) {
		field := "quantity"
		if input.Adjustment.Kind() == KindCorrection {
			field = "newStockQuantity"
		}
		return Movement{}, shared.NewFieldError(field, "must have at most 4 decimals")
	}
	now := s.now().UTC()
	if input.AdjustedAt.IsZero() {
		input.AdjustedAt = now
	}
	code := input.Code
	if code == "" {
		code = "ADJ-" + uuid.NewString()
	}

	insertedKey := false
	if input.Code != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, code, idempotencyModule); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	var movement Movement
	err := s.withLock(ctx, shared.StockLockKey(input.ProductID), func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			product, err := tx.GetProductForUpdate(ctx, input.ProductID)
			if err != nil {
				return err
			}
			if product.IsService {
				return ErrServiceProduct
			}
			result, err := Apply(product.StockQuantity, input.Adjustment)
			if err != nil {
				return err
			}
			movement, err = tx.InsertMovement(ctx, Movement{
				Code:            code,
				ProductID:       product.ID,
				Type:            result.AdjustmentType,
				Quantity:        quantityOf(input.Adjustment),
				AppliedQuantity: result.AppliedQuantity,
				ResultingStock:  result.ResultingStock,
				Reason:          input.Reason,
				AdjustedAt:      input.AdjustedAt,
			})
			if err != nil {
				return err
			}
			return tx.UpdateStock(ctx, product.ID, result.ResultingStock)
		})
	})
	if err != nil {
		if insertedKey {
			if derr := s.idempotency.Delete(ctx, code, idempotencyModule); derr != nil {
				s.logger.Warn("inventory: release idempotency key", slog.String("code", code), slog.Any("error", derr))
			}
		}
		return Movement{}, err
	}
	s.logger.Info("inventory: stock adjusted",
		slog.Int64("product_id", movement.ProductID),
		slog.String("type", string(movement.Type)),
		slog.Float64("applied", movement.AppliedQuantity),
		slog.Float64("stock", movement.ResultingStock))
	return movement, nil
}

// GetProduct returns a product with its current stock.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetStockCard lists the movements of one product, newest last.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	if filter.ProductID <= 0 {
		return nil, shared.NewFieldError("productId", "is required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.NewFieldError("to", "must not be before from")
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("inventory: stock card: %w", err)
	}
	return movements, nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, shared.ErrLockBusy) {
		s.logger.Warn("inventory: stock lock busy", slog.String("key", key))
	}
	return err
}
