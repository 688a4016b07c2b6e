package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
)

const (
	lockProductStockSQL = `SELECT stock FROM products WHERE id = $1 FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1`

	lockDiscountUsesSQL = `SELECT remaining_uses FROM discounts WHERE code = $1 FOR UPDATE`

	consumeDiscountSQL = `UPDATE discounts SET remaining_uses = remaining_uses - 1 WHERE code = $1`

	createOrderSQL = `INSERT INTO orders (id, user_id, lines, applied_codes, subtotal, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ order.Committer = (*OrderRepository)(nil)

// OrderRepository implements order.Committer backed by PostgreSQL. The
// commit runs in a single transaction with FOR UPDATE row locks, so two
// concurrent checkouts contending for the same product or discount serialize
// and the loser re-validates against the committed state.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Commit atomically decrements stock for every ordered product, consumes one
// use per applied discount, and inserts the order row. Rows are locked in
// sorted key order to avoid deadlocks between concurrent commits. Any
// validation failure rolls the whole transaction back and surfaces the same
// typed error as first-time validation.
func (r *OrderRepository) Commit(ctx context.Context, o *order.Order, quantities map[int64]int, codes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning checkout commit: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := reserveStock(ctx, tx, quantities); err != nil {
		return err
	}
	if err := consumeDiscounts(ctx, tx, codes); err != nil {
		return err
	}

	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, linesJSON, o.AppliedCodes, o.Subtotal, o.Total, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return tx.Commit(ctx)
}

// reserveStock re-checks availability under row locks and decrements every
// product's stock. Partial decrements are never observable: the first
// shortfall aborts the transaction.
func reserveStock(ctx context.Context, tx pgx.Tx, quantities map[int64]int) error {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		requested := quantities[id]

		var available int32
		if err := tx.QueryRow(ctx, lockProductStockSQL, id).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &product.NotFoundError{ProductID: id}
			}
			return fmt.Errorf("locking stock for product %d: %w", id, err)
		}

		if requested > int(available) {
			return &product.InsufficientStockError{
				ProductID: id,
				Requested: requested,
				Available: int(available),
			}
		}

		if _, err := tx.Exec(ctx, decrementStockSQL, id, requested); err != nil {
			return fmt.Errorf("decrementing stock for product %d: %w", id, err)
		}
	}
	return nil
}

// consumeDiscounts decrements remaining uses by exactly 1 per code,
// re-checking exhaustion under the row lock.
func consumeDiscounts(ctx context.Context, tx pgx.Tx, codes []string) error {
	sorted := slices.Clone(codes)
	slices.Sort(sorted)

	for _, code := range sorted {
		var remaining int32
		if err := tx.QueryRow(ctx, lockDiscountUsesSQL, code).Scan(&remaining); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &discount.InvalidDiscountError{Code: code, Reason: discount.ReasonNotFound}
			}
			return fmt.Errorf("locking discount %q: %w", code, err)
		}

		if remaining <= 0 {
			return &discount.InvalidDiscountError{Code: code, Reason: discount.ReasonNoRemainingUses}
		}

		if _, err := tx.Exec(ctx, consumeDiscountSQL, code); err != nil {
			return fmt.Errorf("consuming discount %q: %w", code, err)
		}
	}
	return nil
}
