package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/digigoods/internal/domain/cart"
)

const (
	// The no-op DO UPDATE makes the upsert return the header id in both the
	// insert and conflict cases, and takes a row lock that serializes
	// concurrent mutations of the same user's cart.
	upsertCartHeaderSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	upsertCartLineSQL = `INSERT INTO cart_lines (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	listCartLinesSQL = `SELECT cl.product_id, p.name, cl.quantity
		FROM cart_lines cl
		JOIN carts c ON c.id = cl.cart_id
		JOIN products p ON p.id = cl.product_id
		WHERE c.user_id = $1
		ORDER BY cl.id`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Upsert lazily creates the user's cart header and sets the line quantity
// for the product, replacing any previous value. Both statements run in one
// transaction.
func (r *CartRepository) Upsert(ctx context.Context, userID, productID int64, quantity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning cart upsert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var cartID int64
	if err := tx.QueryRow(ctx, upsertCartHeaderSQL, userID).Scan(&cartID); err != nil {
		return fmt.Errorf("upserting cart header for user %d: %w", userID, err)
	}

	if _, err := tx.Exec(ctx, upsertCartLineSQL, cartID, productID, quantity); err != nil {
		return fmt.Errorf("upserting cart line for product %d: %w", productID, err)
	}

	return tx.Commit(ctx)
}

// List returns the user's cart lines resolved to product names, in insertion
// order. A user without a cart yields an empty slice.
func (r *CartRepository) List(ctx context.Context, userID int64) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines for user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[cart.Line])
}
