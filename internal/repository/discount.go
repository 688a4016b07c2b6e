package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
)

const getDiscountByCodeSQL = `SELECT d.code, d.percentage, d.kind, d.valid_from, d.valid_until, d.remaining_uses,
		COALESCE(array_agg(dp.product_id) FILTER (WHERE dp.product_id IS NOT NULL), '{}') AS applicable_products
	FROM discounts d
	LEFT JOIN discount_products dp ON dp.discount_code = d.code
	WHERE UPPER(d.code) = UPPER($1)
	GROUP BY d.code`

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its code (case-insensitive), including
// its applicable product set. Returns discount.ErrNotFound when no discount
// exists for the code.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d             discount.Discount
		percentage    decimal.Decimal
		kind          string
		validFrom     time.Time
		validUntil    time.Time
		remainingUses int32
		applicable    []int64
	)
	err := row.Scan(&d.Code, &percentage, &kind, &validFrom, &validUntil, &remainingUses, &applicable)
	d.Percentage = percentage
	d.Kind = discount.Kind(kind)
	d.ValidFrom = validFrom
	d.ValidUntil = validUntil
	d.RemainingUses = int(remainingUses)
	d.ApplicableProducts = applicable
	return d, err
}
