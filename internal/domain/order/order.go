package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Line is an order line item snapshotting the unit price at purchase time.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order represents a completed checkout. It is created exactly once per
// successful checkout and is immutable thereafter.
type Order struct {
	ID           string
	UserID       int64
	Lines        []Line
	AppliedCodes []string
	Subtotal     decimal.Decimal
	Total        decimal.Decimal
	CreatedAt    time.Time
}

// Committer persists the effects of a successful checkout as one atomic
// unit: stock decrement per product, one consumed use per discount code, and
// the order row. If any part fails, none of the effects may be observable.
//
// Implementations must serialize concurrent commits touching the same
// product or discount and re-check stock and remaining uses under that
// serialization, surfacing the same typed errors as first-time validation
// (product.InsufficientStockError, discount.InvalidDiscountError).
type Committer interface {
	Commit(ctx context.Context, o *Order, quantities map[int64]int, codes []string) error
}
