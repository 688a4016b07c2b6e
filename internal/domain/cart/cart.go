package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalidQuantity is returned when a cart add carries a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Line is a cart line resolved to its product name.
type Line struct {
	ProductID   int64
	ProductName string
	Quantity    int
}

// Repository defines persistence for the single open cart per user. The
// cart header owns its lines; lines never outlive the header.
type Repository interface {
	// Upsert creates the user's cart header if absent, then sets the
	// quantity for the product line, replacing any existing value.
	Upsert(ctx context.Context, userID, productID int64, quantity int) error
	// List returns the user's cart lines in insertion order, resolved to
	// product names. A user without a cart yields an empty slice.
	List(ctx context.Context, userID int64) ([]Line, error)
}
