package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item available for purchase. Price is
// read-only from the checkout path's perspective; Stock is mutated only by
// the reservation performed at checkout commit time.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// NotFoundError indicates a requested product does not exist.
type NotFoundError struct {
	ProductID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError indicates a requested quantity exceeds the
// currently available stock. It is raised both by the soft availability
// check at cart-add time and by the reserving check at checkout commit time.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	// GetByIDs returns one Product per distinct id found. Callers are
	// responsible for detecting ids with no matching product.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
