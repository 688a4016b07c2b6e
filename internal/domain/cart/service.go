package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// Service maintains the single open cart per user.
type Service struct {
	users    user.Repository
	products product.Repository
	carts    Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(users user.Repository, products product.Repository, carts Repository) *Service {
	return &Service{
		users:    users,
		products: products,
		carts:    carts,
	}
}

// AddOrUpdate puts a product line into the user's cart, creating the cart
// lazily on first add. An already-present product has its quantity replaced
// with the new value, not summed. The stock check is a soft availability
// check; nothing is reserved.
func (s *Service) AddOrUpdate(ctx context.Context, userID, productID int64, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return Line{}, errors.Wrap(err, "get user")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Line{}, err
	}

	if quantity > p.Stock {
		return Line{}, &product.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: p.Stock,
		}
	}

	if err := s.carts.Upsert(ctx, userID, productID, quantity); err != nil {
		return Line{}, errors.Wrap(err, "upsert cart line")
	}

	return Line{ProductID: productID, ProductName: p.Name, Quantity: quantity}, nil
}

// Read returns all lines of the user's cart, or an empty slice when the user
// has no open cart.
func (s *Service) Read(ctx context.Context, userID int64) ([]Line, error) {
	lines, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}
