package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyProducts      = errors.New("product ids required")
	ErrUnauthorizedAccess = errors.New("user cannot place order for another user")
)

// DiscountValidator validates a set of discount codes and returns the
// matching records in input order.
type DiscountValidator interface {
	Validate(ctx context.Context, codes []string) ([]discount.Discount, error)
}

// CheckoutRequest holds the input for a checkout. CallerID is the identity
// established by the authentication layer; OwnerID is the requested order
// owner from the payload. They must match.
type CheckoutRequest struct {
	OwnerID       int64
	CallerID      int64
	ProductIDs    []int64
	DiscountCodes []string
}

// Service orchestrates the checkout use case.
type Service struct {
	users     user.Repository
	products  product.Repository
	discounts DiscountValidator
	committer Committer
	now       func() time.Time
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	users user.Repository,
	products product.Repository,
	discounts DiscountValidator,
	committer Committer,
) *Service {
	return &Service{
		users:     users,
		products:  products,
		discounts: discounts,
		committer: committer,
		now:       time.Now,
	}
}

// Checkout authorizes the caller, resolves products and discounts, prices
// the order, and commits stock decrement, discount consumption, and the
// order row atomically. Repetition of a product id in ProductIDs encodes its
// quantity. Validation runs outside the commit's transactional boundary;
// only the commit mutates state.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	// Authorization comes first, before any lookup. CallerID originates from
	// the authentication layer, never from the payload.
	if req.OwnerID != req.CallerID {
		return nil, ErrUnauthorizedAccess
	}
	if len(req.ProductIDs) == 0 {
		return nil, ErrEmptyProducts
	}

	if _, err := s.users.GetByID(ctx, req.OwnerID); err != nil {
		return nil, errors.Wrap(err, "get owner")
	}

	products, err := s.resolveProducts(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}

	discounts, err := s.discounts.Validate(ctx, dedupeCodes(req.DiscountCodes))
	if err != nil {
		return nil, err
	}

	// Fold repeated ids into per-product lines; repetition encodes quantity.
	lines := make([]pricing.Line, 0, len(products))
	index := make(map[int64]int, len(products))
	for _, p := range products {
		if i, ok := index[p.ID]; ok {
			lines[i].Quantity++
			continue
		}
		index[p.ID] = len(lines)
		lines = append(lines, pricing.Line{Product: p, Quantity: 1})
	}

	quote, err := pricing.Price(lines, discounts)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:           uuid.New().String(),
		UserID:       req.OwnerID,
		Lines:        make([]Line, len(lines)),
		AppliedCodes: codesOf(discounts),
		Subtotal:     quote.Subtotal,
		Total:        quote.Total,
		CreatedAt:    s.now(),
	}
	quantities := make(map[int64]int, len(lines))
	for i, l := range lines {
		o.Lines[i] = Line{
			ProductID: l.Product.ID,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.Price,
		}
		quantities[l.Product.ID] = l.Quantity
	}

	if err := s.committer.Commit(ctx, o, quantities, o.AppliedCodes); err != nil {
		return nil, err
	}

	return o, nil
}

// resolveProducts fetches all distinct products in one batch and expands the
// requested id list, failing on the first unknown id.
func (s *Service) resolveProducts(ctx context.Context, ids []int64) ([]product.Product, error) {
	distinct := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	fetched, err := s.products.GetByIDs(ctx, distinct)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	products := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &product.NotFoundError{ProductID: id}
		}
		products = append(products, p)
	}
	return products, nil
}

// dedupeCodes drops repeated discount codes, keeping first-occurrence order.
// Code lookup is case-insensitive, so repetition is detected the same way.
// A code grants its discount and consumes a use once per checkout, however
// many times the request carries it.
func dedupeCodes(codes []string) []string {
	if len(codes) < 2 {
		return codes
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		key := strings.ToUpper(code)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, code)
	}
	return out
}

func codesOf(discounts []discount.Discount) []string {
	codes := make([]string, len(discounts))
	for i, d := range discounts {
		codes[i] = d.Code
	}
	return codes
}
