package discount

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount scopes.
type Kind string

const (
	// KindGeneral applies as a multiplicative reduction to the whole order total.
	KindGeneral Kind = "GENERAL"
	// KindProductSpecific applies only to line items for products in the
	// discount's applicable set.
	KindProductSpecific Kind = "PRODUCT_SPECIFIC"
)

// Validation failure reasons carried by InvalidDiscountError.
const (
	ReasonNotFound        = "discount code not found"
	ReasonExpired         = "discount has expired"
	ReasonNotYetValid     = "discount is not yet valid"
	ReasonNoRemainingUses = "discount has no remaining uses"
)

// ErrNotFound is returned by Repository lookups when no discount exists for
// a code. The Ledger maps it to InvalidDiscountError with ReasonNotFound.
var ErrNotFound = errors.New("discount not found")

// InvalidDiscountError indicates a discount code failed lifecycle validation.
type InvalidDiscountError struct {
	Code   string
	Reason string
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("invalid discount %q: %s", e.Code, e.Reason)
}

// Discount is a promotional code with a validity window and a consumable
// use counter. RemainingUses decreases by exactly 1 per successful checkout
// that applies the code, regardless of line count or quantity.
type Discount struct {
	Code       string
	Percentage decimal.Decimal
	Kind       Kind
	// ValidFrom and ValidUntil bound the validity window at date
	// granularity, both ends inclusive.
	ValidFrom     time.Time
	ValidUntil    time.Time
	RemainingUses int
	// ApplicableProducts is meaningful only for KindProductSpecific.
	ApplicableProducts []int64
}

// AppliesTo reports whether the discount covers the given product line.
// General discounts never match a single line; they reduce the order total.
func (d Discount) AppliesTo(productID int64) bool {
	if d.Kind != KindProductSpecific {
		return false
	}
	return slices.Contains(d.ApplicableProducts, productID)
}

// Repository provides lookup of discounts by their code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
}
