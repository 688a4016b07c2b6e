// Package pricing implements the pure price-composition rules for checkout:
// multiplicative discount application and the excessive-discount cap.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/product"
)

// ErrExcessiveDiscount is returned when the composed discount reduces the
// total below 25% of the original subtotal.
var ErrExcessiveDiscount = errors.New("discount exceeds 75% of the original subtotal")

var (
	hundred  = decimal.NewFromInt(100)
	capRatio = decimal.RequireFromString("0.25")
)

// Line is a priced order line.
type Line struct {
	Product  product.Product
	Quantity int
}

// Quote holds the result of pricing a set of lines.
type Quote struct {
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

// Price computes the discounted total for the given lines.
//
// Product-specific discounts multiply the subtotals of their applicable
// lines; general discounts then multiply the order total. Same-scope
// discounts compose multiplicatively in the order given (validation order),
// which leaves the composed multiplier order-independent. The result is
// rounded half-up to 2 decimal places once, at the end.
//
// Returns ErrExcessiveDiscount when the final total falls below 25% of the
// original subtotal. The cap is evaluated on the fully composed price, not
// per discount.
func Price(lines []Line, discounts []discount.Discount) (Quote, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(lineSubtotal(l))
	}

	total := decimal.Zero
	for _, l := range lines {
		adjusted := lineSubtotal(l)
		for _, d := range discounts {
			if d.AppliesTo(l.Product.ID) {
				adjusted = adjusted.Mul(multiplier(d))
			}
		}
		total = total.Add(adjusted)
	}

	for _, d := range discounts {
		if d.Kind == discount.KindGeneral {
			total = total.Mul(multiplier(d))
		}
	}

	total = total.Round(2)
	subtotal = subtotal.Round(2)

	if total.LessThan(subtotal.Mul(capRatio)) {
		return Quote{}, ErrExcessiveDiscount
	}

	return Quote{Subtotal: subtotal, Total: total}, nil
}

func lineSubtotal(l Line) decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// multiplier returns (1 - percentage/100).
func multiplier(d discount.Discount) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(d.Percentage.Div(hundred))
}
