package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/product"
)

func newTestProduct(id int64, price string) product.Product {
	return product.Product{
		ID:    id,
		Name:  "Product",
		Price: decimal.RequireFromString(price),
		Stock: 100,
	}
}

func generalDiscount(code, pct string) discount.Discount {
	return discount.Discount{
		Code:          code,
		Percentage:    decimal.RequireFromString(pct),
		Kind:          discount.KindGeneral,
		RemainingUses: 10,
	}
}

func productDiscount(code, pct string, productIDs ...int64) discount.Discount {
	return discount.Discount{
		Code:               code,
		Percentage:         decimal.RequireFromString(pct),
		Kind:               discount.KindProductSpecific,
		RemainingUses:      10,
		ApplicableProducts: productIDs,
	}
}

func TestPrice_NoDiscounts(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "10.00"), Quantity: 2},
		{Product: newTestProduct(2, "20.00"), Quantity: 1},
	}

	quote, err := Price(lines, nil)

	require.NoError(t, err)
	assert.Equal(t, "40.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", quote.Total.StringFixed(2))
}

func TestPrice_SingleGeneralDiscount(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
	}

	quote, err := Price(lines, []discount.Discount{generalDiscount("SAVE20", "20")})

	require.NoError(t, err)
	assert.Equal(t, "100.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "80.00", quote.Total.StringFixed(2))
}

func TestPrice_ProductSpecificDiscountOnlyAffectsItsLines(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
		{Product: newTestProduct(2, "50.00"), Quantity: 1},
	}

	quote, err := Price(lines, []discount.Discount{productDiscount("P10", "10", 1)})

	require.NoError(t, err)
	assert.Equal(t, "150.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "140.00", quote.Total.StringFixed(2))
}

func TestPrice_DiscountsComposeMultiplicatively(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "150.00"), Quantity: 1},
	}
	discounts := []discount.Discount{
		generalDiscount("SAVE20", "20"),
		generalDiscount("SAVE10", "10"),
	}

	quote, err := Price(lines, discounts)

	require.NoError(t, err)
	// 150 * 0.8 * 0.9 = 108, not 150 * 0.7 = 105.
	assert.Equal(t, "108.00", quote.Total.StringFixed(2))
}

func TestPrice_GeneralAndProductSpecificStack(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
		{Product: newTestProduct(2, "100.00"), Quantity: 1},
	}
	discounts := []discount.Discount{
		productDiscount("P50", "50", 1),
		generalDiscount("SAVE10", "10"),
	}

	quote, err := Price(lines, discounts)

	require.NoError(t, err)
	// (100*0.5 + 100) * 0.9 = 135.
	assert.Equal(t, "135.00", quote.Total.StringFixed(2))
}

func TestPrice_QuantityMultipliesLineSubtotal(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "19.99"), Quantity: 3},
	}

	quote, err := Price(lines, []discount.Discount{generalDiscount("SAVE10", "10")})

	require.NoError(t, err)
	assert.Equal(t, "59.97", quote.Subtotal.StringFixed(2))
	// 59.97 * 0.9 = 53.973, rounds half-up to 53.97.
	assert.Equal(t, "53.97", quote.Total.StringFixed(2))
}

func TestPrice_RoundsHalfUpOnceAtEnd(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "10.05"), Quantity: 1},
	}

	quote, err := Price(lines, []discount.Discount{generalDiscount("HALF", "50")})

	require.NoError(t, err)
	// 10.05 * 0.5 = 5.025, half-up to 5.03.
	assert.Equal(t, "5.03", quote.Total.StringFixed(2))
}

func TestPrice_ExcessiveDiscountRejected(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
	}

	_, err := Price(lines, []discount.Discount{generalDiscount("HUGE", "80")})

	require.ErrorIs(t, err, ErrExcessiveDiscount)
}

func TestPrice_ExactlySeventyFivePercentOffAllowed(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
	}

	quote, err := Price(lines, []discount.Discount{generalDiscount("MAX", "75")})

	require.NoError(t, err)
	assert.Equal(t, "25.00", quote.Total.StringFixed(2))
}

func TestPrice_StackedDiscountsCanTripCap(t *testing.T) {
	lines := []Line{
		{Product: newTestProduct(1, "100.00"), Quantity: 1},
	}
	discounts := []discount.Discount{
		generalDiscount("HALF1", "50"),
		generalDiscount("HALF2", "50"),
	}

	// 100 * 0.5 * 0.5 = 25, exactly the floor, so allowed.
	quote, err := Price(lines, discounts)
	require.NoError(t, err)
	assert.Equal(t, "25.00", quote.Total.StringFixed(2))

	// Add a third discount and the composed price falls below the floor.
	discounts = append(discounts, generalDiscount("MORE", "10"))
	_, err = Price(lines, discounts)
	require.ErrorIs(t, err, ErrExcessiveDiscount)
}

func TestPrice_GeneralDiscountDoesNotMatchLines(t *testing.T) {
	d := generalDiscount("SAVE10", "10")
	assert.False(t, d.AppliesTo(1))

	p := productDiscount("P10", "10", 1, 2)
	assert.True(t, p.AppliesTo(2))
	assert.False(t, p.AppliesTo(3))
}
