package pricing

import (
	"database/sql"
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func TestPercentageOfferDiscount(t *testing.T) {
	// Base 50.00, percentage 10 -> subtotal 45.00 before coupon/shipping/tax.
	offer := &models.Offer{
		PriceOverride: nullDec("50.00"),
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: dec("10"),
	}

	bd := Price("USD", offer, nil, Options{})

	assert.True(t, bd.Subtotal.Equal(dec("45.00")), "subtotal %s", bd.Subtotal)
	assert.True(t, bd.OfferDiscount.Equal(dec("5.00")))
}

func TestFixedOfferDiscount(t *testing.T) {
	offer := &models.Offer{
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("7.50"),
	}
	product := &models.Product{Price: dec("30.00")}

	bd := Price("USD", offer, product, Options{})

	assert.True(t, bd.BasePrice.Equal(dec("30.00")))
	assert.True(t, bd.Subtotal.Equal(dec("22.50")))
}

func TestFreeOfferZeroesSubtotal(t *testing.T) {
	offer := &models.Offer{DiscountType: models.DiscountTypeFree}
	product := &models.Product{Price: dec("99.99")}

	bd := Price("USD", offer, product, Options{})

	assert.True(t, bd.Subtotal.IsZero())
	assert.True(t, bd.OfferDiscount.Equal(dec("99.99")))
}

func TestUnknownDiscountTypeIsNoOp(t *testing.T) {
	offer := &models.Offer{DiscountType: "BOGOF", DiscountValue: dec("10")}
	product := &models.Product{Price: dec("20.00")}

	bd := Price("USD", offer, product, Options{})

	assert.True(t, bd.OfferDiscount.IsZero())
	assert.True(t, bd.Subtotal.Equal(dec("20.00")))
}

func TestPriceOverrideBeatsProductPrice(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("12.00")}
	product := &models.Product{Price: dec("30.00")}

	assert.True(t, BasePrice(offer, product).Equal(dec("12.00")))
}

func TestServiceOfferWithoutProduct(t *testing.T) {
	offer := &models.Offer{}

	bd := Price("USD", offer, nil, Options{})

	assert.True(t, bd.BasePrice.IsZero())
	assert.True(t, bd.Total.IsZero())
}

func TestCouponMinOrderNotMet(t *testing.T) {
	// SAVE10, fixed 10, min order 20, base 15 -> coupon discount 0.
	offer := &models.Offer{PriceOverride: nullDec("15.00")}
	coupon := &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("10"),
		MinOrderValue: nullDec("20"),
		Active:        true,
	}

	bd := Price("USD", offer, nil, Options{Coupon: coupon})

	assert.True(t, bd.CouponDiscount.IsZero())
	assert.Empty(t, bd.CouponCode)
	assert.True(t, bd.Subtotal.Equal(dec("15.00")))
}

func TestVerifiedCouponSkipsGateRecheck(t *testing.T) {
	// An atomically redeemed coupon comes back with the post-increment
	// usage count; re-checking gates would falsely veto the last legal use.
	offer := &models.Offer{PriceOverride: nullDec("50.00")}
	coupon := &models.Coupon{
		Code:          "LAST",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("5"),
		MaxUses:       sql.NullInt64{Int64: 100, Valid: true},
		CurrentUses:   100,
		Active:        true,
	}

	bd := Price("USD", offer, nil, Options{Coupon: coupon, CouponVerified: true})

	assert.True(t, bd.CouponDiscount.Equal(dec("5")))
	assert.True(t, bd.Subtotal.Equal(dec("45.00")))
}

func TestCouponAtUsageCapNotApplied(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("50.00")}
	coupon := &models.Coupon{
		Code:          "CAPPED",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("5"),
		MaxUses:       sql.NullInt64{Int64: 100, Valid: true},
		CurrentUses:   100,
		Active:        true,
	}

	bd := Price("USD", offer, nil, Options{Coupon: coupon})

	assert.True(t, bd.CouponDiscount.IsZero())
}

func TestCouponPercentageAppliesToBasePrice(t *testing.T) {
	// Coupon gates and percentage both work off the base price, before the
	// offer discount.
	offer := &models.Offer{
		PriceOverride: nullDec("100.00"),
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("20"),
	}
	coupon := &models.Coupon{
		Code:          "take10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: dec("10"),
		Active:        true,
	}

	bd := Price("USD", offer, nil, Options{Coupon: coupon})

	assert.True(t, bd.CouponDiscount.Equal(dec("10.00")), "coupon discount %s", bd.CouponDiscount)
	assert.True(t, bd.Subtotal.Equal(dec("70.00")))
	assert.Equal(t, "TAKE10", bd.CouponCode)
}

func TestFreeCouponIsNoOp(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("40.00")}
	coupon := &models.Coupon{
		Code:         "FREEBIE",
		DiscountType: models.DiscountTypeFree,
		Active:       true,
	}

	bd := Price("USD", offer, nil, Options{Coupon: coupon})

	assert.True(t, bd.CouponDiscount.IsZero())
	assert.True(t, bd.Subtotal.Equal(dec("40.00")))
}

func TestSubtotalClampedAtZero(t *testing.T) {
	offer := &models.Offer{
		PriceOverride: nullDec("10.00"),
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("8"),
	}
	coupon := &models.Coupon{
		Code:          "BIG",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: dec("50"),
		Active:        true,
	}
	opt := &models.ShippingOption{BaseCost: dec("4.00")}
	rules := []models.TaxRule{{Country: "US", Rate: dec("10")}}

	bd := Price("USD", offer, nil, Options{
		Coupon:         coupon,
		ShippingOption: opt,
		Country:        "US",
		TaxRules:       rules,
	})

	assert.True(t, bd.Subtotal.IsZero())
	assert.True(t, bd.Tax.IsZero())
	// Total floors at shipping + tax, never negative.
	assert.True(t, bd.Total.Equal(dec("4.00")))
	assert.False(t, bd.Total.IsNegative())
}

func TestShippingFreeThreshold(t *testing.T) {
	// Option cost 5.00, free threshold 40.00, subtotal 45.00 -> shipping 0.
	offer := &models.Offer{PriceOverride: nullDec("45.00")}
	opt := &models.ShippingOption{
		BaseCost:      dec("5.00"),
		FreeThreshold: nullDec("40.00"),
	}

	bd := Price("USD", offer, nil, Options{ShippingOption: opt})

	assert.True(t, bd.Shipping.IsZero())
	assert.True(t, bd.Total.Equal(bd.Subtotal.Add(bd.Tax)))
}

func TestShippingBelowThreshold(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("30.00")}
	opt := &models.ShippingOption{
		BaseCost:      dec("5.00"),
		FreeThreshold: nullDec("40.00"),
	}

	bd := Price("USD", offer, nil, Options{ShippingOption: opt})

	assert.True(t, bd.Shipping.Equal(dec("5.00")))
}

func TestShippingDefaultsToOverrideThenProduct(t *testing.T) {
	product := &models.Product{Price: dec("10.00"), ShippingCost: dec("3.00")}

	bd := Price("USD", &models.Offer{}, product, Options{})
	assert.True(t, bd.Shipping.Equal(dec("3.00")))

	withOverride := &models.Offer{ShipPriceOverride: nullDec("1.50")}
	bd = Price("USD", withOverride, product, Options{})
	assert.True(t, bd.Shipping.Equal(dec("1.50")))
}

func TestStateRuleBeatsCountryFallback(t *testing.T) {
	// US fallback 5%, CA-specific 8%; destination CA -> 8.
	offer := &models.Offer{PriceOverride: nullDec("100.00")}
	rules := []models.TaxRule{
		{Country: "US", Rate: dec("5")},
		{Country: "US", Region: sql.NullString{String: "CA", Valid: true}, Rate: dec("8")},
	}

	bd := Price("USD", offer, nil, Options{Country: "US", Region: "CA", TaxRules: rules})

	assert.True(t, bd.TaxRate.Equal(dec("8")))
	assert.True(t, bd.Tax.Equal(dec("8.00")), "tax %s", bd.Tax)
}

func TestCountryFallbackWhenNoRegionRule(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("100.00")}
	rules := []models.TaxRule{
		{Country: "US", Rate: dec("5")},
		{Country: "US", Region: sql.NullString{String: "CA", Valid: true}, Rate: dec("8")},
	}

	bd := Price("USD", offer, nil, Options{Country: "US", Region: "NY", TaxRules: rules})

	assert.True(t, bd.TaxRate.Equal(dec("5")))
}

func TestNoMatchingTaxRule(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("100.00")}
	rules := []models.TaxRule{{Country: "US", Rate: dec("5")}}

	bd := Price("USD", offer, nil, Options{Country: "GB", TaxRules: rules})

	assert.True(t, bd.Tax.IsZero())
	assert.True(t, bd.TaxRate.IsZero())
}

func TestTaxExcludesShipping(t *testing.T) {
	offer := &models.Offer{PriceOverride: nullDec("100.00")}
	opt := &models.ShippingOption{BaseCost: dec("10.00")}
	rules := []models.TaxRule{{Country: "US", Rate: dec("10")}}

	bd := Price("USD", offer, nil, Options{ShippingOption: opt, Country: "US", TaxRules: rules})

	// 10% of the 100.00 subtotal, not of 110.00.
	assert.True(t, bd.Tax.Equal(dec("10.00")), "tax %s", bd.Tax)
	assert.True(t, bd.Total.Equal(dec("120.00")))
}

func TestFullPrecisionKeptAcrossStages(t *testing.T) {
	offer := &models.Offer{
		PriceOverride: nullDec("19.99"),
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: dec("33"),
	}
	rules := []models.TaxRule{{Country: "US", Rate: dec("8.25")}}

	bd := Price("USD", offer, nil, Options{Country: "US", TaxRules: rules})

	// 19.99 * 0.33 = 6.5967; subtotal 13.3933; tax 1.10494725.
	assert.True(t, bd.OfferDiscount.Equal(dec("6.5967")))
	assert.True(t, bd.Subtotal.Equal(dec("13.3933")))
	assert.True(t, bd.Tax.Equal(dec("1.104947250")), "tax %s", bd.Tax)
}
