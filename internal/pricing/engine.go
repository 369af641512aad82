package pricing

import (
	"strings"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// Breakdown is the itemized result of pricing a checkout. Every
// intermediate figure is carried so the caller can render a line-itemized
// summary and persist the same numbers verbatim for the payment step.
type Breakdown struct {
	Currency       string          `json:"currency"`
	BasePrice      decimal.Decimal `json:"base_price"`
	OfferDiscount  decimal.Decimal `json:"offer_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Shipping       decimal.Decimal `json:"shipping"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// Options carries the optional inputs of a pricing run. Coupon and
// ShippingOption are already-resolved rows; the engine itself never touches
// the data store.
type Options struct {
	Coupon *models.Coupon
	// CouponVerified marks a coupon whose gates were already enforced by an
	// atomic redemption; the read-only eligibility check is skipped, since
	// the returned row's usage counter reflects the post-increment value.
	CouponVerified bool
	ShippingOption *models.ShippingOption
	Country        string
	Region         string
	TaxRules       []models.TaxRule
}

var hundred = decimal.NewFromInt(100)

// Price computes the full breakdown for an offer in a fixed stage order:
// base price, offer discount, coupon discount, clamped subtotal, shipping,
// tax, total. Each stage depends on the prior stage's output, so the order
// must not change. Computation keeps full decimal precision; rounding is a
// presentation concern.
func Price(currency string, offer *models.Offer, product *models.Product, opts Options) Breakdown {
	bd := Breakdown{Currency: currency}

	bd.BasePrice = BasePrice(offer, product)
	bd.OfferDiscount = offerDiscount(offer, bd.BasePrice)

	if opts.Coupon != nil {
		// Usage and minimum-order gates are checked against the base price,
		// before the offer discount, matching the persisted coupon terms.
		if opts.CouponVerified || CouponEligible(opts.Coupon, bd.BasePrice) {
			bd.CouponDiscount = couponDiscount(opts.Coupon, bd.BasePrice)
			bd.CouponCode = strings.ToUpper(opts.Coupon.Code)
		}
	}

	bd.Subtotal = bd.BasePrice.Sub(bd.OfferDiscount).Sub(bd.CouponDiscount)
	if bd.Subtotal.IsNegative() {
		bd.Subtotal = decimal.Zero
	}

	bd.Shipping = shippingCost(offer, product, opts.ShippingOption, bd.Subtotal)

	if rate, ok := taxRate(opts.TaxRules, opts.Country, opts.Region); ok {
		bd.TaxRate = rate
		// Tax applies to the subtotal only, never shipping (documented
		// simplification).
		bd.Tax = bd.Subtotal.Mul(rate).Div(hundred)
	}

	bd.Total = bd.Subtotal.Add(bd.Shipping).Add(bd.Tax)
	return bd
}

// BasePrice is the offer's price override when present, else the product
// price, else zero for pure service offers.
func BasePrice(offer *models.Offer, product *models.Product) decimal.Decimal {
	if offer.PriceOverride.Valid {
		return offer.PriceOverride.Decimal
	}
	if product != nil {
		return product.Price
	}
	return decimal.Zero
}

func offerDiscount(offer *models.Offer, base decimal.Decimal) decimal.Decimal {
	switch offer.DiscountType {
	case models.DiscountTypeFixed:
		return offer.DiscountValue
	case models.DiscountTypePercentage:
		return base.Mul(offer.DiscountValue).Div(hundred)
	case models.DiscountTypeFree:
		return base
	}
	return decimal.Zero
}

// CouponEligible checks the usage cap and minimum-order gates. The store
// enforces the same gates atomically at redemption time; this read-only
// check keeps display pricing honest.
func CouponEligible(c *models.Coupon, base decimal.Decimal) bool {
	if !c.Active {
		return false
	}
	if c.MaxUses.Valid && c.CurrentUses >= c.MaxUses.Int64 {
		return false
	}
	if c.MinOrderValue.Valid && base.LessThan(c.MinOrderValue.Decimal) {
		return false
	}
	return true
}

func couponDiscount(c *models.Coupon, base decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case models.DiscountTypeFixed:
		return c.DiscountValue
	case models.DiscountTypePercentage:
		return base.Mul(c.DiscountValue).Div(hundred)
	}
	// FREE coupons are offer-level only; the coupon branch treats the type
	// as a no-op.
	return decimal.Zero
}

func shippingCost(offer *models.Offer, product *models.Product, opt *models.ShippingOption, subtotal decimal.Decimal) decimal.Decimal {
	cost := decimal.Zero
	if offer.ShipPriceOverride.Valid {
		cost = offer.ShipPriceOverride.Decimal
	} else if product != nil {
		cost = product.ShippingCost
	}

	if opt != nil {
		cost = opt.BaseCost
		if opt.FreeThreshold.Valid && subtotal.GreaterThanOrEqual(opt.FreeThreshold.Decimal) {
			cost = decimal.Zero
		}
	}

	return cost
}

// taxRate selects the rate for a destination. A region-specific rule wins
// over the country-wide (null-region) fallback; no match means no tax.
func taxRate(rules []models.TaxRule, country, region string) (decimal.Decimal, bool) {
	var fallback *models.TaxRule
	for i := range rules {
		r := &rules[i]
		if !strings.EqualFold(r.Country, country) {
			continue
		}
		if r.Region.Valid {
			if region != "" && strings.EqualFold(r.Region.String, region) {
				return r.Rate, true
			}
			continue
		}
		if fallback == nil {
			fallback = r
		}
	}
	if fallback != nil {
		return fallback.Rate, true
	}
	return decimal.Zero, false
}
