// Package pricing decides whether a product is on sale and which prices a
// storefront shows for it. Every listing, detail and cart view goes through
// these functions so they can never disagree about a product.
package pricing

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/spice_shop/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)

	// realized global discounts below one percent are rounding noise
	minGlobalDiscountPct = decimal.NewFromInt(1)
)

// Display is the price pair of one option. Original is nil when nothing is
// struck through.
type Display struct {
	Original  *float64 `json:"original"`
	Effective float64  `json:"effective"`
}

func (d Display) Discounted() bool {
	return d.Original != nil
}

// Options returns the options every resolve operation works on: the
// server-resolved ones when the catalog sent any, the raw ones otherwise.
func Options(p models.Product) []models.PriceOption {
	if len(p.CalculatedPriceOptions) > 0 {
		return p.CalculatedPriceOptions
	}
	return p.PriceOptions
}

func IsOnSale(p models.Product) bool {
	if p.HasActiveSales != nil && *p.HasActiveSales {
		return true
	}

	opts := Options(p)

	if pct, ok := globalPercent(p); ok {
		for _, o := range opts {
			if hasSalePrice(o) || o.BasePrice <= 0 {
				continue
			}
			base := decimal.NewFromFloat(o.BasePrice)
			discounted := globalDiscounted(base, pct)
			realized := base.Sub(discounted).Div(base).Mul(hundred)
			if realized.GreaterThanOrEqual(minGlobalDiscountPct) {
				return true
			}
		}
	}

	for _, o := range opts {
		if hasSalePrice(o) && *o.SalePrice < o.BasePrice {
			return true
		}
	}

	for _, o := range opts {
		c, orig := o.CalculatedSalePrice, o.OriginalPrice
		if c != nil && orig != nil && *c > 0 && *c < *orig {
			return true
		}
	}

	return false
}

// EffectivePrice is what a shopper pays for the option when its discount
// applies.
func EffectivePrice(o models.PriceOption) float64 {
	if c := o.CalculatedSalePrice; c != nil && *c > 0 {
		return *c
	}
	if hasSalePrice(o) {
		return *o.SalePrice
	}
	return o.BasePrice
}

// CheapestOption picks the option with the lowest effective price, the
// earliest one on ties. ok is false when the product has no options.
func CheapestOption(p models.Product) (models.PriceOption, bool) {
	opts := Options(p)
	if len(opts) == 0 {
		return models.PriceOption{}, false
	}
	best := opts[0]
	for _, o := range opts[1:] {
		if EffectivePrice(o) < EffectivePrice(best) {
			best = o
		}
	}
	return best, true
}

// OptionsByPrice returns a copy of the product options ordered by effective
// price. Equal prices keep catalog order.
func OptionsByPrice(p models.Product) []models.PriceOption {
	opts := slices.Clone(Options(p))
	slices.SortStableFunc(opts, func(a, b models.PriceOption) int {
		return cmp.Compare(EffectivePrice(a), EffectivePrice(b))
	})
	return opts
}

func DisplayPrice(o models.PriceOption, p models.Product) Display {
	base := o.BasePrice
	if !IsOnSale(p) {
		return Display{Effective: base}
	}

	if c := o.CalculatedSalePrice; c != nil && *c > 0 {
		if *c < base {
			original := base
			if o.OriginalPrice != nil && *o.OriginalPrice > *c {
				original = *o.OriginalPrice
			}
			return Display{Original: &original, Effective: *c}
		}
		// backend already folded the discount into the base price
		if *c == base && o.OriginalPrice != nil && *c < *o.OriginalPrice {
			original := *o.OriginalPrice
			return Display{Original: &original, Effective: *c}
		}
	}

	if hasSalePrice(o) && *o.SalePrice < base {
		original := base
		return Display{Original: &original, Effective: *o.SalePrice}
	}

	if pct, ok := globalPercent(p); ok && base > 0 {
		d := decimal.NewFromFloat(base)
		discounted := globalDiscounted(d, pct)
		if discounted.LessThan(d) {
			original := base
			return Display{Original: &original, Effective: discounted.InexactFloat64()}
		}
	}

	return Display{Effective: base}
}

// ProductPrice is the display pair of the cheapest option. ok is false when
// the product carries no usable price, which callers render as "price
// unavailable".
func ProductPrice(p models.Product) (Display, bool) {
	o, ok := CheapestOption(p)
	if !ok || o.BasePrice <= 0 {
		return Display{}, false
	}
	return DisplayPrice(o, p), true
}

// GlobalSalePrice applies a storefront-wide percentage to a base price,
// rounded to cents.
func GlobalSalePrice(base, percent float64) float64 {
	return globalDiscounted(decimal.NewFromFloat(base), decimal.NewFromFloat(percent)).InexactFloat64()
}

func globalDiscounted(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
}

func globalPercent(p models.Product) (decimal.Decimal, bool) {
	if p.Sale == nil || *p.Sale <= 0 || *p.Sale > 100 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*p.Sale), true
}

func hasSalePrice(o models.PriceOption) bool {
	return o.SalePrice != nil && *o.SalePrice > 0
}
