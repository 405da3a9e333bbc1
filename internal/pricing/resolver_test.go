package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/spice_shop/internal/models"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func option(id string, base float64) models.PriceOption {
	return models.PriceOption{ID: id, Kind: models.PriceKindPacket, Weight: 100, BasePrice: base}
}

func TestIsOnSale_ActiveSalesFlagWins(t *testing.T) {
	t.Parallel()

	products := []models.Product{
		{HasActiveSales: b(true)},
		{HasActiveSales: b(true), PriceOptions: []models.PriceOption{option("o1", 1000)}},
		{HasActiveSales: b(true), Sale: f(0.1), PriceOptions: []models.PriceOption{option("o1", 1000)}},
		{HasActiveSales: b(true), PriceOptions: []models.PriceOption{{ID: "o1", BasePrice: 10, SalePrice: f(50)}}},
	}
	for _, p := range products {
		assert.True(t, IsOnSale(p))
	}
}

func TestIsOnSale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		product models.Product
		want    bool
	}{
		{
			name:    "individual sale price below base",
			product: models.Product{PriceOptions: []models.PriceOption{{ID: "o1", BasePrice: 1000, SalePrice: f(800)}}},
			want:    true,
		},
		{
			name:    "individual sale price equal to base",
			product: models.Product{PriceOptions: []models.PriceOption{{ID: "o1", BasePrice: 1000, SalePrice: f(1000)}}},
			want:    false,
		},
		{
			name:    "zero individual sale price",
			product: models.Product{PriceOptions: []models.PriceOption{{ID: "o1", BasePrice: 1000, SalePrice: f(0)}}},
			want:    false,
		},
		{
			name:    "global sale under one percent",
			product: models.Product{Sale: f(0.5), PriceOptions: []models.PriceOption{option("o1", 1000)}},
			want:    false,
		},
		{
			name:    "global sale of exactly one percent",
			product: models.Product{Sale: f(1), PriceOptions: []models.PriceOption{option("o1", 1000)}},
			want:    true,
		},
		{
			name:    "global sale rounding to nothing on a cheap option",
			product: models.Product{Sale: f(10), PriceOptions: []models.PriceOption{option("o1", 0.04)}},
			want:    false,
		},
		{
			name: "global sale skips options with own sale price",
			product: models.Product{Sale: f(20), PriceOptions: []models.PriceOption{
				{ID: "o1", BasePrice: 1000, SalePrice: f(1200)},
			}},
			want: false,
		},
		{
			name:    "global sale ignores non positive base",
			product: models.Product{Sale: f(50), PriceOptions: []models.PriceOption{option("o1", 0)}},
			want:    false,
		},
		{
			name:    "global sale above one hundred percent is ignored",
			product: models.Product{Sale: f(150), PriceOptions: []models.PriceOption{option("o1", 1000)}},
			want:    false,
		},
		{
			name: "global sale falls through to individual price",
			product: models.Product{Sale: f(0.2), PriceOptions: []models.PriceOption{
				option("o1", 1000),
				{ID: "o2", BasePrice: 500, SalePrice: f(450)},
			}},
			want: true,
		},
		{
			name: "server calculated pair",
			product: models.Product{PriceOptions: []models.PriceOption{
				{ID: "o1", BasePrice: 900, CalculatedSalePrice: f(900), OriginalPrice: f(1000)},
			}},
			want: true,
		},
		{
			name: "server calculated price without original",
			product: models.Product{PriceOptions: []models.PriceOption{
				{ID: "o1", BasePrice: 1000, CalculatedSalePrice: f(900)},
			}},
			want: false,
		},
		{
			name: "calculated options preferred over raw ones",
			product: models.Product{
				PriceOptions:           []models.PriceOption{{ID: "o1", BasePrice: 1000, SalePrice: f(800)}},
				CalculatedPriceOptions: []models.PriceOption{option("o1", 1000)},
			},
			want: false,
		},
		{
			name:    "explicit false flag still checks prices",
			product: models.Product{HasActiveSales: b(false), PriceOptions: []models.PriceOption{{ID: "o1", BasePrice: 10, SalePrice: f(9)}}},
			want:    true,
		},
		{
			name:    "no options",
			product: models.Product{},
			want:    false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsOnSale(tt.product))
		})
	}
}

func TestDisplayPrice_IndividualSale(t *testing.T) {
	t.Parallel()

	o := models.PriceOption{ID: "o1", BasePrice: 1000, SalePrice: f(800)}
	p := models.Product{PriceOptions: []models.PriceOption{o}}

	require.True(t, IsOnSale(p))
	d := DisplayPrice(o, p)
	require.NotNil(t, d.Original)
	assert.Equal(t, 1000.0, *d.Original)
	assert.Equal(t, 800.0, d.Effective)
}

func TestDisplayPrice_NotOnSale(t *testing.T) {
	t.Parallel()

	o := option("o1", 1000)
	p := models.Product{Sale: f(0.5), PriceOptions: []models.PriceOption{o}}

	d := DisplayPrice(o, p)
	assert.Nil(t, d.Original)
	assert.Equal(t, 1000.0, d.Effective)
	assert.False(t, d.Discounted())
}

func TestDisplayPrice_Precedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		option   models.PriceOption
		product  models.Product
		original *float64
		want     float64
	}{
		{
			name:     "server price paired with server original",
			option:   models.PriceOption{BasePrice: 1000, SalePrice: f(850), CalculatedSalePrice: f(700), OriginalPrice: f(1100)},
			product:  models.Product{HasActiveSales: b(true)},
			original: f(1100),
			want:     700,
		},
		{
			name:     "server price paired with base when original missing",
			option:   models.PriceOption{BasePrice: 1000, CalculatedSalePrice: f(700)},
			product:  models.Product{HasActiveSales: b(true)},
			original: f(1000),
			want:     700,
		},
		{
			name:     "server original below server price is ignored",
			option:   models.PriceOption{BasePrice: 1000, CalculatedSalePrice: f(700), OriginalPrice: f(600)},
			product:  models.Product{HasActiveSales: b(true)},
			original: f(1000),
			want:     700,
		},
		{
			name:     "normalized base uses server original",
			option:   models.PriceOption{BasePrice: 700, CalculatedSalePrice: f(700), OriginalPrice: f(1000)},
			product:  models.Product{HasActiveSales: b(true)},
			original: f(1000),
			want:     700,
		},
		{
			name:     "server price above base is not surfaced",
			option:   models.PriceOption{BasePrice: 800, CalculatedSalePrice: f(900), OriginalPrice: f(1000)},
			product:  models.Product{HasActiveSales: b(true)},
			original: nil,
			want:     800,
		},
		{
			name:     "server price above base falls through to sale price",
			option:   models.PriceOption{BasePrice: 800, SalePrice: f(750), CalculatedSalePrice: f(900), OriginalPrice: f(1000)},
			product:  models.Product{HasActiveSales: b(true)},
			original: f(800),
			want:     750,
		},
		{
			name:     "individual price before global sale",
			option:   models.PriceOption{BasePrice: 1000, SalePrice: f(900)},
			product:  models.Product{Sale: f(50)},
			original: f(1000),
			want:     900,
		},
		{
			name:     "global sale rounded to cents",
			option:   models.PriceOption{BasePrice: 333.33},
			product:  models.Product{Sale: f(15)},
			original: f(333.33),
			want:     283.33,
		},
		{
			name:    "flagged sale without qualifying discount",
			option:  models.PriceOption{BasePrice: 1000, SalePrice: f(1200)},
			product: models.Product{HasActiveSales: b(true)},
			want:    1000,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := tt.product
			p.PriceOptions = []models.PriceOption{tt.option}

			d := DisplayPrice(tt.option, p)
			if tt.original == nil {
				assert.Nil(t, d.Original)
			} else {
				require.NotNil(t, d.Original)
				assert.InDelta(t, *tt.original, *d.Original, 0.0001)
			}
			assert.InDelta(t, tt.want, d.Effective, 0.0001)
		})
	}
}

func TestDisplayPrice_NeverAboveOriginal(t *testing.T) {
	t.Parallel()

	prices := []*float64{nil, f(0), f(1), f(499.99), f(500), f(750), f(1000), f(1500)}
	sales := []*float64{nil, f(0.5), f(1), f(33), f(100)}

	for _, sp := range prices {
		for _, cp := range prices {
			for _, op := range prices {
				for _, sale := range sales {
					o := models.PriceOption{BasePrice: 1000, SalePrice: sp, CalculatedSalePrice: cp, OriginalPrice: op}
					p := models.Product{Sale: sale, HasActiveSales: b(true), PriceOptions: []models.PriceOption{o}}

					d := DisplayPrice(o, p)
					if d.Original != nil {
						assert.Less(t, d.Effective, *d.Original)
					}
					assert.LessOrEqual(t, d.Effective, o.BasePrice)
				}
			}
		}
	}
}

func TestCheapestOption(t *testing.T) {
	t.Parallel()

	opts := []models.PriceOption{
		option("big", 900),
		{ID: "sale", BasePrice: 1000, SalePrice: f(400)},
		{ID: "server", BasePrice: 800, CalculatedSalePrice: f(400)},
		option("small", 500),
	}
	p := models.Product{PriceOptions: opts}

	got, ok := CheapestOption(p)
	require.True(t, ok)
	assert.Equal(t, "sale", got.ID, "ties keep catalog order")
	assert.Equal(t, "big", p.PriceOptions[0].ID)

	sorted := OptionsByPrice(p)
	ids := make([]string, 0, len(sorted))
	for _, o := range sorted {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"sale", "server", "small", "big"}, ids)
	assert.Equal(t, "big", p.PriceOptions[0].ID, "input order untouched")
}

func TestCheapestOption_Empty(t *testing.T) {
	t.Parallel()

	_, ok := CheapestOption(models.Product{})
	assert.False(t, ok)

	_, ok = ProductPrice(models.Product{Name: "saffron"})
	assert.False(t, ok)

	_, ok = ProductPrice(models.Product{PriceOptions: []models.PriceOption{option("o1", 0)}})
	assert.False(t, ok)
}

func TestProductPrice(t *testing.T) {
	t.Parallel()

	p := models.Product{
		Sale: f(10),
		PriceOptions: []models.PriceOption{
			option("o1", 1000),
			option("o2", 250),
		},
	}

	d, ok := ProductPrice(p)
	require.True(t, ok)
	require.NotNil(t, d.Original)
	assert.Equal(t, 250.0, *d.Original)
	assert.Equal(t, 225.0, d.Effective)
}

func TestGlobalSalePrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 995.0, GlobalSalePrice(1000, 0.5))
	assert.Equal(t, 0.01, GlobalSalePrice(0.01, 10))
	assert.Equal(t, 0.0, GlobalSalePrice(19.99, 100))
}
