package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/spice_shop/internal/models"
	"github.com/Skotchmaster/spice_shop/pkg/catalogclient"
)

func ptr[T any](v T) *T { return &v }

type fakeSource struct {
	products []models.Product
	err      error
}

func (f *fakeSource) ListProducts(context.Context) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeSource) GetProduct(_ context.Context, id string) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, catalogclient.ErrNotFound
}

type fakeSearcher struct {
	total int64
	hits  []models.Product
	err   error

	from, size int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, from, size int) (int64, []models.Product, error) {
	f.from, f.size = from, size
	return f.total, f.hits, f.err
}

func testProducts() []models.Product {
	return []models.Product{
		{
			ID: "cumin", Name: "Cumin", Category: "spices", Stock: 10,
			PriceOptions: []models.PriceOption{
				{ID: "c50", Kind: models.PriceKindPacket, Weight: 50, BasePrice: 150},
				{ID: "c100", Kind: models.PriceKindPacket, Weight: 100, BasePrice: 280, SalePrice: ptr(250.0)},
			},
		},
		{
			ID: "saffron", Name: "Saffron", Category: "spices", Stock: 2, Sale: ptr(10.0),
			PriceOptions: []models.PriceOption{
				{ID: "s1", Kind: models.PriceKindWeight, Weight: 1, BasePrice: 900},
			},
		},
		{ID: "mystery", Name: "Mystery blend", Category: "blends", Stock: 5},
		{
			ID: "anise", Name: "Anise", Category: "seeds", Stock: 0,
			PriceOptions: []models.PriceOption{
				{ID: "a50", Kind: models.PriceKindPacket, Weight: 50, BasePrice: 90},
			},
		},
	}
}

func ids(t *testing.T, svc *CatalogService, f ProductFilter) []string {
	t.Helper()
	page, err := svc.ListProducts(context.Background(), f)
	require.NoError(t, err)
	out := make([]string, len(page.Data))
	for i, v := range page.Data {
		out[i] = v.ID
	}
	return out
}

func TestCatalogService_ListProducts_SortAndFilter(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{products: testProducts()}}

	assert.Equal(t, []string{"cumin", "saffron", "mystery", "anise"}, ids(t, svc, ProductFilter{}))
	assert.Equal(t, []string{"anise", "cumin", "saffron", "mystery"}, ids(t, svc, ProductFilter{Sort: SortPriceAsc}))
	assert.Equal(t, []string{"saffron", "cumin", "anise", "mystery"}, ids(t, svc, ProductFilter{Sort: SortPriceDesc}))
	assert.Equal(t, []string{"anise", "cumin", "mystery", "saffron"}, ids(t, svc, ProductFilter{Sort: SortName}))

	assert.Equal(t, []string{"cumin", "saffron"}, ids(t, svc, ProductFilter{Category: "SPICES"}))
	assert.Equal(t, []string{"cumin", "saffron"}, ids(t, svc, ProductFilter{OnSale: true}))
	assert.Equal(t, []string{"mystery"}, ids(t, svc, ProductFilter{Query: "blend"}))
	assert.Equal(t, []string{"cumin", "anise"}, ids(t, svc, ProductFilter{MaxPrice: ptr(200.0)}),
		"unpriced products never match a price range")
}

func TestCatalogService_ListProducts_Pagination(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{products: testProducts()}}

	page, err := svc.ListProducts(context.Background(), ProductFilter{Page: 2, Size: 3})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "anise", page.Data[0].ID)
	assert.EqualValues(t, 4, page.Meta.Total)
	assert.EqualValues(t, 2, page.Meta.TotalPages)
	assert.True(t, page.Meta.HasPrev)
	assert.False(t, page.Meta.HasNext)

	page, err = svc.ListProducts(context.Background(), ProductFilter{Page: 9, Size: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.NotNil(t, page.Data)
}

func TestCatalogService_ListProducts_Invalid(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{products: testProducts()}}

	_, err := svc.ListProducts(context.Background(), ProductFilter{Sort: "random"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ListProducts(context.Background(), ProductFilter{MinPrice: ptr(10.0), MaxPrice: ptr(5.0)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogService_ListProducts_Unavailable(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{err: catalogclient.ErrUnavailable}}

	page, err := svc.ListProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.True(t, page.Unavailable)
	assert.Empty(t, page.Data)
}

func TestProductView(t *testing.T) {
	t.Parallel()

	v := ProductView(testProducts()[0])
	assert.True(t, v.OnSale)
	assert.True(t, v.InStock)
	require.NotNil(t, v.Price)
	assert.Equal(t, 150.0, v.Price.Price)
	assert.False(t, v.Price.Discounted)

	require.Len(t, v.Options, 2)
	assert.Equal(t, "c50", v.Options[0].ID)
	assert.Equal(t, "c100", v.Options[1].ID)
	require.NotNil(t, v.Options[1].Original)
	assert.Equal(t, 280.0, *v.Options[1].Original)
	assert.Equal(t, 250.0, v.Options[1].Price)

	saffron := ProductView(testProducts()[1])
	require.NotNil(t, saffron.Price)
	assert.Equal(t, 810.0, saffron.Price.Price)
	require.NotNil(t, saffron.Price.Original)
	assert.Equal(t, 900.0, *saffron.Price.Original)

	mystery := ProductView(testProducts()[2])
	assert.Nil(t, mystery.Price)
	assert.Empty(t, mystery.Options)
	assert.False(t, mystery.OnSale)
}

func TestCatalogService_GetProduct(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{products: testProducts()}}

	v, err := svc.GetProduct(context.Background(), "saffron")
	require.NoError(t, err)
	assert.Equal(t, "Saffron", v.Name)

	_, err = svc.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetProduct(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)

	down := &CatalogService{Products: &fakeSource{err: errors.New("connection refused")}}
	_, err = down.GetProduct(context.Background(), "saffron")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCatalogService_SearchProducts(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{total: 41, hits: testProducts()[:2]}
	svc := &CatalogService{Products: &fakeSource{}, Searcher: searcher}

	page, err := svc.SearchProducts(context.Background(), "cumin", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, searcher.from)
	assert.Equal(t, 10, searcher.size)
	require.Len(t, page.Data, 2)
	assert.EqualValues(t, 41, page.Meta.Total)
	assert.EqualValues(t, 5, page.Meta.TotalPages)
	assert.True(t, page.Meta.HasNext)

	searcher.err = errors.New("es down")
	_, err = svc.SearchProducts(context.Background(), "cumin", 1, 10)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.SearchProducts(context.Background(), "  ", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogService_SearchProducts_NameFallback(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{Products: &fakeSource{products: testProducts()}}

	page, err := svc.SearchProducts(context.Background(), "saff", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "saffron", page.Data[0].ID)
}

func TestCatalogService_ResolveProduct(t *testing.T) {
	t.Parallel()

	svc := &CatalogService{}

	v, err := svc.ResolveProduct(models.Product{
		Name: "Preview",
		PriceOptions: []models.PriceOption{
			{Kind: models.PriceKindPacket, Weight: 100, BasePrice: 200,
				CalculatedSalePrice: ptr(160.0), OriginalPrice: ptr(200.0)},
		},
	})
	require.NoError(t, err)
	assert.True(t, v.OnSale)
	require.NotNil(t, v.Price)
	assert.Equal(t, 160.0, v.Price.Price)
	assert.Equal(t, "packet-100", v.Options[0].ID)

	_, err = svc.ResolveProduct(models.Product{Name: "Empty"})
	assert.ErrorIs(t, err, ErrValidation)
}
