package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Skotchmaster/spice_shop/internal/cart"
	"github.com/Skotchmaster/spice_shop/internal/logging"
	"github.com/Skotchmaster/spice_shop/internal/models"
	"github.com/Skotchmaster/spice_shop/internal/pricing"
	"github.com/Skotchmaster/spice_shop/internal/transport"
	"github.com/Skotchmaster/spice_shop/internal/util"
	"github.com/Skotchmaster/spice_shop/pkg/catalogclient"
)

var (
	ErrValidation  = cart.ErrValidation
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("catalog unavailable")
	ErrOutOfStock  = errors.New("out of stock")

	ErrPriceUnavailable = errors.New("price unavailable")
)

const (
	SortCatalog   = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

type ProductSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type ProductSearcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

type ProductFilter struct {
	Category string
	OnSale   bool
	MinPrice *float64
	MaxPrice *float64
	Query    string
	Sort     string
	Page     int
	Size     int
}

type CatalogService struct {
	Products ProductSource
	// Searcher is optional; without it search falls back to name matching.
	Searcher ProductSearcher
}

func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) (transport.ProductPage, error) {
	switch f.Sort {
	case SortCatalog, SortPriceAsc, SortPriceDesc, SortName:
	default:
		return transport.ProductPage{}, fmt.Errorf("unknown sort %q: %w", f.Sort, ErrValidation)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return transport.ProductPage{}, fmt.Errorf("min price above max price: %w", ErrValidation)
	}

	offset, limit := util.Calculate(f.Page, f.Size)

	prods, err := s.Products.ListProducts(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("catalog_fetch_failed", "error", err)
		return emptyPage(f.Page, limit), nil
	}

	views := make([]transport.ProductView, 0, len(prods))
	for _, p := range prods {
		v := ProductView(p)
		if f.matches(p, v) {
			views = append(views, v)
		}
	}
	sortViews(views, f.Sort)

	return paginate(views, int64(len(views)), f.Page, offset, limit, true), nil
}

func (f ProductFilter) matches(p models.Product, v transport.ProductView) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.OnSale && !v.OnSale {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" &&
		!strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
		return false
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		if v.Price == nil {
			return false
		}
		if f.MinPrice != nil && v.Price.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && v.Price.Price > *f.MaxPrice {
			return false
		}
	}
	return true
}

// sortViews orders by the shown price of the cheapest option. Products without
// a price always go last.
func sortViews(views []transport.ProductView, by string) {
	switch by {
	case SortName:
		slices.SortStableFunc(views, func(a, b transport.ProductView) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case SortPriceAsc, SortPriceDesc:
		slices.SortStableFunc(views, func(a, b transport.ProductView) int {
			switch {
			case a.Price == nil && b.Price == nil:
				return 0
			case a.Price == nil:
				return 1
			case b.Price == nil:
				return -1
			}
			if by == SortPriceDesc {
				return cmp.Compare(b.Price.Price, a.Price.Price)
			}
			return cmp.Compare(a.Price.Price, b.Price.Price)
		})
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (transport.ProductView, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return transport.ProductView{}, err
	}
	return ProductView(*p), nil
}

// SearchProducts runs a full-text query. An unreachable search backend is an
// error here, unlike plain listing.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, page, size int) (transport.ProductPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return transport.ProductPage{}, fmt.Errorf("empty query: %w", ErrValidation)
	}

	if s.Searcher == nil {
		return s.ListProducts(ctx, ProductFilter{Query: query, Page: page, Size: size})
	}

	offset, limit := util.Calculate(page, size)
	total, prods, err := s.Searcher.Search(ctx, query, offset, limit)
	if err != nil {
		return transport.ProductPage{}, fmt.Errorf("search %q: %w: %v", query, ErrUnavailable, err)
	}

	views := make([]transport.ProductView, len(prods))
	for i, p := range prods {
		views[i] = ProductView(p)
	}
	return paginate(views, total, page, offset, limit, false), nil
}

// ResolveProduct prices a product payload that did not come from the catalog.
func (s *CatalogService) ResolveProduct(p models.Product) (transport.ProductView, error) {
	if len(p.PriceOptions) == 0 && len(p.CalculatedPriceOptions) == 0 {
		return transport.ProductView{}, fmt.Errorf("product has no price options: %w", ErrValidation)
	}
	return ProductView(p), nil
}

func (s *CatalogService) fetch(ctx context.Context, id string) (*models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	p, err := s.Products.GetProduct(ctx, id)
	switch {
	case errors.Is(err, catalogclient.ErrNotFound):
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("product %s: %w: %v", id, ErrUnavailable, err)
	}
	return p, nil
}

// ProductView resolves every price shown for p.
func ProductView(p models.Product) transport.ProductView {
	v := transport.ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Image:       p.Image(),
		Images:      p.Images,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		OnSale:      pricing.IsOnSale(p),
		Options:     []transport.OptionView{},
	}

	if d, ok := pricing.ProductPrice(p); ok {
		pv := priceView(d)
		v.Price = &pv
	}
	for _, o := range pricing.OptionsByPrice(p) {
		v.Options = append(v.Options, transport.OptionView{
			ID:        o.Key(),
			Kind:      o.Kind,
			Weight:    o.Weight,
			PriceView: priceView(pricing.DisplayPrice(o, p)),
		})
	}
	return v
}

func priceView(d pricing.Display) transport.PriceView {
	return transport.PriceView{
		Original:   d.Original,
		Price:      d.Effective,
		Discounted: d.Discounted(),
	}
}

func emptyPage(page, limit int) transport.ProductPage {
	if page < 1 {
		page = 1
	}
	return transport.ProductPage{
		Data:        []transport.ProductView{},
		Meta:        transport.PageMeta{Page: page, Size: limit},
		Unavailable: true,
	}
}

// paginate builds the page envelope. When slice is true views holds every
// match and the page is cut from it, otherwise views already is the page.
func paginate(views []transport.ProductView, total int64, page, offset, limit int, slice bool) transport.ProductPage {
	if page < 1 {
		page = 1
	}
	if slice {
		start := min(offset, len(views))
		end := min(offset+limit, len(views))
		views = views[start:end]
	}
	return transport.ProductPage{
		Data: views,
		Meta: transport.PageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: util.TotalPages(total, limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	}
}
