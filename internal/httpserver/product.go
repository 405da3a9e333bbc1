package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/spice_shop/internal/logging"
	"github.com/Skotchmaster/spice_shop/internal/models"
	"github.com/Skotchmaster/spice_shop/internal/service"
	"github.com/Skotchmaster/spice_shop/internal/util"
)

type ProductHTTP struct {
	Svc *service.CatalogService
}

func (h *ProductHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	f := service.ProductFilter{
		Category: c.QueryParam("category"),
		OnSale:   c.QueryParam("on_sale") == "true",
		Query:    c.QueryParam("q"),
		Sort:     c.QueryParam("sort"),
		Page:     util.ParseIntDefault(c.QueryParam("page"), 1),
		Size:     util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize),
	}
	var err error
	if f.MinPrice, err = parsePrice(c.QueryParam("min_price")); err != nil {
		l.Warn("get_products_failed", "status", 400, "reason", "min_price is not a number", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "min_price is not a number")
	}
	if f.MaxPrice, err = parsePrice(c.QueryParam("max_price")); err != nil {
		l.Warn("get_products_failed", "status", 400, "reason", "max_price is not a number", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "max_price is not a number")
	}

	page, err := h.Svc.ListProducts(ctx, f)
	if err != nil {
		return fail(l, "get_products_failed", err)
	}

	if page.Unavailable {
		l.Warn("get_products_degraded", "reason", "catalog unavailable")
	} else {
		l.Info("get_products_success", "count", len(page.Data))
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ProductHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return fail(l, "search_products_failed", err)
	}

	l.Info("search_products_success", "total", res.Meta.Total)
	return c.JSON(http.StatusOK, res)
}

func (h *ProductHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	product, err := h.Svc.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return fail(l, "get_product_failed", err)
	}

	return c.JSON(http.StatusOK, product)
}

// ResolvePrice prices a product payload posted by the client, used to preview
// a product before it is published to the catalog.
func (h *ProductHTTP) ResolvePrice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pricing.resolve")

	var req models.Product
	if err := c.Bind(&req); err != nil {
		l.Warn("resolve_price_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	view, err := h.Svc.ResolveProduct(req)
	if err != nil {
		return fail(l, "resolve_price_failed", err)
	}

	return c.JSON(http.StatusOK, view)
}

func parsePrice(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
