package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/spice_shop/internal/logging"
	"github.com/Skotchmaster/spice_shop/internal/session"
)

type Deps struct {
	ProductHandler *ProductHTTP
	CartHandler    *CartHTTP
	Sessions       *session.Manager
	// CSRF guards cart mutations when set.
	CSRF echo.MiddlewareFunc
	// Ready reports whether the service can take traffic. Nil means always.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				logging.FromContext(c.Request().Context()).Error("not_ready", "error", err)
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	products := e.Group("/products")
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	e.POST("/pricing/resolve", d.ProductHandler.ResolvePrice)

	c := e.Group("/cart")
	c.Use(d.Sessions.Require)
	if d.CSRF != nil {
		c.Use(d.CSRF)
	}

	c.GET("", d.CartHandler.GetCart)
	c.DELETE("", d.CartHandler.ClearCart)
	c.GET("/stream", d.CartHandler.StreamCart)
	c.POST("/items", d.CartHandler.AddItem)
	c.PATCH("/items", d.CartHandler.UpdateItem)
	c.DELETE("/items", d.CartHandler.RemoveItem)
	c.POST("/checkout", d.CartHandler.Checkout)
}
