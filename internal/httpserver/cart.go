package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/spice_shop/internal/cart"
	"github.com/Skotchmaster/spice_shop/internal/logging"
	"github.com/Skotchmaster/spice_shop/internal/service"
	"github.com/Skotchmaster/spice_shop/internal/session"
	"github.com/Skotchmaster/spice_shop/internal/transport"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type CartHTTP struct {
	Svc   *service.CartService
	Carts *cart.Registry
	// Events is optional. Cart changes are published to Topic when set.
	Events Publisher
	Topic  string
}

func (h *CartHTTP) acquire(c echo.Context, l *slog.Logger) (*cart.Store, string, func(), error) {
	id, err := session.ID(c)
	if err != nil {
		l.Error("cart_session_missing", "status", 401, "error", err)
		return nil, "", nil, echo.NewHTTPError(http.StatusUnauthorized, "no cart session")
	}
	store, release, err := h.Carts.Acquire(c.Request().Context(), id)
	if err != nil {
		l.Error("cart_load_failed", "status", 503, "error", err)
		return nil, "", nil, echo.NewHTTPError(http.StatusServiceUnavailable, "cart unavailable").SetInternal(err)
	}
	return store, id, release, nil
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "cart.get")

	store, _, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	return c.JSON(http.StatusOK, service.View(store))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	store, id, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	line, err := h.Svc.AddItem(ctx, store, req)
	if err != nil {
		return fail(l, "add_item_failed", err)
	}

	h.publish(ctx, l, id, map[string]any{
		"type":            "cart_item_added",
		"product_id":      line.ProductID,
		"price_option_id": line.PriceOptionID,
		"quantity":        line.Quantity,
		"unit_price":      line.UnitPrice,
	})

	l.Info("add_item_success", "product_id", line.ProductID, "quantity", line.Quantity)
	return c.JSON(http.StatusCreated, service.View(store))
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	var req transport.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	store, id, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	line, err := h.Svc.UpdateItem(store, req)
	if err != nil {
		return fail(l, "update_item_failed", err)
	}

	h.publish(ctx, l, id, map[string]any{
		"type":            "cart_item_updated",
		"product_id":      line.ProductID,
		"price_option_id": line.PriceOptionID,
		"quantity":        line.Quantity,
	})

	l.Info("update_item_success", "product_id", line.ProductID, "quantity", line.Quantity)
	return c.JSON(http.StatusOK, service.View(store))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	var req transport.RemoveItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("remove_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	store, id, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	if err := h.Svc.RemoveItem(store, req); err != nil {
		return fail(l, "remove_item_failed", err)
	}

	h.publish(ctx, l, id, map[string]any{
		"type":            "cart_item_removed",
		"product_id":      req.ProductID,
		"price_option_id": req.PriceOptionID,
	})

	l.Info("remove_item_success", "product_id", req.ProductID)
	return c.JSON(http.StatusOK, service.View(store))
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	store, id, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	store.ClearCart()
	h.publish(ctx, l, id, map[string]any{"type": "cart_cleared"})

	l.Info("cart successfully cleared")
	return c.JSON(http.StatusOK, service.View(store))
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	store, id, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	receipt, order, err := h.Svc.Checkout(ctx, store, req.Customer)
	if err != nil {
		return fail(l, "checkout_failed", err)
	}

	h.publish(ctx, l, id, map[string]any{
		"type":        "cart_checked_out",
		"order_id":    receipt.ID,
		"total_items": order.TotalItems,
		"total_price": order.TotalPrice,
	})

	l.Info("checkout_success", "order_id", receipt.ID, "total_price", order.TotalPrice)
	return c.JSON(http.StatusCreated, transport.CheckoutResponse{
		OrderID:    receipt.ID,
		Status:     receipt.Status,
		TotalItems: order.TotalItems,
		TotalPrice: order.TotalPrice,
	})
}

// StreamCart pushes the cart as server-sent events, once on connect and again
// after every change made by any request of the same session.
func (h *CartHTTP) StreamCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.stream")

	store, _, release, err := h.acquire(c, l)
	if err != nil {
		return err
	}
	defer release()

	updates, cancel := store.Subscribe()
	defer cancel()

	w := c.Response()
	// streams outlive the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		l.Warn("cart_stream_deadline", "error", err)
	}
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case items, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(service.ViewOf(items))
			if err != nil {
				l.Error("cart_stream_failed", "reason", "encode", "error", err)
				return nil
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				l.Warn("cart_stream_closed", "error", err)
				return nil
			}
			w.Flush()
		}
	}
}

func (h *CartHTTP) publish(ctx context.Context, l *slog.Logger, sessionID string, event map[string]any) {
	if h.Events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event["session_id"] = sessionID
	event["at"] = time.Now().UTC()
	if err := h.Events.PublishEvent(ctx, h.Topic, sessionID, event); err != nil {
		l.Error("kafka_publish_failed", "topic", h.Topic, "type", event["type"], "error", err)
	}
}
