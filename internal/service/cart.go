package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/spice_shop/internal/cart"
	"github.com/Skotchmaster/spice_shop/internal/models"
	"github.com/Skotchmaster/spice_shop/internal/pricing"
	"github.com/Skotchmaster/spice_shop/internal/transport"
)

var ErrEmptyCart = errors.New("cart is empty")

type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, order models.CheckoutOrder) (*models.OrderReceipt, error)
}

type CartService struct {
	Catalog *CatalogService
	Orders  OrderSubmitter
	Now     func() time.Time
}

func (s *CartService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// LineItem snapshots a product option as a cart line. The unit price is the
// price the shopper sees at this moment.
func (s *CartService) LineItem(ctx context.Context, productID, priceOptionID string, quantity int) (models.CartLineItem, error) {
	if strings.TrimSpace(priceOptionID) == "" {
		return models.CartLineItem{}, fmt.Errorf("price option is required: %w", ErrValidation)
	}

	p, err := s.Catalog.fetch(ctx, productID)
	if err != nil {
		return models.CartLineItem{}, err
	}

	opt, ok := p.FindOption(priceOptionID)
	if !ok {
		return models.CartLineItem{}, fmt.Errorf("price option %s of product %s: %w", priceOptionID, productID, ErrNotFound)
	}
	if p.Stock < 1 {
		return models.CartLineItem{}, fmt.Errorf("product %s: %w", productID, ErrOutOfStock)
	}
	price := pricing.DisplayPrice(opt, *p).Effective
	if opt.BasePrice <= 0 || price <= 0 {
		return models.CartLineItem{}, fmt.Errorf("price option %s of product %s: %w", priceOptionID, productID, ErrPriceUnavailable)
	}

	return models.CartLineItem{
		ProductID:     p.ID,
		PriceOptionID: opt.Key(),
		Name:          p.Name,
		UnitPrice:     price,
		Quantity:      quantity,
		ImageURL:      p.Image(),
		StockAtAdd:    p.Stock,
		Weight:        opt.Weight,
		WeightType:    opt.Kind,
	}, nil
}

func (s *CartService) AddItem(ctx context.Context, store *cart.Store, req transport.AddItemRequest) (models.CartLineItem, error) {
	line, err := s.LineItem(ctx, req.ProductID, req.PriceOptionID, req.Quantity)
	if err != nil {
		return models.CartLineItem{}, err
	}
	return store.AddToCart(line)
}

func (s *CartService) UpdateItem(store *cart.Store, req transport.UpdateItemRequest) (models.CartLineItem, error) {
	if req.ProductID == "" || req.PriceOptionID == "" {
		return models.CartLineItem{}, fmt.Errorf("product and price option are required: %w", ErrValidation)
	}
	line, ok := store.UpdateQuantity(req.ProductID, req.PriceOptionID, req.Quantity)
	if !ok {
		return models.CartLineItem{}, fmt.Errorf("cart line %s/%s: %w", req.ProductID, req.PriceOptionID, ErrNotFound)
	}
	return line, nil
}

func (s *CartService) RemoveItem(store *cart.Store, req transport.RemoveItemRequest) error {
	if req.ProductID == "" || req.PriceOptionID == "" {
		return fmt.Errorf("product and price option are required: %w", ErrValidation)
	}
	store.RemoveFromCart(req.ProductID, req.PriceOptionID)
	return nil
}

// View reads the cart once so items and totals always agree.
func View(store *cart.Store) transport.CartResponse {
	return ViewOf(store.Items())
}

// ViewOf builds the cart response from a snapshot, such as one received from
// a subscription.
func ViewOf(items []models.CartLineItem) transport.CartResponse {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return transport.CartResponse{Items: items, TotalItems: n, TotalPrice: cart.Total(items)}
}

// Checkout submits the cart as an order at the prices captured when items
// were added. The cart is cleared only once the order was accepted.
func (s *CartService) Checkout(ctx context.Context, store *cart.Store, customer models.Customer) (*models.OrderReceipt, models.CheckoutOrder, error) {
	if err := validateCustomer(customer); err != nil {
		return nil, models.CheckoutOrder{}, err
	}

	items := store.Items()
	if len(items) == 0 {
		return nil, models.CheckoutOrder{}, fmt.Errorf("%w: %w", ErrEmptyCart, ErrValidation)
	}

	order := models.CheckoutOrder{
		Items:      make([]models.OrderLine, len(items)),
		Customer:   customer,
		CapturedAt: s.now(),
	}
	for i, it := range items {
		order.Items[i] = models.OrderLine{
			ProductID:     it.ProductID,
			PriceOptionID: it.PriceOptionID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Weight:        it.Weight,
			WeightType:    it.WeightType,
		}
		order.TotalItems += it.Quantity
	}
	order.TotalPrice = cart.Total(items)

	receipt, err := s.Orders.SubmitOrder(ctx, order)
	if err != nil {
		return nil, order, fmt.Errorf("submit order: %w: %v", ErrUnavailable, err)
	}

	store.ClearCart()
	return receipt, order, nil
}

func validateCustomer(c models.Customer) error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("customer %s required: %w", strings.Join(missing, ", "), ErrValidation)
	}
	return nil
}
