package transport

import "github.com/Skotchmaster/spice_shop/internal/models"

// PriceView is what a storefront renders for one price. Original is set only
// when a struck-through price goes with it.
type PriceView struct {
	Original   *float64 `json:"original_price,omitempty"`
	Price      float64  `json:"price"`
	Discounted bool     `json:"discounted"`
}

type OptionView struct {
	ID     string           `json:"id"`
	Kind   models.PriceKind `json:"type"`
	Weight float64          `json:"weight"`
	PriceView
}

// ProductView is a catalog product with its prices resolved. Price is nil when
// the product has nothing to price it by.
type ProductView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Image       string       `json:"image,omitempty"`
	Images      []string     `json:"images,omitempty"`
	Stock       int          `json:"stock"`
	InStock     bool         `json:"in_stock"`
	OnSale      bool         `json:"on_sale"`
	Price       *PriceView   `json:"price"`
	Options     []OptionView `json:"options"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// ProductPage is one page of products. Unavailable reports that the catalog
// could not be reached and the page is empty for that reason.
type ProductPage struct {
	Data        []ProductView `json:"data"`
	Meta        PageMeta      `json:"meta"`
	Unavailable bool          `json:"unavailable,omitempty"`
}

type CartResponse struct {
	Items      []models.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice float64               `json:"total_price"`
}

type AddItemRequest struct {
	ProductID     string `json:"product_id"`
	PriceOptionID string `json:"price_option_id"`
	Quantity      int    `json:"quantity"`
}

type UpdateItemRequest struct {
	ProductID     string `json:"product_id"`
	PriceOptionID string `json:"price_option_id"`
	Quantity      int    `json:"quantity"`
}

type RemoveItemRequest struct {
	ProductID     string `json:"product_id"      query:"product_id"`
	PriceOptionID string `json:"price_option_id" query:"price_option_id"`
}

type CheckoutRequest struct {
	Customer models.Customer `json:"customer"`
}

type CheckoutResponse struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	TotalItems int     `json:"total_items"`
	TotalPrice float64 `json:"total_price"`
}
