package models

import (
	"fmt"
	"time"
)

type PriceKind string

const (
	PriceKindPacket PriceKind = "packet"
	PriceKindWeight PriceKind = "weight"
)

// PriceOption is one purchasable variant of a product as sent by the catalog API.
type PriceOption struct {
	ID                  string    `json:"_id,omitempty"`
	Kind                PriceKind `json:"type"`
	Weight              float64   `json:"weight"`
	BasePrice           float64   `json:"price"`
	SalePrice           *float64  `json:"salePrice,omitempty"`
	CalculatedSalePrice *float64  `json:"calculatedSalePrice,omitempty"`
	OriginalPrice       *float64  `json:"originalPrice,omitempty"`
}

// Key identifies the option inside its product. Options without an id fall
// back to their packaging and weight, which the catalog keeps unique.
func (o PriceOption) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return fmt.Sprintf("%s-%g", o.Kind, o.Weight)
}

type Product struct {
	ID                     string        `json:"_id"`
	Name                   string        `json:"name"`
	Description            string        `json:"description,omitempty"`
	Category               string        `json:"category,omitempty"`
	Images                 []string      `json:"images,omitempty"`
	Stock                  int           `json:"stock"`
	PriceOptions           []PriceOption `json:"priceOptions"`
	CalculatedPriceOptions []PriceOption `json:"calculatedPriceOptions,omitempty"`
	Sale                   *float64      `json:"sale,omitempty"`
	HasActiveSales         *bool         `json:"hasActiveSales,omitempty"`
}

func (p Product) FindOption(id string) (PriceOption, bool) {
	opts := p.CalculatedPriceOptions
	if len(opts) == 0 {
		opts = p.PriceOptions
	}
	for _, o := range opts {
		if o.Key() == id {
			return o, true
		}
	}
	return PriceOption{}, false
}

func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CartLineItem is one product+variant row of a shopper's cart. The JSON form
// is the persisted contract shared with every reader of the cart storage.
type CartLineItem struct {
	ProductID     string    `json:"product_id"`
	PriceOptionID string    `json:"price_option_id"`
	Name          string    `json:"name"`
	UnitPrice     float64   `json:"unit_price"`
	Quantity      int       `json:"quantity"`
	ImageURL      string    `json:"image_url"`
	StockAtAdd    int       `json:"stock_at_add"`
	Weight        float64   `json:"weight"`
	WeightType    PriceKind `json:"weight_type"`
}

// CartEntry is the key-value row holding a serialized cart.
type CartEntry struct {
	Key       string    `gorm:"column:cart_key;primaryKey;size:191" json:"key"`
	Value     []byte    `gorm:"not null"                            json:"-"`
	ExpiresAt time.Time `gorm:"index;not null"                      json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartEntry) TableName() string {
	return "cart_entries"
}

type OrderLine struct {
	ProductID     string    `json:"productId"`
	PriceOptionID string    `json:"priceOptionId"`
	Name          string    `json:"name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     float64   `json:"unitPrice"`
	Weight        float64   `json:"weight"`
	WeightType    PriceKind `json:"weightType"`
}

// CheckoutOrder is the cart snapshot handed to the remote order endpoint.
type CheckoutOrder struct {
	Items      []OrderLine `json:"items"`
	TotalItems int         `json:"totalItems"`
	TotalPrice float64     `json:"totalPrice"`
	Customer   Customer    `json:"customer"`
	CapturedAt time.Time   `json:"capturedAt"`
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Comment string `json:"comment,omitempty"`
}

type OrderReceipt struct {
	ID     string `json:"_id"`
	Status string `json:"status"`
}
