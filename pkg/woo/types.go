package woo

import (
	"fmt"

	"github.com/sniffnfrolic/storefront-backend/pkg/types"
)

// Meta is a single entry in the commerce backend's key/value metadata list.
type Meta struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Type         string  `json:"type"`
	Price        string  `json:"price"`
	RegularPrice string  `json:"regular_price"`
	SalePrice    string  `json:"sale_price"`
	OnSale       bool    `json:"on_sale"`
	StockStatus  string  `json:"stock_status"`
	SKU          string  `json:"sku"`
	Images       []Image `json:"images"`
	Variations   []int64 `json:"variations"`
}

type Variation struct {
	ID           int64  `json:"id"`
	SKU          string `json:"sku"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
	OnSale       bool   `json:"on_sale"`
	StockStatus  string `json:"stock_status"`
	Image        *Image `json:"image,omitempty"`
}

type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int64  `json:"parent"`
	Image  *Image `json:"image,omitempty"`
}

type OrderLineItem struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id,omitempty"`
	Quantity    int   `json:"quantity"`
}

type Order struct {
	ID            int64                `json:"id"`
	Status        string               `json:"status"`
	Currency      string               `json:"currency"`
	Total         string               `json:"total"`
	TransactionID string               `json:"transaction_id"`
	Billing       types.BillingAddress `json:"billing"`
	Shipping      types.Address        `json:"shipping"`
	LineItems     []OrderLineItem      `json:"line_items"`
	MetaData      []Meta               `json:"meta_data"`
}

// MetaValue returns the first metadata value stored under key, stringified.
func (o *Order) MetaValue(key string) string {
	if o == nil {
		return ""
	}
	for _, m := range o.MetaData {
		if m.Key != key || m.Value == nil {
			continue
		}
		if s, ok := m.Value.(string); ok {
			return s
		}
		return fmt.Sprint(m.Value)
	}
	return ""
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	Status             string               `json:"status"`
	SetPaid            bool                 `json:"set_paid"`
	PaymentMethod      string               `json:"payment_method"`
	PaymentMethodTitle string               `json:"payment_method_title"`
	TransactionID      string               `json:"transaction_id,omitempty"`
	Currency           string               `json:"currency,omitempty"`
	Billing            types.BillingAddress `json:"billing"`
	Shipping           types.Address        `json:"shipping"`
	LineItems          []OrderLineItem      `json:"line_items"`
	MetaData           []Meta               `json:"meta_data,omitempty"`
}

// UpdateOrderRequest is the payload for PUT /orders/{id}.
type UpdateOrderRequest struct {
	SetPaid       *bool  `json:"set_paid,omitempty"`
	Status        string `json:"status,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	MetaData      []Meta `json:"meta_data,omitempty"`
}
