package checkout

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
)

// Stripe metadata values are capped at 500 characters. Overflow is a handled
// error, not a silent truncation.
const maxMetadataValueLen = 500

// Metadata keys written onto the payment intent. They are the only channel
// correlating the processor record with the commerce backend order.
const (
	MetaKeyLocale         = "locale"
	MetaKeyEmail          = "email"
	MetaKeyShippingMethod = "shipping_method"
	MetaKeySubtotal       = "subtotal"
	MetaKeyShipping       = "shipping"
	MetaKeyGST            = "gst"
	MetaKeyPST            = "pst"
	MetaKeyTax            = "tax"
	MetaKeyTotal          = "total"
	MetaKeyShippingJSON   = "shipping_json"
	MetaKeyItemsJSON      = "items_json"
	MetaKeyOrderID        = "order_id"
	MetaKeyWebhookOrderID = "woo_order_id"
)

// OrderMetaKeyIntent is the order-side metadata key holding the intent id.
const OrderMetaKeyIntent = "_stripe_payment_intent"

// CartItem is a client-submitted cart line. It carries no price.
type CartItem struct {
	ProductID   int64 `json:"productId"`
	VariationID int64 `json:"variationId,omitempty"`
	Quantity    int   `json:"quantity"`
}

// IntentMetadata is the structured form of the flat string map stored on the
// payment intent. Encoding and decoding live here so the string-map constraint
// stays behind one boundary.
type IntentMetadata struct {
	Locale         string
	Email          string
	ShippingMethod string
	OrderID        int64
	Subtotal       decimal.Decimal
	Shipping       decimal.Decimal
	GST            decimal.Decimal
	PST            decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	ShippingAddr   types.Address
	Items          []CartItem
}

// Encode flattens the metadata into Stripe's string-to-string map.
func (m IntentMetadata) Encode() (map[string]string, error) {
	shippingJSON, err := json.Marshal(m.ShippingAddr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipping metadata")
	}
	itemsJSON, err := json.Marshal(m.Items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode items metadata")
	}

	out := map[string]string{
		MetaKeyLocale:         m.Locale,
		MetaKeyEmail:          m.Email,
		MetaKeyShippingMethod: m.ShippingMethod,
		MetaKeySubtotal:       m.Subtotal.StringFixed(2),
		MetaKeyShipping:       m.Shipping.StringFixed(2),
		MetaKeyGST:            m.GST.StringFixed(2),
		MetaKeyPST:            m.PST.StringFixed(2),
		MetaKeyTax:            m.Tax.StringFixed(2),
		MetaKeyTotal:          m.Total.StringFixed(2),
		MetaKeyShippingJSON:   string(shippingJSON),
		MetaKeyItemsJSON:      string(itemsJSON),
	}
	if m.OrderID > 0 {
		out[MetaKeyOrderID] = strconv.FormatInt(m.OrderID, 10)
	}

	for key, value := range out {
		if len(value) > maxMetadataValueLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				"cart too large to correlate through processor metadata").
				WithDetails(map[string]any{"key": key, "length": len(value)})
		}
	}
	return out, nil
}

// DecodeIntentMetadata parses the flat map back into structured form. Missing
// pricing fields are tolerated; shipping and items must round-trip.
func DecodeIntentMetadata(raw map[string]string) (*IntentMetadata, error) {
	if raw == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent metadata missing")
	}

	m := &IntentMetadata{
		Locale:         raw[MetaKeyLocale],
		Email:          strings.TrimSpace(raw[MetaKeyEmail]),
		ShippingMethod: raw[MetaKeyShippingMethod],
	}

	if v := raw[MetaKeyOrderID]; v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in metadata")
		}
		m.OrderID = id
	}

	for key, dst := range map[string]*decimal.Decimal{
		MetaKeySubtotal: &m.Subtotal,
		MetaKeyShipping: &m.Shipping,
		MetaKeyGST:      &m.GST,
		MetaKeyPST:      &m.PST,
		MetaKeyTax:      &m.Tax,
		MetaKeyTotal:    &m.Total,
	} {
		if v := raw[key]; v != "" {
			parsed, err := decimal.NewFromString(v)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing value in metadata")
			}
			*dst = parsed
		}
	}

	if v := raw[MetaKeyShippingJSON]; v != "" {
		if err := json.Unmarshal([]byte(v), &m.ShippingAddr); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping metadata")
		}
	}
	if v := raw[MetaKeyItemsJSON]; v != "" {
		if err := json.Unmarshal([]byte(v), &m.Items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid items metadata")
		}
	}

	return m, nil
}
