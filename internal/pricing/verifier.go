package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

const (
	minQuantity = 1
	maxQuantity = 99
)

// Line is a cart line as submitted by the client. Prices never travel with it;
// the catalog is the only price source.
type Line struct {
	ProductID   int64
	VariationID int64
	Quantity    int
}

// Quote is the server-computed pricing breakdown, the only trusted source of
// the amount charged.
type Quote struct {
	Currency string
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	GST      decimal.Decimal
	PST      decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// TotalCents converts the total to the processor's minor unit.
func (q *Quote) TotalCents() int64 {
	return q.Total.Shift(2).Round(0).IntPart()
}

type catalog interface {
	GetProduct(ctx context.Context, id int64) (*woo.Product, error)
	GetVariation(ctx context.Context, productID, variationID int64) (*woo.Variation, error)
}

// Verifier recomputes order totals from live catalog prices.
type Verifier struct {
	catalog catalog
	cfg     config.PricingConfig
}

func NewVerifier(catalog catalog, cfg config.PricingConfig) (*Verifier, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{catalog: catalog, cfg: cfg}, nil
}

// ClampQuantity bounds a requested quantity to the allowed range.
func ClampQuantity(q int) int {
	if q < minQuantity {
		return minQuantity
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return q
}

// Quote fetches each line's live catalog price, clamps quantities and returns
// the full breakdown. Any unresolvable line aborts the whole quote.
func (v *Verifier) Quote(ctx context.Context, lines []Line) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one cart item is required")
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		price, err := v.linePrice(ctx, line)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(int64(ClampQuantity(line.Quantity)))
		subtotal = subtotal.Add(price.Mul(qty))
	}
	// Round once at the end to avoid compounding per-line error.
	subtotal = subtotal.Round(2)

	shipping := v.cfg.FlatShippingRate
	if subtotal.GreaterThanOrEqual(v.cfg.FreeShippingOver) {
		shipping = decimal.Zero
	}

	gst := subtotal.Mul(v.cfg.GSTRate).Round(2)
	pst := subtotal.Mul(v.cfg.PSTRate).Round(2)
	tax := gst.Add(pst)

	return &Quote{
		Currency: v.cfg.Currency,
		Subtotal: subtotal,
		Shipping: shipping,
		GST:      gst,
		PST:      pst,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}, nil
}

func (v *Verifier) linePrice(ctx context.Context, line Line) (decimal.Decimal, error) {
	if line.ProductID <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := v.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return decimal.Zero, err
	}
	raw := product.Price

	if line.VariationID > 0 {
		variation, err := v.catalog.GetVariation(ctx, line.ProductID, line.VariationID)
		if err != nil {
			return decimal.Zero, err
		}
		if strings.TrimSpace(variation.Price) != "" {
			raw = variation.Price
		}
	}

	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err,
			fmt.Sprintf("product %d has an unparseable price", line.ProductID))
	}
	if !price.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("product %d has a non-positive price", line.ProductID))
	}
	return price, nil
}
