package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/sniffnfrolic/storefront-backend/internal/payments"
	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

const (
	paymentMethod      = "stripe"
	paymentMethodTitle = "Credit Card (Stripe)"
)

type quoter interface {
	Quote(ctx context.Context, lines []pricing.Line) (*pricing.Quote, error)
}

type orderWriter interface {
	CreateOrder(ctx context.Context, payload *woo.CreateOrderRequest) (*woo.Order, error)
	UpdateOrder(ctx context.Context, id int64, payload *woo.UpdateOrderRequest) (*woo.Order, error)
}

// Service executes checkout orchestration: verified pricing, pending order
// intake, then payment authorization with cross-system correlation metadata.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutInput is the validated checkout submission.
type CheckoutInput struct {
	Locale         string
	Email          string
	Shipping       types.Address
	Items          []CartItem
	ShippingMethod string
}

// CheckoutResult is handed back to the browser to drive payment confirmation.
type CheckoutResult struct {
	ClientSecret    string
	PaymentIntentID string
	OrderID         int64
	Pricing         *pricing.Quote
}

type service struct {
	quoter  quoter
	orders  orderWriter
	intents payments.IntentClient
	cfg     config.PricingConfig
	logg    *logger.Logger
}

// NewService builds the checkout service.
func NewService(quoter quoter, orders orderWriter, intents payments.IntentClient, cfg config.PricingConfig, logg *logger.Logger) (Service, error) {
	if quoter == nil {
		return nil, fmt.Errorf("pricing verifier required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent client required")
	}
	return &service{
		quoter:  quoter,
		orders:  orders,
		intents: intents,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	locale := NormalizeLocale(input.Locale)
	shipping := input.Shipping.Normalized()

	lines := make([]pricing.Line, len(input.Items))
	for i, item := range input.Items {
		lines[i] = pricing.Line{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
		}
	}

	quote, err := s.quoter.Quote(ctx, lines)
	if err != nil {
		return nil, err
	}

	order, err := s.createPendingOrder(ctx, email, locale, shipping, input.Items, quote.Currency)
	if err != nil {
		return nil, err
	}

	intent, err := s.createIntent(ctx, email, locale, shipping, input, quote, order.ID)
	if err != nil {
		// The pending order is deliberately left in place for batch cleanup;
		// a retried checkout creates a fresh one.
		if s.logg != nil {
			lctx := s.logg.WithField(ctx, "order_id", order.ID)
			s.logg.Error(lctx, "checkout.intent_create_failed", err)
		}
		return nil, err
	}

	if intent.ClientSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "processor returned no client secret")
	}

	// Write the intent id back onto the order so completion can recover the
	// correlation even when the client omits it.
	_, err = s.orders.UpdateOrder(ctx, order.ID, &woo.UpdateOrderRequest{
		MetaData: []woo.Meta{{Key: OrderMetaKeyIntent, Value: intent.ID}},
	})
	if err != nil && s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "payment_intent": intent.ID})
		s.logg.Warn(lctx, "checkout.order_meta_writeback_failed")
	}

	return &CheckoutResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderID:         order.ID,
		Pricing:         quote,
	}, nil
}

func (s *service) createPendingOrder(ctx context.Context, email, locale string, shipping types.Address, items []CartItem, currency string) (*woo.Order, error) {
	lineItems := make([]woo.OrderLineItem, len(items))
	for i, item := range items {
		lineItems[i] = woo.OrderLineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    pricing.ClampQuantity(item.Quantity),
		}
	}

	payload := &woo.CreateOrderRequest{
		Status:             "pending",
		SetPaid:            false,
		PaymentMethod:      paymentMethod,
		PaymentMethodTitle: paymentMethodTitle,
		Currency:           currency,
		Billing: types.BillingAddress{
			Address: shipping,
			Email:   email,
		},
		Shipping:  shipping,
		LineItems: lineItems,
		MetaData: []woo.Meta{
			{Key: "wpml_language", Value: locale},
			{Key: "_headless_checkout", Value: "storefront-backend"},
		},
	}

	order, err := s.orders.CreateOrder(ctx, payload)
	if err != nil {
		return nil, err
	}
	if order == nil || order.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "commerce backend returned no order id")
	}
	return order, nil
}

func (s *service) createIntent(ctx context.Context, email, locale string, shipping types.Address, input CheckoutInput, quote *pricing.Quote, orderID int64) (*stripe.PaymentIntent, error) {
	meta := IntentMetadata{
		Locale:         locale,
		Email:          email,
		ShippingMethod: input.ShippingMethod,
		OrderID:        orderID,
		Subtotal:       quote.Subtotal,
		Shipping:       quote.Shipping,
		GST:            quote.GST,
		PST:            quote.PST,
		Tax:            quote.Tax,
		Total:          quote.Total,
		ShippingAddr:   shipping,
		Items:          input.Items,
	}
	encoded, err := meta.Encode()
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(quote.TotalCents()),
		Currency:     stripe.String(strings.ToLower(quote.Currency)),
		ReceiptEmail: stripe.String(email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range encoded {
		params.AddMetadata(key, value)
	}

	intent, err := s.intents.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return intent, nil
}
