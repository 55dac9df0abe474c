package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

type stubQuoter struct {
	quote *pricing.Quote
	err   error
	lines []pricing.Line
}

func (s *stubQuoter) Quote(_ context.Context, lines []pricing.Line) (*pricing.Quote, error) {
	s.lines = lines
	return s.quote, s.err
}

type stubOrders struct {
	created    *woo.CreateOrderRequest
	createErr  error
	orderID    int64
	updates    []woo.UpdateOrderRequest
	updateErr  error
	updatedIDs []int64
}

func (s *stubOrders) CreateOrder(_ context.Context, payload *woo.CreateOrderRequest) (*woo.Order, error) {
	s.created = payload
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &woo.Order{ID: s.orderID, Status: "pending"}, nil
}

func (s *stubOrders) UpdateOrder(_ context.Context, id int64, payload *woo.UpdateOrderRequest) (*woo.Order, error) {
	s.updatedIDs = append(s.updatedIDs, id)
	s.updates = append(s.updates, *payload)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &woo.Order{ID: id}, nil
}

type stubIntents struct {
	created   *stripe.PaymentIntentParams
	intent    *stripe.PaymentIntent
	createErr error
}

func (s *stubIntents) Create(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.created = params
	return s.intent, s.createErr
}

func (s *stubIntents) Get(_ context.Context, _ string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (s *stubIntents) Update(_ context.Context, _ string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		Currency:         "CAD",
		FreeShippingOver: decimal.NewFromInt(80),
		FlatShippingRate: decimal.NewFromInt(10),
		GSTRate:          decimal.RequireFromString("0.05"),
		PSTRate:          decimal.RequireFromString("0.07"),
	}
}

func testQuote() *pricing.Quote {
	return &pricing.Quote{
		Currency: "CAD",
		Subtotal: decimal.RequireFromString("100.00"),
		Shipping: decimal.Zero,
		GST:      decimal.RequireFromString("5.00"),
		PST:      decimal.RequireFromString("7.00"),
		Tax:      decimal.RequireFromString("12.00"),
		Total:    decimal.RequireFromString("112.00"),
	}
}

func testInput() CheckoutInput {
	return CheckoutInput{
		Locale: "zh-CN",
		Email:  "buyer@example.com",
		Shipping: types.Address{
			FirstName: "Wei",
			LastName:  "Chen",
			Address1:  "800 Robson St",
			City:      "Vancouver",
			State:     "BC",
			Postcode:  "V6Z 2E7",
		},
		Items:          []CartItem{{ProductID: 11, Quantity: 2}},
		ShippingMethod: "flat_rate",
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	quoter := &stubQuoter{quote: testQuote()}
	orders := &stubOrders{orderID: 501}
	intents := &stubIntents{intent: &stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_abc",
	}}
	svc, err := NewService(quoter, orders, intents, testPricingConfig(), nil)
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "pi_123_secret_abc", result.ClientSecret)
	assert.Equal(t, "pi_123", result.PaymentIntentID)
	assert.Equal(t, int64(501), result.OrderID)
	assert.Equal(t, "112.00", result.Pricing.Total.StringFixed(2))

	// Order goes in pending and unpaid, before any charge is authorized.
	require.NotNil(t, orders.created)
	assert.Equal(t, "pending", orders.created.Status)
	assert.False(t, orders.created.SetPaid)
	assert.Equal(t, "stripe", orders.created.PaymentMethod)
	assert.Equal(t, "buyer@example.com", orders.created.Billing.Email)
	assert.Equal(t, "CA", orders.created.Shipping.Country)

	// The charge amount comes from the verified quote, in cents.
	require.NotNil(t, intents.created)
	assert.Equal(t, int64(11200), *intents.created.Amount)
	assert.Equal(t, "cad", *intents.created.Currency)
	assert.Equal(t, "501", intents.created.Metadata[MetaKeyOrderID])
	assert.Equal(t, "zh", intents.created.Metadata[MetaKeyLocale])
	assert.Equal(t, "112.00", intents.created.Metadata[MetaKeyTotal])

	// The intent id is written back onto the order.
	require.Len(t, orders.updates, 1)
	require.Len(t, orders.updates[0].MetaData, 1)
	assert.Equal(t, OrderMetaKeyIntent, orders.updates[0].MetaData[0].Key)
	assert.Equal(t, "pi_123", orders.updates[0].MetaData[0].Value)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	svc, err := NewService(&stubQuoter{}, &stubOrders{}, &stubIntents{}, testPricingConfig(), nil)
	require.NoError(t, err)

	input := testInput()
	input.Items = nil
	_, err = svc.Checkout(context.Background(), input)
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestCheckoutRejectsMissingEmail(t *testing.T) {
	svc, err := NewService(&stubQuoter{}, &stubOrders{}, &stubIntents{}, testPricingConfig(), nil)
	require.NoError(t, err)

	input := testInput()
	input.Email = "   "
	_, err = svc.Checkout(context.Background(), input)
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestCheckoutPropagatesPricingRejection(t *testing.T) {
	quoter := &stubQuoter{err: pkgerrors.New(pkgerrors.CodeStateConflict, "product is not purchasable")}
	orders := &stubOrders{orderID: 1}
	svc, err := NewService(quoter, orders, &stubIntents{}, testPricingConfig(), nil)
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), testInput())
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, apiErr.Code())
	assert.Nil(t, orders.created, "no order should be created when pricing rejects")
}

func TestCheckoutNoIntentWithoutOrderID(t *testing.T) {
	quoter := &stubQuoter{quote: testQuote()}
	orders := &stubOrders{orderID: 0}
	intents := &stubIntents{}
	svc, err := NewService(quoter, orders, intents, testPricingConfig(), nil)
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), testInput())
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeDependency, apiErr.Code())
	assert.Nil(t, intents.created, "no intent should be created without a durable order id")
}

func TestCheckoutIntentFailureLeavesPendingOrder(t *testing.T) {
	quoter := &stubQuoter{quote: testQuote()}
	orders := &stubOrders{orderID: 77}
	intents := &stubIntents{createErr: errors.New("stripe down")}
	svc, err := NewService(quoter, orders, intents, testPricingConfig(), nil)
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), testInput())
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeDependency, apiErr.Code())
	// The pending order stands; cleanup is a backend batch concern.
	assert.NotNil(t, orders.created)
	assert.Empty(t, orders.updates)
}

func TestCheckoutMetaWritebackFailureIsNonFatal(t *testing.T) {
	quoter := &stubQuoter{quote: testQuote()}
	orders := &stubOrders{orderID: 88, updateErr: errors.New("woo down")}
	intents := &stubIntents{intent: &stripe.PaymentIntent{ID: "pi_9", ClientSecret: "pi_9_secret"}}
	svc, err := NewService(quoter, orders, intents, testPricingConfig(), nil)
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "pi_9_secret", result.ClientSecret)
}

func TestCheckoutClampsLineQuantities(t *testing.T) {
	quoter := &stubQuoter{quote: testQuote()}
	orders := &stubOrders{orderID: 5}
	intents := &stubIntents{intent: &stripe.PaymentIntent{ID: "pi_q", ClientSecret: "pi_q_secret"}}
	svc, err := NewService(quoter, orders, intents, testPricingConfig(), nil)
	require.NoError(t, err)

	input := testInput()
	input.Items = []CartItem{{ProductID: 2, Quantity: 500}}
	_, err = svc.Checkout(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, orders.created.LineItems, 1)
	assert.Equal(t, 99, orders.created.LineItems[0].Quantity)
}
