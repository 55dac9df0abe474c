package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/sniffnfrolic/storefront-backend/internal/checkout"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

type fakeOrders struct {
	orders    map[int64]*woo.Order
	created   *woo.CreateOrderRequest
	createID  int64
	createErr error
	updated   map[int64]*woo.UpdateOrderRequest
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (*woo.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (f *fakeOrders) CreateOrder(_ context.Context, payload *woo.CreateOrderRequest) (*woo.Order, error) {
	f.created = payload
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &woo.Order{ID: f.createID, Status: payload.Status}, nil
}

func (f *fakeOrders) UpdateOrder(_ context.Context, id int64, payload *woo.UpdateOrderRequest) (*woo.Order, error) {
	if f.updated == nil {
		f.updated = map[int64]*woo.UpdateOrderRequest{}
	}
	f.updated[id] = payload
	return &woo.Order{ID: id, Status: payload.Status}, nil
}

type fakeIntentUpdater struct {
	updatedID     string
	updatedParams *stripe.PaymentIntentParams
	updateErr     error
}

func (f *fakeIntentUpdater) Create(_ context.Context, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIntentUpdater) Get(_ context.Context, _ string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIntentUpdater) Update(_ context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.updatedID = id
	f.updatedParams = params
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &stripe.PaymentIntent{ID: id}, nil
}

func newTestService(t *testing.T, orders *fakeOrders, intents *fakeIntentUpdater) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:       orders,
		IntentClient: intents,
		Currency:     "CAD",
	})
	require.NoError(t, err)
	return svc
}

func succeededEvent(t *testing.T, metadata map[string]string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       "pi_evt",
		"metadata": metadata,
	})
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: raw},
	}
}

func snapshotMetadata(t *testing.T, orderID string) map[string]string {
	t.Helper()
	itemsJSON, err := json.Marshal([]checkout.CartItem{{ProductID: 11, Quantity: 2}})
	require.NoError(t, err)
	meta := map[string]string{
		checkout.MetaKeyLocale:       "en",
		checkout.MetaKeyEmail:        "buyer@example.com",
		checkout.MetaKeyTotal:        "112.00",
		checkout.MetaKeyShippingJSON: `{"first_name":"Wei","last_name":"Chen","address_1":"800 Robson St","city":"Vancouver","state":"BC","postcode":"V6Z 2E7","country":"CA"}`,
		checkout.MetaKeyItemsJSON:    string(itemsJSON),
	}
	if orderID != "" {
		meta[checkout.MetaKeyOrderID] = orderID
	}
	return meta
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	orders := &fakeOrders{}
	svc := newTestService(t, orders, &fakeIntentUpdater{})

	err := svc.HandleEvent(context.Background(), &stripe.Event{
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	})
	require.NoError(t, err)
	assert.Nil(t, orders.created)
}

func TestHandleEventCompletesLinkedOrder(t *testing.T) {
	orders := &fakeOrders{orders: map[int64]*woo.Order{
		42: {ID: 42, Status: "pending"},
	}}
	intents := &fakeIntentUpdater{}
	svc := newTestService(t, orders, intents)

	err := svc.HandleEvent(context.Background(), succeededEvent(t, snapshotMetadata(t, "42")))
	require.NoError(t, err)

	update := orders.updated[42]
	require.NotNil(t, update)
	assert.Equal(t, "processing", update.Status)
	require.NotNil(t, update.SetPaid)
	assert.True(t, *update.SetPaid)
	assert.Equal(t, "pi_evt", update.TransactionID)

	// The order id is written back onto the intent.
	assert.Equal(t, "pi_evt", intents.updatedID)
	assert.Equal(t, "42", intents.updatedParams.Metadata[checkout.MetaKeyWebhookOrderID])
}

func TestHandleEventAlreadyReconciledIsNoOp(t *testing.T) {
	orders := &fakeOrders{}
	intents := &fakeIntentUpdater{}
	svc := newTestService(t, orders, intents)

	meta := snapshotMetadata(t, "42")
	meta[checkout.MetaKeyWebhookOrderID] = "42"
	err := svc.HandleEvent(context.Background(), succeededEvent(t, meta))
	require.NoError(t, err)
	assert.Nil(t, orders.created)
	assert.Empty(t, intents.updatedID)
}

func TestHandleEventFinalOrderSkipsUpdate(t *testing.T) {
	orders := &fakeOrders{orders: map[int64]*woo.Order{
		42: {ID: 42, Status: "processing", TransactionID: "pi_evt"},
	}}
	intents := &fakeIntentUpdater{}
	svc := newTestService(t, orders, intents)

	err := svc.HandleEvent(context.Background(), succeededEvent(t, snapshotMetadata(t, "42")))
	require.NoError(t, err)
	assert.Empty(t, orders.updated)
	// The write-back still happens so future deliveries short-circuit.
	assert.Equal(t, "pi_evt", intents.updatedID)
}

func TestHandleEventVanishedOrderIsRecreated(t *testing.T) {
	orders := &fakeOrders{createID: 77}
	intents := &fakeIntentUpdater{}
	svc := newTestService(t, orders, intents)

	err := svc.HandleEvent(context.Background(), succeededEvent(t, snapshotMetadata(t, "42")))
	require.NoError(t, err)

	require.NotNil(t, orders.created)
	assert.Equal(t, "processing", orders.created.Status)
	assert.True(t, orders.created.SetPaid)
	assert.Equal(t, "pi_evt", orders.created.TransactionID)
	assert.Equal(t, "CAD", orders.created.Currency)
	assert.Equal(t, "buyer@example.com", orders.created.Billing.Email)
	require.Len(t, orders.created.LineItems, 1)
	assert.Equal(t, int64(11), orders.created.LineItems[0].ProductID)
	assert.Equal(t, 2, orders.created.LineItems[0].Quantity)
	assert.Equal(t, "77", intents.updatedParams.Metadata[checkout.MetaKeyWebhookOrderID])
}

func TestHandleEventCreatesOrderWithoutLink(t *testing.T) {
	orders := &fakeOrders{createID: 88}
	intents := &fakeIntentUpdater{}
	svc := newTestService(t, orders, intents)

	err := svc.HandleEvent(context.Background(), succeededEvent(t, snapshotMetadata(t, "")))
	require.NoError(t, err)
	require.NotNil(t, orders.created)
	assert.Equal(t, "88", intents.updatedParams.Metadata[checkout.MetaKeyWebhookOrderID])
}

func TestHandleEventMalformedPayload(t *testing.T) {
	svc := newTestService(t, &fakeOrders{}, &fakeIntentUpdater{})

	err := svc.HandleEvent(context.Background(), &stripe.Event{
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: []byte(`{"id":`)},
	})
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestHandleEventIncompleteSnapshot(t *testing.T) {
	cases := map[string]func(map[string]string){
		"no email":    func(m map[string]string) { delete(m, checkout.MetaKeyEmail) },
		"no shipping": func(m map[string]string) { delete(m, checkout.MetaKeyShippingJSON) },
		"no items":    func(m map[string]string) { delete(m, checkout.MetaKeyItemsJSON) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			orders := &fakeOrders{}
			svc := newTestService(t, orders, &fakeIntentUpdater{})

			meta := snapshotMetadata(t, "")
			mutate(meta)
			err := svc.HandleEvent(context.Background(), succeededEvent(t, meta))
			apiErr := pkgerrors.As(err)
			require.NotNil(t, apiErr)
			assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
			assert.Nil(t, orders.created)
		})
	}
}

func TestHandleEventBackendFailureIsRetryable(t *testing.T) {
	orders := &fakeOrders{createErr: pkgerrors.New(pkgerrors.CodeDependency, "backend unavailable")}
	svc := newTestService(t, orders, &fakeIntentUpdater{})

	err := svc.HandleEvent(context.Background(), succeededEvent(t, snapshotMetadata(t, "")))
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeDependency, apiErr.Code())
}

func TestHandleEventNilEvent(t *testing.T) {
	svc := newTestService(t, &fakeOrders{}, &fakeIntentUpdater{})
	err := svc.HandleEvent(context.Background(), nil)
	apiErr := pkgerrors.As(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code())
}

func TestHandleEventQuantityClamped(t *testing.T) {
	itemsJSON, err := json.Marshal([]checkout.CartItem{{ProductID: 5, Quantity: 0}})
	require.NoError(t, err)
	meta := snapshotMetadata(t, "")
	meta[checkout.MetaKeyItemsJSON] = string(itemsJSON)

	orders := &fakeOrders{createID: 10}
	svc := newTestService(t, orders, &fakeIntentUpdater{})

	require.NoError(t, svc.HandleEvent(context.Background(), succeededEvent(t, meta)))
	require.Len(t, orders.created.LineItems, 1)
	assert.Equal(t, 1, orders.created.LineItems[0].Quantity)
}
