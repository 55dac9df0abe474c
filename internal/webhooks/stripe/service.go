package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v84"

	"github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/payments"
	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	"github.com/sniffnfrolic/storefront-backend/internal/reconcile"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/metrics"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

type orderStore interface {
	GetOrder(ctx context.Context, id int64) (*woo.Order, error)
	CreateOrder(ctx context.Context, payload *woo.CreateOrderRequest) (*woo.Order, error)
	UpdateOrder(ctx context.Context, id int64, payload *woo.UpdateOrderRequest) (*woo.Order, error)
}

type ServiceParams struct {
	Orders       orderStore
	IntentClient payments.IntentClient
	Currency     string
	Logger       *logger.Logger
}

// Service is the processor-driven reconciler. It covers the case where the
// client-side completion call never arrives.
type Service struct {
	orders   orderStore
	intents  payments.IntentClient
	currency string
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order store required")
	}
	if params.IntentClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent client required")
	}
	return &Service{
		orders:   params.Orders,
		intents:  params.IntentClient,
		currency: params.Currency,
		logg:     params.Logger,
	}, nil
}

// HandleEvent processes a verified Stripe event. Validation failures come back
// as VALIDATION_ERROR so the controller can acknowledge them without retry;
// everything else is retryable.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing from event")
	}

	// Already reconciled by a previous delivery of this payment.
	if intent.Metadata[checkout.MetaKeyWebhookOrderID] != "" {
		return nil
	}

	if raw := intent.Metadata[checkout.MetaKeyOrderID]; raw != "" {
		orderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in intent metadata")
		}
		if err := s.completeExistingOrder(ctx, orderID, &intent); err == nil {
			metrics.ObserveReconciliation(metrics.PathWebhook, metrics.OutcomeOK)
			return nil
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			metrics.ObserveReconciliation(metrics.PathWebhook, metrics.OutcomeError)
			return err
		}
		// The linked order vanished; fall through and rebuild it from the
		// metadata snapshot.
	}

	if err := s.createPaidOrder(ctx, &intent); err != nil {
		outcome := metrics.OutcomeError
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			outcome = metrics.OutcomeRejected
		}
		metrics.ObserveReconciliation(metrics.PathWebhook, outcome)
		return err
	}
	metrics.ObserveReconciliation(metrics.PathWebhook, metrics.OutcomeOK)
	return nil
}

func (s *Service) completeExistingOrder(ctx context.Context, orderID int64, intent *stripe.PaymentIntent) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if !reconcile.IsFinalStatus(order.Status) {
		_, err = s.orders.UpdateOrder(ctx, order.ID, &woo.UpdateOrderRequest{
			SetPaid:       boolPtr(true),
			Status:        "processing",
			TransactionID: intent.ID,
			MetaData: []woo.Meta{
				{Key: checkout.OrderMetaKeyIntent, Value: intent.ID},
				{Key: "_headless_paid_via", Value: "webhook"},
			},
		})
		if err != nil {
			return err
		}
	}

	return s.writeBackOrderID(ctx, intent, order.ID)
}

func (s *Service) createPaidOrder(ctx context.Context, intent *stripe.PaymentIntent) error {
	meta, err := checkout.DecodeIntentMetadata(intent.Metadata)
	if err != nil {
		return err
	}
	if meta.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email missing from intent metadata")
	}
	if (meta.ShippingAddr == types.Address{}) {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping missing from intent metadata")
	}
	if len(meta.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "items missing from intent metadata")
	}

	lineItems := make([]woo.OrderLineItem, 0, len(meta.Items))
	for _, item := range meta.Items {
		if item.ProductID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid product id %d in intent metadata", item.ProductID))
		}
		line := woo.OrderLineItem{
			ProductID: item.ProductID,
			Quantity:  pricing.ClampQuantity(item.Quantity),
		}
		if item.VariationID > 0 {
			line.VariationID = item.VariationID
		}
		lineItems = append(lineItems, line)
	}

	shipping := meta.ShippingAddr.Normalized()
	order, err := s.orders.CreateOrder(ctx, &woo.CreateOrderRequest{
		Status:             "processing",
		SetPaid:            true,
		PaymentMethod:      "stripe",
		PaymentMethodTitle: "Credit Card (Stripe)",
		TransactionID:      intent.ID,
		Currency:           s.currency,
		Billing: types.BillingAddress{
			Address: shipping,
			Email:   meta.Email,
		},
		Shipping:  shipping,
		LineItems: lineItems,
		MetaData: []woo.Meta{
			{Key: checkout.OrderMetaKeyIntent, Value: intent.ID},
			{Key: "_headless_paid_via", Value: "webhook"},
		},
	})
	if err != nil {
		return err
	}
	if order == nil || order.ID <= 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce backend returned no order id")
	}

	return s.writeBackOrderID(ctx, intent, order.ID)
}

// writeBackOrderID closes the idempotency loop: future deliveries of the same
// payment see the linked order and no-op.
func (s *Service) writeBackOrderID(ctx context.Context, intent *stripe.PaymentIntent, orderID int64) error {
	params := &stripe.PaymentIntentParams{}
	params.AddMetadata(checkout.MetaKeyWebhookOrderID, strconv.FormatInt(orderID, 10))
	if _, err := s.intents.Update(ctx, intent.ID, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write order id back to intent")
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
