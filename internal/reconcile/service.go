package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/payments"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/metrics"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

type orderStore interface {
	GetOrder(ctx context.Context, id int64) (*woo.Order, error)
	UpdateOrder(ctx context.Context, id int64, payload *woo.UpdateOrderRequest) (*woo.Order, error)
}

type intentLock interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Result reports the outcome of a completion call.
type Result struct {
	OrderID          int64
	Status           string
	TransactionID    string
	AlreadyCompleted bool
}

// Service is the client-driven reconciler: it re-verifies the payment intent
// with the processor and commits the paid transition exactly once.
type Service struct {
	orders  orderStore
	intents payments.IntentClient
	lock    intentLock
	logg    *logger.Logger
}

func NewService(orders orderStore, intents payments.IntentClient, lock intentLock, logg *logger.Logger) (*Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent client required")
	}
	if lock == nil {
		return nil, fmt.Errorf("intent lock required")
	}
	return &Service{orders: orders, intents: intents, lock: lock, logg: logg}, nil
}

// IsFinalStatus reports whether a commerce backend order status counts as paid.
func IsFinalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "processing", "completed":
		return true
	default:
		return false
	}
}

// Complete runs the five-step completion flow; the client's claim of success
// is never trusted, only the processor's record.
func (s *Service) Complete(ctx context.Context, orderID int64, intentID string) (*Result, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeError)
		return nil, err
	}

	if IsFinalStatus(order.Status) {
		metrics.ObserveReplay()
		return &Result{
			OrderID:          order.ID,
			Status:           order.Status,
			TransactionID:    order.TransactionID,
			AlreadyCompleted: true,
		}, nil
	}

	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		intentID = order.MetaValue(checkout.OrderMetaKeyIntent)
	}
	if intentID == "" {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	claimed, err := s.lock.CheckAndMark(ctx, intentID)
	if err != nil {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reconciliation lock")
	}
	if claimed {
		// Another reconciler holds the fetch-then-commit window. Either it
		// commits (the next call replays as AlreadyCompleted) or its lock
		// expires and the retry proceeds.
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodePaymentPending, "reconciliation already in progress")
	}

	result, err := s.verifyAndCommit(ctx, order, intentID)
	if err != nil {
		if releaseErr := s.lock.Delete(ctx, intentID); releaseErr != nil && s.logg != nil {
			s.logg.Error(ctx, "reconcile.lock_release_failed", releaseErr)
		}
		return nil, err
	}
	metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeOK)
	return result, nil
}

func (s *Service) verifyAndCommit(ctx context.Context, order *woo.Order, intentID string) (*Result, error) {
	intent, err := s.intents.Get(ctx, intentID, &stripe.PaymentIntentParams{})
	if err != nil {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		// Redirect-based methods may be async for a short time.
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodePaymentPending, "payment not settled yet").
			WithDetails(map[string]any{"status": string(intent.Status)})
	case stripe.PaymentIntentStatusSucceeded:
	default:
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not succeeded").
			WithDetails(map[string]any{"status": string(intent.Status)})
	}

	if linked := linkedOrderID(intent.Metadata); linked > 0 && linked != order.ID {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment intent does not match order")
	}

	updated, err := s.orders.UpdateOrder(ctx, order.ID, &woo.UpdateOrderRequest{
		SetPaid:       boolPtr(true),
		Status:        "processing",
		TransactionID: intentID,
		MetaData: []woo.Meta{
			{Key: checkout.OrderMetaKeyIntent, Value: intentID},
			{Key: "_headless_paid_via", Value: "completion"},
		},
	})
	if err != nil {
		metrics.ObserveReconciliation(metrics.PathCompletion, metrics.OutcomeError)
		return nil, err
	}

	result := &Result{OrderID: order.ID, Status: "processing", TransactionID: intentID}
	if updated != nil {
		if updated.ID > 0 {
			result.OrderID = updated.ID
		}
		if updated.Status != "" {
			result.Status = updated.Status
		}
		if updated.TransactionID != "" {
			result.TransactionID = updated.TransactionID
		}
	}
	return result, nil
}

// linkedOrderID reads the order correlation from intent metadata, preferring
// the checkout-written key and falling back to the webhook's write-back key.
func linkedOrderID(meta map[string]string) int64 {
	for _, key := range []string{checkout.MetaKeyOrderID, checkout.MetaKeyWebhookOrderID} {
		if raw, ok := meta[key]; ok && raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}

func boolPtr(b bool) *bool { return &b }
