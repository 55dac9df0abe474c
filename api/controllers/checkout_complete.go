package controllers

import (
	"context"
	"net/http"

	"github.com/sniffnfrolic/storefront-backend/api/responses"
	"github.com/sniffnfrolic/storefront-backend/api/validators"
	"github.com/sniffnfrolic/storefront-backend/internal/reconcile"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
)

type CompletionService interface {
	Complete(ctx context.Context, orderID int64, intentID string) (*reconcile.Result, error)
}

// CheckoutComplete reconciles an order after the browser reports payment
// confirmation. The processor's record decides, not the client.
func CheckoutComplete(svc CompletionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "completion service unavailable"))
			return
		}

		var payload completeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Complete(ctx, payload.OrderID, payload.PaymentIntentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, completeResponse{
			OrderID:          result.OrderID,
			Status:           result.Status,
			TransactionID:    result.TransactionID,
			AlreadyCompleted: result.AlreadyCompleted,
		})
	}
}

type completeRequest struct {
	OrderID         int64  `json:"orderId" validate:"required,gt=0"`
	PaymentIntentID string `json:"paymentIntentId" validate:"omitempty,max=255"`
}

type completeResponse struct {
	OrderID          int64  `json:"orderId"`
	Status           string `json:"status"`
	TransactionID    string `json:"transaction_id,omitempty"`
	AlreadyCompleted bool   `json:"alreadyCompleted"`
}
