package controllers

import (
	"net/http"

	"github.com/sniffnfrolic/storefront-backend/api/responses"
	"github.com/sniffnfrolic/storefront-backend/api/validators"
	checkoutsvc "github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/metrics"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
)

// Checkout handles submission of the storefront cart: server-side pricing,
// pending order intake, and payment intent creation.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			metrics.ObserveCheckout(metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]checkoutsvc.CartItem, len(payload.Items))
		for i, item := range payload.Items {
			items[i] = checkoutsvc.CartItem{
				ProductID:   item.ProductID,
				VariationID: item.VariationID,
				Quantity:    item.Quantity,
			}
		}

		result, err := svc.Checkout(ctx, checkoutsvc.CheckoutInput{
			Locale:         payload.Locale,
			Email:          payload.Email,
			Shipping:       payload.Shipping,
			Items:          items,
			ShippingMethod: payload.ShippingMethod,
		})
		if err != nil {
			observeCheckoutError(err)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		metrics.ObserveCheckout(metrics.OutcomeOK)
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

func observeCheckoutError(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
			metrics.ObserveCheckout(metrics.OutcomeRejected)
			return
		}
	}
	metrics.ObserveCheckout(metrics.OutcomeError)
}

type checkoutRequest struct {
	Locale         string              `json:"locale" validate:"omitempty,max=16"`
	Email          string              `json:"email" validate:"required,email"`
	Shipping       types.Address       `json:"shipping" validate:"required"`
	Items          []checkoutItemInput `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingMethod string              `json:"shippingMethod" validate:"omitempty,max=64"`
}

type checkoutItemInput struct {
	ProductID   int64 `json:"productId" validate:"required,gt=0"`
	VariationID int64 `json:"variationId,omitempty" validate:"omitempty,gt=0"`
	Quantity    int   `json:"quantity" validate:"required,gt=0"`
}

type checkoutResponse struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	OrderID         int64           `json:"orderId"`
	Amount          int64           `json:"amount"`
	Pricing         pricingResponse `json:"pricing"`
}

type pricingResponse struct {
	Currency string  `json:"currency"`
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	GST      float64 `json:"gst"`
	PST      float64 `json:"pst"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	resp := checkoutResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		OrderID:         result.OrderID,
	}
	if result.Pricing != nil {
		resp.Amount = result.Pricing.TotalCents()
		resp.Pricing = newPricingResponse(result.Pricing)
	}
	return resp
}

func newPricingResponse(quote *pricing.Quote) pricingResponse {
	return pricingResponse{
		Currency: quote.Currency,
		Subtotal: quote.Subtotal.InexactFloat64(),
		Shipping: quote.Shipping.InexactFloat64(),
		GST:      quote.GST.InexactFloat64(),
		PST:      quote.PST.InexactFloat64(),
		Tax:      quote.Tax.InexactFloat64(),
		Total:    quote.Total.InexactFloat64(),
	}
}
