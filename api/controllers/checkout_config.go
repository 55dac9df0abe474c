package controllers

import (
	"net/http"

	"github.com/sniffnfrolic/storefront-backend/api/responses"
)

// CheckoutConfig exposes the publishable processor key the browser needs to
// mount the payment element.
func CheckoutConfig(publishableKey, currency string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"publishableKey": publishableKey,
			"currency":       currency,
		})
	}
}
