package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	checkoutsvc "github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/types"
)

type fakeCheckoutService struct {
	input  checkoutsvc.CheckoutInput
	result *checkoutsvc.CheckoutResult
	err    error
}

func (f *fakeCheckoutService) Checkout(_ context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	f.input = input
	return f.result, f.err
}

const validCheckoutBody = `{
	"locale": "en",
	"email": "buyer@example.com",
	"shipping": {
		"first_name": "Wei",
		"last_name": "Chen",
		"address_1": "800 Robson St",
		"city": "Vancouver",
		"state": "BC",
		"postcode": "V6Z 2E7",
		"country": "CA"
	},
	"items": [{"productId": 11, "quantity": 2}],
	"shippingMethod": "flat_rate"
}`

func TestCheckoutSuccess(t *testing.T) {
	service := &fakeCheckoutService{result: &checkoutsvc.CheckoutResult{
		ClientSecret:    "pi_1_secret",
		PaymentIntentID: "pi_1",
		OrderID:         42,
		Pricing: &pricing.Quote{
			Currency: "CAD",
			Subtotal: decimal.RequireFromString("100.00"),
			Shipping: decimal.Zero,
			GST:      decimal.RequireFromString("5.00"),
			PST:      decimal.RequireFromString("7.00"),
			Tax:      decimal.RequireFromString("12.00"),
			Total:    decimal.RequireFromString("112.00"),
		},
	}}
	handler := Checkout(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(validCheckoutBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := body.Data.(map[string]any)
	if data["clientSecret"] != "pi_1_secret" {
		t.Fatalf("unexpected client secret %v", data["clientSecret"])
	}
	if data["orderId"].(float64) != 42 {
		t.Fatalf("unexpected order id %v", data["orderId"])
	}
	if data["amount"].(float64) != 11200 {
		t.Fatalf("unexpected amount %v", data["amount"])
	}
	priced := data["pricing"].(map[string]any)
	if priced["total"].(float64) != 112.00 {
		t.Fatalf("unexpected total %v", priced["total"])
	}

	if service.input.Email != "buyer@example.com" {
		t.Fatalf("unexpected email %q", service.input.Email)
	}
	if len(service.input.Items) != 1 || service.input.Items[0].ProductID != 11 {
		t.Fatalf("unexpected items %+v", service.input.Items)
	}
}

func TestCheckoutRejectsInvalidBody(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"email":`,
		"missing email":  `{"shipping":{"first_name":"A"},"items":[{"productId":1,"quantity":1}]}`,
		"bad email":      `{"email":"nope","items":[{"productId":1,"quantity":1}]}`,
		"no items":       `{"email":"a@b.com","items":[]}`,
		"zero quantity":  `{"email":"a@b.com","items":[{"productId":1,"quantity":0}]}`,
		"unknown fields": `{"email":"a@b.com","items":[{"productId":1,"quantity":1}],"total":"0.01"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			service := &fakeCheckoutService{}
			handler := Checkout(service, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(payload))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
			if service.input.Email != "" {
				t.Fatalf("service should not be invoked for invalid input")
			}
		})
	}
}

func TestCheckoutMapsServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"not purchasable": {pkgerrors.New(pkgerrors.CodeStateConflict, "product is not purchasable"), http.StatusUnprocessableEntity},
		"unknown product": {pkgerrors.New(pkgerrors.CodeNotFound, "product not found"), http.StatusNotFound},
		"stripe down":     {pkgerrors.New(pkgerrors.CodeDependency, "create payment intent"), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := Checkout(&fakeCheckoutService{err: tc.err}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(validCheckoutBody))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
