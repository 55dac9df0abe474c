package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sniffnfrolic/storefront-backend/api/controllers"
	webhookcontrollers "github.com/sniffnfrolic/storefront-backend/api/controllers/webhooks"
	"github.com/sniffnfrolic/storefront-backend/api/middleware"
	"github.com/sniffnfrolic/storefront-backend/internal/catalog"
	checkoutsvc "github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/idempotency"
	stripewebhook "github.com/sniffnfrolic/storefront-backend/internal/webhooks/stripe"
	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/metrics"
	"github.com/sniffnfrolic/storefront-backend/pkg/redis"
	"github.com/sniffnfrolic/storefront-backend/pkg/stripe"
)

type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Redis           redis.Pinger
	StripeClient    *stripe.Client
	CheckoutService checkoutsvc.Service
	Completion      controllers.CompletionService
	Catalog         *catalog.Service
	WebhookService  *stripewebhook.Service
	WebhookGuard    *idempotency.Guard
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(p.Config.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Redis))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", controllers.Categories(p.Catalog, p.Logger))
		r.Get("/products", controllers.Products(p.Catalog, p.Logger))
		r.Get("/products/{slug}", controllers.ProductBySlug(p.Catalog, p.Logger))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.Checkout(p.CheckoutService, p.Logger))
			r.Get("/config", controllers.CheckoutConfig(p.StripeClient.PublishableKey(), p.Config.Pricing.Currency))
			r.Post("/complete", controllers.CheckoutComplete(p.Completion, p.Logger))
			r.Post("/webhook", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, p.Logger))
		})
	})

	return r
}
