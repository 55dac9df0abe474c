package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/sniffnfrolic/storefront-backend/api/routes"
	"github.com/sniffnfrolic/storefront-backend/internal/catalog"
	checkoutsvc "github.com/sniffnfrolic/storefront-backend/internal/checkout"
	"github.com/sniffnfrolic/storefront-backend/internal/idempotency"
	"github.com/sniffnfrolic/storefront-backend/internal/payments"
	"github.com/sniffnfrolic/storefront-backend/internal/pricing"
	"github.com/sniffnfrolic/storefront-backend/internal/reconcile"
	stripewebhook "github.com/sniffnfrolic/storefront-backend/internal/webhooks/stripe"
	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/redis"
	"github.com/sniffnfrolic/storefront-backend/pkg/stripe"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	wooClient, err := woo.New(cfg.Woo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap commerce client", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}
	intentClient := payments.NewIntentClient(stripeClient)

	verifier, err := pricing.NewVerifier(wooClient, cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing verifier", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(verifier, wooClient, intentClient, cfg.Pricing, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	completionLock, err := idempotency.NewGuard(redisClient, cfg.Webhook.LockTTL, "payment-intent")
	if err != nil {
		logg.Error(context.Background(), "failed to create completion lock", err)
		os.Exit(1)
	}

	completionService, err := reconcile.NewService(wooClient, intentClient, completionLock, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create completion service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(wooClient, redisClient, cfg.Catalog.CacheTTL, cfg.Catalog.DefaultPerPage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:       wooClient,
		IntentClient: intentClient,
		Currency:     cfg.Pricing.Currency,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := idempotency.NewGuard(redisClient, cfg.Webhook.EventTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			Redis:           redisClient,
			StripeClient:    stripeClient,
			CheckoutService: checkoutService,
			Completion:      completionService,
			Catalog:         catalogService,
			WebhookService:  webhookService,
			WebhookGuard:    webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}
