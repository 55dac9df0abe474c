package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "sniffnfrolic"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App     AppConfig
	Redis   RedisConfig
	Woo     WooConfig
	Stripe  StripeConfig
	Pricing PricingConfig
	Catalog CatalogConfig
	CORS    CORSConfig
	Webhook WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Redis.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Woo.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SNIFFNFROLIC_APP_ENV" required:"true"`
	Port         string `envconfig:"SNIFFNFROLIC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SNIFFNFROLIC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SNIFFNFROLIC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"SNIFFNFROLIC_REDIS_URL"`
	Address      string        `envconfig:"SNIFFNFROLIC_REDIS_ADDR"`
	Password     string        `envconfig:"SNIFFNFROLIC_REDIS_PASSWORD"`
	DB           int           `envconfig:"SNIFFNFROLIC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SNIFFNFROLIC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SNIFFNFROLIC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SNIFFNFROLIC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SNIFFNFROLIC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SNIFFNFROLIC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// validate requires either a URL or a host:port address. The URL form
// wins when both are set.
func (r RedisConfig) validate() error {
	if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("redis url or address is required")
	}
	return nil
}

// WooConfig wires the WooCommerce REST collaborator.
type WooConfig struct {
	BaseURL        string        `envconfig:"SNIFFNFROLIC_WOO_BASE_URL" required:"true"`
	ConsumerKey    string        `envconfig:"SNIFFNFROLIC_WOO_CONSUMER_KEY" required:"true"`
	ConsumerSecret string        `envconfig:"SNIFFNFROLIC_WOO_CONSUMER_SECRET" required:"true"`
	Timeout        time.Duration `envconfig:"SNIFFNFROLIC_WOO_TIMEOUT" default:"15s"`
	MaxRetries     uint64        `envconfig:"SNIFFNFROLIC_WOO_MAX_RETRIES" default:"2"`
}

func (w WooConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(w.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("woo base url %q must be an absolute http(s) url", w.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("woo base url %q must use http or https", w.BaseURL)
	}
	return nil
}

type StripeConfig struct {
	APIKey         string `envconfig:"SNIFFNFROLIC_STRIPE_SECRET_KEY" required:"true"`
	PublishableKey string `envconfig:"SNIFFNFROLIC_STRIPE_PUBLISHABLE_KEY" required:"true"`
	Secret         string `envconfig:"SNIFFNFROLIC_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env            string `envconfig:"SNIFFNFROLIC_STRIPE_ENV" default:"test"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

// PricingConfig carries the flat-rate shipping and fixed-percentage tax
// stand-ins. These are configuration, not business logic.
type PricingConfig struct {
	Currency         string          `envconfig:"SNIFFNFROLIC_CURRENCY" default:"CAD"`
	FreeShippingOver decimal.Decimal `envconfig:"SNIFFNFROLIC_FREE_SHIPPING_OVER" default:"80"`
	FlatShippingRate decimal.Decimal `envconfig:"SNIFFNFROLIC_FLAT_SHIPPING_RATE" default:"10"`
	GSTRate          decimal.Decimal `envconfig:"SNIFFNFROLIC_GST_RATE" default:"0.05"`
	PSTRate          decimal.Decimal `envconfig:"SNIFFNFROLIC_PST_RATE" default:"0.07"`
}

func (p PricingConfig) Validate() error {
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	if p.FlatShippingRate.IsNegative() || p.FreeShippingOver.IsNegative() {
		return fmt.Errorf("shipping rates must be non-negative")
	}
	if p.GSTRate.IsNegative() || p.PSTRate.IsNegative() {
		return fmt.Errorf("tax rates must be non-negative")
	}
	return nil
}

type CatalogConfig struct {
	CacheTTL       time.Duration `envconfig:"SNIFFNFROLIC_CATALOG_CACHE_TTL" default:"5m"`
	DefaultPerPage int           `envconfig:"SNIFFNFROLIC_CATALOG_PER_PAGE" default:"50"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SNIFFNFROLIC_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,https://sniffnfrolic.com"`
}

type WebhookConfig struct {
	EventTTL time.Duration `envconfig:"SNIFFNFROLIC_WEBHOOK_EVENT_TTL" default:"72h"`
	LockTTL  time.Duration `envconfig:"SNIFFNFROLIC_RECONCILE_LOCK_TTL" default:"2m"`
}
