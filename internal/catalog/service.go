package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

const categoriesCacheID = "all"

type backend interface {
	ListProducts(ctx context.Context, query url.Values) ([]woo.Product, error)
	ListCategories(ctx context.Context, query url.Values) ([]woo.Category, error)
	GetVariation(ctx context.Context, productID, variationID int64) (*woo.Variation, error)
}

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(scope, id string) string
}

// Service proxies catalog browsing to the commerce backend. Non-core: no
// checkout invariants live here.
type Service struct {
	backend backend
	cache   cache
	ttl     time.Duration
	perPage int
	logg    *logger.Logger
}

func NewService(backend backend, cache cache, ttl time.Duration, perPage int, logg *logger.Logger) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("catalog backend required")
	}
	if perPage <= 0 {
		perPage = 50
	}
	return &Service{backend: backend, cache: cache, ttl: ttl, perPage: perPage, logg: logg}, nil
}

// Categories returns the visible category tree, served from a short-TTL cache
// when possible. Cache failures degrade to a live fetch.
func (s *Service) Categories(ctx context.Context) ([]woo.Category, error) {
	if s.cache != nil {
		key := s.cache.CacheKey("categories", categoriesCacheID)
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached []woo.Category
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	query := url.Values{}
	query.Set("per_page", "100")
	query.Set("hide_empty", "true")
	categories, err := s.backend.ListCategories(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		key := s.cache.CacheKey("categories", categoriesCacheID)
		if raw, err := json.Marshal(categories); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "catalog.cache_write_failed")
			}
		}
	}
	return categories, nil
}

// Products lists products matching the filter.
func (s *Service) Products(ctx context.Context, filter Filter) ([]woo.Product, error) {
	var categories []woo.Category
	if filter.CategorySlug != "" {
		resolved, err := s.Categories(ctx)
		if err != nil {
			return nil, err
		}
		categories = resolved
	}
	return s.backend.ListProducts(ctx, filter.Query(categories, s.perPage))
}

// ProductBySlug resolves a single product plus its purchasable variations.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (*woo.Product, []woo.Variation, error) {
	if slug == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	query := url.Values{}
	query.Set("slug", slug)
	query.Set("per_page", "1")
	products, err := s.backend.ListProducts(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	if len(products) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	product := products[0]

	variations := make([]woo.Variation, 0, len(product.Variations))
	for _, variationID := range product.Variations {
		variation, err := s.backend.GetVariation(ctx, product.ID, variationID)
		if err != nil {
			if s.logg != nil {
				lctx := s.logg.WithField(ctx, "variation_id", strconv.FormatInt(variationID, 10))
				s.logg.Warn(lctx, "catalog.variation_fetch_failed")
			}
			continue
		}
		variations = append(variations, *variation)
	}

	return &product, variations, nil
}
