package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sniffnfrolic/storefront-backend/api/responses"
	"github.com/sniffnfrolic/storefront-backend/api/validators"
	"github.com/sniffnfrolic/storefront-backend/internal/catalog"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

type CatalogService interface {
	Categories(ctx context.Context) ([]woo.Category, error)
	Products(ctx context.Context, filter catalog.Filter) ([]woo.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*woo.Product, []woo.Variation, error)
}

// Products lists catalog products with the storefront's filter surface.
func Products(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filter, err := parseProductFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		products, err := svc.Products(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductBySlug returns a single product with its purchasable variations.
func ProductBySlug(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		product, variations, err := svc.ProductBySlug(ctx, slug)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, productDetailResponse{
			Product:    product,
			Variations: variations,
		})
	}
}

// Categories returns the visible category tree.
func Categories(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		categories, err := svc.Categories(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

type productDetailResponse struct {
	Product    *woo.Product    `json:"product"`
	Variations []woo.Variation `json:"variations"`
}

func parseProductFilter(r *http.Request) (catalog.Filter, error) {
	query := r.URL.Query()
	filter := catalog.Filter{
		CategorySlug: strings.TrimSpace(query.Get("category")),
		Search:       strings.TrimSpace(query.Get("search")),
		InStock:      query.Get("in_stock") == "true",
		OnSale:       query.Get("on_sale") == "true",
		Sort:         strings.TrimSpace(query.Get("sort")),
	}

	page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
	if err != nil {
		return catalog.Filter{}, err
	}
	filter.Page = page

	perPage, err := validators.ParseQueryInt(r, "per_page", 0, 1, 100)
	if err != nil {
		return catalog.Filter{}, err
	}
	filter.PerPage = perPage

	for key, dst := range map[string]**float64{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return catalog.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "price filter must be a non-negative number").
				WithDetails(map[string]any{"field": key})
		}
		*dst = &value
	}

	return filter, nil
}
