package catalog

import (
	"net/url"
	"strconv"

	"github.com/sniffnfrolic/storefront-backend/pkg/woo"
)

// Filter captures the storefront's browse/search query surface.
type Filter struct {
	CategorySlug string
	Search       string
	InStock      bool
	OnSale       bool
	MinPrice     *float64
	MaxPrice     *float64
	Sort         string
	Page         int
	PerPage      int
}

// Query translates the filter into commerce backend query parameters.
// The category slug is resolved against the supplied category list.
func (f Filter) Query(categories []woo.Category, defaultPerPage int) url.Values {
	params := url.Values{}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("status", "publish")
	if f.Page > 1 {
		params.Set("page", strconv.Itoa(f.Page))
	}

	if f.CategorySlug != "" {
		for _, c := range categories {
			if c.Slug == f.CategorySlug {
				params.Set("category", strconv.FormatInt(c.ID, 10))
				break
			}
		}
	}

	if f.Search != "" {
		params.Set("search", f.Search)
	}
	if f.InStock {
		params.Set("stock_status", "instock")
	}
	if f.OnSale {
		params.Set("on_sale", "true")
	}

	min, max := f.MinPrice, f.MaxPrice
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}
	if min != nil {
		params.Set("min_price", strconv.FormatFloat(*min, 'f', -1, 64))
	}
	if max != nil {
		params.Set("max_price", strconv.FormatFloat(*max, 'f', -1, 64))
	}

	orderby, order := mapSort(f.Sort)
	params.Set("orderby", orderby)
	params.Set("order", order)

	return params
}

func mapSort(sort string) (orderby, order string) {
	switch sort {
	case "popularity":
		return "popularity", "desc"
	case "rating":
		return "rating", "desc"
	case "price_asc":
		return "price", "asc"
	case "price_desc":
		return "price", "desc"
	case "new":
		fallthrough
	default:
		return "date", "desc"
	}
}
