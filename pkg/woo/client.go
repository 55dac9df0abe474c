package woo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sniffnfrolic/storefront-backend/pkg/config"
	pkgerrors "github.com/sniffnfrolic/storefront-backend/pkg/errors"
	"github.com/sniffnfrolic/storefront-backend/pkg/logger"
)

// Request is an explicit descriptor for a single commerce backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Client talks to the WooCommerce REST API with basic auth.
type Client struct {
	baseURL    string
	key        string
	secret     string
	http       *http.Client
	maxRetries uint64
	logg       *logger.Logger
}

// New builds a commerce backend client from validated configuration.
func New(cfg config.WooConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("woo base url is required")
	}
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, fmt.Errorf("woo consumer key and secret are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		key:        strings.TrimSpace(cfg.ConsumerKey),
		secret:     strings.TrimSpace(cfg.ConsumerSecret),
		http:       &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		logg:       logg,
	}, nil
}

// Do executes the request and decodes a JSON response into out (when non-nil).
// GETs are retried with capped exponential backoff on transient failures;
// mutating calls run exactly once.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	if method != http.MethodGet || c.maxRetries == 0 {
		return c.doOnce(ctx, method, req, out)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, req, out)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) doOnce(ctx context.Context, method string, req Request, out any) error {
	endpoint, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build woo url")
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode woo request body")
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build woo request")
	}
	httpReq.SetBasicAuth(c.key, c.secret)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call commerce backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, resp, method, req.Path)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode commerce backend response")
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	clean := strings.TrimLeft(strings.TrimSpace(path), "/")
	if clean == "" {
		return "", fmt.Errorf("request path is required")
	}
	u, err := url.Parse(c.baseURL + "/" + clean)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Set(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

func (c *Client) statusError(ctx context.Context, resp *http.Response, method, path string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"woo_status": resp.StatusCode,
			"woo_method": method,
			"woo_path":   path,
		})
		c.logg.Warn(ctx, "woo.request_failed")
	}

	msg := fmt.Sprintf("commerce backend returned %d", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "resource not found in commerce backend")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(map[string]any{"body": string(snippet)})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"body": string(snippet)})
	}
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var product Product
	err := c.Do(ctx, Request{Path: "products/" + strconv.FormatInt(id, 10)}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetVariation fetches a product variation by id.
func (c *Client) GetVariation(ctx context.Context, productID, variationID int64) (*Variation, error) {
	path := fmt.Sprintf("products/%d/variations/%d", productID, variationID)
	var variation Variation
	if err := c.Do(ctx, Request{Path: path}, &variation); err != nil {
		return nil, err
	}
	return &variation, nil
}

// ListProducts fetches products with the supplied filter query.
func (c *Client) ListProducts(ctx context.Context, query url.Values) ([]Product, error) {
	var products []Product
	if err := c.Do(ctx, Request{Path: "products", Query: query}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListCategories fetches product categories.
func (c *Client) ListCategories(ctx context.Context, query url.Values) ([]Category, error) {
	var categories []Category
	if err := c.Do(ctx, Request{Path: "products/categories", Query: query}, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateOrder creates an order record.
func (c *Client) CreateOrder(ctx context.Context, payload *CreateOrderRequest) (*Order, error) {
	var order Order
	req := Request{Method: http.MethodPost, Path: "orders", Body: payload}
	if err := c.Do(ctx, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches an order by id.
func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var order Order
	if err := c.Do(ctx, Request{Path: "orders/" + strconv.FormatInt(id, 10)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder applies a partial update to an order.
func (c *Client) UpdateOrder(ctx context.Context, id int64, payload *UpdateOrderRequest) (*Order, error) {
	var order Order
	req := Request{Method: http.MethodPut, Path: "orders/" + strconv.FormatInt(id, 10), Body: payload}
	if err := c.Do(ctx, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
