package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const tokenHeader = "X-Storefront-Access-Token"

var ErrCartNotFound = errors.New("remote cart not found")

// StatusError is a non-2xx reply from the storefront platform.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storefront replied %d: %s", e.Code, e.Body)
}

type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type Image struct {
	ID      string `json:"id"`
	Src     string `json:"src"`
	AltText string `json:"altText,omitempty"`
}

type Variant struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Price          Money  `json:"price"`
	CompareAtPrice *Money `json:"compareAtPrice,omitempty"`
	Available      bool   `json:"available"`
	Image          *Image `json:"image,omitempty"`
}

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Handle      string    `json:"handle"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
	Tags        []string  `json:"tags"`
	ProductType string    `json:"productType"`
	Vendor      string    `json:"vendor"`
	CreatedAt   time.Time `json:"createdAt"`
}

type LineItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	Variant  Variant `json:"variant"`
}

type Cart struct {
	ID            string     `json:"id"`
	WebURL        string     `json:"webUrl"`
	LineItems     []LineItem `json:"lineItems"`
	SubtotalPrice Money      `json:"subtotalPrice"`
	TotalPrice    Money      `json:"totalPrice"`
	TotalTax      Money      `json:"totalTax"`
	CompletedAt   *time.Time `json:"completedAt"`
}

// Line finds the remote line holding a variant.
func (c Cart) Line(variantID string) (LineItem, bool) {
	for _, l := range c.LineItems {
		if l.Variant.ID == variantID {
			return l, true
		}
	}
	return LineItem{}, false
}

// LineInput adds a variant when VariantID is set and updates an existing
// line when ID is set.
type LineInput struct {
	ID        string `json:"id,omitempty"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Client talks to the hosted storefront REST API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

type ClientOpt func(*Client)

func WithHTTPClient(hc *http.Client) ClientOpt {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client for domain, which may carry a scheme. Without
// one https is assumed.
func NewClient(domain, token string, opts ...ClientOpt) *Client {
	base := strings.TrimRight(domain, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	c := &Client{
		base:  base,
		token: token,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateCart(ctx context.Context) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPost, "/carts", struct{}{}, &cart)
	return cart, err
}

// FetchCart returns ErrCartNotFound when the platform no longer knows id.
func (c *Client) FetchCart(ctx context.Context, id string) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodGet, cartPath(id), nil, &cart)

	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	return cart, err
}

func cartPath(id string) string {
	return "/carts/" + url.PathEscape(id)
}

func (c *Client) AddLines(ctx context.Context, cartID string, lines []LineInput) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPost, cartPath(cartID)+"/lines", map[string]any{"lineItems": lines}, &cart)
	return cart, err
}

func (c *Client) UpdateLines(ctx context.Context, cartID string, lines []LineInput) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPut, cartPath(cartID)+"/lines", map[string]any{"lineItems": lines}, &cart)
	return cart, err
}

func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPost, "/carts/"+cartID+"/lines/remove", map[string]any{"lineItemIds": lineIDs}, &cart)
	return cart, err
}

func (c *Client) Products(ctx context.Context, limit int) ([]Product, error) {
	var resp struct {
		Products []Product `json:"products"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products?limit=%d", limit), nil, &resp)
	return resp.Products, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
