package invoice

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

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is a non-2xx reply from the payment service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payment service replied %d: %s", e.Code, e.Body)
}

type LineItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type CreateSession struct {
	Reference        string         `json:"reference"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	LineItems        []LineItem     `json:"line_items"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ExpiresInSeconds int            `json:"expires_in_seconds"`
}

type CreatedSession struct {
	ID         string    `json:"id"`
	PaymentURI string    `json:"payment_uri"`
	QRCode     string    `json:"qr_code"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type SessionStatus struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

type Client struct {
	base    string
	apiKey  string
	storeID string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

type ClientOpt func(*Client)

func WithHTTPClient(hc *http.Client) ClientOpt {
	return func(c *Client) { c.http = hc }
}

// NewClient guards every call with a circuit breaker that opens after five
// consecutive server-side failures and retries after thirty seconds.
func NewClient(baseURL, apiKey, storeID string, log logrus.FieldLogger, opts ...ClientOpt) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		storeID: storeID,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "invoice",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return c
}

func (c *Client) CreateSession(ctx context.Context, in CreateSession) (CreatedSession, error) {
	var out CreatedSession
	err := c.do(ctx, http.MethodPost, "/payments/sessions", in, &out)
	return out, err
}

func (c *Client) GetSession(ctx context.Context, id string) (SessionStatus, error) {
	var out SessionStatus
	err := c.do(ctx, http.MethodGet, "/payments/sessions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = b
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-Store-Id", c.storeID)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
		}
		return b, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
