package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/core/checkout/invoice"
	"github.com/irsalhamdi/storefront/core/checkout/sdk"
	"github.com/irsalhamdi/storefront/rate"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	mock "github.com/stripe/stripe-mock/param"
)

type mockInvoice struct {
	mu     sync.Mutex
	status string
	amount float64
}

func (m *mockInvoice) pay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = invoice.StatusPaid
}

func (m *mockInvoice) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.amount, _ = in["amount"].(float64)
		m.mu.Unlock()

		web.Respond(context.Background(), w, map[string]any{
			"id":          "ps_1",
			"payment_uri": "lightning:lnbc1",
			"qr_code":     "data:image/png;base64,AAAA",
			"expires_at":  time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339),
		}, http.StatusCreated)
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		resp := map[string]string{"id": web.Param(r, "id"), "status": m.status}
		if m.status == invoice.StatusPaid {
			resp["transaction_id"] = "tx_1"
		}
		web.Respond(context.Background(), w, resp, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/payments/sessions", create).Methods(http.MethodPost)
	r.Handle("/payments/sessions/{id}", get).Methods(http.MethodGet)
	return r
}

type mockStripe struct {
	params map[string]any
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)
		m.params = params

		web.Respond(context.Background(), w, map[string]any{
			"id":       "pi_1",
			"object":   "payment_intent",
			"amount":   2000,
			"currency": "usd",
			"status":   "succeeded",
		}, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", create).Methods(http.MethodPost)
	return r
}

func TestCheckoutNotConfigured(t *testing.T) {
	env := NewTestEnv(t, envOpts{})
	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "13"}, nil)

	if code := env.call(t, http.MethodPost, "/checkout", nil, nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a provider, got %d", code)
	}
	if code := env.call(t, http.MethodGet, "/checkout", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected no active checkout, got %d", code)
	}
}

func TestCheckoutInvoice(t *testing.T) {
	m := &mockInvoice{status: invoice.StatusUnpaid}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	p := invoice.New(invoice.NewClient(srv.URL, "key", "store", quietLog()), 0, quietLog())
	env := NewTestEnv(t, envOpts{provider: p})

	if code := env.call(t, http.MethodPost, "/checkout", nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an empty cart, got %d", code)
	}

	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "13", "quantity": 2}, nil)
	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "12"}, nil)

	body := map[string]any{
		"customer": map[string]any{"email": "ash@pallet.town"},
		"metadata": map[string]any{"campaign": "spring"},
	}
	var sess checkout.Session
	if code := env.call(t, http.MethodPost, "/checkout", body, &sess); code != http.StatusCreated {
		t.Fatalf("starting checkout: status %d", code)
	}
	if sess.Status != checkout.Pending || sess.PaymentURI != "lightning:lnbc1" || sess.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session %+v", sess)
	}
	if m.amount != 2500 {
		t.Fatalf("expected 2500 minor units, got %v", m.amount)
	}

	var active checkout.Session
	if code := env.call(t, http.MethodGet, "/checkout", nil, &active); code != http.StatusOK || active.ID != "ps_1" {
		t.Fatalf("expected active session ps_1, got %d %+v", code, active)
	}

	m.pay()
	waitFor(t, func() bool {
		s, ok := env.Service.Active()
		return ok && s.Status == checkout.Completed
	})
	waitFor(t, func() bool { return env.Cart.TotalItems() == 0 })

	var polled checkout.Session
	if code := env.call(t, http.MethodGet, "/checkout/sessions/ps_1", nil, &polled); code != http.StatusOK || polled.TransactionID != "tx_1" {
		t.Fatalf("polling session: %d %+v", code, polled)
	}

	if code := env.call(t, http.MethodDelete, "/checkout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("closing checkout: status %d", code)
	}
	if _, ok := env.Service.Active(); ok {
		t.Fatal("expected no active session after close")
	}
}

func TestCheckoutStripe(t *testing.T) {
	m := &mockStripe{}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	api := stripecl.New("sk_test_1", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	p := sdk.New("stripe", sdk.StripeLoader(api, "sk_test_1", "pm_card_visa"), quietLog())

	env := NewTestEnv(t, envOpts{provider: p})
	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "12"}, nil)
	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "13"}, nil)

	var sess checkout.Session
	if code := env.call(t, http.MethodPost, "/checkout", nil, &sess); code != http.StatusCreated {
		t.Fatalf("starting checkout: status %d", code)
	}
	if sess.Status != checkout.Completed || sess.TransactionID != "pi_1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if m.params["amount"] != "2000" {
		t.Fatalf("unexpected amount sent: %v", m.params["amount"])
	}
	if env.Cart.TotalItems() != 0 {
		t.Fatal("a completed checkout must clear the cart")
	}
}

func TestCheckoutRateLimit(t *testing.T) {
	env := NewTestEnv(t, envOpts{limiter: rate.NewLimiter(2, time.Hour, rate.Every(time.Hour))})

	for i := 0; i < 2; i++ {
		if code := env.call(t, http.MethodPost, "/checkout", nil, nil); code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	if code := env.call(t, http.MethodPost, "/checkout", nil, nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	// Only checkout is limited.
	if code := env.call(t, http.MethodGet, "/cart", nil, nil); code != http.StatusOK {
		t.Fatalf("expected cart to stay reachable, got %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := NewTestEnv(t, envOpts{})
	env.call(t, http.MethodPut, "/cart/items", map[string]any{"itemId": "13"}, nil)
	env.call(t, http.MethodGet, "/cart", nil, nil)

	w, err := env.Client().Get(env.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()
	b, _ := io.ReadAll(w.Body)

	for _, want := range []string{
		`storefront_cart_events_total{topic="item-added"} 1`,
		`storefront_http_requests_total{handler="GET /cart",status="200"} 1`,
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("missing %s in:\n%s", want, b)
		}
	}
}
