package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	mock "github.com/stripe/stripe-mock/param"
)

type mockStripe struct {
	status   string
	decline  bool
	params   map[string]any
	amount   int64
	currency string

	// later is the status reported when the intent is fetched.
	later string
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.params = params

		w.Header().Set("Content-Type", "application/json")
		if m.decline {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
				"type":    "card_error",
				"code":    "card_declined",
				"message": "Your card was declined.",
			}})
			return
		}

		json.NewEncoder(w).Encode(m.intent("pi_123", m.status))
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.intent(mux.Vars(r)["id"], m.later))
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", create).Methods(http.MethodPost)
	r.Handle("/v1/payment_intents/{id}", get).Methods(http.MethodGet)
	return r
}

func (m *mockStripe) intent(id, status string) map[string]any {
	amount, currency := m.amount, m.currency
	if currency == "" {
		amount, currency = 3500, "usd"
	}
	return map[string]any{
		"id":       id,
		"object":   "payment_intent",
		"amount":   amount,
		"currency": currency,
		"status":   status,
	}
}

func stripeAPI(url string) *stripecl.API {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return stripecl.New("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeCheckout(t *testing.T) {
	m := &mockStripe{status: "succeeded"}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	s := NewStripe(stripeAPI(srv.URL), "pm_card_visa")
	req := request()

	res, err := s.Checkout(context.Background(), req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !res.Success || res.Status != checkout.Completed || res.TransactionID != "pi_123" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Amount.Equal(decimal.NewFromInt(35)) || res.Currency != "USD" {
		t.Fatalf("unexpected amount %s %s", res.Amount, res.Currency)
	}

	if m.params["amount"] != "3500" || m.params["currency"] != "usd" || m.params["confirm"] != "true" {
		t.Fatalf("unexpected params sent: %v", m.params)
	}
	md, _ := m.params["metadata"].(map[string]any)
	if md["reference"] != req.Reference {
		t.Fatalf("expected reference metadata %q, got %v", req.Reference, md)
	}
}

func TestStripeStatuses(t *testing.T) {
	for status, want := range map[string]checkout.Status{
		"requires_action":         checkout.Pending,
		"processing":              checkout.Pending,
		"requires_payment_method": checkout.Failed,
		"canceled":                checkout.Failed,
	} {
		m := &mockStripe{status: status}
		srv := httptest.NewServer(m.handle())

		res, err := NewStripe(stripeAPI(srv.URL), "pm_card_visa").Checkout(context.Background(), request())
		srv.Close()
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if res.Status != want {
			t.Errorf("%s: expected %s, got %s", status, want, res.Status)
		}
	}
}

func TestStripeZeroDecimalCurrency(t *testing.T) {
	m := &mockStripe{status: "succeeded", amount: 3500, currency: "jpy"}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	req := request()
	req.Currency = "JPY"

	res, err := NewStripe(stripeAPI(srv.URL), "pm_card_visa").Checkout(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if m.params["amount"] != "35" {
		t.Fatalf("expected 35 yen sent, got %v", m.params["amount"])
	}
	if !res.Amount.Equal(decimal.NewFromInt(3500)) || res.Currency != "JPY" {
		t.Fatalf("unexpected amount %s %s", res.Amount, res.Currency)
	}
}

func TestStripeStatusLookup(t *testing.T) {
	m := &mockStripe{status: "requires_action", later: "succeeded"}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	p := New("stripe", StripeLoader(stripeAPI(srv.URL), "sk_test_123", "pm_card_visa"), quietLog())

	sess, err := p.Submit(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != checkout.Pending || sess.ExpiresAt.IsZero() {
		t.Fatalf("expected a pending session with an expiry, got %+v", sess)
	}

	got, err := p.PollStatus(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != checkout.Completed || got.TransactionID != "pi_123" {
		t.Fatalf("expected the intent to be fetched again, got %+v", got)
	}
}

func TestStripeDecline(t *testing.T) {
	m := &mockStripe{decline: true}
	srv := httptest.NewServer(m.handle())
	defer srv.Close()

	res, err := NewStripe(stripeAPI(srv.URL), "pm_card_chargeDeclined").Checkout(context.Background(), request())
	if err != nil {
		t.Fatalf("a declined card is a failed payment, not an error: %v", err)
	}
	if res.Success || res.Status != checkout.Failed || res.ErrorCode != "card_declined" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStripeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := NewStripe(stripeAPI(srv.URL), "pm_card_visa").Checkout(context.Background(), request())
	var ce *checkout.Error
	if !errors.As(err, &ce) || ce.Kind != checkout.KindTransport || ce.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected transport error with status 500, got %v", err)
	}
}
