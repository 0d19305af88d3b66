package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irsalhamdi/storefront/api"
	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/irsalhamdi/storefront/core/cart"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/metrics"
	"github.com/irsalhamdi/storefront/rate"
	"github.com/sirupsen/logrus"
)

type TestEnv struct {
	*httptest.Server
	Log     logrus.FieldLogger
	Bus     *bridge.Bus
	Cart    *cart.Engine
	Service *checkout.Service
	Metrics *metrics.Metrics
}

type envOpts struct {
	provider checkout.Provider
	limiter  *rate.Limiter
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func NewTestEnv(t *testing.T, opts envOpts) *TestEnv {
	t.Helper()
	log := quietLog()

	items, err := catalog.Load(t.Context(), log)
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}

	if opts.provider == nil {
		opts.provider = checkout.Unconfigured{}
	}
	if opts.limiter == nil {
		opts.limiter = rate.NewLimiter(100, time.Hour, 100)
	}
	t.Cleanup(opts.limiter.Stop)

	bus := bridge.New(log)
	eng := cart.NewEngine(bus)
	t.Cleanup(eng.ClearOnSuccess())

	mtr := metrics.New()
	t.Cleanup(mtr.Observe(bus))

	svc := checkout.NewService(opts.provider, bus, log, checkout.Config{PollInterval: 10 * time.Millisecond})
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(api.APIMux(api.APIConfig{
		Log:      log,
		Catalog:  items,
		Cart:     eng,
		Checkout: svc,
		Currency: "USD",
		Limiter:  opts.limiter,
		Metrics:  mtr,
	}))
	t.Cleanup(srv.Close)

	return &TestEnv{Server: srv, Log: log, Bus: bus, Cart: eng, Service: svc, Metrics: mtr}
}

// call sends body as JSON and decodes the reply into out when out is not nil.
func (e *TestEnv) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, e.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode < 300 && w.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return w.StatusCode
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
