package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	CartEvents *prometheus.CounterVec
	Checkouts  *prometheus.CounterVec
	Calls      *prometheus.CounterVec
	Requests   *prometheus.CounterVec
	LatencyMS  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the storefront collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CartEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "events_total",
			Help:      "Cart changes by topic.",
		}, []string{"topic"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "results_total",
			Help:      "Finished checkouts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "provider_calls_total",
			Help:      "Provider submits and status polls by result.",
		}, []string{"provider", "call", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		gatherer: reg,
	}

	reg.MustRegister(m.CartEvents, m.Checkouts, m.Calls, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Observe counts cart and checkout events published on bus.
func (m *Metrics) Observe(bus *bridge.Bus) (unsubscribe func()) {
	var unsubs []func()

	for _, topic := range []bridge.Topic{bridge.ItemAdded, bridge.ItemUpdated, bridge.ItemRemoved, bridge.CartCleared} {
		unsubs = append(unsubs, bus.Subscribe(topic, func(evt bridge.Event) {
			m.CartEvents.WithLabelValues(string(evt.Topic())).Inc()
		}))
	}

	unsubs = append(unsubs, bus.Subscribe(bridge.CheckoutSucceeded, func(evt bridge.Event) {
		e := evt.(bridge.CheckoutSucceededEvent)
		m.Checkouts.WithLabelValues(e.Provider, "succeeded").Inc()
	}))
	unsubs = append(unsubs, bus.Subscribe(bridge.CheckoutFailed, func(evt bridge.Event) {
		e := evt.(bridge.CheckoutFailedEvent)
		m.Checkouts.WithLabelValues(e.Provider, "failed").Inc()
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Instrument counts every call p receives. Initialization is passed
// through for providers that need it.
func (m *Metrics) Instrument(p checkout.Provider) checkout.Provider {
	return &instrumented{Provider: p, m: m}
}

type instrumented struct {
	checkout.Provider
	m *Metrics
}

func (i *instrumented) Init(ctx context.Context) error {
	if in, ok := i.Provider.(checkout.Initializer); ok {
		return in.Init(ctx)
	}
	return nil
}

func (i *instrumented) Submit(ctx context.Context, req checkout.Request) (checkout.Session, error) {
	sess, err := i.Provider.Submit(ctx, req)
	i.count("submit", err)
	return sess, err
}

func (i *instrumented) PollStatus(ctx context.Context, id string) (checkout.Session, error) {
	sess, err := i.Provider.PollStatus(ctx, id)
	i.count("poll", err)
	return sess, err
}

func (i *instrumented) count(call string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var ce *checkout.Error
		if errors.As(err, &ce) {
			result = ce.Kind.String()
		}
	}
	i.m.Calls.WithLabelValues(i.Name(), call, result).Inc()
}
