package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Web       Web
	Cors      Cors
	Store     Store
	Checkout  Checkout
	Kafka     Kafka
	RateLimit RateLimit
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:20s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

// Store holds the file used to remember the remote cart. An empty path keeps
// it in memory.
type Store struct {
	Path string `conf:"default:storefront.db"`
}

type Checkout struct {
	Currency     string        `conf:"default:USD"`
	PollInterval time.Duration `conf:"default:3s"`
	PollTimeout  time.Duration `conf:"default:10s"`
	Hosted       Hosted
	SDK          SDK
	Invoice      Invoice
}

type Hosted struct {
	Domain string
	Token  string `conf:"mask"`
}

func (h Hosted) Enabled() bool { return h.Domain != "" && h.Token != "" }

type SDK struct {
	Vendor         string        `conf:"default:stripe,help:stripe or paypal"`
	InitTimeout    time.Duration `conf:"default:10s"`
	StripeKey      string        `conf:"mask"`
	PaymentMethod  string        `conf:"default:pm_card_visa"`
	PaypalClientID string
	PaypalSecret   string `conf:"mask"`
	PaypalURL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

func (s SDK) Enabled() bool {
	switch s.Vendor {
	case "paypal":
		return s.PaypalClientID != "" && s.PaypalSecret != ""
	default:
		return s.StripeKey != ""
	}
}

type Invoice struct {
	BaseURL string
	APIKey  string `conf:"mask"`
	StoreID string
	Expiry  time.Duration `conf:"default:15m"`
}

func (i Invoice) Enabled() bool {
	return i.BaseURL != "" && i.APIKey != "" && i.StoreID != ""
}

// Kafka export is off without brokers.
type Kafka struct {
	Brokers []string
	Topic   string `conf:"default:storefront.checkout"`
}

type RateLimit struct {
	Rate  float64       `conf:"default:1"`
	Burst int           `conf:"default:5"`
	TTL   time.Duration `conf:"default:10m"`
}
