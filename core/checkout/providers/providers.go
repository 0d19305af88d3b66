// Package providers picks the checkout backend from configuration.
package providers

import (
	"fmt"
	"net/http"

	"github.com/irsalhamdi/storefront/config"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/core/checkout/hosted"
	"github.com/irsalhamdi/storefront/core/checkout/invoice"
	"github.com/irsalhamdi/storefront/core/checkout/sdk"
	"github.com/irsalhamdi/storefront/kvstore"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type Deps struct {
	Log   logrus.FieldLogger
	Store kvstore.Store

	// HTTP replaces the default outbound client of the REST providers.
	HTTP *http.Client
}

type Selection struct {
	Provider checkout.Provider

	// Hosted is set when the hosted cart was picked, so its cart can be
	// mirrored.
	Hosted *hosted.Provider

	// Sources are remote catalogs offered by the picked provider.
	Sources []catalog.Source
}

// Select returns the first configured provider in the order hosted cart,
// embedded sdk, invoice. Without credentials the unconfigured provider is
// returned.
func Select(cfg config.Checkout, deps Deps) (Selection, error) {
	switch {
	case cfg.Hosted.Enabled():
		var opts []hosted.ClientOpt
		if deps.HTTP != nil {
			opts = append(opts, hosted.WithHTTPClient(deps.HTTP))
		}
		c := hosted.NewClient(cfg.Hosted.Domain, cfg.Hosted.Token, opts...)
		p := hosted.New(c, deps.Store, deps.Log)
		return Selection{Provider: p, Hosted: p, Sources: []catalog.Source{hosted.NewSource(c)}}, nil

	case cfg.SDK.Enabled():
		p, err := embedded(cfg.SDK, deps.Log)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Provider: p}, nil

	case cfg.Invoice.Enabled():
		var opts []invoice.ClientOpt
		if deps.HTTP != nil {
			opts = append(opts, invoice.WithHTTPClient(deps.HTTP))
		}
		c := invoice.NewClient(cfg.Invoice.BaseURL, cfg.Invoice.APIKey, cfg.Invoice.StoreID, deps.Log, opts...)
		return Selection{Provider: invoice.New(c, cfg.Invoice.Expiry, deps.Log)}, nil
	}

	return Selection{Provider: checkout.Unconfigured{}}, nil
}

func embedded(cfg config.SDK, log logrus.FieldLogger) (*sdk.Provider, error) {
	wait := sdk.WithWait(cfg.InitTimeout, sdk.DefaultRetry)

	switch cfg.Vendor {
	case "stripe":
		api := stripecl.New(cfg.StripeKey, nil)
		return sdk.New("stripe", sdk.StripeLoader(api, cfg.StripeKey, cfg.PaymentMethod), log, wait), nil

	case "paypal":
		pp, err := paypal.NewClient(cfg.PaypalClientID, cfg.PaypalSecret, cfg.PaypalURL)
		if err != nil {
			return nil, fmt.Errorf("failed to build the paypal client: %w", err)
		}
		return sdk.New("paypal", sdk.PayPalLoader(pp), log, wait), nil
	}

	return nil, fmt.Errorf("unknown sdk vendor %q", cfg.Vendor)
}
