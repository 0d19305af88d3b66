package providers

import (
	"io"
	"testing"

	"github.com/irsalhamdi/storefront/config"
	"github.com/irsalhamdi/storefront/kvstore"
	"github.com/sirupsen/logrus"
)

func deps() Deps {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Deps{Log: l, Store: kvstore.NewMemory()}
}

func TestSelect(t *testing.T) {
	hosted := config.Hosted{Domain: "shop.test", Token: "tok"}
	stripe := config.SDK{Vendor: "stripe", StripeKey: "sk_test_1", PaymentMethod: "pm_card_visa"}
	paypal := config.SDK{Vendor: "paypal", PaypalClientID: "id", PaypalSecret: "secret", PaypalURL: "https://api-m.sandbox.paypal.com"}
	invoice := config.Invoice{BaseURL: "https://pay.test", APIKey: "key", StoreID: "store"}

	tests := map[string]struct {
		cfg     config.Checkout
		want    string
		sources int
	}{
		"nothing":               {cfg: config.Checkout{}, want: "none"},
		"hosted":                {cfg: config.Checkout{Hosted: hosted}, want: "hosted", sources: 1},
		"hosted wins":           {cfg: config.Checkout{Hosted: hosted, SDK: stripe, Invoice: invoice}, want: "hosted", sources: 1},
		"stripe":                {cfg: config.Checkout{SDK: stripe, Invoice: invoice}, want: "stripe"},
		"paypal":                {cfg: config.Checkout{SDK: paypal}, want: "paypal"},
		"invoice":               {cfg: config.Checkout{Invoice: invoice}, want: "invoice"},
		"hosted without token":  {cfg: config.Checkout{Hosted: config.Hosted{Domain: "shop.test"}, Invoice: invoice}, want: "invoice"},
		"stripe without key":    {cfg: config.Checkout{SDK: config.SDK{Vendor: "stripe"}}, want: "none"},
		"invoice without store": {cfg: config.Checkout{Invoice: config.Invoice{BaseURL: "https://pay.test", APIKey: "key"}}, want: "none"},
	}

	for name, tt := range tests {
		sel, err := Select(tt.cfg, deps())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := sel.Provider.Name(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", name, tt.want, got)
		}
		if len(sel.Sources) != tt.sources {
			t.Errorf("%s: expected %d catalog sources, got %d", name, tt.sources, len(sel.Sources))
		}
		if (sel.Hosted != nil) != (tt.want == "hosted") {
			t.Errorf("%s: hosted provider exposed incorrectly", name)
		}
	}
}

func TestSelectUnknownVendor(t *testing.T) {
	cfg := config.Checkout{SDK: config.SDK{Vendor: "square", StripeKey: "sk"}}
	if _, err := Select(cfg, deps()); err == nil {
		t.Fatal("expected an error for an unknown sdk vendor")
	}
}
