// Package hosted checks out through a hosted storefront cart: the local cart
// is mirrored into a remote cart and the buyer pays on the platform page.
package hosted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/kvstore"
	"github.com/sirupsen/logrus"
)

const (
	name = "hosted"

	// CartKey holds the remote cart id in the kvstore.
	CartKey = "storefront-cart-id"
)

type Provider struct {
	client *Client
	store  kvstore.Store
	log    logrus.FieldLogger

	mu     sync.Mutex
	loaded bool
	cartID string
}

func New(c *Client, store kvstore.Store, log logrus.FieldLogger) *Provider {
	return &Provider{
		client: c,
		store:  store,
		log:    log.WithField("provider", name),
	}
}

func (p *Provider) Name() string { return name }

// EnsureCart returns the remote cart, creating one when none is stored, the
// stored one is gone, or it has already been checked out.
func (p *Provider) EnsureCart(ctx context.Context) (Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		id, err := p.store.Get(ctx, CartKey)
		switch {
		case err == nil:
			p.cartID = id
		case !errors.Is(err, kvstore.ErrNotFound):
			return Cart{}, fmt.Errorf("reading cart id: %w", err)
		}
		p.loaded = true
	}

	if p.cartID != "" {
		cart, err := p.client.FetchCart(ctx, p.cartID)
		switch {
		case err == nil && cart.CompletedAt == nil:
			return cart, nil
		case err == nil:
			p.log.WithField("cart_id", p.cartID).Info("stored cart already completed")
		case errors.Is(err, ErrCartNotFound):
			p.log.WithField("cart_id", p.cartID).Info("stored cart not found")
		default:
			return Cart{}, err
		}
	}

	cart, err := p.client.CreateCart(ctx)
	if err != nil {
		return Cart{}, err
	}
	if err := p.store.Set(ctx, CartKey, cart.ID); err != nil {
		return Cart{}, fmt.Errorf("storing cart id: %w", err)
	}
	p.cartID = cart.ID
	p.log.WithField("cart_id", cart.ID).Info("created remote cart")
	return cart, nil
}

// Reset forgets the remote cart. The next call creates a fresh one.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cartID = ""
	p.loaded = true
	return p.store.Delete(ctx, CartKey)
}

func (p *Provider) Submit(ctx context.Context, req checkout.Request) (checkout.Session, error) {
	cart, err := p.EnsureCart(ctx)
	if err != nil {
		return checkout.Session{}, transport(err)
	}

	cart, err = p.reconcile(ctx, cart, req.Items)
	if err != nil {
		return checkout.Session{}, transport(err)
	}

	if cart.WebURL == "" {
		return checkout.Session{}, checkout.Transport(name, 0, "", errors.New("cart has no checkout url"))
	}

	return checkout.Session{
		ID:          cart.ID,
		Provider:    name,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      checkout.Pending,
		RedirectURL: cart.WebURL,
	}, nil
}

func (p *Provider) PollStatus(ctx context.Context, sessionID string) (checkout.Session, error) {
	cart, err := p.client.FetchCart(ctx, sessionID)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return checkout.Session{}, checkout.StatusCheck(name, se.Code, se.Body, err)
		}
		return checkout.Session{}, checkout.StatusCheck(name, 0, "", err)
	}

	sess := checkout.Session{
		ID:          cart.ID,
		Provider:    name,
		Amount:      cart.TotalPrice.Amount,
		Currency:    cart.TotalPrice.CurrencyCode,
		Status:      checkout.Pending,
		RedirectURL: cart.WebURL,
	}
	if cart.CompletedAt != nil {
		sess.Status = checkout.Completed
		sess.TransactionID = cart.ID
	}
	return sess, nil
}

// reconcile makes the remote lines match lines: extras are removed, changed
// quantities updated and missing variants added.
func (p *Provider) reconcile(ctx context.Context, cart Cart, lines []checkout.Line) (Cart, error) {
	want := make(map[string]int, len(lines))
	for _, l := range lines {
		want[l.ID] += l.Quantity
	}

	var (
		remove []string
		update []LineInput
		add    []LineInput
	)
	have := make(map[string]bool, len(cart.LineItems))
	for _, li := range cart.LineItems {
		have[li.Variant.ID] = true
		qty, ok := want[li.Variant.ID]
		switch {
		case !ok:
			remove = append(remove, li.ID)
		case qty != li.Quantity:
			update = append(update, LineInput{ID: li.ID, Quantity: qty})
		}
	}
	for _, l := range lines {
		if !have[l.ID] {
			have[l.ID] = true
			add = append(add, LineInput{VariantID: l.ID, Quantity: want[l.ID]})
		}
	}

	var err error
	if len(remove) > 0 {
		if cart, err = p.client.RemoveLines(ctx, cart.ID, remove); err != nil {
			return Cart{}, fmt.Errorf("removing lines: %w", err)
		}
	}
	if len(update) > 0 {
		if cart, err = p.client.UpdateLines(ctx, cart.ID, update); err != nil {
			return Cart{}, fmt.Errorf("updating lines: %w", err)
		}
	}
	if len(add) > 0 {
		if cart, err = p.client.AddLines(ctx, cart.ID, add); err != nil {
			return Cart{}, fmt.Errorf("adding lines: %w", err)
		}
	}
	return cart, nil
}

func transport(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return checkout.Transport(name, se.Code, se.Body, err)
	}
	return checkout.Transport(name, 0, "", err)
}
