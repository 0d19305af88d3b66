// Package sdk drives checkouts through a payment SDK that answers in a
// single round trip. The SDK client may not exist at startup: the provider
// keeps asking its Loader until it returns a client or the wait times out.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/validate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWait  = 10 * time.Second
	DefaultRetry = 100 * time.Millisecond

	// DefaultPendingExpiry caps how long a payment waiting on the buyer
	// (3-D Secure and similar) is watched.
	DefaultPendingExpiry = 10 * time.Minute
)

var (
	ErrNotLoaded   = errors.New("sdk not loaded")
	ErrInitTimeout = errors.New("sdk initialization timeout")
)

// Result is what the SDK reports for one checkout call.
type Result struct {
	Success       bool
	Status        checkout.Status
	TransactionID string
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	RedirectURL   string
	ErrorCode     string
	ErrorMessage  string
}

type Client interface {
	Checkout(ctx context.Context, req checkout.Request) (Result, error)
}

// StatusClient is implemented by clients that can look a payment up again
// after Checkout reported it pending.
type StatusClient interface {
	Status(ctx context.Context, id string) (Result, error)
}

// Loader returns ErrNotLoaded while the client is unavailable. Any other
// error aborts initialization.
type Loader func(ctx context.Context) (Client, error)

type Provider struct {
	name  string
	load  Loader
	wait    time.Duration
	retry   time.Duration
	pending time.Duration
	log     logrus.FieldLogger

	once   sync.Once
	ready  chan struct{}
	client Client
	err    error

	mu       sync.Mutex
	sessions map[string]checkout.Session
}

type Opt func(*Provider)

// WithPendingExpiry sets how long a pending payment stays open.
func WithPendingExpiry(d time.Duration) Opt {
	return func(p *Provider) {
		if d > 0 {
			p.pending = d
		}
	}
}

// WithWait bounds initialization to wait and polls the loader every retry.
// Non-positive values keep the defaults.
func WithWait(wait, retry time.Duration) Opt {
	return func(p *Provider) {
		if wait > 0 {
			p.wait = wait
		}
		if retry > 0 {
			p.retry = retry
		}
	}
}

func New(name string, load Loader, log logrus.FieldLogger, opts ...Opt) *Provider {
	p := &Provider{
		name:     name,
		load:     load,
		wait:     DefaultWait,
		retry:    DefaultRetry,
		pending:  DefaultPendingExpiry,
		log:      log.WithField("provider", name),
		ready:    make(chan struct{}),
		sessions: make(map[string]checkout.Session),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return p.name }

// Init starts loading the client on first call and waits for the outcome.
// Later calls share the same outcome.
func (p *Provider) Init(ctx context.Context) error {
	p.once.Do(func() { go p.initialize() })

	select {
	case <-p.ready:
		return p.err
	case <-ctx.Done():
		return checkout.NotReady(p.name, ctx.Err())
	}
}

func (p *Provider) Ready() bool {
	select {
	case <-p.ready:
		return p.err == nil
	default:
		return false
	}
}

func (p *Provider) initialize() {
	defer close(p.ready)

	ctx, cancel := context.WithTimeout(context.Background(), p.wait)
	defer cancel()

	ticker := time.NewTicker(p.retry)
	defer ticker.Stop()

	for {
		c, err := p.load(ctx)
		switch {
		case err == nil:
			p.client = c
			p.log.Info("sdk ready")
			return
		case !errors.Is(err, ErrNotLoaded):
			p.err = checkout.NotReady(p.name, fmt.Errorf("sdk setup: %w", err))
			return
		}

		select {
		case <-ctx.Done():
			p.err = checkout.NotReady(p.name, ErrInitTimeout)
			p.log.Error(ErrInitTimeout)
			return
		case <-ticker.C:
		}
	}
}

func (p *Provider) Submit(ctx context.Context, req checkout.Request) (checkout.Session, error) {
	if err := p.Init(ctx); err != nil {
		return checkout.Session{}, err
	}

	res, err := p.client.Checkout(ctx, req)
	if err != nil {
		var ce *checkout.Error
		if errors.As(err, &ce) {
			return checkout.Session{}, err
		}
		return checkout.Session{}, checkout.Transport(p.name, 0, "", err)
	}

	sess := p.session(req, res)
	if res.Success {
		p.log.WithField("transaction_id", res.TransactionID).Info("sdk checkout succeeded")
	} else {
		p.log.WithField("code", res.ErrorCode).Warnf("sdk checkout did not succeed: %s", res.ErrorMessage)
	}

	p.mu.Lock()
	p.sessions[sess.ID] = sess
	p.mu.Unlock()

	return sess, nil
}

// PollStatus returns what Submit learned. Pending payments are looked up
// again when the client supports it.
func (p *Provider) PollStatus(ctx context.Context, sessionID string) (checkout.Session, error) {
	if !p.Ready() {
		return checkout.Session{}, checkout.NotReady(p.name, ErrNotLoaded)
	}

	p.mu.Lock()
	sess, ok := p.sessions[sessionID]
	p.mu.Unlock()
	if !ok {
		return checkout.Session{}, checkout.StatusCheck(p.name, 0, "", fmt.Errorf("unknown session %s", sessionID))
	}

	sc, ok := p.client.(StatusClient)
	if !ok || sess.Status != checkout.Pending {
		return sess, nil
	}

	res, err := sc.Status(ctx, sessionID)
	if err != nil {
		var ce *checkout.Error
		if errors.As(err, &ce) {
			return checkout.Session{}, err
		}
		return checkout.Session{}, checkout.StatusCheck(p.name, 0, "", err)
	}

	next := p.session(checkout.Request{Amount: sess.Amount, Currency: sess.Currency}, res)
	next.ID = sess.ID
	next.ExpiresAt = sess.ExpiresAt

	p.mu.Lock()
	p.sessions[sessionID] = next
	p.mu.Unlock()
	return next, nil
}

func (p *Provider) session(req checkout.Request, res Result) checkout.Session {
	id := res.OrderID
	if id == "" {
		id = res.TransactionID
	}
	if id == "" {
		id = validate.GenerateID()
	}

	amount := res.Amount
	if amount.IsZero() {
		amount = req.Amount
	}
	currency := res.Currency
	if currency == "" {
		currency = req.Currency
	}

	status := res.Status
	switch {
	case res.Success && status == "":
		status = checkout.Completed
	case !res.Success && status == "":
		status = checkout.Failed
	}

	sess := checkout.Session{
		ID:            id,
		Provider:      p.name,
		Amount:        amount,
		Currency:      currency,
		Status:        status,
		TransactionID: res.TransactionID,
		RedirectURL:   res.RedirectURL,
	}
	if status == checkout.Pending {
		sess.ExpiresAt = time.Now().Add(p.pending)
	}
	if status == checkout.Failed {
		sess.FailureReason = res.ErrorMessage
		if sess.FailureReason == "" {
			sess.FailureReason = "payment failed"
		}
	}
	return sess
}
