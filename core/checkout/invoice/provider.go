// Package invoice checks out through a hosted payment session the buyer
// settles out of band, by payment link or QR code. The outcome is learned by
// polling the session.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/sirupsen/logrus"
)

const (
	name = "invoice"

	DefaultExpiry = 15 * time.Minute
)

// Remote session states.
const (
	StatusUnpaid    = "unpaid"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

type Provider struct {
	client *Client
	expiry time.Duration
	log    logrus.FieldLogger
}

func New(c *Client, expiry time.Duration, log logrus.FieldLogger) *Provider {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Provider{client: c, expiry: expiry, log: log.WithField("provider", name)}
}

func (p *Provider) Name() string { return name }

func (p *Provider) Submit(ctx context.Context, req checkout.Request) (checkout.Session, error) {
	lines := make([]LineItem, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, LineItem{
			ID:         l.ID,
			Name:       l.Name,
			UnitAmount: checkout.MinorUnits(l.Price, req.Currency),
			Quantity:   l.Quantity,
		})
	}

	created, err := p.client.CreateSession(ctx, CreateSession{
		Reference:        req.Reference,
		Amount:           checkout.MinorUnits(req.Amount, req.Currency),
		Currency:         req.Currency,
		LineItems:        lines,
		Metadata:         req.Metadata,
		ExpiresInSeconds: int(p.expiry / time.Second),
	})
	if err != nil {
		return checkout.Session{}, wrap(err, checkout.Transport)
	}
	if created.ID == "" || created.PaymentURI == "" {
		return checkout.Session{}, checkout.Transport(name, 0, "", errors.New("session reply without id or payment uri"))
	}

	// Sessions without a reported expiry still end locally.
	expires := created.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(p.expiry)
	}

	p.log.WithField("session_id", created.ID).Info("payment session created")

	return checkout.Session{
		ID:         created.ID,
		Provider:   name,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     checkout.Pending,
		PaymentURI: created.PaymentURI,
		QRCode:     created.QRCode,
		ExpiresAt:  expires,
	}, nil
}

func (p *Provider) PollStatus(ctx context.Context, sessionID string) (checkout.Session, error) {
	st, err := p.client.GetSession(ctx, sessionID)
	if err != nil {
		return checkout.Session{}, wrap(err, checkout.StatusCheck)
	}

	sess := checkout.Session{ID: sessionID, Provider: name}
	switch st.Status {
	case StatusUnpaid:
		sess.Status = checkout.Pending
	case StatusPaid:
		sess.Status = checkout.Completed
		sess.TransactionID = st.TransactionID
	case StatusCancelled, StatusExpired:
		sess.Status = checkout.Failed
		sess.FailureReason = st.Status
	default:
		return checkout.Session{}, checkout.StatusCheck(name, 0, "", fmt.Errorf("unknown session status %q", st.Status))
	}
	return sess, nil
}

func wrap(err error, kind func(provider string, status int, body string, err error) error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return kind(name, se.Code, se.Body, err)
	}
	return kind(name, 0, "", err)
}
