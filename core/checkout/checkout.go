package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/storefront/core/cart"
	"github.com/irsalhamdi/storefront/random"
	"github.com/irsalhamdi/storefront/validate"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest accepted gap between a request amount and the
// sum of its line subtotals.
var Tolerance = decimal.New(1, -2)

type Status string

const (
	Pending   Status = "pending"
	Checking  Status = "checking"
	Completed Status = "completed"
	Failed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed
}

type Line struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Customer struct {
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Address struct {
	Address1 string `json:"address1" validate:"required"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Zip      string `json:"zip" validate:"required"`
	Country  string `json:"country" validate:"required"`
}

// Request is the snapshot handed to a provider. It is built once per
// checkout attempt and must not be modified afterwards.
type Request struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency  string          `json:"currency" validate:"required"`
	Items     []Line          `json:"items" validate:"dive"`
	Customer  *Customer       `json:"customer,omitempty"`
	Shipping  *Address        `json:"shipping,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

type RequestOpt func(*Request)

func WithCustomer(c Customer) RequestOpt {
	return func(r *Request) { r.Customer = &c }
}

func WithShipping(a Address) RequestOpt {
	return func(r *Request) { r.Shipping = &a }
}

func WithMetadata(md map[string]any) RequestOpt {
	return func(r *Request) {
		for k, v := range md {
			r.Metadata[k] = v
		}
	}
}

func NewRequest(items []cart.Item, currency string, opts ...RequestOpt) Request {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			ID:          it.ID,
			Name:        it.Name,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Description: it.Description,
			Category:    fmt.Sprintf("Generation %d", it.Generation),
			Image:       it.Image,
		})
	}

	r := Request{
		Reference: random.String(16),
		Amount:    cart.TotalPrice(items),
		Currency:  currency,
		Items:     lines,
		Metadata: map[string]any{
			"source":    "storefront",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"itemCount": len(items),
		},
	}

	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Request) Subtotal() decimal.Decimal {
	tot := decimal.Zero
	for _, l := range r.Items {
		tot = tot.Add(l.Subtotal())
	}
	return tot
}

// Validate rejects requests that were built wrong. A mismatch between the
// amount and the line subtotals is never corrected.
func Validate(r Request) error {
	if len(r.Items) == 0 {
		return &Error{Kind: KindEmptyCart, Err: errors.New("no items to checkout")}
	}

	if err := validate.Check(r); err != nil {
		var fe *validate.FieldError
		if errors.As(err, &fe) {
			return Validation(fe.Field, errors.New(fe.Msg))
		}
		return Validation("", err)
	}

	sub := r.Subtotal()
	if sub.Sub(r.Amount).Abs().GreaterThan(Tolerance) {
		return Validation("Request.Amount", fmt.Errorf("amount %s does not match item total %s", r.Amount, sub))
	}

	return nil
}

type Session struct {
	ID            string          `json:"id"`
	Provider      string          `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	RedirectURL   string          `json:"redirectUrl,omitempty"`
	PaymentURI    string          `json:"paymentUri,omitempty"`
	QRCode        string          `json:"qrCode,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
}

// Remaining reports the time left before the session expires. ok is false
// for sessions without an expiry.
func (s Session) Remaining(now time.Time) (left time.Duration, ok bool) {
	if s.ExpiresAt.IsZero() {
		return 0, false
	}
	left = s.ExpiresAt.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}
