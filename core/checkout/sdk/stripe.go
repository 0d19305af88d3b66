package sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// Stripe confirms a PaymentIntent on creation so the outcome is known as
// soon as the call returns.
type Stripe struct {
	api           *stripecl.API
	paymentMethod string
}

func NewStripe(api *stripecl.API, paymentMethod string) *Stripe {
	return &Stripe{api: api, paymentMethod: paymentMethod}
}

// StripeLoader is ready as soon as an API key is present.
func StripeLoader(api *stripecl.API, key, paymentMethod string) Loader {
	return func(context.Context) (Client, error) {
		if key == "" {
			return nil, ErrNotLoaded
		}
		return NewStripe(api, paymentMethod), nil
	}
}

func (s *Stripe) Checkout(ctx context.Context, req checkout.Request) (Result, error) {
	minor := checkout.MinorUnits(req.Amount, req.Currency)

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(minor),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(s.paymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(describe(req)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)
	for k, v := range req.Metadata {
		params.AddMetadata(k, fmt.Sprint(v))
	}
	if req.Customer != nil && req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return Result{
				Success:      false,
				Status:       checkout.Failed,
				ErrorCode:    string(serr.Code),
				ErrorMessage: serr.Msg,
			}, nil
		}
		return Result{}, stripeError(err, checkout.Transport)
	}
	return intentResult(pi), nil
}

// Status fetches the PaymentIntent again, for intents waiting on the buyer.
func (s *Stripe) Status(ctx context.Context, id string) (Result, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Result{}, stripeError(err, checkout.StatusCheck)
	}
	return intentResult(pi), nil
}

func intentResult(pi *stripe.PaymentIntent) Result {
	currency := strings.ToUpper(string(pi.Currency))
	res := Result{
		OrderID:       pi.ID,
		TransactionID: pi.ID,
		Amount:        checkout.FromMinorUnits(pi.Amount, currency),
		Currency:      currency,
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Success = true
		res.Status = checkout.Completed
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		res.Success = true
		res.Status = checkout.Pending
	default:
		res.Status = checkout.Failed
		res.ErrorMessage = fmt.Sprintf("payment intent %s", pi.Status)
	}
	return res
}

func stripeError(err error, kind func(provider string, status int, body string, err error) error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return kind("stripe", serr.HTTPStatusCode, serr.Msg, err)
	}
	return kind("stripe", 0, "", err)
}

func describe(req checkout.Request) string {
	names := make([]string, 0, len(req.Items))
	for _, l := range req.Items {
		names = append(names, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
	}
	return strings.Join(names, ", ")
}
