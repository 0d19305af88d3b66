package sdk

import (
	"context"
	"errors"
	"strconv"

	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/plutov/paypal/v4"
)

const paypalCompleted = "COMPLETED"

// PayPal creates a CAPTURE order and captures it right away.
type PayPal struct {
	client *paypal.Client
}

// PayPalLoader reports the SDK as loaded once an access token is issued.
func PayPalLoader(pp *paypal.Client) Loader {
	return func(ctx context.Context) (Client, error) {
		if _, err := pp.GetAccessToken(ctx); err != nil {
			return nil, ErrNotLoaded
		}
		return &PayPal{client: pp}, nil
	}
}

func (p *PayPal) Checkout(ctx context.Context, req checkout.Request) (Result, error) {
	money := func(v string) *paypal.Money {
		return &paypal.Money{Currency: req.Currency, Value: v}
	}

	items := make([]paypal.Item, 0, len(req.Items))
	for _, l := range req.Items {
		items = append(items, paypal.Item{
			Quantity:    strconv.Itoa(l.Quantity),
			Name:        l.Name,
			Description: l.Description,
			SKU:         l.ID,
			UnitAmount:  money(checkout.Format(l.Price, req.Currency)),
		})
	}

	tot := checkout.Format(req.Amount, req.Currency)
	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: req.Reference,
		Items:       items,

		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    tot,

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: money(tot),
			},
		},
	}}

	ord, err := p.client.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
	if err != nil {
		return Result{}, paypalError(err)
	}

	resp, err := p.client.CaptureOrder(ctx, ord.ID, paypal.CaptureOrderRequest{})
	if err != nil {
		return Result{}, paypalError(err)
	}

	res := Result{
		OrderID:       ord.ID,
		TransactionID: resp.ID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}
	if resp.Status == paypalCompleted {
		res.Success = true
		res.Status = checkout.Completed
	} else {
		res.Status = checkout.Failed
		res.ErrorCode = resp.Status
		res.ErrorMessage = "captured order with status " + resp.Status
	}
	return res, nil
}

func paypalError(err error) error {
	var perr *paypal.ErrorResponse
	if errors.As(err, &perr) && perr.Response != nil {
		return checkout.Transport("paypal", perr.Response.StatusCode, perr.Message, err)
	}
	return checkout.Transport("paypal", 0, "", err)
}
