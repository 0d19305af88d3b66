package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/api/weberr"
	"github.com/irsalhamdi/storefront/core/cart"
)

// StartNew is the optional body of a checkout request.
type StartNew struct {
	Customer *Customer      `json:"customer"`
	Shipping *Address       `json:"shipping"`
	Metadata map[string]any `json:"metadata"`
}

// HandleStart checks out the current cart.
func HandleStart(svc *Service, eng *cart.Engine, currency string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in StartNew
		if err := web.Decode(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		var opts []RequestOpt
		if in.Customer != nil {
			opts = append(opts, WithCustomer(*in.Customer))
		}
		if in.Shipping != nil {
			opts = append(opts, WithShipping(*in.Shipping))
		}
		if in.Metadata != nil {
			opts = append(opts, WithMetadata(in.Metadata))
		}

		sess, err := svc.Start(ctx, NewRequest(eng.Items(), currency, opts...))
		if err != nil {
			return webError(err)
		}
		return web.Respond(ctx, w, sess, http.StatusCreated)
	}
}

func HandleShow(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sess, ok := svc.Active()
		if !ok {
			return weberr.NotFound(errors.New("no active checkout"))
		}
		return web.Respond(ctx, w, sess, http.StatusOK)
	}
}

// HandlePoll asks the provider about a session once.
func HandlePoll(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sess, err := svc.Poll(ctx, web.Param(r, "id"))
		if err != nil {
			return webError(err)
		}
		return web.Respond(ctx, w, sess, http.StatusOK)
	}
}

func HandleClose(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		svc.Close()
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func webError(err error) error {
	var ce *Error
	if !errors.As(err, &ce) {
		return err
	}

	fields := weberr.WithFields(map[string]interface{}{
		"kind":     ce.Kind.String(),
		"provider": ce.Provider,
	})

	switch ce.Kind {
	case KindEmptyCart:
		return weberr.Unprocessable(err, "no items to checkout", fields)
	case KindValidation:
		msg := "invalid checkout request"
		if ce.Err != nil {
			msg = ce.Err.Error()
		}
		return weberr.Unprocessable(err, msg, fields)
	case KindNotConfigured:
		return weberr.Unavailable(err, "checkout is not configured", fields)
	case KindNotReady:
		return weberr.Unavailable(err, "checkout is not ready, try again later", fields)
	case KindTransport, KindStatusCheck:
		return weberr.BadGateway(err, fields)
	}
	return err
}
