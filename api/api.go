package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/storefront/api/middleware"
	"github.com/irsalhamdi/storefront/api/web"
	"github.com/irsalhamdi/storefront/core/cart"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/metrics"
	"github.com/irsalhamdi/storefront/rate"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	Catalog    *catalog.Store
	Cart       *cart.Engine
	Checkout   *checkout.Service
	Currency   string
	Limiter    *rate.Limiter
	Metrics    *metrics.Metrics
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	if cfg.Metrics != nil {
		a.mw = append(a.mw, middleware.Metrics(cfg.Metrics))
	}
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.Limit(cfg.Limiter)
	}

	a.Handle(http.MethodGet, "/catalog", catalog.HandleList(cfg.Catalog))
	a.Handle(http.MethodGet, "/catalog/{id}", catalog.HandleShow(cfg.Catalog))

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.Cart))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.Cart, cfg.Catalog))
	a.Handle(http.MethodPatch, "/cart/items/{id}", cart.HandleUpdateItem(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart/items/{id}", cart.HandleDeleteItem(cfg.Cart))
	a.Handle(http.MethodPut, "/cart/visibility", cart.HandleVisibility(cfg.Cart))

	a.Handle(http.MethodPost, "/checkout", checkout.HandleStart(cfg.Checkout, cfg.Cart, cfg.Currency), limit)
	a.Handle(http.MethodGet, "/checkout", checkout.HandleShow(cfg.Checkout))
	a.Handle(http.MethodDelete, "/checkout", checkout.HandleClose(cfg.Checkout))
	a.Handle(http.MethodGet, "/checkout/sessions/{id}", checkout.HandlePoll(cfg.Checkout), limit)

	if cfg.Metrics != nil {
		a.Router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
