package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/storefront/api"
	"github.com/irsalhamdi/storefront/config"
	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/irsalhamdi/storefront/core/cart"
	"github.com/irsalhamdi/storefront/core/catalog"
	"github.com/irsalhamdi/storefront/core/checkout"
	"github.com/irsalhamdi/storefront/core/checkout/hosted"
	"github.com/irsalhamdi/storefront/core/checkout/providers"
	"github.com/irsalhamdi/storefront/export"
	"github.com/irsalhamdi/storefront/kvstore"
	"github.com/irsalhamdi/storefront/metrics"
	"github.com/irsalhamdi/storefront/rate"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "STOREFRONT"
	var cfg config.Config
	if help, err := conf.Parse(prefix, &cfg); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store kvstore.Store = kvstore.NewMemory()
	if cfg.Store.Path != "" {
		b, err := kvstore.OpenBolt(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open the cart store: %w", err)
		}
		defer b.Close()
		store = b
	}

	sel, err := providers.Select(cfg.Checkout, providers.Deps{Log: logger, Store: store})
	if err != nil {
		return fmt.Errorf("failed to select the checkout provider: %w", err)
	}

	items, err := catalog.Load(ctx, logger, sel.Sources...)
	if err != nil {
		return fmt.Errorf("failed to load the catalog: %w", err)
	}
	logger.WithField("origin", items.Origin()).Infof("catalog loaded with %d items", items.Len())

	bus := bridge.New(logger)
	eng := cart.NewEngine(bus)
	defer eng.ClearOnSuccess()()

	mtr := metrics.New()
	defer mtr.Observe(bus)()

	provider := sel.Provider
	if provider.Name() != (checkout.Unconfigured{}).Name() {
		provider = mtr.Instrument(provider)
	} else {
		logger.Warn("no checkout provider configured, checkout is disabled")
	}

	svc := checkout.NewService(provider, bus, logger, checkout.Config{
		PollInterval: cfg.Checkout.PollInterval,
		PollTimeout:  cfg.Checkout.PollTimeout,
	})
	defer svc.Close()

	go func() {
		if err := svc.Init(ctx); err != nil {
			logger.WithField("provider", svc.Provider()).Errorf("checkout provider failed to initialize: %v", err)
		}
	}()

	if sel.Hosted != nil {
		mirror := hosted.NewMirror(sel.Hosted, bus, logger)
		mirror.Start(ctx)
		defer mirror.Stop()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink := export.NewSink(export.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), logger)
		sink.Attach(bus)
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Errorf("closing the event export: %v", err)
			}
		}()
	}

	lim := rate.NewLimiter(cfg.RateLimit.Burst, cfg.RateLimit.TTL, cfg.RateLimit.Rate)
	defer lim.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		Catalog:    items,
		Cart:       eng,
		Checkout:   svc,
		Currency:   cfg.Checkout.Currency,
		Limiter:    lim,
		Metrics:    mtr,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}
