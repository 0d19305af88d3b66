package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/irsalhamdi/storefront/core/bridge"
	"github.com/sirupsen/logrus"
)

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	return c
}

// Service runs checkouts through a single provider and keeps at most one
// session active. Pending sessions are polled on their own goroutine until
// they reach a terminal status, expire or are closed.
type Service struct {
	provider Provider
	bus      *bridge.Bus
	log      logrus.FieldLogger
	cfg      Config

	mu     sync.Mutex
	active *watch
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	session Session
}

func (w *watch) get() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *watch) setStatus(st Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Status = st
}

func (w *watch) set(s Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

func NewService(p Provider, bus *bridge.Bus, log logrus.FieldLogger, cfg Config) *Service {
	return &Service{
		provider: p,
		bus:      bus,
		log:      log.WithField("provider", p.Name()),
		cfg:      cfg.withDefaults(),
	}
}

func (s *Service) Provider() string { return s.provider.Name() }

func (s *Service) Configured() bool {
	_, none := s.provider.(Unconfigured)
	return !none
}

// Init waits for providers that load their backend asynchronously.
func (s *Service) Init(ctx context.Context) error {
	in, ok := s.provider.(Initializer)
	if !ok {
		return nil
	}
	return in.Init(ctx)
}

// Start validates req, replaces any active session and submits req. Only
// errors returned by the provider are published as checkout failures;
// precondition failures never reach the network.
func (s *Service) Start(ctx context.Context, req Request) (Session, error) {
	if !s.Configured() {
		return Session{}, NotConfigured(s.provider.Name())
	}

	if err := Validate(req); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Provider = s.provider.Name()
		}
		return Session{}, err
	}

	s.Close()

	sess, err := s.provider.Submit(ctx, req)
	if err != nil {
		s.log.WithField("reference", req.Reference).Errorf("submitting checkout: %v", err)
		s.publishFailure(err)
		return Session{}, err
	}
	if sess.Provider == "" {
		sess.Provider = s.provider.Name()
	}

	log := s.log.WithField("session_id", sess.ID)
	log.WithField("status", sess.Status).Info("checkout submitted")

	w := &watch{session: sess, done: make(chan struct{})}
	s.mu.Lock()
	prev := s.active
	s.active = w
	s.mu.Unlock()
	stop(prev)

	if sess.Status.IsTerminal() {
		close(w.done)
		s.publishResult(sess)
		return sess, nil
	}

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	go func() {
		final, ok := s.poll(wctx, w, log)
		close(w.done)
		if ok && wctx.Err() == nil {
			s.publishResult(final)
		}
	}()

	return sess, nil
}

// Active returns the session currently shown to the shopper.
func (s *Service) Active() (Session, bool) {
	s.mu.Lock()
	w := s.active
	s.mu.Unlock()

	if w == nil {
		return Session{}, false
	}
	return w.get(), true
}

// Close stops observing the active session and discards it. The remote
// payment is left alone. Close returns once the polling goroutine is gone,
// so no status request is issued after it returns.
func (s *Service) Close() {
	s.mu.Lock()
	w := s.active
	s.active = nil
	s.mu.Unlock()

	stop(w)
}

func stop(w *watch) {
	if w == nil {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

// Poll asks the provider for the status of any session once.
func (s *Service) Poll(ctx context.Context, sessionID string) (Session, error) {
	if !s.Configured() {
		return Session{}, NotConfigured(s.provider.Name())
	}
	return s.provider.PollStatus(ctx, sessionID)
}

func (s *Service) poll(ctx context.Context, w *watch, log logrus.FieldLogger) (Session, bool) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	sess := w.get()

	var expiry <-chan time.Time
	if !sess.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(sess.ExpiresAt))
		defer timer.Stop()
		expiry = timer.C
	}

	expire := func() (Session, bool) {
		cur := w.get()
		cur.Status = Failed
		cur.FailureReason = "expired"
		w.set(cur)
		log.Info("checkout session expired")
		return cur, true
	}

	for {
		select {
		case <-ctx.Done():
			return Session{}, false

		case <-expiry:
			return expire()

		case <-ticker.C:
			w.setStatus(Checking)

			pctx, cancel := s.pollContext(ctx, w.get().ExpiresAt)
			res := make(chan polled, 1)
			go func() {
				next, err := s.provider.PollStatus(pctx, sess.ID)
				res <- polled{next, err}
			}()

			var r polled
			select {
			case r = <-res:
				cancel()
			case <-expiry:
				// The reply, if any, is dropped.
				cancel()
				return expire()
			case <-ctx.Done():
				cancel()
				<-res
				return Session{}, false
			}

			if ctx.Err() != nil {
				return Session{}, false
			}

			next, err := r.session, r.err
			if err != nil {
				log.Warnf("checking session status: %v", err)
				w.setStatus(Pending)
				if expired(w.get()) {
					return expire()
				}
				continue
			}

			cur := merge(w.get(), next)
			if cur.Status.IsTerminal() {
				w.set(cur)
				log.WithField("status", cur.Status).Info("checkout session finished")
				return cur, true
			}

			cur.Status = Pending
			w.set(cur)
			if expired(cur) {
				return expire()
			}
		}
	}
}

type polled struct {
	session Session
	err     error
}

// pollContext bounds one status request by PollTimeout and by the session
// expiry, whichever comes first.
func (s *Service) pollContext(ctx context.Context, expiresAt time.Time) (context.Context, context.CancelFunc) {
	deadline := time.Now().Add(s.cfg.PollTimeout)
	if !expiresAt.IsZero() && expiresAt.Before(deadline) {
		deadline = expiresAt
	}
	return context.WithDeadline(ctx, deadline)
}

func expired(s Session) bool {
	return !s.ExpiresAt.IsZero() && !time.Now().Before(s.ExpiresAt)
}

func merge(cur, next Session) Session {
	cur.Status = next.Status
	if next.TransactionID != "" {
		cur.TransactionID = next.TransactionID
	}
	if next.FailureReason != "" {
		cur.FailureReason = next.FailureReason
	}
	if !next.ExpiresAt.IsZero() {
		cur.ExpiresAt = next.ExpiresAt
	}
	if next.RedirectURL != "" {
		cur.RedirectURL = next.RedirectURL
	}
	return cur
}

func (s *Service) publishResult(sess Session) {
	switch sess.Status {
	case Completed:
		s.bus.Publish(bridge.CheckoutSucceededEvent{
			Provider:      sess.Provider,
			SessionID:     sess.ID,
			TransactionID: sess.TransactionID,
			Amount:        sess.Amount,
		})
	case Failed:
		reason := sess.FailureReason
		if reason == "" {
			reason = "payment failed"
		}
		s.bus.Publish(bridge.CheckoutFailedEvent{
			Provider:  sess.Provider,
			SessionID: sess.ID,
			Error:     reason,
		})
	}
}

func (s *Service) publishFailure(err error) {
	s.bus.Publish(bridge.CheckoutFailedEvent{
		Provider: s.provider.Name(),
		Error:    err.Error(),
		Err:      err,
	})
}
