package checkout

import "context"

// Provider is one checkout backend. Submit receives validated requests only.
type Provider interface {
	Name() string
	Submit(ctx context.Context, req Request) (Session, error)
	PollStatus(ctx context.Context, sessionID string) (Session, error)
}

// Initializer is implemented by providers that need to wait for their
// backend before accepting requests.
type Initializer interface {
	Init(ctx context.Context) error
}

// Unconfigured stands in when no provider has credentials.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "none" }

func (u Unconfigured) Submit(context.Context, Request) (Session, error) {
	return Session{}, NotConfigured(u.Name())
}

func (u Unconfigured) PollStatus(context.Context, string) (Session, error) {
	return Session{}, NotConfigured(u.Name())
}
