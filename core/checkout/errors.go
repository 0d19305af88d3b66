package checkout

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNotConfigured Kind = iota + 1
	KindNotReady
	KindEmptyCart
	KindValidation
	KindTransport
	KindStatusCheck
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not configured"
	case KindNotReady:
		return "not ready"
	case KindEmptyCart:
		return "empty cart"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindStatusCheck:
		return "status check"
	}
	return "unknown"
}

// Error is the only error type crossing the provider boundary. Errors are
// compared by Kind, so errors.Is(err, ErrTransport) holds for any transport
// failure.
type Error struct {
	Kind       Kind
	Provider   string
	Field      string
	StatusCode int
	Body       string
	Err        error
}

var (
	ErrNotConfigured = &Error{Kind: KindNotConfigured}
	ErrNotReady      = &Error{Kind: KindNotReady}
	ErrEmptyCart     = &Error{Kind: KindEmptyCart}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrTransport     = &Error{Kind: KindTransport}
	ErrStatusCheck   = &Error{Kind: KindStatusCheck}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" [%s]", e.Field)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable is true for failures a caller may retry with the same request.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindStatusCheck
}

func NotConfigured(provider string) error {
	return &Error{Kind: KindNotConfigured, Provider: provider, Err: errors.New("no checkout provider credentials")}
}

func NotReady(provider string, err error) error {
	return &Error{Kind: KindNotReady, Provider: provider, Err: err}
}

func Validation(field string, err error) error {
	return &Error{Kind: KindValidation, Field: field, Err: err}
}

func Transport(provider string, status int, body string, err error) error {
	return &Error{Kind: KindTransport, Provider: provider, StatusCode: status, Body: body, Err: err}
}

func StatusCheck(provider string, status int, body string, err error) error {
	return &Error{Kind: KindStatusCheck, Provider: provider, StatusCode: status, Body: body, Err: err}
}

func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

func Retryable(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Retryable()
}
