package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a checkout failure.
type ErrorKind string

const (
	KindInvalidRequest  ErrorKind = "InvalidRequestError"
	KindMalformedBasket ErrorKind = "MalformedBasketError"
	KindStore           ErrorKind = "StoreError"
	KindPublish         ErrorKind = "EventPublishError"
	KindBasketClear     ErrorKind = "BasketClearError"
)

// Sentinels for errors.Is; each matches every CheckoutError of that kind.
var (
	ErrInvalidRequest  = errors.New("invalid checkout request")
	ErrMalformedBasket = errors.New("malformed basket")
	ErrStoreFailed     = errors.New("basket store failed")
	ErrPublishFailed   = errors.New("checkout event publish failed")
	ErrBasketClear     = errors.New("basket clear failed")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidRequest:  ErrInvalidRequest,
	KindMalformedBasket: ErrMalformedBasket,
	KindStore:           ErrStoreFailed,
	KindPublish:         ErrPublishFailed,
	KindBasketClear:     ErrBasketClear,
}

// CheckoutError reports which step of a checkout failed, for whom and why.
type CheckoutError struct {
	Kind     ErrorKind
	Step     Step
	UserName string
	Message  string
	Err      error
}

func (e *CheckoutError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("checkout %s failed for user %q: %s: %v", e.Step, e.UserName, msg, e.Err)
	}
	return fmt.Sprintf("checkout %s failed for user %q: %s", e.Step, e.UserName, msg)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func (e *CheckoutError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newCheckoutError(kind ErrorKind, step Step, userName, msg string, err error) *CheckoutError {
	return &CheckoutError{Kind: kind, Step: step, UserName: userName, Message: msg, Err: err}
}
