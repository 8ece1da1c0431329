package checkout

import (
	"errors"
	"fmt"
)

const (
	EmptyCartMessage = "Your cart is empty"
	FallbackMessage  = "Checkout failed"
	MalformedMessage = "Checkout failed: the payment service returned no redirect URL"
)

var ErrEmptyCart = errors.New("cart is empty")

type Kind int

const (
	// KindTransport covers network failures and non-2xx responses
	KindTransport Kind = iota + 1
	// KindMalformedResponse is a 2xx response without a url
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failed checkout handoff
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// UserMessage maps a checkout error to the text shown to the shopper
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyCart) {
		return EmptyCartMessage
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	return FallbackMessage
}
