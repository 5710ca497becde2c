package shop

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindNotFound         Kind = "NotFound"
	KindForbidden        Kind = "Forbidden"
	KindInvalidInput     Kind = "InvalidInput"
	KindInvalidQuantity  Kind = "InvalidQuantity"
	KindCouponInvalid    Kind = "CouponInvalid"
)

// Error is the tagged failure every public operation returns.
// Err carries the cause for logs and is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, so errors.Is(err, ErrNotFound) holds for any
// not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

var (
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrInvalidQuantity  = &Error{Kind: KindInvalidQuantity}
	ErrCouponInvalid    = &Error{Kind: KindCouponInvalid}
)

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func InvalidQuantity(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidQuantity, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a store failure.
func Unavailable(err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
}

// StoreErr classifies an error coming back from a store call.
// Tagged errors pass through; anything else is treated as transient.
func StoreErr(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unavailable(err)
}

// KindOf returns the kind of err, defaulting to StoreUnavailable for
// untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// PublicMessage is the caller-safe text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		if e.Kind == KindStoreUnavailable {
			return "service temporarily unavailable"
		}
		return e.Message
	}
	switch KindOf(err) {
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidInput:
		return "invalid input"
	case KindInvalidQuantity:
		return "invalid quantity"
	case KindCouponInvalid:
		return "no valid coupon found"
	default:
		return "service temporarily unavailable"
	}
}
