package orders

import (
	"errors"
	"fmt"
)

// FailureKind names a business outcome of order placement that is not a
// success. Infrastructure errors never carry a kind.
type FailureKind string

const (
	KindUnauthorized      FailureKind = "UNAUTHORIZED"
	KindInvalidRequest    FailureKind = "INVALID_REQUEST"
	KindOptionNotFound    FailureKind = "OPTION_NOT_FOUND"
	KindInsufficientStock FailureKind = "INSUFFICIENT_STOCK"
	KindInsufficientPoint FailureKind = "INSUFFICIENT_POINT"
)

// Failure is a terminal, typed rejection of an order.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

var (
	ErrUnauthorized      = &Failure{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrInvalidRequest    = &Failure{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrOptionNotFound    = &Failure{Kind: KindOptionNotFound, Message: "option not found"}
	ErrInsufficientStock = &Failure{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInsufficientPoint = &Failure{Kind: KindInsufficientPoint, Message: "insufficient point"}
)

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
