package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidCart     = errors.New("invalid cart")
	ErrBrokenReference = errors.New("cart references a missing product")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrGateway         = errors.New("payment gateway error")
	ErrPersistence     = errors.New("persistence error")
	ErrBusy            = errors.New("another cart operation is in progress")
)

// ValidationError describes why a request was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BrokenReferenceError lists the product ids a cart points at that no longer exist.
type BrokenReferenceError struct {
	ProductIDs []string
}

func (e *BrokenReferenceError) Error() string {
	return fmt.Sprintf("cart references missing products: %s", strings.Join(e.ProductIDs, ", "))
}

func (e *BrokenReferenceError) Unwrap() error { return ErrBrokenReference }
