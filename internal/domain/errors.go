package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	ErrUnknownStatus       = errors.New("unknown shipment status")
	ErrPinRequired         = errors.New("delivery pin is required")
	ErrPinMissing          = errors.New("shipment has no delivery pin issued")
	ErrPinMismatch         = errors.New("delivery pin does not match")
	ErrPinAttemptsExceeded = errors.New("too many delivery pin attempts")

	// ErrDispatch marks failures of the notification side path. It is logged,
	// never returned to the caller of a status transition.
	ErrDispatch = errors.New("notification dispatch failed")
)

// UnknownStatusError carries the catalog names a caller may choose from.
type UnknownStatusError struct {
	Name  string
	Valid []string
}

func (e *UnknownStatusError) Error() string {
	if e == nil {
		return ErrUnknownStatus.Error()
	}
	return fmt.Sprintf("%s %q (valid: %s)", ErrUnknownStatus, e.Name, strings.Join(e.Valid, ", "))
}

func (e *UnknownStatusError) Unwrap() error {
	return ErrUnknownStatus
}
