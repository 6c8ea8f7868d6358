package models

import (
	"errors"
	"fmt"
)

// ErrSecurityRejection marks messages that must be dropped without a reply:
// disallowed origin, no registered handler, or an admin message on a guest frame.
var ErrSecurityRejection = errors.New("message rejected")

var (
	ErrWishNotFound   = errors.New("wish not found")
	ErrGuestNotFound  = errors.New("guest not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrWishesDisabled = errors.New("wishes are disabled for this event")
)

type IdentifierKind string

const (
	KindEvent IdentifierKind = "event"
	KindGuest IdentifierKind = "guest"
)

// ResolutionError is returned when a public identifier maps to no internal id,
// or to more than one.
type ResolutionError struct {
	Kind      IdentifierKind
	PublicID  string
	Ambiguous bool
}

func (e *ResolutionError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("ambiguous %s identifier %q", e.Kind, e.PublicID)
	}
	return fmt.Sprintf("unknown %s identifier %q", e.Kind, e.PublicID)
}

// ValidationError reports missing or malformed fields. No mutation is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a persistence failure. Its detail is for host logs only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
